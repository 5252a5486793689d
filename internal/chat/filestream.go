package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileStream follows a file that another process appends a response to. The
// existing content is emitted first, then every appended fragment. The stream ends
// when the file is removed or renamed, when nothing was written for Idle, or when
// ctx is done.
type FileStream struct {
	Path   string
	Idle   time.Duration // 0 disables the idle timeout
	Logger *zap.Logger
}

func (f *FileStream) logger() *zap.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return zap.NewNop()
}

// Stream implements StreamClient. The request is ignored.
func (f *FileStream) Stream(ctx context.Context, _ Request) (<-chan string, <-chan error) {
	content := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(content)
		if err := f.follow(ctx, content); err != nil {
			errs <- err
		}
	}()

	return content, errs
}

func (f *FileStream) follow(ctx context.Context, content chan<- string) error {
	file, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("chat: open %s: %w", f.Path, err)
	}
	defer file.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("chat: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(f.Path); err != nil {
		return fmt.Errorf("chat: watch %s: %w", f.Path, err)
	}

	var carry []byte
	emit := func() error {
		data, err := io.ReadAll(file)
		if err != nil {
			return fmt.Errorf("chat: read %s: %w", f.Path, err)
		}
		if len(data) == 0 {
			return nil
		}
		carry = append(carry, data...)
		n := completeUTF8(carry)
		if n == 0 {
			return nil
		}
		chunk := string(carry[:n])
		carry = append(carry[:0], carry[n:]...)
		select {
		case content <- chunk:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := emit(); err != nil {
		return err
	}

	var idle <-chan time.Time
	var timer *time.Timer
	if f.Idle > 0 {
		timer = time.NewTimer(f.Idle)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-idle:
			f.logger().Debug("file stream idle", zap.String("path", f.Path))
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case event.Op&fsnotify.Write != 0:
				if err := emit(); err != nil {
					return err
				}
				if timer != nil {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(f.Idle)
				}
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				f.logger().Debug("followed file went away",
					zap.String("path", f.Path), zap.String("op", event.Op.String()))
				return nil
			case event.Op&fsnotify.Chmod != 0:
				// 文件仍被打开时删除只产生属性变化事件
				if _, err := os.Stat(f.Path); errors.Is(err, os.ErrNotExist) {
					f.logger().Debug("followed file was unlinked", zap.String("path", f.Path))
					return emit()
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("chat: watch %s: %w", f.Path, err)
		}
	}
}

// completeUTF8 returns the length of the longest prefix of b that does not end in
// a truncated UTF-8 sequence.
func completeUTF8(b []byte) int {
	n := len(b)
	// 最多回看 utf8.UTFMax-1 个字节
	for i := 1; i < utf8.UTFMax && i <= n; i++ {
		c := b[n-i]
		if utf8.RuneStart(c) {
			if !utf8.FullRune(b[n-i:]) {
				return n - i
			}
			return n
		}
	}
	return n
}
