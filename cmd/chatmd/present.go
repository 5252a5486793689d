package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/riverfjs/chatmd-go"
	"github.com/riverfjs/chatmd-go/internal/termview"
)

// presenter draws session updates. With a live writer every update redraws the
// frame in place; otherwise only the final frame is printed.
type presenter struct {
	out  io.Writer
	live *termview.Live
	opts termview.Options

	mu     sync.Mutex
	frames int
}

func newPresenter(out io.Writer, live bool, opts termview.Options) *presenter {
	p := &presenter{out: out, opts: opts}
	if live {
		p.live = termview.NewLive(out)
	}
	return p
}

// update is the session subscriber.
func (p *presenter) update(u chatmd.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames++
	if p.live == nil || u.Status.Terminal() {
		return
	}
	_ = p.live.Draw(p.frame(u.Output, termview.StatusInfo{
		State:    u.Status.String(),
		Frames:   p.frames,
		Reparses: u.Reparses,
	}))
}

// finish waits for s and prints the final frame.
func (p *presenter) finish(s *chatmd.Session) (chatmd.RenderedOutput, error) {
	out, err := s.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	frame := p.frame(out, summary(s))
	if p.live != nil {
		_ = p.live.Draw(frame)
	} else {
		fmt.Fprintln(p.out, frame)
	}
	return out, err
}

func (p *presenter) frame(out chatmd.RenderedOutput, info termview.StatusInfo) string {
	body := termview.Render(out, p.opts)
	status := termview.Status(info, p.opts)
	if body == "" {
		return status
	}
	return body + "\n\n" + status
}

func summary(s *chatmd.Session) termview.StatusInfo {
	info := termview.StatusInfo{
		State:    s.Status().String(),
		Frames:   s.Frames(),
		Reparses: s.Reparses(),
		Elapsed:  s.Elapsed(),
	}
	if s.Status() == chatmd.StatusAborted {
		info.Reason = s.Reason()
	}
	return info
}
