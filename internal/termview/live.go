package termview

import (
	"fmt"
	"io"
	"strings"
)

// Live redraws a frame in place on a terminal. Each Draw erases the lines written
// by the previous one.
type Live struct {
	w     io.Writer
	lines int
}

// NewLive creates a Live writer on w.
func NewLive(w io.Writer) *Live {
	return &Live{w: w}
}

// Draw replaces the previous frame with frame.
func (l *Live) Draw(frame string) error {
	var b strings.Builder
	if l.lines > 0 {
		// 光标回到上一帧首行并清除到屏幕末尾
		fmt.Fprintf(&b, "\x1b[%dF", l.lines)
	}
	b.WriteString("\x1b[J")
	b.WriteString(frame)
	if !strings.HasSuffix(frame, "\n") {
		b.WriteByte('\n')
	}
	if _, err := io.WriteString(l.w, b.String()); err != nil {
		return fmt.Errorf("termview: draw: %w", err)
	}
	l.lines = strings.Count(frame, "\n")
	if !strings.HasSuffix(frame, "\n") {
		l.lines++
	}
	return nil
}

// Lines returns the number of lines of the last frame.
func (l *Live) Lines() int {
	return l.lines
}
