package buffer

import (
	"strings"

	"github.com/riverfjs/chatmd-go/internal/types"
)

// SpanBuffer accumulates styled spans for one prose segment.
// Adjacent spans with the same style and role are merged on write.
type SpanBuffer struct {
	spans []types.Span
	bytes int
}

// New creates a new SpanBuffer.
func New() *SpanBuffer {
	return &SpanBuffer{
		spans: make([]types.Span, 0),
	}
}

// Write appends a span. Empty text is ignored.
func (sb *SpanBuffer) Write(span types.Span) {
	if span.Text == "" {
		return
	}
	sb.bytes += len(span.Text)
	if n := len(sb.spans); n > 0 {
		last := &sb.spans[n-1]
		if last.Role == span.Role && last.Style == span.Style {
			last.Text += span.Text
			return
		}
	}
	sb.spans = append(sb.spans, span)
}

// WriteText appends text with the given style as a RoleText span.
func (sb *SpanBuffer) WriteText(text string, style types.StyleDirective) {
	sb.Write(types.Span{Text: text, Style: style, Role: types.RoleText})
}

// WriteMarker appends a decoration span (list marker, quote bar).
func (sb *SpanBuffer) WriteMarker(text string, style types.StyleDirective) {
	sb.Write(types.Span{Text: text, Style: style, Role: types.RoleMarker})
}

// EnsureSpacing writes just enough line breaks for the buffer to end with
// len(spacing) newlines, never more.
func (sb *SpanBuffer) EnsureSpacing(spacing string) {
	needed := len(spacing) - sb.TrailingNewlineCount()
	if needed <= 0 {
		return
	}
	sb.Write(types.Span{Text: strings.Repeat("\n", needed), Role: types.RoleSpacing})
}

// ByteOffset returns the total length of buffered text.
func (sb *SpanBuffer) ByteOffset() int {
	return sb.bytes
}

// Len returns the number of spans.
func (sb *SpanBuffer) Len() int {
	return len(sb.spans)
}

// TrailingNewlineCount counts trailing newline characters in the buffer.
func (sb *SpanBuffer) TrailingNewlineCount() int {
	count := 0
	for i := len(sb.spans) - 1; i >= 0; i-- {
		text := sb.spans[i].Text
		for j := len(text) - 1; j >= 0; j-- {
			if text[j] == '\n' {
				count++
			} else {
				return count
			}
		}
	}
	return count
}

// TrimTrailingSpacing drops spacing spans at the end of the buffer.
func (sb *SpanBuffer) TrimTrailingSpacing() {
	for len(sb.spans) > 0 {
		last := sb.spans[len(sb.spans)-1]
		if last.Role != types.RoleSpacing {
			return
		}
		sb.bytes -= len(last.Text)
		sb.spans = sb.spans[:len(sb.spans)-1]
	}
}

// Spans returns a copy of the buffered spans.
func (sb *SpanBuffer) Spans() []types.Span {
	out := make([]types.Span, len(sb.spans))
	copy(out, sb.spans)
	return out
}

// String returns the accumulated text.
func (sb *SpanBuffer) String() string {
	return types.JoinSpans(sb.spans)
}

// Reset clears the buffer.
func (sb *SpanBuffer) Reset() {
	sb.spans = sb.spans[:0]
	sb.bytes = 0
}
