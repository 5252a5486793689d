// Package reconciler turns a growing stream of markdown chunks into a sequence of
// displayable outputs.
//
// A full render of the accumulated text runs only when enough new text has arrived
// (the threshold) or when a chunk completes a code fence marker. Between full
// renders the unparsed tail is stitched onto the last segment of the previous full
// render. A Reconciler is owned by one goroutine; it does no locking.
package reconciler

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/riverfjs/chatmd-go/internal/types"
)

// DefaultThreshold is the number of runes that may accumulate before a full render.
const DefaultThreshold = 64

// DefaultFenceMarkers are the code fence markers that force a full render.
var DefaultFenceMarkers = []string{"```", "~~~"}

// ErrTerminated is returned when a chunk arrives after the stream settled or aborted.
var ErrTerminated = errors.New("reconciler: stream already terminated")

// Reparse reasons reported in logs.
const (
	ReasonThreshold = "threshold"
	ReasonFence     = "fence"
	ReasonSettle    = "settle"
)

// Renderer performs a full render of markdown text. It must be deterministic and total.
type Renderer interface {
	Render(text string) []types.Segment
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(text string) []types.Segment

// Render calls f(text).
func (f RenderFunc) Render(text string) []types.Segment {
	return f(text)
}

// State 流的生命周期状态
type State uint8

const (
	StateEmpty State = iota
	StateAccumulating
	StateSettled
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAccumulating:
		return "accumulating"
	case StateSettled:
		return "settled"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no more chunks are accepted.
func (s State) Terminal() bool {
	return s == StateSettled || s == StateAborted
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithThreshold sets the rune count that triggers a full render. Values <= 0 keep the default.
func WithThreshold(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.threshold = n
		}
	}
}

// WithFenceMarkers replaces the fence markers. Empty markers are ignored.
func WithFenceMarkers(markers ...string) Option {
	return func(r *Reconciler) {
		r.markers = r.markers[:0]
		for _, m := range markers {
			if m != "" {
				r.markers = append(r.markers, m)
			}
		}
	}
}

// WithLogger sets the logger for reparse diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Reconciler 单个流的增量渲染状态机
type Reconciler struct {
	renderer  Renderer
	threshold int
	markers   []string
	logger    *zap.Logger

	state      State
	raw        string
	lastParsed types.RenderedOutput // 最近一次完整渲染，拼接时只读
	parsedLen  int                  // lastParsed 覆盖的 raw 字节数
	pending    int                  // 自上次完整渲染以来的 rune 数
	last       types.RenderedOutput // 最近一次发布的输出
	reparses   int
	reason     string
}

// New creates a Reconciler in the Empty state.
func New(renderer Renderer, opts ...Option) *Reconciler {
	r := &Reconciler{
		renderer:  renderer,
		threshold: DefaultThreshold,
		markers:   append([]string(nil), DefaultFenceMarkers...),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Push appends a chunk and returns the output to display for it.
//
// The chunk is applied atomically: when ctx is cancelled before or during the step
// the reconciler is left exactly as it was and ctx.Err() is returned together with
// the previous output.
func (r *Reconciler) Push(ctx context.Context, chunk string) (types.RenderedOutput, error) {
	if r.state.Terminal() {
		return r.last.Clone(), ErrTerminated
	}
	if err := ctx.Err(); err != nil {
		return r.last.Clone(), err
	}

	raw := r.raw + chunk
	pending := r.pending + utf8.RuneCountInString(chunk)
	parsed, parsedLen := r.lastParsed, r.parsedLen

	reason := ""
	switch {
	case pending >= r.threshold:
		reason = ReasonThreshold
	case r.completesFence(chunk):
		reason = ReasonFence
	}

	if reason != "" {
		segments := r.render(raw, reason)
		if err := ctx.Err(); err != nil {
			return r.last.Clone(), err
		}
		parsed = types.RenderedOutput{RawText: raw, Segments: segments}
		parsedLen = len(raw)
		pending = 0
	}

	out := stitch(parsed, raw, raw[parsedLen:])

	// commit
	if reason != "" {
		r.reparses++
	}
	r.raw = raw
	r.pending = pending
	r.lastParsed, r.parsedLen = parsed, parsedLen
	r.last = out
	r.state = StateAccumulating
	return out.Clone(), nil
}

// Complete performs the final full render over the whole text and settles the stream.
// Completing a settled stream returns the settled output again.
func (r *Reconciler) Complete(ctx context.Context) (types.RenderedOutput, error) {
	switch r.state {
	case StateSettled:
		return r.last.Clone(), nil
	case StateAborted:
		return r.last.Clone(), ErrTerminated
	}
	if err := ctx.Err(); err != nil {
		return r.last.Clone(), err
	}

	segments := r.render(r.raw, ReasonSettle)
	if err := ctx.Err(); err != nil {
		return r.last.Clone(), err
	}

	out := types.RenderedOutput{RawText: r.raw, Segments: segments}
	r.reparses++
	r.lastParsed, r.parsedLen = out, len(r.raw)
	r.pending = 0
	r.last = out
	r.state = StateSettled
	return out.Clone(), nil
}

// Settle renders text in one step and settles. It is the non-streaming path: the
// whole response arrives as one unit and produces exactly one output.
func (r *Reconciler) Settle(ctx context.Context, text string) (types.RenderedOutput, error) {
	if r.state != StateEmpty {
		return r.last.Clone(), ErrTerminated
	}
	if err := ctx.Err(); err != nil {
		return r.last.Clone(), err
	}
	r.raw = text
	return r.Complete(ctx)
}

// Abort stops the stream and keeps the last published output. Aborting a terminated
// stream has no effect.
func (r *Reconciler) Abort(reason string) types.RenderedOutput {
	if !r.state.Terminal() {
		r.state = StateAborted
		r.reason = reason
	}
	return r.last.Clone()
}

// State returns the current state.
func (r *Reconciler) State() State { return r.state }

// Last returns a copy of the last published output.
func (r *Reconciler) Last() types.RenderedOutput { return r.last.Clone() }

// Raw returns the accumulated text.
func (r *Reconciler) Raw() string { return r.raw }

// Reparses returns the number of full renders performed.
func (r *Reconciler) Reparses() int { return r.reparses }

// Pending returns the runes received since the last full render.
func (r *Reconciler) Pending() int { return r.pending }

// Reason returns the abort reason, if any.
func (r *Reconciler) Reason() string { return r.reason }

func (r *Reconciler) render(text, reason string) []types.Segment {
	start := time.Now()
	segments := r.renderer.Render(text)
	r.logger.Debug("full reparse",
		zap.String("reason", reason),
		zap.Int("bytes", len(text)),
		zap.Int("segments", len(segments)),
		zap.Duration("took", time.Since(start)),
	)
	return segments
}

// completesFence reports whether a fence marker ends inside chunk. The search window
// reaches back into the buffered text so a marker split across chunks is found. A
// marker made of one repeated character only counts where its run starts, so a
// fence that keeps growing ("```" then "`") triggers once.
func (r *Reconciler) completesFence(chunk string) bool {
	if chunk == "" {
		return false
	}
	for _, marker := range r.markers {
		back := len(marker) - 1
		if back > len(r.raw) {
			back = len(r.raw)
		}
		window := r.raw[len(r.raw)-back:] + chunk
		run, repeated := runChar(marker)
		for i := 0; i+len(marker) <= len(window); {
			j := strings.Index(window[i:], marker)
			if j < 0 {
				break
			}
			at := i + j
			if !repeated || r.before(window, back, at) != run {
				return true
			}
			i = at + 1
		}
	}
	return false
}

// before returns the byte preceding window[at] in the full text, or 0.
func (r *Reconciler) before(window string, back, at int) byte {
	if at > 0 {
		return window[at-1]
	}
	if n := len(r.raw) - back; n > 0 {
		return r.raw[n-1]
	}
	return 0
}

// runChar reports whether marker repeats a single ASCII byte, and which.
func runChar(marker string) (byte, bool) {
	c := marker[0]
	if c >= utf8.RuneSelf || strings.Trim(marker, marker[:1]) != "" {
		return 0, false
	}
	return c, true
}

// stitch extends the last full render with the unparsed tail. parsed is not modified.
func stitch(parsed types.RenderedOutput, raw, tail string) types.RenderedOutput {
	if len(parsed.Segments) == 0 {
		// 首次完整渲染之前：整个缓冲作为一段无样式正文
		out := types.RenderedOutput{RawText: raw}
		if raw != "" {
			out.Segments = []types.Segment{{
				Kind:  types.SegmentProse,
				Spans: []types.Span{{Text: raw}},
			}}
		}
		return out
	}

	segments := make([]types.Segment, len(parsed.Segments))
	copy(segments, parsed.Segments)
	if tail == "" {
		return types.RenderedOutput{RawText: raw, Segments: segments}
	}

	last := segments[len(segments)-1].Clone()
	switch last.Kind {
	case types.SegmentCodeBlock:
		last.Code += tail
		if last.Spans != nil {
			last.Spans = append(last.Spans, types.Span{
				Text:  tail,
				Style: types.StyleDirective{Monospace: true, Foreground: types.HintCode},
			})
		}
	default:
		last.Spans = append(last.Spans, types.Span{Text: tail})
	}
	segments[len(segments)-1] = last
	return types.RenderedOutput{RawText: raw, Segments: segments}
}
