package reconciler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/riverfjs/chatmd-go/internal/converter"
	"github.com/riverfjs/chatmd-go/internal/highlight"
	"github.com/riverfjs/chatmd-go/internal/parser"
	"github.com/riverfjs/chatmd-go/internal/types"
)

// countingRenderer 统计完整渲染次数
type countingRenderer struct {
	calls  int
	inputs []string
	hook   func(text string)
}

func (c *countingRenderer) Render(text string) []types.Segment {
	c.calls++
	c.inputs = append(c.inputs, text)
	if c.hook != nil {
		c.hook(text)
	}
	return converter.Build(parser.Parse(text), nil)
}

func push(t *testing.T, r *Reconciler, chunks ...string) []types.RenderedOutput {
	t.Helper()
	outs := make([]types.RenderedOutput, 0, len(chunks))
	for _, c := range chunks {
		out, err := r.Push(context.Background(), c)
		if err != nil {
			t.Fatalf("Push(%q) error = %v", c, err)
		}
		outs = append(outs, out)
	}
	return outs
}

func prose(text string) types.Segment {
	return types.Segment{Kind: types.SegmentProse, Spans: []types.Span{{Text: text}}}
}

func TestReconciler_PlainTextScenario(t *testing.T) {
	rr := &countingRenderer{}
	r := New(rr)
	if r.State() != StateEmpty {
		t.Fatalf("State() = %v, want empty", r.State())
	}

	outs := push(t, r, "Hel", "lo wor", "ld")
	for i, want := range []string{"Hel", "Hello wor", "Hello world"} {
		if len(outs[i].Segments) != 1 || outs[i].Segments[0].Kind != types.SegmentProse {
			t.Fatalf("output %d = %+v, want a single prose segment", i, outs[i])
		}
		if got := outs[i].PlainText(); got != want {
			t.Errorf("output %d text = %q, want %q", i, got, want)
		}
		if outs[i].RawText != want {
			t.Errorf("output %d RawText = %q, want %q", i, outs[i].RawText, want)
		}
	}
	if rr.calls != 0 {
		t.Errorf("renders before completion = %d, want 0", rr.calls)
	}

	final, err := r.Complete(context.Background())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	want := types.RenderedOutput{RawText: "Hello world", Segments: []types.Segment{prose("Hello world")}}
	if diff := cmp.Diff(want, final); diff != "" {
		t.Errorf("settled output mismatch (-want +got):\n%s", diff)
	}
	if r.State() != StateSettled || rr.calls != 1 {
		t.Errorf("State() = %v, renders = %d", r.State(), rr.calls)
	}
}

func TestReconciler_FenceSplitAcrossChunks(t *testing.T) {
	rr := &countingRenderer{}
	r := New(rr)

	outs := push(t, r, "Here:\n```py", "thon\nprint(1)\n```")
	if rr.calls != 2 {
		t.Fatalf("renders = %d, want 2 (one per fence chunk)", rr.calls)
	}
	if rr.inputs[1] != "Here:\n```python\nprint(1)\n```" {
		t.Errorf("second render input = %q", rr.inputs[1])
	}

	want := []types.Segment{
		prose("Here:"),
		{Kind: types.SegmentCodeBlock, Code: "print(1)\n", Language: "python"},
	}
	if diff := cmp.Diff(want, outs[1].Segments); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestReconciler_ThresholdCounter(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   int
	}{
		{"under threshold", []string{strings.Repeat("a", 30), strings.Repeat("b", 33)}, 0},
		{"exactly threshold", []string{strings.Repeat("a", 30), strings.Repeat("b", 34)}, 1},
		{"counter resets", repeatChunks("0123456789", 10), 1},
		{"two ticks", repeatChunks("0123456789", 14), 2},
		{"counts runes not bytes", []string{strings.Repeat("é", 63)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := &countingRenderer{}
			r := New(rr)
			push(t, r, tt.chunks...)
			if rr.calls != tt.want {
				t.Errorf("renders = %d, want %d", rr.calls, tt.want)
			}
			if r.Reparses() != tt.want {
				t.Errorf("Reparses() = %d, want %d", r.Reparses(), tt.want)
			}
		})
	}
}

func repeatChunks(chunk string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = chunk
	}
	return out
}

func TestReconciler_CustomThreshold(t *testing.T) {
	rr := &countingRenderer{}
	r := New(rr, WithThreshold(5))
	push(t, r, "abc", "de")
	if rr.calls != 1 {
		t.Errorf("renders = %d, want 1", rr.calls)
	}
	if r.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 after render", r.Pending())
	}
}

func TestReconciler_FenceTriggers(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []int // 每个 chunk 之后累计渲染次数
	}{
		{"whole marker", []string{"text ", "```go\n"}, []int{0, 1}},
		{"marker split over chunks", []string{"a ``", "`go\n"}, []int{0, 1}},
		{"marker split three ways", []string{"`", "`", "`"}, []int{0, 0, 1}},
		{"tilde fence", []string{"~~~\n"}, []int{1}},
		{"earlier marker does not retrigger", []string{"```\n", "code"}, []int{1, 1}},
		{"inline code is not a fence", []string{"use `x` and ``y``"}, []int{0}},
		{"longer fence run triggers once", []string{"```", "`", "`go\n"}, []int{1, 1, 1}},
		{"closing fence after code", []string{"```\n", "x\n", "```"}, []int{1, 1, 2}},
		{"four backticks in one chunk", []string{"a\n", "````\n"}, []int{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := &countingRenderer{}
			r := New(rr)
			for i, c := range tt.chunks {
				push(t, r, c)
				if rr.calls != tt.want[i] {
					t.Errorf("after chunk %d renders = %d, want %d", i, rr.calls, tt.want[i])
				}
			}
		})
	}
}

func TestReconciler_CustomFenceMarkers(t *testing.T) {
	rr := &countingRenderer{}
	r := New(rr, WithFenceMarkers("```"))
	push(t, r, "~~~\n")
	if rr.calls != 0 {
		t.Errorf("tilde fence should not trigger when not configured, renders = %d", rr.calls)
	}
}

func TestReconciler_ProseTailStitching(t *testing.T) {
	rr := &countingRenderer{}
	r := New(rr, WithThreshold(9))

	outs := push(t, r, "**bold** ", "tail", " mo")
	if rr.calls != 1 {
		t.Fatalf("renders = %d, want 1", rr.calls)
	}
	// 第一个 chunk 触发完整渲染，之后的全部文本作为一个无样式尾部拼接
	last := outs[2].Segments[len(outs[2].Segments)-1]
	if got := last.Spans[len(last.Spans)-1]; got != (types.Span{Text: "tail mo"}) {
		t.Errorf("tail span = %+v", got)
	}
	if !last.Spans[0].Style.Bold {
		t.Errorf("parsed span lost its style: %+v", last.Spans[0])
	}
	if got := outs[2].PlainText(); got != "boldtail mo" {
		t.Errorf("PlainText = %q", got)
	}
}

func TestReconciler_CodeTailStitching(t *testing.T) {
	rr := &countingRenderer{}
	r := New(rr)

	outs := push(t, r, "```go\nx := 1\n", "y := 2\n")
	seg := outs[1].Segments[len(outs[1].Segments)-1]
	if seg.Kind != types.SegmentCodeBlock {
		t.Fatalf("last segment kind = %v", seg.Kind)
	}
	if seg.Code != "x := 1\ny := 2\n" || seg.Language != "go" {
		t.Errorf("code block = %+v", seg)
	}
	if seg.Spans != nil {
		t.Errorf("unhighlighted block must stay unhighlighted: %+v", seg.Spans)
	}
}

func TestReconciler_HighlightedCodeTail(t *testing.T) {
	h := highlight.New("monokai")
	r := New(RenderFunc(func(text string) []types.Segment {
		segs := converter.Build(parser.Parse(text), nil)
		for i := range segs {
			if segs[i].Kind == types.SegmentCodeBlock {
				segs[i].Spans = h.Highlight(segs[i].Code, segs[i].Language)
			}
		}
		return segs
	}))

	outs := push(t, r, "```go\nx := 1\n", "y")
	seg := outs[1].Segments[0]
	tail := seg.Spans[len(seg.Spans)-1]
	want := types.Span{Text: "y", Style: types.StyleDirective{Monospace: true, Foreground: types.HintCode}}
	if tail != want {
		t.Errorf("tail span = %+v, want %+v", tail, want)
	}
	if types.JoinSpans(seg.Spans) != seg.Code {
		t.Errorf("spans %q do not cover code %q", types.JoinSpans(seg.Spans), seg.Code)
	}
	if seg.Language != "go" {
		t.Errorf("language changed to %q", seg.Language)
	}
}

func TestReconciler_LastParsedNotMutated(t *testing.T) {
	rr := &countingRenderer{}
	r := New(rr)

	push(t, r, "```\n")
	snapshot := r.lastParsed.Clone()
	outs := push(t, r, "a", "b", "c")

	if diff := cmp.Diff(snapshot, r.lastParsed); diff != "" {
		t.Errorf("lastParsed mutated by stitching (-before +after):\n%s", diff)
	}
	if got := outs[2].Segments[0].Code; got != "abc" {
		t.Errorf("code = %q, want %q (tail applied once)", got, "abc")
	}
}

func TestReconciler_OutputsAreSnapshots(t *testing.T) {
	r := New(&countingRenderer{})
	outs := push(t, r, "hello")
	outs[0].Segments[0].Spans[0].Text = "mutated"

	if got := r.Last().PlainText(); got != "hello" {
		t.Errorf("Last() = %q, published output must be a copy", got)
	}
}

func TestReconciler_MonotonicGrowth(t *testing.T) {
	chunks := []string{"# Ti", "tle\n\nSome ", "**bold** text ", "and a list:\n\n- one\n- two\n", "```py\n", "print(1)\n", "```\n", "done"}
	r := New(&countingRenderer{}, WithThreshold(16))

	prev := -1
	total := 0
	for _, c := range chunks {
		out, err := r.Push(context.Background(), c)
		if err != nil {
			t.Fatal(err)
		}
		total += len(c)
		if len(out.RawText) < prev {
			t.Errorf("RawText shrank from %d to %d", prev, len(out.RawText))
		}
		prev = len(out.RawText)
	}
	final, err := r.Complete(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(final.RawText) != total || final.RawText != strings.Join(chunks, "") {
		t.Errorf("final RawText = %q", final.RawText)
	}
}

func TestReconciler_TerminalSettleIsFullRender(t *testing.T) {
	rr := &countingRenderer{}
	r := New(rr)

	text := "Intro *styled*\n\n```go\nfmt.Println()\n```\n\nend"
	push(t, r, text[:20], text[20:len(text)-1], text[len(text)-1:])
	final, err := r.Complete(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	want := converter.Build(parser.Parse(text), nil)
	if diff := cmp.Diff(want, final.Segments); diff != "" {
		t.Errorf("settled output is not a full render (-want +got):\n%s", diff)
	}
	if rr.inputs[len(rr.inputs)-1] != text {
		t.Errorf("last render input = %q", rr.inputs[len(rr.inputs)-1])
	}

	calls := rr.calls
	again, err := r.Complete(context.Background())
	if err != nil || rr.calls != calls {
		t.Errorf("second Complete() err = %v, renders %d -> %d", err, calls, rr.calls)
	}
	if diff := cmp.Diff(final, again); diff != "" {
		t.Errorf("second Complete() changed output:\n%s", diff)
	}
}

func TestReconciler_CancelledContextLeavesStateUntouched(t *testing.T) {
	rr := &countingRenderer{}
	r := New(rr)
	push(t, r, "first ")
	before := r.Last()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := r.Push(ctx, "```go\n")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Push() error = %v, want context.Canceled", err)
	}
	if diff := cmp.Diff(before, out); diff != "" {
		t.Errorf("Push() should return the previous output:\n%s", diff)
	}
	if r.Raw() != "first " || rr.calls != 0 {
		t.Errorf("Raw() = %q, renders = %d", r.Raw(), rr.calls)
	}
}

func TestReconciler_CancelDuringReparseIsAtomic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rr := &countingRenderer{}
	r := New(rr)
	push(t, r, "kept ")

	rr.hook = func(string) { cancel() }
	_, err := r.Push(ctx, "```dropped\n")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Push() error = %v, want context.Canceled", err)
	}
	if r.Raw() != "kept " || r.Reparses() != 0 || r.Pending() != len("kept ") {
		t.Errorf("state changed: raw=%q reparses=%d pending=%d", r.Raw(), r.Reparses(), r.Pending())
	}
	if got := r.Last().PlainText(); got != "kept " {
		t.Errorf("Last() = %q", got)
	}

	// 后续 chunk 在未取消的 context 下正常处理
	rr.hook = nil
	out, err := r.Push(context.Background(), "more")
	if err != nil {
		t.Fatal(err)
	}
	if out.RawText != "kept more" {
		t.Errorf("RawText = %q", out.RawText)
	}
}

func TestReconciler_AbortKeepsLastOutput(t *testing.T) {
	r := New(&countingRenderer{})
	outs := push(t, r, "one ", "two")

	got := r.Abort("cancelled")
	if diff := cmp.Diff(outs[1], got); diff != "" {
		t.Errorf("Abort() changed output:\n%s", diff)
	}
	if r.State() != StateAborted || r.Reason() != "cancelled" {
		t.Errorf("State() = %v, Reason() = %q", r.State(), r.Reason())
	}

	if _, err := r.Push(context.Background(), "three"); !errors.Is(err, ErrTerminated) {
		t.Errorf("Push() after abort error = %v", err)
	}
	if _, err := r.Complete(context.Background()); !errors.Is(err, ErrTerminated) {
		t.Errorf("Complete() after abort error = %v", err)
	}

	r.Abort("second")
	if r.Reason() != "cancelled" {
		t.Errorf("Reason() = %q, first abort wins", r.Reason())
	}
}

func TestReconciler_SettleNonStreaming(t *testing.T) {
	rr := &countingRenderer{}
	r := New(rr)

	out, err := r.Settle(context.Background(), "# Done\n\nbody")
	if err != nil {
		t.Fatal(err)
	}
	if rr.calls != 1 || r.State() != StateSettled {
		t.Errorf("renders = %d, State() = %v", rr.calls, r.State())
	}
	if got := out.PlainText(); got != "Done\n\nbody" {
		t.Errorf("PlainText = %q", got)
	}
	if _, err := r.Settle(context.Background(), "again"); !errors.Is(err, ErrTerminated) {
		t.Errorf("second Settle() error = %v", err)
	}
}

func TestReconciler_ColdStartBeforeFirstRender(t *testing.T) {
	r := New(&countingRenderer{})
	outs := push(t, r, "*not yet", " styled*")
	want := types.RenderedOutput{RawText: "*not yet styled*", Segments: []types.Segment{prose("*not yet styled*")}}
	if diff := cmp.Diff(want, outs[1]); diff != "" {
		t.Errorf("cold start output mismatch (-want +got):\n%s", diff)
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		StateEmpty: "empty", StateAccumulating: "accumulating",
		StateSettled: "settled", StateAborted: "aborted",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
