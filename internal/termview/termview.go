// Package termview presents rendered output on a terminal.
//
// Style directives are mapped to lipgloss styles, prose is wrapped with reflow and
// code blocks are drawn in a rounded box under their language label.
package termview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"github.com/riverfjs/chatmd-go/internal/types"
)

// Theme maps foreground hints to terminal colours.
type Theme struct {
	Link       lipgloss.Color
	Muted      lipgloss.Color
	CodeInline lipgloss.Color
	Code       lipgloss.Color
	Border     lipgloss.Color
	Error      lipgloss.Color
	OK         lipgloss.Color
}

// DefaultTheme returns the built-in dark theme.
func DefaultTheme() Theme {
	return Theme{
		Link:       lipgloss.Color("#61AFEF"),
		Muted:      lipgloss.Color("#7F848E"),
		CodeInline: lipgloss.Color("#E5C07B"),
		Code:       lipgloss.Color("#ABB2BF"),
		Border:     lipgloss.Color("#5C6370"),
		Error:      lipgloss.Color("#E06C75"),
		OK:         lipgloss.Color("#98C379"),
	}
}

func (t Theme) hint(h types.ForegroundHint) lipgloss.Color {
	switch h {
	case types.HintAccentLink:
		return t.Link
	case types.HintMuted:
		return t.Muted
	case types.HintCodeInline:
		return t.CodeInline
	case types.HintCode:
		return t.Code
	default:
		return ""
	}
}

// Options 终端展示参数
type Options struct {
	Width      int  // 0 表示不折行
	Plain      bool // 不输出样式，仅布局
	ListIndent int  // 每层列表缩进的列数
	Theme      Theme
}

// DefaultOptions returns styled options for the given width.
func DefaultOptions(width int) Options {
	return Options{Width: width, ListIndent: 2, Theme: DefaultTheme()}
}

func (o Options) normalized() Options {
	if o.ListIndent <= 0 {
		o.ListIndent = 2
	}
	if o.Width < 0 {
		o.Width = 0
	}
	return o
}

// Render formats all segments. Segments are separated by one blank line.
func Render(out types.RenderedOutput, opts Options) string {
	opts = opts.normalized()
	blocks := make([]string, 0, len(out.Segments))
	for _, seg := range out.Segments {
		var s string
		if seg.Kind == types.SegmentCodeBlock {
			s = renderCode(seg, opts)
		} else {
			s = renderProse(seg.Spans, opts)
		}
		if s != "" {
			blocks = append(blocks, s)
		}
	}
	return strings.Join(blocks, "\n\n")
}

type line struct {
	indent types.Indent
	set    bool
	b      strings.Builder
}

func renderProse(spans []types.Span, opts Options) string {
	spans = trimSpacing(spans)
	if len(spans) == 0 {
		return ""
	}

	lines := []*line{{}}
	var link, linkText string
	closeLink := func() {
		if link != "" && strings.TrimSpace(linkText) != link {
			lines[len(lines)-1].b.WriteString(styleText(" ("+link+")", types.StyleDirective{Foreground: types.HintMuted}, opts))
		}
		link, linkText = "", ""
	}

	for _, sp := range spans {
		if sp.Style.Link != link {
			closeLink()
			link = sp.Style.Link
		}
		for i, part := range strings.Split(sp.Text, "\n") {
			if i > 0 {
				lines = append(lines, &line{})
			}
			if part == "" {
				continue
			}
			cur := lines[len(lines)-1]
			if !cur.set && sp.Role != types.RoleSpacing {
				cur.indent, cur.set = sp.Style.Indent, true
			}
			cur.b.WriteString(styleText(part, sp.Style, opts))
			if link != "" {
				linkText += part
			}
		}
	}
	closeLink()

	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = layout(l, opts)
	}
	return strings.Join(out, "\n")
}

// layout wraps one logical line and shifts it to its list column.
func layout(l *line, opts Options) string {
	text := l.b.String()
	pad := 0
	switch l.indent.Kind {
	case types.IndentBullet, types.IndentNumbered:
		pad = l.indent.Level * opts.ListIndent
	}
	if opts.Width > 0 && opts.Width-pad > 0 {
		text = wordwrap.String(text, opts.Width-pad)
	}
	if pad > 0 {
		text = indent.String(text, uint(pad))
	}
	return text
}

func renderCode(seg types.Segment, opts Options) string {
	spans := seg.Spans
	if spans == nil {
		spans = []types.Span{{Text: seg.Code, Style: types.StyleDirective{Monospace: true, Foreground: types.HintCode}}}
	}
	spans = trimTrailingNewlines(spans)

	var b strings.Builder
	for _, sp := range spans {
		b.WriteString(styleText(sp.Text, sp.Style, opts))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		TabWidth(lipgloss.NoTabConversion)
	if !opts.Plain {
		box = box.BorderForeground(opts.Theme.Border)
	}
	body := box.Render(b.String())

	if seg.Language == "" {
		return body
	}
	label := styleText(seg.Language, types.StyleDirective{Italic: true, Foreground: types.HintMuted}, opts)
	return label + "\n" + body
}

func styleText(text string, d types.StyleDirective, opts Options) string {
	if opts.Plain || d.IsPlain() {
		return text
	}
	st := lipgloss.NewStyle().
		Bold(d.Bold).
		Italic(d.Italic).
		Strikethrough(d.Strikethrough).
		TabWidth(lipgloss.NoTabConversion)
	if d.Link != "" {
		st = st.Underline(true)
	}
	if c := opts.Theme.hint(d.Foreground); c != "" {
		st = st.Foreground(c)
	}
	if d.Color != "" {
		st = st.Foreground(lipgloss.Color(d.Color))
	}
	return st.Render(text)
}

func trimSpacing(spans []types.Span) []types.Span {
	for len(spans) > 0 && spans[0].Role == types.RoleSpacing {
		spans = spans[1:]
	}
	for len(spans) > 0 && spans[len(spans)-1].Role == types.RoleSpacing {
		spans = spans[:len(spans)-1]
	}
	return spans
}

// trimTrailingNewlines drops the code block's final line breaks without touching spans.
func trimTrailingNewlines(spans []types.Span) []types.Span {
	out := append([]types.Span(nil), spans...)
	for len(out) > 0 {
		last := &out[len(out)-1]
		last.Text = strings.TrimRight(last.Text, "\n")
		if last.Text != "" {
			break
		}
		out = out[:len(out)-1]
	}
	return out
}

// StatusInfo describes a stream for the status line.
type StatusInfo struct {
	State    string // streaming, settled, aborted
	Reason   string
	Frames   int
	Reparses int
	Elapsed  time.Duration
}

// Status formats a one-line stream summary.
func Status(info StatusInfo, opts Options) string {
	opts = opts.normalized()
	icon, color := "●", opts.Theme.Link
	switch info.State {
	case "settled":
		icon, color = "✓", opts.Theme.OK
	case "aborted":
		icon, color = "✕", opts.Theme.Error
	}

	head := icon + " " + info.State
	if info.Reason != "" {
		head += " (" + info.Reason + ")"
	}
	parts := []string{head,
		fmt.Sprintf("%d frames", info.Frames),
		fmt.Sprintf("%d reparses", info.Reparses),
	}
	if info.Elapsed > 0 {
		parts = append(parts, info.Elapsed.Round(time.Millisecond).String())
	}
	text := strings.Join(parts, " · ")
	if opts.Plain {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
