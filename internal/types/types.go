package types

import "github.com/riverfjs/chatmd-go/internal/util"

// ForegroundHint 语义化的前景色标签，由展示层映射为具体颜色
type ForegroundHint string

const (
	HintNone       ForegroundHint = ""
	HintAccentLink ForegroundHint = "accent-link"
	HintMuted      ForegroundHint = "muted"
	HintCodeInline ForegroundHint = "code-inline"
	HintCode       ForegroundHint = "code"
)

// IndentKind 缩进类型
type IndentKind uint8

const (
	IndentNone IndentKind = iota
	IndentBullet
	IndentNumbered
	IndentQuote
)

// String returns the string representation of IndentKind.
func (k IndentKind) String() string {
	switch k {
	case IndentBullet:
		return "bullet"
	case IndentNumbered:
		return "numbered"
	case IndentQuote:
		return "quote"
	default:
		return "none"
	}
}

// Indent 描述列表项 / 引用块的缩进
type Indent struct {
	Kind    IndentKind
	Level   int // 0-based 嵌套深度
	Ordinal int // 有序列表中的 1-based 序号，其余为 0
}

// IsZero reports whether no indentation applies.
func (i Indent) IsZero() bool {
	return i.Kind == IndentNone
}

// Column returns the left column of this indent for a given per-level step.
func (i Indent) Column(step int) int {
	if i.Kind == IndentNone {
		return 0
	}
	return (i.Level + 1) * step
}

// StyleDirective 一段文本的展示意图（值类型，嵌套时通过 Compose 合成）
type StyleDirective struct {
	Bold          bool
	Italic        bool
	Strikethrough bool
	Monospace     bool
	Link          string         // 可点击目标；空表示无链接
	FontScale     float64        // 相对正文字号的比例；0 表示正文字号
	Foreground    ForegroundHint // 语义色
	Color         string         // 具体颜色 (#rrggbb)，仅由高亮器设置
	Indent        Indent
}

// Compose 将 inner 合成到 d（外层）之上。
//
// 布尔属性取并集；链接、语义色、字号、颜色由外层优先（外层属性覆盖整段）；
// 缩进取最内层容器。
func (d StyleDirective) Compose(inner StyleDirective) StyleDirective {
	out := inner
	out.Bold = d.Bold || inner.Bold
	out.Italic = d.Italic || inner.Italic
	out.Strikethrough = d.Strikethrough || inner.Strikethrough
	out.Monospace = d.Monospace || inner.Monospace
	if d.Link != "" {
		out.Link = d.Link
	}
	if d.FontScale != 0 {
		out.FontScale = d.FontScale
	}
	if d.Foreground != HintNone {
		out.Foreground = d.Foreground
	}
	if d.Color != "" {
		out.Color = d.Color
	}
	if inner.Indent.IsZero() {
		out.Indent = d.Indent
	}
	return out
}

// IsPlain reports whether the directive carries no styling at all.
func (d StyleDirective) IsPlain() bool {
	return d == StyleDirective{}
}

// SpanRole 区分正文、标记符号与间距
type SpanRole uint8

const (
	RoleText    SpanRole = iota
	RoleMarker           // 列表符号、引用条等装饰
	RoleSpacing          // 块间换行
)

// Span 一段带样式的文本
type Span struct {
	Text  string
	Style StyleDirective
	Role  SpanRole
}

// SegmentKind represents the type of an output segment.
type SegmentKind uint8

const (
	// SegmentProse is a run of styled prose spans.
	SegmentProse SegmentKind = iota
	// SegmentCodeBlock is an isolated fenced or indented code block.
	SegmentCodeBlock
)

// String returns the string representation of SegmentKind.
func (k SegmentKind) String() string {
	switch k {
	case SegmentProse:
		return "prose"
	case SegmentCodeBlock:
		return "code_block"
	default:
		return "unknown"
	}
}

// Segment 输出的原子单元：正文段或代码块
type Segment struct {
	Kind     SegmentKind
	Spans    []Span // Prose: 样式片段；CodeBlock: 高亮后的片段（未高亮时为 nil）
	Code     string // CodeBlock: 原始代码
	Language string // CodeBlock: 语言标签，可为空
}

// PlainText returns the visible text of the segment.
func (s Segment) PlainText() string {
	if s.Kind == SegmentCodeBlock {
		return s.Code
	}
	return JoinSpans(s.Spans)
}

// Highlighted reports whether a code block carries highlighter spans.
func (s Segment) Highlighted() bool {
	return s.Kind == SegmentCodeBlock && s.Spans != nil
}

// Filename suggests a file name for saving a code block. Empty for prose.
func (s Segment) Filename() string {
	if s.Kind != SegmentCodeBlock {
		return ""
	}
	return util.Filename(s.Code, s.Language)
}

// Clone 深拷贝，返回的 Segment 与原值不共享 Spans
func (s Segment) Clone() Segment {
	out := s
	if s.Spans != nil {
		out.Spans = make([]Span, len(s.Spans))
		copy(out.Spans, s.Spans)
	}
	return out
}

// RenderedOutput 一次渲染的结果：原始文本 + 有序片段
type RenderedOutput struct {
	RawText  string
	Segments []Segment
}

// PlainText concatenates the plain text of all segments in order.
func (o RenderedOutput) PlainText() string {
	total := 0
	parts := make([]string, 0, len(o.Segments))
	for _, seg := range o.Segments {
		p := seg.PlainText()
		total += len(p)
		parts = append(parts, p)
	}
	buf := make([]byte, 0, total)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return string(buf)
}

// Clone 深拷贝所有片段
func (o RenderedOutput) Clone() RenderedOutput {
	out := RenderedOutput{RawText: o.RawText}
	if o.Segments != nil {
		out.Segments = make([]Segment, len(o.Segments))
		for i, seg := range o.Segments {
			out.Segments[i] = seg.Clone()
		}
	}
	return out
}

// IsEmpty reports whether nothing has been rendered.
func (o RenderedOutput) IsEmpty() bool {
	return o.RawText == "" && len(o.Segments) == 0
}

// JoinSpans concatenates span text.
func JoinSpans(spans []Span) string {
	if len(spans) == 0 {
		return ""
	}
	total := 0
	for _, sp := range spans {
		total += len(sp.Text)
	}
	buf := make([]byte, 0, total)
	for _, sp := range spans {
		buf = append(buf, sp.Text...)
	}
	return string(buf)
}
