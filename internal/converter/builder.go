package converter

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/riverfjs/chatmd-go/internal/buffer"
	"github.com/riverfjs/chatmd-go/internal/style"
	"github.com/riverfjs/chatmd-go/internal/tree"
	"github.com/riverfjs/chatmd-go/internal/types"
)

// Builder 遍历节点树并生成有序的 Segment 序列
type Builder struct {
	tree     *tree.Tree
	config   *types.RenderConfig
	buf      *buffer.SpanBuffer
	segments []types.Segment
}

// NewBuilder 创建新的 Builder
func NewBuilder(t *tree.Tree, config *types.RenderConfig) *Builder {
	return &Builder{
		tree:   t,
		config: config.Normalized(),
		buf:    buffer.New(),
	}
}

// Build 将文档树转换为 Segment 序列。
//
// 顶层代码块独立成 CodeBlock 段，其余块级节点按顺序合并为 Prose 段。
// 同一棵树总是得到相同的结果。
func Build(t *tree.Tree, config *types.RenderConfig) []types.Segment {
	return NewBuilder(t, config).Build()
}

// Build walks the document's direct children. It may be called once per Builder.
func (b *Builder) Build() []types.Segment {
	root := b.tree.Root()
	for _, child := range b.tree.Children(root) {
		if b.tree.Kind(child) == tree.KindCodeBlock {
			b.onCodeBlock(child)
			continue
		}
		b.render(child, types.StyleDirective{})
		b.buf.EnsureSpacing(style.BlockSpacing(b.tree, child))
	}
	b.flush()
	return b.segments
}

// --- Segments ---

func (b *Builder) onCodeBlock(idx int) {
	b.flush()

	n := b.tree.Node(idx)
	b.segments = append(b.segments, types.Segment{
		Kind:     types.SegmentCodeBlock,
		Code:     n.Text,
		Language: n.Language,
	})

	// 下一段以单个换行开头
	if b.tree.HasSuccessor(idx) {
		b.buf.EnsureSpacing("\n")
	}
}

// flush 把累积的片段输出为一个 Prose 段。段尾的间距由段边界代替
func (b *Builder) flush() {
	b.buf.TrimTrailingSpacing()
	if b.buf.Len() == 0 {
		return
	}
	b.segments = append(b.segments, types.Segment{
		Kind:  types.SegmentProse,
		Spans: b.buf.Spans(),
	})
	b.buf.Reset()
}

// --- Recursive rendering ---

func (b *Builder) render(idx int, inherited types.StyleDirective) {
	t := b.tree
	n := t.Node(idx)
	st := inherited.Compose(style.For(t, idx, b.config))

	switch n.Kind {
	case tree.KindText, tree.KindInlineCode, tree.KindCodeBlock:
		b.buf.WriteText(n.Text, st)
		return

	case tree.KindThematicBreak:
		b.buf.WriteMarker(style.Rule(b.config), st)
		return

	case tree.KindTable:
		b.buf.WriteText(formatTable(b.tableRows(idx)), st)
		return

	case tree.KindBlockQuote:
		// 引用的每个直接子块各自带引用标记
		for _, child := range t.Children(idx) {
			b.buf.WriteMarker(style.QuoteMarker(b.config), st)
			b.render(child, st)
			b.buf.EnsureSpacing(style.BlockSpacing(t, child))
		}
		return

	case tree.KindListItem:
		b.buf.WriteMarker(style.Marker(t, idx, b.config), st)

	case tree.KindImage:
		b.buf.WriteMarker(style.ImageMarker(b.config), st)
	}

	for _, child := range t.Children(idx) {
		b.render(child, st)
		b.buf.EnsureSpacing(style.BlockSpacing(t, child))
	}
}

// --- Tables ---

func (b *Builder) tableRows(idx int) [][]string {
	t := b.tree
	rows := make([][]string, 0, len(t.Children(idx)))
	for _, row := range t.Children(idx) {
		cells := make([]string, 0, len(t.Children(row)))
		for _, cell := range t.Children(row) {
			// 单元格内换行视为空格
			cells = append(cells, strings.ReplaceAll(t.PlainText(cell), "\n", " "))
		}
		rows = append(rows, cells)
	}
	return rows
}

// formatTable 按列显示宽度对齐单元格，表头后加分隔行
func formatTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	numCols := 0
	for _, row := range rows {
		if len(row) > numCols {
			numCols = len(row)
		}
	}

	colWidths := make([]int, numCols)
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > colWidths[i] {
				colWidths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	for rowIdx, row := range rows {
		cells := make([]string, numCols)
		for i := 0; i < numCols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = runewidth.FillRight(cell, colWidths[i])
		}
		lines = append(lines, strings.TrimRight(strings.Join(cells, " | "), " "))

		if rowIdx == 0 && len(rows) > 1 {
			sepCells := make([]string, numCols)
			for i := 0; i < numCols; i++ {
				sepCells[i] = strings.Repeat("-", colWidths[i])
			}
			lines = append(lines, strings.Join(sepCells, "-+-"))
		}
	}

	return strings.Join(lines, "\n")
}
