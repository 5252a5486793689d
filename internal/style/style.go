// Package style maps a node and its position in the tree to presentational intent.
//
// Every function here is pure: the result depends only on the tree and the render
// config. The segment builder composes the directive of each node onto the directive
// inherited from its ancestors.
package style

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/riverfjs/chatmd-go/internal/tree"
	"github.com/riverfjs/chatmd-go/internal/types"
)

// Heading sizes are defined against a 17pt body: level 1 is 26pt, level 6 is 16pt.
const (
	headingBase = 28.0
	headingStep = 2.0
)

func config(cfg *types.RenderConfig) *types.RenderConfig {
	if cfg == nil || cfg.MarkdownSymbol == nil || cfg.BaseFontSize <= 0 {
		return cfg.Normalized()
	}
	return cfg
}

// For returns the directive contributed by the node at idx on its own.
func For(t *tree.Tree, idx int, cfg *types.RenderConfig) types.StyleDirective {
	cfg = config(cfg)
	n := t.Node(idx)

	switch n.Kind {
	case tree.KindEmphasis:
		return types.StyleDirective{Italic: true}

	case tree.KindStrong:
		return types.StyleDirective{Bold: true}

	case tree.KindStrikethrough:
		return types.StyleDirective{Strikethrough: true}

	case tree.KindLink, tree.KindImage:
		return types.StyleDirective{
			Foreground: types.HintAccentLink,
			Link:       LinkTarget(n.Destination),
		}

	case tree.KindHeading:
		return types.StyleDirective{Bold: true, FontScale: HeadingScale(n.Level, cfg)}

	case tree.KindInlineCode:
		return types.StyleDirective{
			Monospace:  true,
			Foreground: types.HintCodeInline,
			FontScale:  InlineCodeScale(cfg),
		}

	case tree.KindCodeBlock:
		// 仅嵌套在列表/引用中的代码块会走到这里；顶层代码块独立成段
		return types.StyleDirective{Monospace: true, Foreground: types.HintCode}

	case tree.KindTable:
		return types.StyleDirective{Monospace: true}

	case tree.KindListItem:
		return types.StyleDirective{Indent: ItemIndent(t, idx)}

	case tree.KindBlockQuote:
		return types.StyleDirective{
			Foreground: types.HintMuted,
			Indent:     types.Indent{Kind: types.IndentQuote, Level: t.QuoteDepth(idx)},
		}

	case tree.KindThematicBreak:
		return types.StyleDirective{Foreground: types.HintMuted}
	}

	return types.StyleDirective{}
}

// ItemIndent returns the indentation of a list item. Level counts the list containers
// above the item's own list, so items of a top-level list sit at level 0.
func ItemIndent(t *tree.Tree, item int) types.Indent {
	list := t.Parent(item)
	if list == tree.NoParent {
		return types.Indent{}
	}
	level := t.ListDepth(list)
	if t.Kind(list) == tree.KindOrderedList {
		return types.Indent{
			Kind:    types.IndentNumbered,
			Level:   level,
			Ordinal: t.IndexInParent(item) + 1,
		}
	}
	return types.Indent{Kind: types.IndentBullet, Level: level}
}

// HeadingScale returns the heading font size relative to the body size.
func HeadingScale(level int, cfg *types.RenderConfig) float64 {
	cfg = config(cfg)
	if level < 1 {
		level = 1
	}
	points := headingBase - headingStep*float64(level) + (cfg.BaseFontSize - types.DefaultBaseFontSize)
	if floor := cfg.BaseFontSize - cfg.HeadingMinDelta; points < floor {
		points = floor
	}
	return points / cfg.BaseFontSize
}

// InlineCodeScale returns the inline code font size relative to the body size.
func InlineCodeScale(cfg *types.RenderConfig) float64 {
	cfg = config(cfg)
	return (cfg.BaseFontSize - cfg.InlineCodeDelta) / cfg.BaseFontSize
}

// LinkTarget returns dest when it is a usable URL, otherwise "".
func LinkTarget(dest string) string {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return ""
	}
	if _, err := url.Parse(dest); err != nil {
		return ""
	}
	return dest
}

// BlockSpacing returns the line breaks emitted after the block at idx.
//
// Inline nodes and blocks without a following sibling get nothing. A block inside a
// list is separated by a single line break, any other block by a blank line.
func BlockSpacing(t *tree.Tree, idx int) string {
	if !IsBlock(t.Kind(idx)) || !t.HasSuccessor(idx) {
		return ""
	}
	if t.IsContainedInList(idx) {
		return "\n"
	}
	return "\n\n"
}

// IsBlock reports whether nodes of kind k are separated by block spacing.
func IsBlock(k tree.Kind) bool {
	switch k {
	case tree.KindParagraph, tree.KindHeading, tree.KindUnorderedList, tree.KindOrderedList,
		tree.KindListItem, tree.KindBlockQuote, tree.KindCodeBlock, tree.KindThematicBreak,
		tree.KindTable:
		return true
	}
	return false
}

// Marker returns the text prepended to a list item: the task symbol, a bullet, or a
// numeral right-aligned to the widest numeral of the list.
func Marker(t *tree.Tree, item int, cfg *types.RenderConfig) string {
	cfg = config(cfg)
	sym := cfg.MarkdownSymbol
	n := t.Node(item)

	if n.Task {
		if n.Checked {
			return sym.TaskCompleted + " "
		}
		return sym.TaskUncompleted + " "
	}

	indent := ItemIndent(t, item)
	if indent.Kind == types.IndentNumbered {
		width := runewidth.StringWidth(strconv.Itoa(t.SiblingCount(item)))
		return runewidth.FillLeft(strconv.Itoa(indent.Ordinal), width) + ". "
	}
	return sym.Bullet + " "
}

// QuoteMarker returns the bar prepended to every direct child of a block quote.
func QuoteMarker(cfg *types.RenderConfig) string {
	return config(cfg).MarkdownSymbol.Quote + " "
}

// ImageMarker returns the symbol shown in front of an image's alt text.
func ImageMarker(cfg *types.RenderConfig) string {
	return config(cfg).MarkdownSymbol.Image
}

// Rule returns the text of a thematic break.
func Rule(cfg *types.RenderConfig) string {
	return config(cfg).MarkdownSymbol.Rule
}
