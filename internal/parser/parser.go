package parser

import (
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/riverfjs/chatmd-go/internal/tree"
)

// StandardOptions goldmark 扩展配置：GFM（表格、删除线、任务列表、自动链接）
var StandardOptions = []goldmark.Option{
	goldmark.WithExtensions(
		extension.GFM,
	),
}

var (
	md     goldmark.Markdown
	mdOnce sync.Once
)

func markdown() goldmark.Markdown {
	mdOnce.Do(func() {
		md = goldmark.New(StandardOptions...)
	})
	return md
}

// Parse 解析 Markdown 为节点 arena。
//
// 对任意输入都会返回一棵树：不完整或非法的标记退化为纯文本节点，不会失败。
func Parse(markdownText string) *tree.Tree {
	source := []byte(markdownText)
	root := ParseAST(source)

	c := &converter{source: source, tree: tree.New(), item: -1}
	c.children(root, c.tree.Root())
	return c.tree
}

// ParseAST 仅解析为 goldmark AST，不转换
func ParseAST(source []byte) ast.Node {
	reader := text.NewReader(source)
	return markdown().Parser().Parse(reader)
}

type converter struct {
	source []byte
	tree   *tree.Tree
	item   int // 当前所在 ListItem 的索引，用于记录任务复选框
}

func (c *converter) children(n ast.Node, parent int) {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		c.convert(child, parent)
	}
}

func (c *converter) add(parent int, n tree.Node) int {
	return c.tree.Add(parent, n)
}

func (c *converter) convert(n ast.Node, parent int) {
	switch node := n.(type) {
	// --- Block elements ---
	case *ast.Paragraph, *ast.TextBlock:
		c.children(n, c.add(parent, tree.Node{Kind: tree.KindParagraph}))

	case *ast.Heading:
		c.children(n, c.add(parent, tree.Node{Kind: tree.KindHeading, Level: node.Level}))

	case *ast.Blockquote:
		c.children(n, c.add(parent, tree.Node{Kind: tree.KindBlockQuote}))

	case *ast.List:
		kind := tree.KindUnorderedList
		if node.IsOrdered() {
			kind = tree.KindOrderedList
		}
		c.children(n, c.add(parent, tree.Node{Kind: kind}))

	case *ast.ListItem:
		idx := c.add(parent, tree.Node{Kind: tree.KindListItem})
		prev := c.item
		c.item = idx
		c.children(n, idx)
		c.item = prev

	case *ast.FencedCodeBlock:
		lang := ""
		if node.Info != nil {
			lang = string(node.Language(c.source))
		}
		c.add(parent, tree.Node{
			Kind:     tree.KindCodeBlock,
			Text:     c.lines(n),
			Language: normalizeLanguage(lang),
		})

	case *ast.CodeBlock:
		c.add(parent, tree.Node{Kind: tree.KindCodeBlock, Text: c.lines(n)})

	case *ast.ThematicBreak:
		c.add(parent, tree.Node{Kind: tree.KindThematicBreak})

	case *ast.HTMLBlock:
		// Block HTML ignored

	// --- Table ---
	case *east.Table:
		c.children(n, c.add(parent, tree.Node{Kind: tree.KindTable}))

	case *east.TableHeader:
		c.children(n, c.add(parent, tree.Node{Kind: tree.KindTableRow, Header: true}))

	case *east.TableRow:
		c.children(n, c.add(parent, tree.Node{Kind: tree.KindTableRow}))

	case *east.TableCell:
		c.children(n, c.add(parent, tree.Node{Kind: tree.KindTableCell}))

	// --- Inline elements ---
	case *ast.Text:
		value := string(resolve(node.Segment.Value(c.source)))
		if node.SoftLineBreak() || node.HardLineBreak() {
			value += "\n"
		}
		c.text(parent, value)

	case *ast.String:
		if node.IsCode() {
			c.text(parent, string(node.Value))
		} else {
			c.text(parent, string(resolve(node.Value)))
		}

	case *ast.CodeSpan:
		c.add(parent, tree.Node{Kind: tree.KindInlineCode, Text: c.codeSpanText(node)})

	case *ast.Emphasis:
		kind := tree.KindEmphasis
		if node.Level >= 2 {
			kind = tree.KindStrong
		}
		c.children(n, c.add(parent, tree.Node{Kind: kind}))

	case *east.Strikethrough:
		c.children(n, c.add(parent, tree.Node{Kind: tree.KindStrikethrough}))

	case *ast.Link:
		c.children(n, c.add(parent, tree.Node{Kind: tree.KindLink, Destination: string(node.Destination)}))

	case *ast.AutoLink:
		dest := string(node.URL(c.source))
		if node.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(strings.ToLower(dest), "mailto:") {
			dest = "mailto:" + dest
		}
		idx := c.add(parent, tree.Node{Kind: tree.KindLink, Destination: dest})
		c.text(idx, string(node.Label(c.source)))

	case *ast.Image:
		c.children(n, c.add(parent, tree.Node{Kind: tree.KindImage, Destination: string(node.Destination)}))

	case *east.TaskCheckBox:
		c.markTask(node.IsChecked)

	case *ast.RawHTML:
		// Inline HTML is ignored

	default:
		// 未知容器透明处理：子节点挂到当前父节点
		c.children(n, parent)
	}
}

func (c *converter) text(parent int, value string) {
	if value == "" {
		return
	}
	c.add(parent, tree.Node{Kind: tree.KindText, Text: value})
}

// markTask 在最近的 ListItem 上记录复选框状态
func (c *converter) markTask(checked bool) {
	if c.item < 0 {
		return
	}
	c.tree.MarkTask(c.item, checked)
}

func (c *converter) lines(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		b.Write(line.Value(c.source))
	}
	return b.String()
}

func (c *converter) codeSpanText(n *ast.CodeSpan) string {
	var b strings.Builder
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch t := child.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(c.source))
		case *ast.String:
			b.Write(t.Value)
		}
	}
	return b.String()
}

// resolve 处理反斜杠转义与实体引用（&amp; / &#123;）
func resolve(v []byte) []byte {
	v = util.UnescapePunctuations(v)
	v = util.ResolveNumericReferences(v)
	return util.ResolveEntityNames(v)
}

// normalizeLanguage 取 info 字符串中 ',' 之前的部分
func normalizeLanguage(lang string) string {
	lang = strings.Split(lang, ",")[0]
	return strings.TrimSpace(lang)
}
