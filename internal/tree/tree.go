// Package tree holds the parsed markdown document as an arena of nodes.
//
// Nodes refer to each other by index: every node records its parent index and the
// ordered indices of its children. Ancestry queries (list depth, quote depth,
// successor checks) walk parent indices instead of pointers.
package tree

// Kind 节点类型
type Kind uint8

const (
	KindDocument Kind = iota
	KindParagraph
	KindHeading
	KindEmphasis
	KindStrong
	KindStrikethrough
	KindLink
	KindImage
	KindInlineCode
	KindCodeBlock
	KindUnorderedList
	KindOrderedList
	KindListItem
	KindBlockQuote
	KindThematicBreak
	KindTable
	KindTableRow
	KindTableCell
	KindText
)

var kindNames = [...]string{
	KindDocument:      "Document",
	KindParagraph:     "Paragraph",
	KindHeading:       "Heading",
	KindEmphasis:      "Emphasis",
	KindStrong:        "Strong",
	KindStrikethrough: "Strikethrough",
	KindLink:          "Link",
	KindImage:         "Image",
	KindInlineCode:    "InlineCode",
	KindCodeBlock:     "CodeBlock",
	KindUnorderedList: "UnorderedList",
	KindOrderedList:   "OrderedList",
	KindListItem:      "ListItem",
	KindBlockQuote:    "BlockQuote",
	KindThematicBreak: "ThematicBreak",
	KindTable:         "Table",
	KindTableRow:      "TableRow",
	KindTableCell:     "TableCell",
	KindText:          "Text",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// IsListContainer reports whether the kind is an ordered or unordered list.
func (k Kind) IsListContainer() bool {
	return k == KindUnorderedList || k == KindOrderedList
}

// NoParent is the parent index of the document root.
const NoParent = -1

// Node 一个节点。只读导航，构建完成后不再修改
type Node struct {
	Kind     Kind
	Parent   int
	Children []int
	Index    int // 在父节点中的位置

	Text        string // Text: 纯文本; InlineCode / CodeBlock: 代码
	Level       int    // Heading: 1..6
	Destination string // Link / Image
	Language    string // CodeBlock
	Task        bool   // ListItem: GFM 任务项
	Checked     bool   // ListItem: 任务已完成
	Header      bool   // TableRow: 表头行
}

// Tree 文档节点的 arena，索引 0 为 Document
type Tree struct {
	nodes []Node
}

// New creates a tree holding only the document root.
func New() *Tree {
	return &Tree{
		nodes: []Node{{Kind: KindDocument, Parent: NoParent}},
	}
}

// Root returns the document index.
func (t *Tree) Root() int { return 0 }

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Add appends n as the last child of parent and returns its index.
func (t *Tree) Add(parent int, n Node) int {
	idx := len(t.nodes)
	n.Parent = parent
	n.Children = nil
	n.Index = len(t.nodes[parent].Children)
	t.nodes = append(t.nodes, n)
	t.nodes[parent].Children = append(t.nodes[parent].Children, idx)
	return idx
}

// MarkTask records a GFM task checkbox on the list item at idx.
func (t *Tree) MarkTask(idx int, checked bool) {
	if t.nodes[idx].Kind != KindListItem {
		return
	}
	t.nodes[idx].Task = true
	t.nodes[idx].Checked = checked
}

// Node returns the node at idx.
func (t *Tree) Node(idx int) Node {
	return t.nodes[idx]
}

// Kind returns the kind of the node at idx.
func (t *Tree) Kind(idx int) Kind {
	return t.nodes[idx].Kind
}

// Children returns the ordered child indices of idx.
func (t *Tree) Children(idx int) []int {
	return t.nodes[idx].Children
}

// Parent returns the parent index of idx, or NoParent for the root.
func (t *Tree) Parent(idx int) int {
	return t.nodes[idx].Parent
}

// IndexInParent returns the position of idx among its siblings.
func (t *Tree) IndexInParent(idx int) int {
	return t.nodes[idx].Index
}

// SiblingCount returns the number of children of idx's parent (1 for the root).
func (t *Tree) SiblingCount(idx int) int {
	p := t.nodes[idx].Parent
	if p == NoParent {
		return 1
	}
	return len(t.nodes[p].Children)
}

// HasSuccessor reports whether idx has a following sibling.
func (t *Tree) HasSuccessor(idx int) bool {
	p := t.nodes[idx].Parent
	if p == NoParent {
		return false
	}
	return t.nodes[idx].Index < len(t.nodes[p].Children)-1
}

// IsContainedInList reports whether any ancestor of idx is a list.
func (t *Tree) IsContainedInList(idx int) bool {
	for cur := t.nodes[idx].Parent; cur != NoParent; cur = t.nodes[cur].Parent {
		if t.nodes[cur].Kind.IsListContainer() {
			return true
		}
	}
	return false
}

// ListDepth counts list ancestors of idx. A top-level list has depth 0.
func (t *Tree) ListDepth(idx int) int {
	return t.countAncestors(idx, Kind.IsListContainer)
}

// QuoteDepth counts block quote ancestors of idx. A top-level quote has depth 0.
func (t *Tree) QuoteDepth(idx int) int {
	return t.countAncestors(idx, func(k Kind) bool { return k == KindBlockQuote })
}

func (t *Tree) countAncestors(idx int, match func(Kind) bool) int {
	depth := 0
	for cur := t.nodes[idx].Parent; cur != NoParent; cur = t.nodes[cur].Parent {
		if match(t.nodes[cur].Kind) {
			depth++
		}
	}
	return depth
}

// PlainText concatenates the text of all Text and InlineCode descendants of idx.
func (t *Tree) PlainText(idx int) string {
	var out []byte
	var walk func(int)
	walk = func(i int) {
		n := t.nodes[i]
		switch n.Kind {
		case KindText, KindInlineCode, KindCodeBlock:
			out = append(out, n.Text...)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(idx)
	return string(out)
}

// Walk visits idx and its descendants in pre-order. Returning false from fn skips
// the node's children.
func (t *Tree) Walk(idx int, fn func(idx int, n Node) bool) {
	if !fn(idx, t.nodes[idx]) {
		return
	}
	for _, c := range t.nodes[idx].Children {
		t.Walk(c, fn)
	}
}
