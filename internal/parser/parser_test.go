package parser

import (
	"testing"

	"github.com/riverfjs/chatmd-go/internal/tree"
)

// kinds 返回根节点下直接子节点的类型
func kinds(t *tree.Tree) []tree.Kind {
	var out []tree.Kind
	for _, c := range t.Children(t.Root()) {
		out = append(out, t.Kind(c))
	}
	return out
}

func findFirst(t *tree.Tree, kind tree.Kind) (int, bool) {
	found := -1
	t.Walk(t.Root(), func(idx int, n tree.Node) bool {
		if found >= 0 {
			return false
		}
		if n.Kind == kind {
			found = idx
			return false
		}
		return true
	})
	return found, found >= 0
}

func TestParse_TopLevelBlocks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []tree.Kind
	}{
		{"empty", "", nil},
		{"paragraph", "Hello world", []tree.Kind{tree.KindParagraph}},
		{"heading then paragraph", "# Title\n\nbody", []tree.Kind{tree.KindHeading, tree.KindParagraph}},
		{"fence interrupts paragraph", "Here:\n```python\nprint(1)\n```", []tree.Kind{tree.KindParagraph, tree.KindCodeBlock}},
		{"unordered list", "- a\n- b", []tree.Kind{tree.KindUnorderedList}},
		{"ordered list", "1. a\n2. b", []tree.Kind{tree.KindOrderedList}},
		{"quote", "> quoted", []tree.Kind{tree.KindBlockQuote}},
		{"rule", "a\n\n---\n\nb", []tree.Kind{tree.KindParagraph, tree.KindThematicBreak, tree.KindParagraph}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kinds(Parse(tt.input))
			if len(got) != len(tt.want) {
				t.Fatalf("kinds = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("kinds[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParse_CodeBlock(t *testing.T) {
	tr := Parse("```python\nprint(1)\n```")
	idx, ok := findFirst(tr, tree.KindCodeBlock)
	if !ok {
		t.Fatal("expected code block")
	}
	n := tr.Node(idx)
	if n.Text != "print(1)\n" {
		t.Errorf("code = %q, want %q", n.Text, "print(1)\n")
	}
	if n.Language != "python" {
		t.Errorf("language = %q, want python", n.Language)
	}
}

func TestParse_CodeBlockLanguageOptions(t *testing.T) {
	tr := Parse("```go,linenos\nx\n```")
	idx, _ := findFirst(tr, tree.KindCodeBlock)
	if got := tr.Node(idx).Language; got != "go" {
		t.Errorf("language = %q, want go", got)
	}
}

func TestParse_UnclosedFence(t *testing.T) {
	tr := Parse("```py\nprint(")
	idx, ok := findFirst(tr, tree.KindCodeBlock)
	if !ok {
		t.Fatal("unclosed fence should still be a code block")
	}
	if got := tr.Node(idx).Language; got != "py" {
		t.Errorf("language = %q, want py", got)
	}
}

func TestParse_IndentedCodeBlockHasNoLanguage(t *testing.T) {
	tr := Parse("    code line\n")
	idx, ok := findFirst(tr, tree.KindCodeBlock)
	if !ok {
		t.Fatal("expected indented code block")
	}
	if got := tr.Node(idx).Language; got != "" {
		t.Errorf("language = %q, want empty", got)
	}
}

func TestParse_Inline(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  tree.Kind
		text  string
	}{
		{"strong", "**bold**", tree.KindStrong, "bold"},
		{"emphasis", "*it*", tree.KindEmphasis, "it"},
		{"strikethrough", "~~gone~~", tree.KindStrikethrough, "gone"},
		{"inline code", "use `go test`", tree.KindInlineCode, "go test"},
		{"link", "[site](https://example.com)", tree.KindLink, "site"},
		{"image", "![alt](img.png)", tree.KindImage, "alt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Parse(tt.input)
			idx, ok := findFirst(tr, tt.kind)
			if !ok {
				t.Fatalf("no %v node in %q", tt.kind, tt.input)
			}
			if got := tr.PlainText(idx); got != tt.text {
				t.Errorf("text = %q, want %q", got, tt.text)
			}
		})
	}
}

func TestParse_LinkDestination(t *testing.T) {
	tr := Parse("[site](https://example.com/a)")
	idx, _ := findFirst(tr, tree.KindLink)
	if got := tr.Node(idx).Destination; got != "https://example.com/a" {
		t.Errorf("destination = %q", got)
	}
}

func TestParse_AutoLink(t *testing.T) {
	tr := Parse("see https://example.com now")
	idx, ok := findFirst(tr, tree.KindLink)
	if !ok {
		t.Fatal("linkify should produce a link")
	}
	if got := tr.PlainText(idx); got != "https://example.com" {
		t.Errorf("label = %q", got)
	}
}

func TestParse_SoftBreakBecomesNewline(t *testing.T) {
	tr := Parse("line one\nline two")
	if got := tr.PlainText(tr.Root()); got != "line one\nline two" {
		t.Errorf("PlainText = %q", got)
	}
}

func TestParse_EscapesAndEntities(t *testing.T) {
	tr := Parse(`\*not bold\* &amp; more`)
	if got := tr.PlainText(tr.Root()); got != "*not bold* & more" {
		t.Errorf("PlainText = %q", got)
	}
}

func TestParse_TaskList(t *testing.T) {
	tr := Parse("- [x] done\n- [ ] open")
	var items []tree.Node
	tr.Walk(tr.Root(), func(_ int, n tree.Node) bool {
		if n.Kind == tree.KindListItem {
			items = append(items, n)
		}
		return true
	})
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if !items[0].Task || !items[0].Checked {
		t.Errorf("first item should be a checked task: %+v", items[0])
	}
	if !items[1].Task || items[1].Checked {
		t.Errorf("second item should be an open task: %+v", items[1])
	}
}

func TestParse_Table(t *testing.T) {
	tr := Parse("| a | b |\n|---|---|\n| 1 | 2 |")
	idx, ok := findFirst(tr, tree.KindTable)
	if !ok {
		t.Fatal("expected table")
	}
	rows := tr.Children(idx)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if !tr.Node(rows[0]).Header {
		t.Error("first row should be the header")
	}
	if got := len(tr.Children(rows[1])); got != 2 {
		t.Errorf("cells = %d, want 2", got)
	}
}

func TestParse_Deterministic(t *testing.T) {
	input := "# T\n\n- a\n  - b\n\n> q\n\n```go\nx\n```\n"
	a := Parse(input)
	b := Parse(input)
	if a.Len() != b.Len() {
		t.Fatalf("node count differs: %d vs %d", a.Len(), b.Len())
	}
	for i := 0; i < a.Len(); i++ {
		na, nb := a.Node(i), b.Node(i)
		if na.Kind != nb.Kind || na.Text != nb.Text || na.Parent != nb.Parent {
			t.Errorf("node %d differs: %+v vs %+v", i, na, nb)
		}
	}
}
