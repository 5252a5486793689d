package types

// Symbol 定义 Markdown 元素的显示符号
type Symbol struct {
	Bullet          string `yaml:"bullet"`
	Quote           string `yaml:"quote"`
	Rule            string `yaml:"rule"`
	Image           string `yaml:"image"`
	TaskCompleted   string `yaml:"task_completed"`
	TaskUncompleted string `yaml:"task_uncompleted"`
}

// DefaultSymbol 返回默认符号配置
func DefaultSymbol() *Symbol {
	return &Symbol{
		Bullet:          "•",
		Quote:           "│",
		Rule:            "————————",
		Image:           "🖼",
		TaskCompleted:   "✅",
		TaskUncompleted: "☑️",
	}
}

// DefaultBaseFontSize is the body text size (points) the heading sizes are defined against.
const DefaultBaseFontSize = 17.0

// RenderConfig 渲染配置
type RenderConfig struct {
	MarkdownSymbol  *Symbol `yaml:"symbols"`
	BaseFontSize    float64 `yaml:"base_font_size"`
	HeadingMinDelta float64 `yaml:"heading_min_delta"` // 标题最小字号 = 正文 - delta
	InlineCodeDelta float64 `yaml:"inline_code_delta"` // 行内代码比正文小的字号
	HighlightTheme  string  `yaml:"highlight_theme"`
}

// DefaultRenderConfig 返回默认渲染配置
func DefaultRenderConfig() *RenderConfig {
	return &RenderConfig{
		MarkdownSymbol:  DefaultSymbol(),
		BaseFontSize:    DefaultBaseFontSize,
		HeadingMinDelta: 1,
		InlineCodeDelta: 1,
		HighlightTheme:  "monokai",
	}
}

// Normalized fills zero fields from the defaults without touching the receiver.
func (c *RenderConfig) Normalized() *RenderConfig {
	def := DefaultRenderConfig()
	if c == nil {
		return def
	}
	out := *c
	if out.MarkdownSymbol == nil {
		out.MarkdownSymbol = def.MarkdownSymbol
	}
	if out.BaseFontSize <= 0 {
		out.BaseFontSize = def.BaseFontSize
	}
	if out.HeadingMinDelta < 0 {
		out.HeadingMinDelta = 0
	}
	if out.InlineCodeDelta < 0 {
		out.InlineCodeDelta = 0
	}
	if out.HighlightTheme == "" {
		out.HighlightTheme = def.HighlightTheme
	}
	return &out
}
