package chatmd

import (
	"time"

	"go.uber.org/zap"

	"github.com/riverfjs/chatmd-go/internal/converter"
	"github.com/riverfjs/chatmd-go/internal/highlight"
	"github.com/riverfjs/chatmd-go/internal/parser"
)

// Pipeline performs full renders: parse, build segments, highlight code blocks.
// It is safe for concurrent use.
type Pipeline struct {
	config      *RenderConfig
	highlighter *highlight.Highlighter
	logger      *zap.Logger
}

// NewPipeline creates a Pipeline from options.
func NewPipeline(opts ...Option) *Pipeline {
	return newPipeline(applyOptions(opts...))
}

func newPipeline(o *Options) *Pipeline {
	return &Pipeline{
		config:      o.Config,
		highlighter: o.Highlighter,
		logger:      o.Logger,
	}
}

// Render 对完整文本做一次完整渲染，返回有序片段
//
// 代码块片段在这里高亮；其余片段由 SegmentBuilder 直接产生。
func (p *Pipeline) Render(text string) []Segment {
	start := time.Now()
	segments := converter.Build(parser.Parse(text), p.config)

	highlighted := 0
	if p.highlighter != nil {
		for i := range segments {
			if segments[i].Kind != SegmentCodeBlock {
				continue
			}
			segments[i].Spans = p.highlighter.Highlight(segments[i].Code, segments[i].Language)
			highlighted++
		}
	}

	p.logger.Debug("rendered markdown",
		zap.Int("bytes", len(text)),
		zap.Int("segments", len(segments)),
		zap.Int("highlighted", highlighted),
		zap.Duration("took", time.Since(start)),
	)
	return segments
}

// Output renders text into a RenderedOutput.
func (p *Pipeline) Output(text string) RenderedOutput {
	return RenderedOutput{RawText: text, Segments: p.Render(text)}
}

// Render 将 Markdown 完整渲染为 RenderedOutput
//
// 参数:
//   - markdown: 原始 Markdown 文本
//   - opts: 渲染选项（配置、高亮器等）
//
// 返回:
//   - RenderedOutput: 原始文本与有序片段
func Render(markdown string, opts ...Option) RenderedOutput {
	return NewPipeline(opts...).Output(markdown)
}
