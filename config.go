package chatmd

import (
	"sync"

	"github.com/riverfjs/chatmd-go/internal/types"
)

// 导出类型别名
type (
	Symbol         = types.Symbol
	RenderConfig   = types.RenderConfig
	StyleDirective = types.StyleDirective
	ForegroundHint = types.ForegroundHint
	Indent         = types.Indent
	IndentKind     = types.IndentKind
	Span           = types.Span
	SpanRole       = types.SpanRole
	Segment        = types.Segment
	SegmentKind    = types.SegmentKind
	RenderedOutput = types.RenderedOutput
)

const (
	SegmentProse     = types.SegmentProse
	SegmentCodeBlock = types.SegmentCodeBlock
)

const (
	HintNone       = types.HintNone
	HintAccentLink = types.HintAccentLink
	HintMuted      = types.HintMuted
	HintCodeInline = types.HintCodeInline
	HintCode       = types.HintCode
)

const (
	IndentNone     = types.IndentNone
	IndentBullet   = types.IndentBullet
	IndentNumbered = types.IndentNumbered
	IndentQuote    = types.IndentQuote
)

var (
	defaultConfig     *RenderConfig
	defaultConfigOnce sync.Once
)

// DefaultConfig returns the default render configuration (singleton).
func DefaultConfig() *RenderConfig {
	defaultConfigOnce.Do(func() {
		defaultConfig = types.DefaultRenderConfig()
	})
	return defaultConfig
}
