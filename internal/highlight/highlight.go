// Package highlight turns code block bodies into styled spans with chroma.
//
// Highlight never fails: an unknown language, a lexer error or a lexer panic all
// degrade to a single plain monospace span.
package highlight

import (
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"go.uber.org/zap"

	"github.com/riverfjs/chatmd-go/internal/buffer"
	"github.com/riverfjs/chatmd-go/internal/types"
)

// DefaultTheme is used when no theme is configured.
const DefaultTheme = "monokai"

// Highlighter 基于 chroma 的代码高亮器，可并发使用
type Highlighter struct {
	style  *chroma.Style
	logger *zap.Logger

	mu     sync.RWMutex
	lexers map[string]chroma.Lexer
}

// Option configures a Highlighter.
type Option func(*Highlighter)

// WithLogger sets the logger used for fallback diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Highlighter) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New creates a Highlighter for a chroma theme. Unknown themes use chroma's fallback style.
func New(theme string, opts ...Option) *Highlighter {
	if theme == "" {
		theme = DefaultTheme
	}
	h := &Highlighter{
		style:  styles.Get(theme),
		logger: zap.NewNop(),
		lexers: make(map[string]chroma.Lexer),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Theme returns the chroma style name in use.
func (h *Highlighter) Theme() string {
	return h.style.Name
}

// Highlight returns the styled spans of code. The span texts always concatenate to code.
func (h *Highlighter) Highlight(code, language string) (spans []types.Span) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Debug("highlighter panic, using plain code",
				zap.String("language", language), zap.Any("panic", r))
			spans = Plain(code)
		}
	}()

	lexer := h.lexer(language)
	if lexer == nil {
		if language != "" {
			h.logger.Debug("no lexer for language", zap.String("language", language))
		}
		return Plain(code)
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		h.logger.Debug("tokenise failed", zap.String("language", language), zap.Error(err))
		return Plain(code)
	}

	buf := buffer.New()
	for _, tok := range iterator.Tokens() {
		if tok.Value == "" {
			continue
		}
		buf.WriteText(tok.Value, h.directive(tok.Type))
	}

	spans = buf.Spans()
	// 部分 lexer 会补一个结尾换行
	if types.JoinSpans(spans) != code {
		spans = trimTo(spans, code)
		if spans == nil {
			return Plain(code)
		}
	}
	return spans
}

func (h *Highlighter) lexer(language string) chroma.Lexer {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return nil
	}

	h.mu.RLock()
	lexer, ok := h.lexers[language]
	h.mu.RUnlock()
	if ok {
		return lexer
	}

	lexer = lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Match("file." + language)
	}
	if lexer != nil {
		lexer = chroma.Coalesce(lexer)
	}

	h.mu.Lock()
	h.lexers[language] = lexer
	h.mu.Unlock()
	return lexer
}

func (h *Highlighter) directive(tokenType chroma.TokenType) types.StyleDirective {
	entry := h.style.Get(tokenType)
	d := types.StyleDirective{
		Monospace:  true,
		Foreground: types.HintCode,
		Bold:       entry.Bold == chroma.Yes,
		Italic:     entry.Italic == chroma.Yes,
	}
	if entry.Colour.IsSet() {
		d.Color = entry.Colour.String()
	}
	return d
}

// Plain returns code as one unstyled monospace span.
func Plain(code string) []types.Span {
	if code == "" {
		return []types.Span{}
	}
	return []types.Span{{
		Text:  code,
		Style: types.StyleDirective{Monospace: true, Foreground: types.HintCode},
	}}
}

// trimTo cuts spans back to code when the lexer only appended text. Returns nil when
// the spans are not an extension of code.
func trimTo(spans []types.Span, code string) []types.Span {
	joined := types.JoinSpans(spans)
	if !strings.HasPrefix(joined, code) {
		return nil
	}
	extra := len(joined) - len(code)
	for extra > 0 && len(spans) > 0 {
		last := &spans[len(spans)-1]
		if len(last.Text) <= extra {
			extra -= len(last.Text)
			spans = spans[:len(spans)-1]
			continue
		}
		last.Text = last.Text[:len(last.Text)-extra]
		extra = 0
	}
	return spans
}
