package chatmd

import (
	"sync"

	"go.uber.org/zap"

	"github.com/riverfjs/chatmd-go/internal/chat"
	"github.com/riverfjs/chatmd-go/internal/highlight"
	"github.com/riverfjs/chatmd-go/internal/reconciler"
)

// DefaultSystemPrompt is sent ahead of every request unless replaced.
const DefaultSystemPrompt = "You're a helpful assistant"

// DefaultTemperature is the sampling temperature of requests.
const DefaultTemperature = 0.6

// Options holds options for rendering and sessions.
type Options struct {
	Config       *RenderConfig
	Highlighter  *highlight.Highlighter // nil 表示不高亮
	Threshold    int
	FenceMarkers []string
	Streaming    bool
	Logger       *zap.Logger
	Subscriber   func(Update)

	Client       chat.Client
	StreamClient chat.StreamClient
	SystemPrompt string
	Model        string
	Temperature  float64

	highlighterSet bool
}

// Option is a function that configures Options.
type Option func(*Options)

// WithConfig sets a custom RenderConfig.
func WithConfig(config *RenderConfig) Option {
	return func(opts *Options) {
		opts.Config = config
	}
}

// WithHighlighter replaces the code highlighter. nil disables highlighting.
func WithHighlighter(h *highlight.Highlighter) Option {
	return func(opts *Options) {
		opts.Highlighter = h
		opts.highlighterSet = true
	}
}

// WithThreshold sets how many runes may arrive between full renders.
func WithThreshold(n int) Option {
	return func(opts *Options) {
		opts.Threshold = n
	}
}

// WithFenceMarkers sets the markers that force a full render.
func WithFenceMarkers(markers ...string) Option {
	return func(opts *Options) {
		opts.FenceMarkers = markers
	}
}

// WithStreaming selects streaming (default) or non-streaming sessions for Start.
func WithStreaming(enable bool) Option {
	return func(opts *Options) {
		opts.Streaming = enable
	}
}

// WithLogger sets the logger. The package Logger is used otherwise.
func WithLogger(logger *zap.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithSubscriber registers a callback that receives every published update.
// It runs on the session goroutine; a slow subscriber delays the next chunk.
func WithSubscriber(fn func(Update)) Option {
	return func(opts *Options) {
		opts.Subscriber = fn
	}
}

// WithChatClient sets the client used by non-streaming sessions.
func WithChatClient(c chat.Client) Option {
	return func(opts *Options) {
		opts.Client = c
	}
}

// WithStreamClient sets the client used by streaming sessions.
func WithStreamClient(c chat.StreamClient) Option {
	return func(opts *Options) {
		opts.StreamClient = c
	}
}

// WithSystemPrompt sets the system prompt. An empty prompt sends none.
func WithSystemPrompt(prompt string) Option {
	return func(opts *Options) {
		opts.SystemPrompt = prompt
	}
}

// WithModel overrides the client's default model.
func WithModel(model string) Option {
	return func(opts *Options) {
		opts.Model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(opts *Options) {
		opts.Temperature = t
	}
}

// defaultOptions returns the default options.
func defaultOptions() *Options {
	return &Options{
		Config:       DefaultConfig(),
		Threshold:    reconciler.DefaultThreshold,
		FenceMarkers: reconciler.DefaultFenceMarkers,
		Streaming:    true,
		SystemPrompt: DefaultSystemPrompt,
		Temperature:  DefaultTemperature,
	}
}

// applyOptions applies the given options to the default options.
func applyOptions(opts ...Option) *Options {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.Logger == nil {
		options.Logger = Logger
	}
	options.Config = options.Config.Normalized()
	if !options.highlighterSet {
		options.Highlighter = sharedHighlighter(options.Config.HighlightTheme)
	}
	return options
}

var highlighters sync.Map // theme -> *highlight.Highlighter

// sharedHighlighter returns one Highlighter per theme so the lexer cache is reused.
func sharedHighlighter(theme string) *highlight.Highlighter {
	if h, ok := highlighters.Load(theme); ok {
		return h.(*highlight.Highlighter)
	}
	h, _ := highlighters.LoadOrStore(theme, highlight.New(theme))
	return h.(*highlight.Highlighter)
}

func (o *Options) request(prompt string, history []chat.Message) chat.Request {
	req := chat.NewRequest(prompt, history...)
	req.SystemPrompt = o.SystemPrompt
	req.Model = o.Model
	req.Temperature = o.Temperature
	return req
}
