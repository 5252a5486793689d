package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/riverfjs/chatmd-go"
	"github.com/riverfjs/chatmd-go/internal/chat"
)

var (
	noStream bool
	model    string
)

var chatCmd = &cobra.Command{
	Use:   "chat <prompt>...",
	Short: "Ask an OpenAI-compatible chat API and render the answer",
	Long: `Sends the prompt and renders the response as it streams in.

Ctrl-C cancels the response; the part already received stays on screen.
The API key is read from the config file, CHATMD_API_KEY or OPENAI_API_KEY.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	flags := chatCmd.Flags()
	flags.BoolVar(&noStream, "no-stream", false, "wait for the complete response")
	flags.StringVar(&model, "model", "", "model name (default from config)")
}

func runChat(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateChat(); err != nil {
		return err
	}
	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	client := chat.NewOpenAIClient(chat.OpenAIConfig{
		APIKey:      cfg.Chat.APIKey,
		BaseURL:     cfg.Chat.BaseURL,
		Model:       cfg.Chat.Model,
		Temperature: cfg.Chat.Temperature,
		MaxTokens:   cfg.Chat.MaxTokens,
		Timeout:     cfg.ChatTimeout(),
	}, chat.WithClientLogger(logger))

	p := newPresenter(cmd.OutOrStdout(), stdoutIsTerminal(), viewOptions())
	opts := append(rendererOptions(),
		chatmd.WithChatClient(client),
		chatmd.WithStreamClient(client),
		chatmd.WithStreaming(cfg.Stream.Enabled && !noStream),
		chatmd.WithSystemPrompt(cfg.Chat.SystemPrompt),
		chatmd.WithTemperature(cfg.Chat.Temperature),
		chatmd.WithSubscriber(p.update),
	)
	if model != "" {
		opts = append(opts, chatmd.WithModel(model))
	}

	s := chatmd.New(opts...).Start(ctx, strings.Join(args, " "))
	_, err := p.finish(s)
	return ignoreCancel(err)
}

// interruptContext is cancelled on Ctrl-C.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}

// ignoreCancel treats a user cancellation as a normal exit; the status line
// already shows it.
func ignoreCancel(err error) error {
	if errors.Is(err, chatmd.ErrCancelled) {
		return nil
	}
	return err
}
