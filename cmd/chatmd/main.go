// Command chatmd renders chat-style markdown in the terminal, from files, replays,
// followed files or a live OpenAI-compatible chat API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/riverfjs/chatmd-go"
	"github.com/riverfjs/chatmd-go/internal/config"
	"github.com/riverfjs/chatmd-go/internal/termview"
)

var (
	// Global flags
	configPath string
	width      int
	logLevel   string

	cfg    *config.Config
	logger = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "chatmd",
	Short: "Render streaming chat markdown in the terminal",
	Long: `chatmd renders markdown the way a chat client shows a streamed answer.

Text is displayed as it arrives and restyled every few dozen characters or when
a code fence opens or closes. The final frame is always a full render.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel())
		if cfg.Logging.Encoding != "" {
			zcfg.Encoding = cfg.Logging.Encoding
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		chatmd.SetLogger(logger)
		logger.Debug("config loaded", zap.String("path", configPath))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", config.DefaultPath(), "config file (YAML)")
	flags.IntVar(&width, "width", 0, "wrap width in columns (0: terminal width)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(renderCmd, replayCmd, followCmd, chatCmd, versionCmd)
}

// rendererOptions returns the session options shared by all commands.
func rendererOptions() []chatmd.Option {
	return []chatmd.Option{
		chatmd.WithConfig(cfg.Render),
		chatmd.WithThreshold(cfg.Stream.Threshold),
		chatmd.WithFenceMarkers(cfg.Stream.FenceMarkers...),
		chatmd.WithLogger(logger),
	}
}

// viewOptions returns terminal options for stdout.
func viewOptions() termview.Options {
	w := width
	if w <= 0 {
		w = 80
		if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
			if tw, _, err := term.GetSize(fd); err == nil && tw > 0 {
				w = tw
			}
		}
	}
	opts := termview.DefaultOptions(w)
	opts.Plain = !stdoutIsTerminal()
	return opts
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
