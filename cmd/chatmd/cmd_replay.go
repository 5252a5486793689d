package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/riverfjs/chatmd-go"
	"github.com/riverfjs/chatmd-go/internal/chat"
)

var (
	replayChunk     int
	replayDelay     time.Duration
	replayThreshold int
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>...",
	Short: "Replay markdown files as simulated streamed responses",
	Long: `Streams each file through a rendering session in small chunks.

A single file on a terminal is redrawn live. Several files are replayed
concurrently and each final frame is printed with its summary.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReplay,
}

func init() {
	flags := replayCmd.Flags()
	flags.IntVar(&replayChunk, "chunk", chat.DefaultChunkSize, "runes per chunk")
	flags.DurationVar(&replayDelay, "delay", 20*time.Millisecond, "delay between chunks")
	flags.IntVar(&replayThreshold, "threshold", 0, "runes between full renders (0: config)")
}

func replayOptions(text string, sub func(chatmd.Update)) []chatmd.Option {
	opts := append(rendererOptions(),
		chatmd.WithStreamClient(&chat.Simulator{Text: text, ChunkSize: replayChunk, Delay: replayDelay}),
		chatmd.WithSubscriber(sub),
	)
	if replayThreshold > 0 {
		opts = append(opts, chatmd.WithThreshold(replayThreshold))
	}
	return opts
}

func runReplay(cmd *cobra.Command, args []string) error {
	texts := make([]string, len(args))
	for i, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		texts[i] = string(data)
	}

	if len(args) == 1 {
		p := newPresenter(cmd.OutOrStdout(), stdoutIsTerminal(), viewOptions())
		s := chatmd.New(replayOptions(texts[0], p.update)...).StartStream(cmd.Context(), args[0])
		_, err := p.finish(s)
		return err
	}

	frames := make([]bytes.Buffer, len(args))
	g, ctx := errgroup.WithContext(cmd.Context())
	for i := range args {
		g.Go(func() error {
			p := newPresenter(&frames[i], false, viewOptions())
			s := chatmd.New(replayOptions(texts[i], p.update)...).StartStream(ctx, args[i])
			_, err := p.finish(s)
			if err != nil {
				return fmt.Errorf("%s: %w", args[i], err)
			}
			return nil
		})
	}
	err := g.Wait()

	for i, path := range args {
		fmt.Fprintf(cmd.OutOrStdout(), "== %s ==\n%s\n", path, frames[i].String())
	}
	return err
}
