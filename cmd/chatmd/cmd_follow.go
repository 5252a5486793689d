package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/riverfjs/chatmd-go"
	"github.com/riverfjs/chatmd-go/internal/chat"
)

var followIdle time.Duration

var followCmd = &cobra.Command{
	Use:   "follow <file>",
	Short: "Render a file live while another process appends to it",
	Long: `Shows the current content of the file and every appended fragment as a
streamed response. Ends when the file is removed or renamed, after --idle
without writes, or on Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runFollow,
}

func init() {
	followCmd.Flags().DurationVar(&followIdle, "idle", 30*time.Second, "stop after this long without writes (0: never)")
}

func runFollow(cmd *cobra.Command, args []string) error {
	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	p := newPresenter(cmd.OutOrStdout(), stdoutIsTerminal(), viewOptions())
	stream := &chat.FileStream{Path: args[0], Idle: followIdle, Logger: logger}
	opts := append(rendererOptions(),
		chatmd.WithStreamClient(stream),
		chatmd.WithSubscriber(p.update),
	)
	s := chatmd.New(opts...).StartStream(ctx, args[0])
	_, err := p.finish(s)
	return ignoreCancel(err)
}
