package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/riverfjs/chatmd-go"
	"github.com/riverfjs/chatmd-go/internal/termview"
)

var extractDir string

var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Render a markdown file (or stdin) in one pass",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().StringVar(&extractDir, "extract", "", "write code blocks as files into this directory")
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}

func runRender(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	out := chatmd.Render(text, rendererOptions()...)
	fmt.Fprintln(cmd.OutOrStdout(), termview.Render(out, viewOptions()))

	if extractDir == "" {
		return nil
	}
	return writeFiles(cmd, extractDir, chatmd.ExtractFiles(out))
}

func writeFiles(cmd *cobra.Command, dir string, files []chatmd.File) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	for _, f := range files {
		path := filepath.Join(dir, f.FileName)
		if err := os.WriteFile(path, f.FileData, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		logger.Info("extracted code block", zap.String("file", path), zap.String("language", f.Language))
		fmt.Fprintln(cmd.ErrOrStderr(), path)
	}
	return nil
}
