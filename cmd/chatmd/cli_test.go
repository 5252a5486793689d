package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	extractDir = ""
	width = 0
	logLevel = ""

	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRenderCmd_Stdin(t *testing.T) {
	out, _, err := execute(t, "# Title\n\nSome **bold** text.\n", "render", "--width", "40")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "Some bold text.")
	assert.NotContains(t, out, "**")
}

func TestRenderCmd_Extract(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "answer.md")
	require.NoError(t, os.WriteFile(src, []byte("Code:\n\n```python\n# hello.py\nprint(1)\n```\n"), 0o644))
	outDir := filepath.Join(dir, "out")

	_, stderr, err := execute(t, "", "render", src, "--extract", outDir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "hello.py"))
	require.NoError(t, err)
	assert.Equal(t, "# hello.py\nprint(1)\n", string(data))
	assert.Contains(t, stderr, "hello.py")
}

func TestRenderCmd_MissingFile(t *testing.T) {
	_, _, err := execute(t, "", "render", filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}

func TestReplayCmd_Files(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.md")
	b := filepath.Join(dir, "b.md")
	require.NoError(t, os.WriteFile(a, []byte("first *file*"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("```go\nx := 1\n```"), 0o644))

	out, _, err := execute(t, "", "replay", "--delay", "0", "--chunk", "3", a, b)
	require.NoError(t, err)

	assert.Contains(t, out, "== "+a+" ==")
	assert.Contains(t, out, "== "+b+" ==")
	assert.Contains(t, out, "first file")
	assert.Contains(t, out, "x := 1")
	assert.Equal(t, 2, strings.Count(out, "settled"))
}

func TestReplayCmd_Single(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.md")
	require.NoError(t, os.WriteFile(path, []byte("just one"), 0o644))

	out, _, err := execute(t, "", "replay", "--delay", "0", path)
	require.NoError(t, err)
	assert.Contains(t, out, "just one")
	assert.Contains(t, out, "✓ settled")
}

func TestChatCmd_RequiresAPIKey(t *testing.T) {
	t.Setenv("CHATMD_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	_, _, err := execute(t, "", "chat", "hello")
	assert.ErrorContains(t, err, "API key")
}

func TestVersionCmd(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, err := execute(t, "", "--log-level", "loud", "version")
	assert.Error(t, err)
}
