package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/graphmut/internal/cli"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600), "failed to set up test file")
	return path
}

func TestRun_Check(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
node "a" { label = "A" }
node "b" { label = "B" }
relationship "a" "b" {}
`)
	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"check", path})

	require.NoError(t, err)
	require.Contains(t, out.String(), "Configuration OK: 2 nodes, 1 relationships.")
}

func TestRun_ConfigError(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
		node "a" {
			label = "A"
		// Missing closing brace here
	`)
	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"check", path})

	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load configuration")
	require.Contains(t, err.Error(), "failed to parse")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"serve", "--this-is-not-a-valid-flag"})

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
	require.Contains(t, err.Error(), "unknown flag: --this-is-not-a-valid-flag")
}
