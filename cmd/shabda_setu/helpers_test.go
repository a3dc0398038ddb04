package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/shabda-setu/internal/config"
	"github.com/jonathan/shabda-setu/internal/db"
	"github.com/jonathan/shabda-setu/internal/db/memory"
)

// getBinaryPath returns the path to the shabda_setu binary for testing
func getBinaryPath(t *testing.T) string {
	binaryName := "shabda_setu"
	if testing.Short() {
		t.Skip("Skipping CLI tests in short mode")
	}

	binaryPath := filepath.Join("..", "..", "bin", binaryName)
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		t.Skipf("Binary not found at %s, build it first with 'make build'", binaryPath)
	}

	return binaryPath
}

// useMemoryStore points every subcommand at one shared in-memory store
func useMemoryStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	original := openStore
	openStore = func(context.Context, *config.Config, bool) (db.Store, func(), error) {
		return store, func() {}, nil
	}
	t.Cleanup(func() { openStore = original })
	return store
}

// useTempCache isolates the response cache of one test
func useTempCache(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "responses.db")
	t.Setenv("SHABDA_CACHE_PATH", path)
	t.Setenv("DATABASE_URL", "")
	return path
}

// execute runs the root command in-process with fresh flag state
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
