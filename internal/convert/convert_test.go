package convert

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texweb/internal/config"
	pkgerrors "git.home.luguber.info/inful/texweb/internal/errors"
)

func TestRun_SkipIsNoop(t *testing.T) {
	r := NewRunner(config.ConverterConfig{Command: "pandoc", Skip: true}, nil)
	require.NoError(t, r.Run(context.Background(), "does-not-matter.tex", t.TempDir()))
}

func TestRun_MissingInputFatal(t *testing.T) {
	r := NewRunner(config.ConverterConfig{Command: "true"}, nil)
	err := r.Run(context.Background(), filepath.Join(t.TempDir(), "nope.tex"), t.TempDir())
	require.Error(t, err)
	require.True(t, pkgerrors.IsCategory(err, pkgerrors.CategoryInput))
}

func TestRun_InvokesCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "book.tex")
	require.NoError(t, os.WriteFile(input, []byte(`\documentclass{book}`), 0644))

	// `true` accepts any arguments and exits 0.
	r := NewRunner(config.ConverterConfig{Command: "true"}, nil)
	require.NoError(t, r.Run(context.Background(), input, filepath.Join(dir, "out")))

	// Output directory is created before the converter runs.
	info, err := os.Stat(filepath.Join(dir, "out"))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestRun_CommandFailure(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "book.tex")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0644))

	r := NewRunner(config.ConverterConfig{Command: "false"}, nil)
	err := r.Run(context.Background(), input, filepath.Join(dir, "out"))
	require.Error(t, err)
	require.True(t, pkgerrors.IsCategory(err, pkgerrors.CategoryConvert))
}

func TestAvailable(t *testing.T) {
	require.True(t, NewRunner(config.ConverterConfig{Command: "sh"}, nil).Available())
	require.False(t, NewRunner(config.ConverterConfig{Command: "no-such-binary-here"}, nil).Available())
}
