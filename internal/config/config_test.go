package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("book:\n  root: src/book.tex\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "src", cfg.Book.SourceDir)
	require.Equal(t, "pandoc", cfg.Converter.Command)
	require.Equal(t, []string{".png", ".jpg", ".jpeg", ".svg"}, cfg.Images.TexExtensions)
	require.Equal(t, []string{".png", ".jpg", ".jpeg", ".svg"}, cfg.Images.HTMLExtensions)
	require.Equal(t, []string{"sec:", "cha:"}, cfg.Post.PlaceholderPrefixes)
	require.Equal(t, "index.html", cfg.Post.LandingPage)
	require.Equal(t, 200, cfg.Raster.Density)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEXWEB_TEST_OUT", "/tmp/texweb-out")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  directory: ${TEXWEB_TEST_OUT}\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/texweb-out", cfg.Output.Directory)
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
book:
  root: book.tex
  source_dir: elsewhere
  demote_chapter: "Legacy Modes"
postprocess:
  placeholder_prefixes: ["fig:"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "elsewhere", cfg.Book.SourceDir)
	require.Equal(t, "Legacy Modes", cfg.Book.DemoteChapter)
	require.Equal(t, []string{"fig:"}, cfg.Post.PlaceholderPrefixes)
}

func TestInit_RefusesOverwriteWithoutForce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "book.tex", cfg.Book.Root)
}
