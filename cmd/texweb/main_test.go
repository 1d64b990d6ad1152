package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
)

func parseArgs(t *testing.T, args ...string) *kong.Context {
	t.Helper()
	parser, err := kong.New(&CLI, kong.Vars{"version": "test"})
	if err != nil {
		t.Fatal(err)
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return kctx
}

func TestCLICommandParsing(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"build"}, "build"},
		{[]string{"build", "-o", "./out"}, "build"},
		{[]string{"init", "--force"}, "init"},
		{[]string{"flatten", "book.tex"}, "flatten <root>"},
		{[]string{"preprocess", "in.tex", "out.tex"}, "preprocess <input> <output>"},
		{[]string{"fonts"}, "fonts"},
		{[]string{"postprocess", "-d", "./site"}, "postprocess"},
		{[]string{"verify"}, "verify"},
		{[]string{"watch", "--debounce", "500ms"}, "watch"},
	}
	for _, tc := range cases {
		kctx := parseArgs(t, tc.args...)
		if kctx.Command() != tc.want {
			t.Fatalf("args %v: got command %q, want %q", tc.args, kctx.Command(), tc.want)
		}
	}
}

func TestRunFlattenWritesOutput(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "book.tex")
	chapter := filepath.Join(dir, "chapter1.tex")
	src := "\\documentclass{book}\n" +
		"\\begin{document}\n" +
		"\\input{chapter1}\n" +
		"end\n" +
		"\\end{document}\n"
	if err := os.WriteFile(root, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(chapter, []byte("chapter one\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out", "flat.tex")
	if err := runFlatten(root, out); err != nil {
		t.Fatalf("flatten: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "chapter one") {
		t.Fatalf("include not expanded:\n%s", data)
	}
	if strings.Contains(string(data), "\\input{") {
		t.Fatalf("directive survived flattening:\n%s", data)
	}
	// Only the document body survives; the preamble and markers do not.
	if strings.Contains(string(data), "\\documentclass") || strings.Contains(string(data), "\\begin{document}") {
		t.Fatalf("preamble leaked into flattened output:\n%s", data)
	}
}

func TestRunFlattenMissingRoot(t *testing.T) {
	if err := runFlatten(filepath.Join(t.TempDir(), "nope.tex"), ""); err == nil {
		t.Fatalf("expected error for missing root")
	}
}
