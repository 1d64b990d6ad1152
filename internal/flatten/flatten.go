// Package flatten resolves \input / \include directives into a single linear
// text stream, depth-first, with global cycle protection.
package flatten

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/texweb/internal/texscan"
	"git.home.luguber.info/inful/texweb/internal/util/sets"
)

var inputRE = regexp.MustCompile(`^\\(input|include)\{([^}]+)\}`)

// Flattener expands include directives. A path is visited at most once
// globally: a second reference to an already-expanded path is dropped
// silently (the directive line itself is not reprinted).
type Flattener struct {
	visited sets.Set[string]
}

// New returns a Flattener with an empty visited set.
func New() *Flattener {
	return &Flattener{visited: sets.New[string]()}
}

// Flatten expands the document rooted at root and returns its lines.
// A missing or unreadable root is the only error; a missing include target
// preserves the original directive line unexpanded.
func (f *Flattener) Flatten(root string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("input file not found: %s", root)
	}
	var out []string
	f.expand(root, &out)
	return out, nil
}

func (f *Flattener) expand(path string, out *[]string) {
	key := resolveKey(path)
	if f.visited.Has(key) {
		return
	}
	f.visited.Add(key)

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Cannot read include target", "path", path, "error", err)
		return
	}

	base := filepath.Dir(path)
	for _, line := range splitLines(string(data)) {
		m := inputRE.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			*out = append(*out, line)
			continue
		}
		name := m[2]
		if !strings.HasSuffix(name, ".tex") {
			name += ".tex"
		}
		inc := filepath.Join(base, name)
		if _, err := os.Stat(inc); err != nil {
			// Keep the original directive line when the target is missing.
			slog.Warn("Include target missing, keeping directive", "path", inc)
			*out = append(*out, line)
			continue
		}
		f.expand(inc, out)
	}
}

// File flattens root and extracts the document body, returning the text that
// feeds the normalizer.
func File(root string) (string, error) {
	lines, err := New().Flatten(root)
	if err != nil {
		return "", err
	}
	text := strings.Join(lines, "\n") + "\n"
	return texscan.ExtractBody(text), nil
}

// resolveKey canonicalizes a path for the visited set so the same file
// reached through different relative spellings still dedups.
func resolveKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			return real
		}
		return abs
	}
	return path
}

// splitLines splits on newlines without introducing a phantom empty final
// line for newline-terminated files.
func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
