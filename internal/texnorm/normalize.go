// Package texnorm rewrites book-authoring LaTeX into the reduced dialect the
// downstream converter parses reliably. Every pass is a best-effort text
// rewrite: a pattern that does not occur is a no-op, never an error.
package texnorm

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/texweb/internal/texscan"
)

// Options controls the corpus-specific knobs of the normalizer.
type Options struct {
	// ImageRoot is the directory \includegraphics paths resolve against.
	ImageRoot string
	// ImageExtensions is the probe order for extensionless image references.
	ImageExtensions []string
	// ScreenEnvs names the code/terminal-transcript environments whose
	// bodies must not be interpreted as math by the converter.
	ScreenEnvs []string
	// UnwrapEnvs names environments whose begin/end markers are dropped
	// while the body is kept.
	UnwrapEnvs []string
	// TrapEnv names a three-argument environment converted into a
	// \subsection header followed by its body.
	TrapEnv string
	// DemoteChapter is the title of the chapter demoted to a section
	// together with its interior headings. Empty disables the pass.
	DemoteChapter string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		ImageRoot:       ".",
		ImageExtensions: []string{".png", ".jpg", ".jpeg", ".svg"},
		ScreenEnvs:      []string{"basiccode", "screencode", "screenoutputlined"},
	}
}

// Normalizer applies the ordered rewrite sequence.
type Normalizer struct {
	opts Options
}

// New returns a Normalizer for the given options. Zero-valued option fields
// fall back to defaults.
func New(opts Options) *Normalizer {
	def := DefaultOptions()
	if opts.ImageRoot == "" {
		opts.ImageRoot = def.ImageRoot
	}
	if len(opts.ImageExtensions) == 0 {
		opts.ImageExtensions = def.ImageExtensions
	}
	if len(opts.ScreenEnvs) == 0 {
		opts.ScreenEnvs = def.ScreenEnvs
	}
	return &Normalizer{opts: opts}
}

// Normalize runs the full pass sequence over a document. Order matters:
// later passes assume earlier ones already ran.
func (n *Normalizer) Normalize(text string) string {
	body := texscan.ExtractBody(text)
	body = n.stripMacros(body)
	body = stripLineComments(body)
	body = normalizeArrows(body)
	body = unwrapNestedTabular(body)
	body = stripProblemEnvs(body)
	body = normalizeHeadings(body)
	body = collapseHeadingArgs(body)
	body = n.escapeScreenDollars(body)
	body = n.fixImageRefs(body)
	if n.opts.DemoteChapter != "" {
		body = splitAtChapter(body, n.opts.DemoteChapter)
		body = demoteChapter(body, n.opts.DemoteChapter)
	}
	return wrap(body)
}

// NormalizeFile reads src, normalizes it, and writes dst. A missing input
// file is the only fatal condition.
func (n *Normalizer) NormalizeFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("input file not found: %s", src)
	}
	out := n.Normalize(string(data))
	if err := os.WriteFile(dst, []byte(out), 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// wrap surrounds the body with a minimal skeleton so the converter
// recognizes chapter-level structure without the stripped preamble.
func wrap(body string) string {
	return "\\documentclass{book}\n\\begin{document}\n" + body + "\n\\end{document}\n"
}

// replaceGroups is ReplaceAllStringFunc with submatch access.
func replaceGroups(re *regexp.Regexp, text string, repl func(groups []string) string) string {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return text
	}
	var b strings.Builder
	last := 0
	for _, idx := range matches {
		b.WriteString(text[last:idx[0]])
		groups := make([]string, 0, len(idx)/2)
		for g := 0; g < len(idx); g += 2 {
			if idx[g] < 0 {
				groups = append(groups, "")
			} else {
				groups = append(groups, text[idx[g]:idx[g+1]])
			}
		}
		b.WriteString(repl(groups))
		last = idx[1]
	}
	b.WriteString(text[last:])
	return b.String()
}
