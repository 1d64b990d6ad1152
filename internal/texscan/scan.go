// Package texscan provides the low-level token scan shared by the LaTeX
// transforms: document-body extraction and nesting-aware environment removal.
//
// Environment removal cannot be a single regex: environment names recur at
// multiple nesting levels and a non-greedy match would pair a begin token
// with the first end token of the same name rather than the one at the same
// depth. The scanner walks begin/end tokens with an explicit depth counter.
package texscan

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/texweb/internal/util/sets"
)

var (
	beginDocRE = regexp.MustCompile(`(?i)\\begin\{document\}`)
	endDocRE   = regexp.MustCompile(`(?i)\\end\{document\}`)

	// Allow optional whitespace inside braces; disallow braces/whitespace
	// inside the name.
	beginRE = regexp.MustCompile(`\\begin\s*\{\s*([^{}\s]+)\s*\}`)
	endRE   = regexp.MustCompile(`\\end\s*\{\s*([^{}\s]+)\s*\}`)
)

// ExtractBody returns the span between \begin{document} and \end{document}
// when both are present in order; otherwise the input is returned unchanged.
func ExtractBody(text string) string {
	start := beginDocRE.FindStringIndex(text)
	end := endDocRE.FindStringIndex(text)
	if start != nil && end != nil && end[0] > start[1] {
		return text[start[1]:end[0]]
	}
	return text
}

// DropPredicate decides whether a matched environment block should be
// removed, given its name and interior content.
type DropPredicate func(env, content string) bool

// RemoveEnvBlocks removes every environment block whose name is in names or
// for which predicate returns true. Blocks are matched with nesting: an inner
// begin of the same name increments depth, so the removal spans to the end
// token at the matching depth. A begin with no matching end leaves the rest
// of the text untouched.
func RemoveEnvBlocks(text string, names sets.Set[string], predicate DropPredicate) string {
	var out strings.Builder
	i := 0
	n := len(text)
	for i < n {
		mb := beginRE.FindStringSubmatchIndex(text[i:])
		if mb == nil {
			out.WriteString(text[i:])
			break
		}
		begStart := i + mb[0]
		begEnd := i + mb[1]
		env := text[i+mb[2] : i+mb[3]]
		out.WriteString(text[i:begStart])

		// Find the matching end with depth tracking.
		j := begEnd
		depth := 1
		contentEnd := -1
		for j < n && depth > 0 {
			nb := beginRE.FindStringSubmatchIndex(text[j:])
			ne := endRE.FindStringSubmatchIndex(text[j:])
			if ne == nil {
				// Unmatched begin: give up and emit the rest verbatim.
				out.WriteString(text[begStart:])
				return out.String()
			}
			if nb != nil && nb[0] < ne[0] {
				if text[j+nb[2]:j+nb[3]] == env {
					depth++
				}
				j += nb[1]
				continue
			}
			if text[j+ne[2]:j+ne[3]] == env {
				depth--
				if depth == 0 {
					contentEnd = j + ne[0]
				}
			}
			j += ne[1]
		}

		content := ""
		if contentEnd >= 0 {
			content = text[begEnd:contentEnd]
		}
		drop := names.Has(env)
		if !drop && predicate != nil && predicate(env, content) {
			drop = true
		}
		if drop {
			out.WriteString("\n")
		} else {
			out.WriteString(text[begStart:j])
		}
		i = j
	}
	return out.String()
}

// BalancedBraceArg scans a balanced {...} group starting at the first '{' at
// or after from. It returns the argument interior and the index just past the
// closing brace, or ok=false when there is no brace or it never balances.
func BalancedBraceArg(text string, from int) (arg string, end int, ok bool) {
	open := strings.IndexByte(text[from:], '{')
	if open < 0 {
		return "", 0, false
	}
	open += from
	depth := 1
	j := open + 1
	for j < len(text) && depth > 0 {
		switch text[j] {
		case '{':
			depth++
		case '}':
			depth--
		}
		j++
	}
	if depth != 0 {
		return "", 0, false
	}
	return text[open+1 : j-1], j, true
}
