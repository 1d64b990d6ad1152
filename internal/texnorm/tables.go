package texnorm

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/texweb/internal/texscan"
	"git.home.luguber.info/inful/texweb/internal/util/sets"
)

// Environments the converter cannot parse at all.
var problemEnvNames = sets.New("longtable", "tabular*", "tabularx", "adjustbox", "tikzpicture")

var nestedTabularRE = regexp.MustCompile(`(?s)\\begin\{tabular\*?\}[^}]*\}(.*?)\\end\{tabular\*?\}`)

// unwrapNestedTabular keeps only the inner table when a tabular directly
// contains another tabular, repeating until stable. Nested tables are
// invalid downstream.
func unwrapNestedTabular(text string) string {
	for {
		changed := false
		text = replaceGroups(nestedTabularRE, text, func(g []string) string {
			if strings.Contains(g[1], `\begin{tabular`) {
				changed = true
				return g[1]
			}
			return g[0]
		})
		if !changed {
			return text
		}
	}
}

var (
	hlineLineRE  = regexp.MustCompile(`(?m)^\\hline.*$`)
	hhlineLineRE = regexp.MustCompile(`(?m)^\\hhline.*$`)
	clineLineRE  = regexp.MustCompile(`(?m)^\\cline.*$`)
	multicolRE   = regexp.MustCompile(`\\multicolumn\{[^}]+\}\{[^}]+\}\{[^}]*\}`)
	cellcolorRE  = regexp.MustCompile(`\\cellcolor\[[^\]]+\]\{[^}]+\}`)
)

func isComplexTable(content string) bool {
	return strings.Contains(content, `\multicolumn`) ||
		strings.Contains(content, `\cellcolor`)
}

// stripProblemEnvs removes environments the converter cannot render:
// known-problematic environments wholesale, center blocks wrapping them, and
// tabulars classified as complex (spans, cell coloring, manual rules).
// Simple tables pass through untouched for native conversion.
func stripProblemEnvs(text string) string {
	cleaned := texscan.RemoveEnvBlocks(text, problemEnvNames, func(env, content string) bool {
		if env != "center" {
			return false
		}
		for name := range problemEnvNames {
			if strings.Contains(content, `\begin{`+name+`}`) {
				return true
			}
		}
		return false
	})

	cleaned = texscan.RemoveEnvBlocks(cleaned, sets.New[string](), func(env, content string) bool {
		return env == "center" && (strings.Contains(content, `\begin{longtable}`) ||
			strings.Contains(content, `\begin{tabularx}`) ||
			isComplexTable(content))
	})

	cleaned = texscan.RemoveEnvBlocks(cleaned, sets.New[string](), func(env, content string) bool {
		return env == "tabular" && (isComplexTable(content) ||
			strings.Contains(content, `\hhline`) ||
			strings.Contains(content, `\cline`))
	})

	// Stray table commands that slipped out of removed blocks.
	cleaned = hlineLineRE.ReplaceAllString(cleaned, "")
	cleaned = hhlineLineRE.ReplaceAllString(cleaned, "")
	cleaned = clineLineRE.ReplaceAllString(cleaned, "")
	cleaned = multicolRE.ReplaceAllString(cleaned, "")
	cleaned = cellcolorRE.ReplaceAllString(cleaned, "")
	return cleaned
}
