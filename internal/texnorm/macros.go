package texnorm

import (
	"regexp"
	"strings"
)

// Decorative environments dropped wholesale: they only exist for print
// layout and have no HTML meaning.
var decorativeEnvRE = []*regexp.Regexp{
	regexp.MustCompile(`(?s)\\begin\{titlepage\}.*?\\end\{titlepage\}`),
	regexp.MustCompile(`(?s)\\begin\{minitocfmt\}.*?\\end\{minitocfmt\}`),
}

// Formatting commands the converter's LaTeX reader chokes on.
var inlineStripRE = []*regexp.Regexp{
	regexp.MustCompile(`\\titleformat\*?\{[^}]*\}[^\n]*`),
	regexp.MustCompile(`\\titleclass\{[^}]*\}[^\n]*`),
	regexp.MustCompile(`\\newpagestyle\{[^}]*\}[^\n]*`),
	regexp.MustCompile(`\\pagecolor\[[^\]]*\]\{[^}]*\}`),
	regexp.MustCompile(`\\pagecolor\{[^}]*\}`),
	regexp.MustCompile(`\\hypersetup\{[^}]*\}`),
	regexp.MustCompile(`\\TOCLevels\{[^}]*\}`),
	regexp.MustCompile(`\\setcounter\{tocdepth\}\{[^}]*\}`),
	regexp.MustCompile(`\\setlength\{\\tabcolsep\}\{[^}]*\}`),
	regexp.MustCompile(`\\ttfamily\b`),
	regexp.MustCompile(`\\Large\b`),
	regexp.MustCompile(`\\normalsize\b`),
	regexp.MustCompile(`\\declaretocfmt\{[^}]*\}[^\n]*`),
	regexp.MustCompile(`\\begin\{adjustwidth\}[^\n]*`),
	regexp.MustCompile(`\\end\{adjustwidth\}`),
}

var (
	pagebreakRE = regexp.MustCompile(`\\pagebreak\b`)

	// Print/non-print conditional: keep the non-print branch.
	condElseRE = regexp.MustCompile(`(?s)\\ifdefined\\printmanual(.*?)\\else(.*?)\\fi`)
	condOnlyRE = regexp.MustCompile(`(?s)\\ifdefined\\printmanual(.*?)\\fi`)

	// Index and page-reference macros meaningless in HTML. The brace
	// interior allows exactly one {} pair, matching real corpus usage.
	indexRE         = regexp.MustCompile(`\\index\{[^{}]*(?:\{\})?[^{}]*\}`)
	pagerefRE       = regexp.MustCompile(`\\pageref\{[^{}]*(?:\{\})?[^{}]*\}`)
	addtocontentsRE = regexp.MustCompile(`\\addtocontents\{[^{}]*(?:\{\})?[^{}]*\}`)
	protectRE       = regexp.MustCompile(`\{\\protect\}`)
	needspaceRE     = regexp.MustCompile(`\\needspace\{[^{}]*(?:\{\})?[^{}]*\}`)
	nopagebreakRE   = regexp.MustCompile(`\\nopagebreak`)

	// Book-start macro simplifies to a plain chapter heading.
	bookStartRE = regexp.MustCompile(`\\megabookstart\{([^}]*)\}\{[^}]*\}`)

	// Macro definitions that cannot survive the converter.
	defStripRE = []*regexp.Regexp{
		regexp.MustCompile(`(?s)\\newcommand\\titlestreq.*?\n\}`),
		regexp.MustCompile(`(?s)\\newcommand\\titlepic.*?\n\}`),
	}

	commentLineRE = regexp.MustCompile(`(?m)^[ \t]*%[^\n]*\n?`)
)

// stripMacros drops decorative constructs, resolves the print conditional,
// and simplifies the custom macros the corpus defines.
func (n *Normalizer) stripMacros(text string) string {
	for _, re := range decorativeEnvRE {
		text = re.ReplaceAllString(text, "\n")
	}
	for _, re := range inlineStripRE {
		text = re.ReplaceAllString(text, "")
	}
	text = pagebreakRE.ReplaceAllString(text, "")

	text = condElseRE.ReplaceAllString(text, "$2")
	text = condOnlyRE.ReplaceAllString(text, "")

	text = indexRE.ReplaceAllString(text, "")
	text = pagerefRE.ReplaceAllString(text, "")
	text = addtocontentsRE.ReplaceAllString(text, "")
	text = protectRE.ReplaceAllString(text, "")
	text = needspaceRE.ReplaceAllString(text, "")
	text = nopagebreakRE.ReplaceAllString(text, "")

	text = bookStartRE.ReplaceAllString(text, `\chapter{$1}`)
	for _, re := range defStripRE {
		text = re.ReplaceAllString(text, "")
	}

	for _, env := range n.opts.UnwrapEnvs {
		text = strings.ReplaceAll(text, `\begin{`+env+`}`, "")
		text = strings.ReplaceAll(text, `\end{`+env+`}`, "")
	}
	if n.opts.TrapEnv != "" {
		text = n.convertTrapEnv(text)
	}
	return text
}

// convertTrapEnv rewrites \begin{env}{name}{addr}{num} body \end{env} into a
// subsection header carrying name (addr/num), preserving the body.
func (n *Normalizer) convertTrapEnv(text string) string {
	env := regexp.QuoteMeta(n.opts.TrapEnv)
	re := regexp.MustCompile(`(?s)\\begin\{` + env + `\}\{([^}]*)\}\{([^}]*)\}\{([^}]*)\}(.*?)\\end\{` + env + `\}`)
	return replaceGroups(re, text, func(g []string) string {
		header := `\subsection{\texttt{` + g[1] + `} (` + g[2] + `/` + g[3] + `)}` + "\n"
		return header + g[4] + "\n"
	})
}

// stripLineComments removes lines whose only content is a comment.
func stripLineComments(text string) string {
	return commentLineRE.ReplaceAllString(text, "")
}

// Arrow symbols normalize to their Unicode codepoints whether wrapped in
// inline math or bare. The math-wrapped forms must rewrite first.
var arrowRewrites = []struct {
	re  *regexp.Regexp
	out string
}{
	{regexp.MustCompile(`\$\s*\\uparrow\s*\$`), "↑"},
	{regexp.MustCompile(`\$\s*\\downarrow\s*\$`), "↓"},
	{regexp.MustCompile(`\$\s*\\leftarrow\s*\$`), "←"},
	{regexp.MustCompile(`\$\s*\\rightarrow\s*\$`), "→"},
	{regexp.MustCompile(`\\uparrow`), "↑"},
	{regexp.MustCompile(`\\downarrow`), "↓"},
	{regexp.MustCompile(`\\leftarrow`), "←"},
	{regexp.MustCompile(`\\rightarrow`), "→"},
}

func normalizeArrows(text string) string {
	for _, r := range arrowRewrites {
		text = r.re.ReplaceAllString(text, r.out)
	}
	return text
}
