package texnorm

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/texweb/internal/texscan"
)

var headingLineRE = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^[ \t]*\\chapter\s*(\{[^\n]*\})`),
	regexp.MustCompile(`(?m)^[ \t]*\\section\s*(\{[^\n]*\})`),
	regexp.MustCompile(`(?m)^[ \t]*\\subsection\s*(\{[^\n]*\})`),
}

var headingReplacement = []string{
	"\n\n\\chapter$1\n\n",
	"\n\n\\section$1\n\n",
	"\n\n\\subsection$1\n\n",
}

// normalizeHeadings surrounds heading commands with blank lines so chapters
// and sections never merge into neighbouring paragraphs.
func normalizeHeadings(text string) string {
	for i, re := range headingLineRE {
		text = re.ReplaceAllString(text, headingReplacement[i])
	}
	return text
}

var headingCmds = []string{"chapter", "section", "subsection", "subsubsection"}

var whitespaceRunRE = regexp.MustCompile(`\s+`)

// collapseHeadingArgs collapses newlines and whitespace runs inside heading
// arguments into single spaces. Heading arguments must be single logical
// lines for the converter's header-ID generation to work.
func collapseHeadingArgs(text string) string {
	for _, cmd := range headingCmds {
		text = collapseArgsOf(text, cmd)
	}
	return text
}

func collapseArgsOf(text, cmd string) string {
	marker := "\\" + cmd
	pos := 0
	for {
		idx := strings.Index(text[pos:], marker)
		if idx < 0 {
			return text
		}
		idx += pos
		arg, end, ok := texscan.BalancedBraceArg(text, idx)
		if !ok {
			pos = idx + 1
			continue
		}
		collapsed := strings.TrimSpace(whitespaceRunRE.ReplaceAllString(arg, " "))
		open := end - len(arg) - 2
		text = text[:open+1] + collapsed + text[end-1:]
		pos = open + 1 + len(collapsed) + 1
	}
}

// splitAtChapter forces a blank-line boundary and page break before the
// named chapter so the converter splits the output there.
func splitAtChapter(text, title string) string {
	re := regexp.MustCompile(`(?m)^\\chapter\{` + regexp.QuoteMeta(title) + `\}`)
	return re.ReplaceAllLiteralString(text, "\n\n\\clearpage\n\\chapter{"+title+"}")
}

// demoteChapter turns the named chapter into a section and demotes every
// heading strictly inside its span by exactly one level. The chapter's own
// heading text is unchanged. Keeps one oversized chapter from fragmenting
// top-level navigation.
func demoteChapter(text, title string) string {
	startRE := regexp.MustCompile(`(?m)^\\chapter\{` + regexp.QuoteMeta(title) + `\}`)
	loc := startRE.FindStringIndex(text)
	if loc == nil {
		return text
	}
	start := loc[0]
	nextRE := regexp.MustCompile(`(?m)^\\chapter\{`)
	end := len(text)
	if next := nextRE.FindStringIndex(text[start+1:]); next != nil {
		end = start + 1 + next[0]
	}
	block := text[start:end]

	// Demote deepest-first so each interior heading moves exactly one
	// level; the chapter line itself converts last.
	subRE := regexp.MustCompile(`(?m)^\\subsection\s*\{`)
	block = subRE.ReplaceAllString(block, `\subsubsection{`)
	secRE := regexp.MustCompile(`(?m)^\\section\s*\{`)
	block = secRE.ReplaceAllString(block, `\subsection{`)
	block = startRE.ReplaceAllLiteralString(block, `\section{`+title+`}`)

	return text[:start] + block + text[end:]
}
