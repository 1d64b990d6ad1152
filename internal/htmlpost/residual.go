package htmlpost

import (
	"os"
	"regexp"
	"strings"
)

// The converter leaves fragments of LaTeX in the HTML whenever a macro
// escaped the rendering filters. This pass is the last line of defense: each
// rewrite below handles one observed leak pattern.

var screenEnvNames = []string{"basiccode", "screencode", "screenoutputlined"}

type rewriteRule struct {
	re  *regexp.Regexp
	out string
}

var simpleRules = []rewriteRule{
	// \cdots in both math-wrapped forms, then bare.
	{regexp.MustCompile(`\$\\cdots\$`), "⋯"},
	{regexp.MustCompile(`\\\(\\cdots\\\)`), "⋯"},
	{regexp.MustCompile(`\\cdots`), "⋯"},

	// Trademark symbols with and without trailing braces.
	{regexp.MustCompile(`\\textregistered\s*\{\}`), "<sup>®</sup>"},
	{regexp.MustCompile(`\\texttrademark\s*\{\}`), "<sup>™</sup>"},
	{regexp.MustCompile(`\\textregistered\b`), "<sup>®</sup>"},
	{regexp.MustCompile(`\\texttrademark\b`), "<sup>™</sup>"},

	{regexp.MustCompile(`\\newline\s*`), "<br />"},
	{regexp.MustCompile(`\\newpage\s*`), ""},
	{regexp.MustCompile(`\\vspace\*?\{[^}]*\}\s*`), ""},
	{regexp.MustCompile(`\\pagenumbering\{bychapter\}`), ""},

	// Size markers emitted by the rendering filters.
	{regexp.MustCompile(`@@SIZEHUGE\{([^}]*)\}`), `<span class="size-huge">${1}</span>`},
	{regexp.MustCompile(`@@SIZESMALL\{([^}]*)\}`), `<span class="size-small">${1}</span>`},

	// The same markers after they went through HTML escaping inside code.
	{regexp.MustCompile(`(?is)<code>&lt;span class="size-huge"&gt;</code>(.*?)<code>&lt;/span&gt;</code>`),
		`<span class="size-huge">${1}</span>`},
	{regexp.MustCompile(`(?is)<code>&lt;span class="size-small"&gt;</code>(.*?)<code>&lt;/span&gt;</code>`),
		`<span class="size-small">${1}</span>`},
	{regexp.MustCompile(`(?is)<code>@@SIZEHUGE</code>\s*<span>(.*?)</span>`),
		`<span class="size-huge">${1}</span>`},
	{regexp.MustCompile(`(?is)<code>@@SIZESMALL</code>\s*<span>(.*?)</span>`),
		`<span class="size-small">${1}</span>`},
}

var (
	sizeHugeCharRE  = regexp.MustCompile(`\\huge\s*([0-9A-Za-z])`)
	sizeSmallRunRE  = regexp.MustCompile(`\\small\s*([0-9A-Za-z]+)`)
	screenBlockRE   = regexp.MustCompile(`(?s)(<div class="screen">\s*<pre><code>)(.*?)(</code></pre></div>)`)
	screenshotRE    = regexp.MustCompile(`\\screenshotwrap\{([^}]+)\}`)
	imgSrcRE        = regexp.MustCompile(`(<img\s+[^>]*?src=")(images/[^".]+)("[^>]*?>)`)
	tcbVerbatimRE   = regexp.MustCompile(`(?s)\\begin\{tcolorbox\}.*?\\begin\{verbatim\}\s*(.*?)\s*\\end\{verbatim\}.*?\\end\{tcolorbox\}`)
	tcbLstlistingRE = regexp.MustCompile(`(?s)\\begin\{tcolorbox\}.*?\\begin\{lstlisting\}[^\n]*\n?(.*?)\n?\\end\{lstlisting\}.*?\\end\{tcolorbox\}`)
	latexEscapeRE   = regexp.MustCompile(`\\([$%#&_{}\\])`)
	emGroupRE       = regexp.MustCompile(`(?s)\{\s*\\em\s+(.*?)\}`)

	specialkeyRE   = regexp.MustCompile(`\\specialkey\{([^}]*)\}`)
	megakeyRE      = regexp.MustCompile(`\\megakey\{([^}]*)\}`)
	megakeywhiteRE = regexp.MustCompile(`\\megakeywhite\{([^}]*)\}`)
	widekeyRE      = regexp.MustCompile(`\\widekey\{([^}]*)\}`)

	screentextwideRE = regexp.MustCompile(`\\screentextwide\{([^}]*)\}`)
	stwBraceRE       = regexp.MustCompile(`\\stw\{([^}]*)\}`)
	stwParenRE       = regexp.MustCompile(`\\stw\(([^)]*)\)`)
	screentextRE     = regexp.MustCompile(`\\screentext\{([^}]*)\}`)
	symbolfontRE     = regexp.MustCompile(`\\symbolfont\{([^}]*)\}`)

	// Paragraph merges around screen spans. The converter splits a screen
	// span and its explanatory sentence into separate paragraphs.
	mergeLoneSpanRE = regexp.MustCompile(
		`(?is)<p>\s*(<span[^>]*class="(?:screentext|screentextwide)"[^>]*>[^<]*</span>)\s*</p>\s*<p>(.*?)</p>`)
	mergeEndSpanRE = regexp.MustCompile(
		`(?is)(<p>.*?<span[^>]*class="(?:screentext|screentextwide)"[^>]*>[^<]*</span>)\s*</p>\s*<p>\s*(.*?)</p>`)
	mergePrevTextRE = regexp.MustCompile(
		`(?is)<p>(.*?)</p>\s*<p>\s*(<span[^>]*class="(?:screentext|screentextwide)"[^>]*>[^<]*</span>.*?)</p>`)
)

func (rw *Rewriter) cleanResidualMarkup(data string) string {
	for _, r := range simpleRules {
		data = r.re.ReplaceAllString(data, r.out)
	}
	data = strings.ReplaceAll(data, "@@SIZEHUGE", "")
	data = strings.ReplaceAll(data, "@@SIZESMALL", "")
	data = sizeHugeCharRE.ReplaceAllString(data, `<span class="size-huge">${1}</span>`)
	data = sizeSmallRunRE.ReplaceAllString(data, `<span class="size-small">${1}</span>`)

	// Inside already-rendered screen blocks the escaped dollars from
	// preprocessing must come back as literals.
	data = replaceSub(screenBlockRE, data, func(g []string) string {
		return g[1] + strings.ReplaceAll(g[2], `\$`, "$") + g[3]
	})

	data = replaceSub(screenshotRE, data, func(g []string) string {
		src := rw.probeImageExt(rw.dir, g[1])
		return `<div class="screenshotwrap"><img src="` + src +
			`" alt="" style="display:block;margin:0 auto;max-width:80%"></div>`
	})

	data = replaceSub(imgSrcRE, data, func(g []string) string {
		src := rw.probeImageExt(rw.imagesRoot, g[2])
		return g[1] + src + g[3]
	})

	data = rw.rewriteScreenEnvs(data)

	data = replaceSub(tcbVerbatimRE, data, func(g []string) string {
		return screenBlock(htmlEscape(g[1]))
	})
	data = replaceSub(tcbLstlistingRE, data, func(g []string) string {
		return screenBlock(htmlEscape(g[1]))
	})

	data = rw.rewriteInlineSpans(data)
	data = strings.ReplaceAll(data, `\ldots`, "…")
	data = rw.rewriteKeyMacros(data)

	// A merge can expose a new adjacent pair (the regexp scanner resumes
	// after each match), so run the merges to a fixpoint. A later pass over
	// the same page then finds nothing left to merge.
	for {
		merged := mergeLoneSpanRE.ReplaceAllString(data, `<p>${1} ${2}</p>`)
		merged = mergeEndSpanRE.ReplaceAllString(merged, `${1} ${2}</p>`)
		merged = mergePrevTextRE.ReplaceAllString(merged, `<p>${1} ${2}</p>`)
		if merged == data {
			break
		}
		data = merged
	}

	data = emGroupRE.ReplaceAllString(data, `<em>${1}</em>`)
	return data
}

// rewriteScreenEnvs converts leaked screen environments to rendered code
// blocks: paragraph-wrapped occurrences keep their body verbatim, stray
// occurrences anywhere else get HTML-escaped.
func (rw *Rewriter) rewriteScreenEnvs(data string) string {
	for _, env := range screenEnvNames {
		paraRE := regexp.MustCompile(
			`(?s)<p>\s*\\begin\{` + env + `\}\s*(.*?)\\end\{` + env + `\}\s*</p>`)
		data = replaceSub(paraRE, data, func(g []string) string {
			return screenBlock(g[1])
		})
	}
	for _, env := range screenEnvNames {
		strayRE := regexp.MustCompile(
			`(?s)\\begin\{` + env + `\}\s*(.*?)\\end\{` + env + `\}`)
		data = replaceSub(strayRE, data, func(g []string) string {
			return screenBlock(htmlEscape(strings.Trim(g[1], "\n")))
		})
	}
	return data
}

func (rw *Rewriter) rewriteInlineSpans(data string) string {
	span := func(class string) func([]string) string {
		return func(g []string) string {
			return `<span class="` + class + `">` + latexUnescape(g[1]) + `</span>`
		}
	}
	data = replaceSub(screentextwideRE, data, span("screentextwide"))
	data = replaceSub(stwBraceRE, data, span("screentextwide"))
	data = replaceSub(stwParenRE, data, span("screentextwide"))
	data = replaceSub(screentextRE, data, span("screentext"))
	return replaceSub(symbolfontRE, data, span("symbolfont"))
}

// rewriteKeyMacros renders leaked keyboard-key macros. A specialkey body
// splits on a literal \\ into top and bottom legend.
func (rw *Rewriter) rewriteKeyMacros(data string) string {
	data = replaceSub(specialkeyRE, data, func(g []string) string {
		body := strings.ReplaceAll(g[1], `\$`, "$")
		top, bot, _ := strings.Cut(body, `\\`)
		return `<span class="key specialkey"><span class="k-top">` + top +
			`</span><span class="k-bot">` + bot + `</span></span>`
	})
	simple := func(class string) func([]string) string {
		return func(g []string) string {
			return `<span class="key ` + class + `">` + strings.ReplaceAll(g[1], `\$`, "$") + `</span>`
		}
	}
	data = replaceSub(megakeyRE, data, simple("megakey"))
	data = replaceSub(megakeywhiteRE, data, simple("megakeywhite"))
	return replaceSub(widekeyRE, data, simple("widekey"))
}

func screenBlock(body string) string {
	return `<div class="screen"><pre><code>` + body + `</code></pre></div>`
}

func htmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}

func latexUnescape(s string) string {
	return latexEscapeRE.ReplaceAllString(s, "${1}")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
