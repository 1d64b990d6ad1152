package htmlpost

import (
	"os"
	"regexp"
	"strings"
)

// Landing-page enrichment: the one designated page additionally receives the
// front cover image, the contributor roster, and the source-version block.
// Every input here is auxiliary data: a missing or malformed file simply
// omits its section.

var (
	minipageRE   = regexp.MustCompile(`(?s)\\begin\{minipage\}\{[^}]*\}(.*?)\\end\{minipage\}`)
	rosterNameRE = regexp.MustCompile(`\{\\large\\bf\s+([^}]+)\}`)
	rosterNickRE = regexp.MustCompile(`\\textit\{\(([^)]+)\)\}`)
	lineBreakRE  = regexp.MustCompile(`\\\\$`)

	commitRE = regexp.MustCompile(`(?i)commit\s+([0-9a-f]{7,40})`)
	dateRE   = regexp.MustCompile(`(?i)date:\s*([^\n\\]+)`)

	navCloseRE = regexp.MustCompile(`(?i)</nav>`)
	h1CloseRE  = regexp.MustCompile(`(?i)</h1>`)
)

const (
	coverMarker  = `class="frontcover"`
	extrasMarker = `class="landing-extras"`
)

// EnrichLanding injects the cover, roster, and version sections into the
// landing page. Already-enriched pages come back unchanged.
func (rw *Rewriter) EnrichLanding(data, coverImage, rosterFile, gitInfoFile string) string {
	if strings.Contains(data, coverMarker) || strings.Contains(data, extrasMarker) {
		return data
	}

	cover := ""
	if coverImage != "" {
		cover = `<div class="frontcover" style="text-align:center;margin:1rem 0;">` +
			`<img src="` + coverImage + `" alt="Front cover" ` +
			`style="max-width:100%;height:auto;border-radius:6px;box-shadow:0 2px 8px rgba(0,0,0,.2)"></div>`
		if loc := navCloseRE.FindStringIndex(data); loc != nil {
			data = data[:loc[1]] + "\n" + cover + data[loc[1]:]
		} else if loc := bodyOpenRE.FindStringIndex(data); loc != nil {
			data = data[:loc[1]] + "\n" + cover + data[loc[1]:]
		}
	}

	sections := renderRoster(rosterFile) + renderGitInfo(gitInfoFile)
	if sections == "" {
		return data
	}
	sections = `<div class="landing-extras">` + "\n" + sections + "</div>\n"
	if loc := h1CloseRE.FindStringIndex(data); loc != nil {
		return data[:loc[1]] + "\n" + sections + data[loc[1]:]
	}
	if cover != "" {
		return strings.Replace(data, cover, cover+sections, 1)
	}
	return data
}

// renderRoster parses the contributor roster: each minipage block holds one
// contributor with a bolded name, an optional parenthesized nickname, and
// role lines.
func renderRoster(path string) string {
	if path == "" {
		return ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	type entry struct {
		name, nick string
		roles      []string
	}
	var entries []entry
	for _, m := range minipageRE.FindAllStringSubmatch(string(raw), -1) {
		block := m[1]
		var e entry
		if nm := rosterNameRE.FindStringSubmatch(block); nm != nil {
			e.name = strings.TrimSpace(nm[1])
		}
		if nk := rosterNickRE.FindStringSubmatch(block); nk != nil {
			e.nick = strings.TrimSpace(nk[1])
		}
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, `{\large`) || strings.HasPrefix(line, `\textit`) {
				continue
			}
			line = strings.TrimSpace(lineBreakRE.ReplaceAllString(line, ""))
			if line != "" {
				e.roles = append(e.roles, line)
			}
		}
		if e.name != "" || len(e.roles) > 0 {
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("<h2>Contributors</h2>\n<ul class=\"team\">\n")
	for _, e := range entries {
		b.WriteString("<li><strong>" + e.name + "</strong>")
		if e.nick != "" {
			b.WriteString(" <em>(" + e.nick + ")</em>")
		}
		if len(e.roles) > 0 {
			b.WriteString(`<div class="roles">` + strings.Join(e.roles, "; ") + `</div>`)
		}
		b.WriteString("</li>\n")
	}
	b.WriteString("</ul>\n")
	return b.String()
}

// renderGitInfo extracts the commit hash and date from the version
// descriptor and renders them as a screen block under an edition heading.
func renderGitInfo(path string) string {
	if path == "" {
		return ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	commit := commitRE.FindStringSubmatch(string(raw))
	date := dateRE.FindStringSubmatch(string(raw))
	if commit == nil || date == nil {
		return ""
	}
	return "<h2>About This Edition</h2>\n" +
		screenBlock("commit "+commit[1]+"\ndate: "+strings.TrimSpace(date[1])) + "\n"
}
