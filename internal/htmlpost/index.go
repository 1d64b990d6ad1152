package htmlpost

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Target is where an identifier lives: its owning page and the human-readable
// label shown for links to it.
type Target struct {
	File  string
	Label string
}

// IDIndex maps every element identifier in the output to its target. It is
// built once per run and read-only afterwards, so per-file rewriting could be
// parallelized over it without locking.
type IDIndex map[string]Target

var (
	// One pattern per heading level; the close tag must match the open
	// level so h2 content does not swallow a following h3.
	headingIDREs = buildHeadingREs()

	anyIDRE = regexp.MustCompile(`<[a-zA-Z0-9]+[^>]*\sid="([^"]+)"[^>]*>`)
	tagRE   = regexp.MustCompile(`<[^>]+>`)
)

func buildHeadingREs() []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, 6)
	for lvl := 1; lvl <= 6; lvl++ {
		res = append(res, regexp.MustCompile(
			fmt.Sprintf(`(?is)<h%d[^>]*id="([^"]+)"[^>]*>(.*?)</h%d>`, lvl, lvl)))
	}
	return res
}

// StripTags removes markup and trims, leaving plain text.
func StripTags(s string) string {
	return strings.TrimSpace(tagRE.ReplaceAllString(s, ""))
}

// BuildIDIndex scans every page in dir. Headings with ids map to their own
// stripped text; any other id-bearing element inherits the text of the
// nearest preceding heading on its page, falling back to the raw id. Pages
// are visited in sorted order so the first-writer-wins behavior on duplicate
// ids is deterministic.
func BuildIDIndex(dir string) (IDIndex, error) {
	pages, err := SortedPages(dir)
	if err != nil {
		return nil, err
	}
	index := make(IDIndex)
	for _, page := range pages {
		data, err := os.ReadFile(filepath.Join(dir, page))
		if err != nil {
			continue
		}
		indexPage(index, page, string(data))
	}
	return index, nil
}

type headingPos struct {
	start int
	text  string
}

func indexPage(index IDIndex, page, data string) {
	var headings []headingPos
	for _, re := range headingIDREs {
		for _, m := range re.FindAllStringSubmatchIndex(data, -1) {
			id := data[m[2]:m[3]]
			text := StripTags(data[m[4]:m[5]])
			headings = append(headings, headingPos{start: m[0], text: text})
			if _, seen := index[id]; !seen {
				label := text
				if label == "" {
					label = id
				}
				index[id] = Target{File: page, Label: label}
			}
		}
	}
	sort.Slice(headings, func(i, j int) bool { return headings[i].start < headings[j].start })

	for _, m := range anyIDRE.FindAllStringSubmatchIndex(data, -1) {
		id := data[m[2]:m[3]]
		if _, seen := index[id]; seen {
			continue
		}
		label := id
		for i := len(headings) - 1; i >= 0; i-- {
			if headings[i].start <= m[0] {
				if headings[i].text != "" {
					label = headings[i].text
				}
				break
			}
		}
		index[id] = Target{File: page, Label: label}
	}
}

// SortedPages lists the .html files directly under dir in name order.
func SortedPages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}
	var pages []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".html") {
			pages = append(pages, e.Name())
		}
	}
	sort.Strings(pages)
	return pages, nil
}
