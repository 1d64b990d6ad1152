package htmlpost

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// SearchIndexFile is the JSON artifact the client-side search loads.
const SearchIndexFile = "search-index.json"

// PageRecord is one page's entry in the search index.
type PageRecord struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Content  string `json:"content"`
	Headings string `json:"headings"`
	Filename string `json:"filename"`
}

// BuildSearchIndex extracts a PageRecord from every page in dir, in page
// order. A page that fails to parse is skipped, never fatal.
func BuildSearchIndex(dir string) ([]PageRecord, error) {
	pages, err := SortedPages(dir)
	if err != nil {
		return nil, err
	}
	records := make([]PageRecord, 0, len(pages))
	for _, page := range pages {
		data, err := os.ReadFile(filepath.Join(dir, page))
		if err != nil {
			continue
		}
		rec, err := extractPageRecord(page, data)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteSearchIndex serializes the records as one indented JSON array.
func WriteSearchIndex(dir string, records []PageRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal search index: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, SearchIndexFile), append(data, '\n'), 0644)
}

func extractPageRecord(page string, data []byte) (PageRecord, error) {
	doc, err := html.Parse(strings.NewReader(string(data)))
	if err != nil {
		return PageRecord{}, err
	}
	stem := strings.TrimSuffix(page, filepath.Ext(page))

	title := textOf(findElement(doc, func(n *html.Node) bool { return n.Data == "title" }))
	title = strings.TrimSpace(title)
	if title == "" {
		title = stem
	}

	// Prefer the wrapped main content; fall back to the whole body with
	// navigation chrome excluded (first runs happen before the sidebar
	// wrapper exists).
	var content string
	var headings []string
	if main := findElement(doc, func(n *html.Node) bool {
		return n.Data == "div" && hasClass(n, "main-content")
	}); main != nil {
		content = flattenText(main, func(n *html.Node) bool {
			return n.Data == "script" || n.Data == "style" || n.Data == "nav" || n.Data == "aside"
		})
		headings = collectHeadings(main)
	} else if body := findElement(doc, func(n *html.Node) bool { return n.Data == "body" }); body != nil {
		content = flattenText(body, func(n *html.Node) bool {
			return n.Data == "script" || n.Data == "style" || n.Data == "nav" || n.Data == "aside"
		})
		headings = collectHeadings(doc)
	} else {
		content = flattenText(doc, nil)
		headings = collectHeadings(doc)
	}

	return PageRecord{
		Title:    title,
		URL:      page,
		Content:  cleanSearchText(content),
		Headings: cleanSearchText(strings.Join(headings, " ")),
		Filename: stem,
	}, nil
}

var headingTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

func collectHeadings(root *html.Node) []string {
	var out []string
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && headingTags[n.Data] {
			if t := strings.TrimSpace(flattenText(n, nil)); t != "" {
				out = append(out, t)
			}
			return false
		}
		return true
	})
	return out
}

// Residual LaTeX markup the converter left in text nodes, stripped in order:
// commands with a balanced one-deep brace argument, bare commands, escaped
// single characters, leftover brace and bracket groups.
var latexStripREs = []*regexp.Regexp{
	regexp.MustCompile(`\\[a-zA-Z]+\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`),
	regexp.MustCompile(`\\[a-zA-Z]+`),
	regexp.MustCompile(`\\[^a-zA-Z\s]`),
	regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`),
	regexp.MustCompile(`\[[^\[\]]*(?:\[[^\[\]]*\][^\[\]]*)*\]`),
}

var spaceRunRE = regexp.MustCompile(`\s+`)

func cleanSearchText(s string) string {
	for _, re := range latexStripREs {
		s = re.ReplaceAllString(s, "")
	}
	s = spaceRunRE.ReplaceAllString(s, " ")
	return norm.NFC.String(strings.TrimSpace(s))
}

// walk visits nodes depth-first; visit returning false prunes the subtree.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func findElement(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// textOf flattens the text content of one node, nil-safe for absent elements.
func textOf(n *html.Node) string {
	return flattenText(n, nil)
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

// flattenText concatenates the text nodes under root, space-separated,
// pruning subtrees for which skip returns true.
func flattenText(root *html.Node, skip func(*html.Node) bool) string {
	if root == nil {
		return ""
	}
	var b strings.Builder
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && skip != nil && skip(n) {
			return false
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		return true
	})
	return b.String()
}
