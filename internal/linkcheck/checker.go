package linkcheck

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/texweb/internal/htmlpost"
)

// Issue is one broken internal reference.
type Issue struct {
	Page   string // page the link was found on
	URL    string // the link as written
	Tag    string // originating element
	Reason string // why the link is considered broken
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: <%s> %q: %s", i.Page, i.Tag, i.URL, i.Reason)
}

// Checker verifies internal links across one site directory.
type Checker struct {
	dir string
	log *slog.Logger
	ids map[string]map[string]bool // page -> element ids, loaded lazily
}

// New wires a Checker for the given site directory.
func New(dir string, log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{dir: dir, log: log, ids: make(map[string]map[string]bool)}
}

// Check extracts and verifies the internal links of every page. External
// URLs are counted but not fetched. The returned issues follow page order.
func (c *Checker) Check() ([]Issue, error) {
	pages, err := htmlpost.SortedPages(c.dir)
	if err != nil {
		return nil, err
	}
	var issues []Issue
	checked := 0
	for _, page := range pages {
		links, err := ExtractLinks(filepath.Join(c.dir, page))
		if err != nil {
			issues = append(issues, Issue{Page: page, Reason: err.Error()})
			continue
		}
		for _, link := range links {
			if !link.IsInternal {
				continue
			}
			checked++
			if issue, ok := c.checkLink(page, link); ok {
				issues = append(issues, issue)
			}
		}
	}
	c.log.Info("link check finished", "pages", len(pages), "links", checked, "broken", len(issues))
	return issues, nil
}

// checkLink verifies one internal link relative to the page it appears on.
func (c *Checker) checkLink(page string, link Link) (Issue, bool) {
	raw := link.URL
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	target, frag, _ := strings.Cut(raw, "#")
	if t, err := url.PathUnescape(target); err == nil {
		target = t
	}

	if target == "" {
		// Bare fragment: resolve against the current page.
		if frag != "" && !c.pageHasID(page, frag) {
			return Issue{Page: page, URL: link.URL, Tag: link.Tag,
				Reason: fmt.Sprintf("no element with id %q on page", frag)}, true
		}
		return Issue{}, false
	}

	path := filepath.Join(c.dir, filepath.FromSlash(target))
	info, err := os.Stat(path)
	if err != nil {
		return Issue{Page: page, URL: link.URL, Tag: link.Tag, Reason: "target does not exist"}, true
	}
	if frag != "" && !info.IsDir() && strings.HasSuffix(target, ".html") {
		if !c.pageHasID(filepath.ToSlash(target), frag) {
			return Issue{Page: page, URL: link.URL, Tag: link.Tag,
				Reason: fmt.Sprintf("no element with id %q on target page", frag)}, true
		}
	}
	return Issue{}, false
}

// pageHasID reports whether the page defines the element id, loading and
// caching the page's id set on first use.
func (c *Checker) pageHasID(page, id string) bool {
	ids, ok := c.ids[page]
	if !ok {
		ids = loadIDs(filepath.Join(c.dir, filepath.FromSlash(page)))
		c.ids[page] = ids
	}
	return ids[id]
}

func loadIDs(path string) map[string]bool {
	ids := make(map[string]bool)
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return ids
	}
	defer func() {
		_ = file.Close()
	}()
	doc, err := html.Parse(file)
	if err != nil {
		return ids
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "id" || (n.Data == "a" && a.Key == "name") {
					ids[a.Val] = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return ids
}
