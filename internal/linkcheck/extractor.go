// Package linkcheck verifies the internal link graph of a finished site:
// every href must resolve to an existing page, every fragment to an element
// id on the target page, and every asset reference to an existing file. The
// check is fully offline; external URLs are reported but never fetched.
package linkcheck

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	pkgerrors "git.home.luguber.info/inful/texweb/internal/errors"
)

// Link is one extracted reference from an HTML page.
type Link struct {
	URL        string // The URL or path as written in the page
	Text       string // Link text or alt text
	Tag        string // HTML tag (a, img, script, link)
	Attribute  string // Attribute containing the link (href, src)
	IsInternal bool   // True if the link stays inside the site
}

// ExtractLinks extracts all links from an HTML file.
func ExtractLinks(htmlPath string) ([]Link, error) {
	file, err := os.Open(filepath.Clean(htmlPath))
	if err != nil {
		return nil, pkgerrors.WrapError(err, pkgerrors.CategoryFileSystem, "open page for link check")
	}
	defer func() {
		_ = file.Close()
	}()
	return ExtractLinksFromReader(file)
}

// ExtractLinksFromReader extracts all links from an HTML reader.
func ExtractLinksFromReader(r io.Reader) ([]Link, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, pkgerrors.WrapError(err, pkgerrors.CategoryHTML, "parse page for link check")
	}

	var links []Link
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode {
			extractElementLinks(n, &links)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(doc)
	return links, nil
}

func extractElementLinks(n *html.Node, links *[]Link) {
	switch n.Data {
	case "a":
		if href := getAttr(n, "href"); href != "" {
			*links = append(*links, Link{
				URL:        href,
				Text:       extractText(n),
				Tag:        "a",
				Attribute:  "href",
				IsInternal: isInternalLink(href),
			})
		}
	case "img":
		if src := getAttr(n, "src"); src != "" {
			*links = append(*links, Link{
				URL:        src,
				Text:       getAttr(n, "alt"),
				Tag:        "img",
				Attribute:  "src",
				IsInternal: isInternalLink(src),
			})
		}
	case "script":
		if src := getAttr(n, "src"); src != "" {
			*links = append(*links, Link{
				URL:        src,
				Tag:        "script",
				Attribute:  "src",
				IsInternal: isInternalLink(src),
			})
		}
	case "link":
		if href := getAttr(n, "href"); href != "" {
			*links = append(*links, Link{
				URL:        href,
				Text:       getAttr(n, "rel"),
				Tag:        "link",
				Attribute:  "href",
				IsInternal: isInternalLink(href),
			})
		}
	}
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func extractText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// isInternalLink reports whether the URL points inside the generated site.
// Scheme-qualified and protocol-relative URLs are external; everything else
// (relative paths, bare fragments) is internal.
func isInternalLink(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return true
	}
	if strings.HasPrefix(raw, "//") {
		return false
	}
	for _, scheme := range []string{"http:", "https:", "mailto:", "tel:", "ftp:", "data:"} {
		if strings.HasPrefix(strings.ToLower(raw), scheme) {
			return false
		}
	}
	return true
}
