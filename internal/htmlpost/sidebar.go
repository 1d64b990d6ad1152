package htmlpost

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	tocNavRE   = regexp.MustCompile(`(?s)<nav id="TOC"[^>]*>(.*?)</nav>`)
	bodyOpenRE = regexp.MustCompile(`<body[^>]*>`)
	bodyEndRE  = regexp.MustCompile(`</body>`)
	headEndRE  = regexp.MustCompile(`</head>`)
)

// ExtractTOC reads the shared table-of-contents fragment from the designated
// page. An absent page or missing nav yields an empty fragment, which
// disables sidebar injection for the run.
func ExtractTOC(dir, tocPage string) string {
	data, err := os.ReadFile(filepath.Join(dir, tocPage))
	if err != nil {
		return ""
	}
	if m := tocNavRE.FindStringSubmatch(string(data)); m != nil {
		return m[1]
	}
	return ""
}

const sidebarMarker = `<div class="sidebar">`

// InjectSidebar inserts the sidebar (search box plus shared TOC) right after
// the body tag and wraps the rest of the page in a main-content div. The
// current page's TOC link is marked active. Pages already carrying a sidebar
// are returned unchanged so re-runs are stable.
func InjectSidebar(data, toc, currentFile string) string {
	if strings.Contains(data, sidebarMarker) {
		return data
	}
	loc := bodyOpenRE.FindStringIndex(data)
	if loc == nil {
		return data
	}

	sidebar := sidebarMarker + `
<div class="search-container">
<input type="text" id="searchInput" placeholder="Search documentation..." class="search-input">
<div id="searchResults" class="search-results"></div>
</div>
<nav id="TOC" role="doc-toc">
` + toc + `
</nav>
</div>
<div class="main-content">`

	out := data[:loc[1]] + sidebar + data[loc[1]:]
	out = bodyEndRE.ReplaceAllString(out, "</div></body>")
	return markActiveLink(out, currentFile)
}

// markActiveLink adds class="active" to TOC links pointing at the current
// page. Links that already carry the class are left alone.
func markActiveLink(data, currentFile string) string {
	if currentFile == "" || currentFile == "index.html" {
		return data
	}
	esc := regexp.QuoteMeta(currentFile)
	withClass := regexp.MustCompile(`(<a[^>]*href="` + esc + `"[^>]*class=")([^"]*)(")`)
	data = withClass.ReplaceAllStringFunc(data, func(m string) string {
		g := withClass.FindStringSubmatch(m)
		if strings.Contains(" "+g[2]+" ", " active ") {
			return m
		}
		return g[1] + g[2] + ` active` + g[3]
	})
	noClass := regexp.MustCompile(`(<a[^>]*href="` + esc + `"[^>]*)(>)`)
	return noClass.ReplaceAllStringFunc(data, func(m string) string {
		if strings.Contains(m, `class=`) {
			return m
		}
		g := noClass.FindStringSubmatch(m)
		return g[1] + ` class="active"` + g[2]
	})
}

const searchScriptMarker = "fuse.basic.min.js"

// InjectSearchScript adds the fuse.js loader and search handlers before the
// closing head tag. Already-injected pages are returned unchanged.
func InjectSearchScript(data string) string {
	if strings.Contains(data, searchScriptMarker) {
		return data
	}
	loc := headEndRE.FindStringIndex(data)
	if loc == nil {
		return data
	}
	return data[:loc[0]] + searchScript + data[loc[0]:]
}

// searchScript loads the search index lazily on first keystroke and renders
// fuzzy matches under the search box.
const searchScript = `<script src="https://cdn.jsdelivr.net/npm/fuse.js@6.6.2/dist/fuse.basic.min.js"></script>
<script>
let searchIndex = null;
let fuse = null;
let searchIndexLoaded = false;

document.addEventListener('DOMContentLoaded', function() {
    const searchInput = document.getElementById('searchInput');
    const searchResults = document.getElementById('searchResults');
    if (!searchInput || !searchResults) return;

    searchInput.addEventListener('input', function(e) {
        const query = e.target.value.trim();
        if (query.length < 2) {
            searchResults.innerHTML = '';
            searchResults.style.display = 'none';
            return;
        }
        if (!searchIndexLoaded) {
            loadSearchIndex().then(() => performSearch(query, searchResults));
        } else {
            performSearch(query, searchResults);
        }
    });

    document.addEventListener('click', function(e) {
        if (!searchInput.contains(e.target) && !searchResults.contains(e.target)) {
            searchResults.style.display = 'none';
        }
    });
});

async function loadSearchIndex() {
    if (searchIndexLoaded) return;
    try {
        const response = await fetch('search-index.json');
        if (!response.ok) throw new Error('Failed to load search index');
        searchIndex = await response.json();
        fuse = new Fuse(searchIndex, {
            keys: ['title', 'content', 'headings', 'filename'],
            threshold: 0.4,
            includeScore: true,
            includeMatches: true,
            minMatchCharLength: 2,
            findAllMatches: true,
            distance: 10,
            ignoreLocation: true
        });
        searchIndexLoaded = true;
    } catch (error) {
        console.error('Error loading search index:', error);
        searchIndex = [];
        searchIndexLoaded = true;
    }
}

function performSearch(query, container) {
    if (!fuse) {
        container.innerHTML = '<div class="search-error">Search index not available</div>';
        container.style.display = 'block';
        return;
    }
    displaySearchResults(fuse.search(query), container);
}

function displaySearchResults(results, container) {
    if (results.length === 0) {
        container.innerHTML = '<div class="search-no-results">No results found</div>';
        container.style.display = 'block';
        return;
    }
    let html = '<div class="search-results-list">';
    results.slice(0, 10).forEach(result => {
        const item = result.item;
        html += '<div class="search-result-item" onclick="window.location.href=\'' + item.url + '\'">' +
            '<div class="search-result-title">' + item.title + '</div>' +
            '<div class="search-result-content">' + item.content.substring(0, 200) + '...</div>' +
            '<div class="search-result-url">' + item.filename + '</div>' +
            '</div>';
    });
    html += '</div>';
    container.innerHTML = html;
    container.style.display = 'block';
}
</script>
`
