package htmlpost

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texweb/internal/config"
)

func writePage(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func readPage(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func page(title, body string) string {
	return "<html><head><title>" + title + "</title></head><body>" + body + "</body></html>"
}

func testRewriter(index IDIndex, dir string) *Rewriter {
	return NewRewriter(dir, index, []string{"sec:", "cha:"}, dir,
		[]string{".png", ".jpg", ".jpeg", ".svg"}, NewRasterizer(config.RasterConfig{}, nil), nil)
}

func TestRenameColonFiles(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "cha:intro.html", "x")
	writePage(t, dir, "plain.html", "y")

	renames, err := RenameColonFiles(dir)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"cha:intro.html": "cha_intro.html"}, renames)
	require.FileExists(t, filepath.Join(dir, "cha_intro.html"))
	require.NoFileExists(t, filepath.Join(dir, "cha:intro.html"))
}

func TestUpdateLinks(t *testing.T) {
	renames := map[string]string{"a:b.html": "a_b.html"}
	in := `<a href="a:b.html">x</a> <a href="sub/a:b.html">y</a> <a href="other.html">z</a>`
	got := UpdateLinks(in, renames)
	require.Contains(t, got, `href="a_b.html"`)
	require.Contains(t, got, `href="sub/a_b.html"`)
	require.Contains(t, got, `href="other.html"`)
	require.NotContains(t, got, "a:b.html")
}

func TestBuildIDIndex_HeadingsAndInheritance(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "a.html", page("A",
		`<h1 id="cha:one">Chapter <em>One</em></h1><p id="para1">text</p>`))
	writePage(t, dir, "b.html", page("B",
		`<div id="orphan">no heading before</div><h2 id="sec:two">Section Two</h2>`))

	index, err := BuildIDIndex(dir)
	require.NoError(t, err)

	require.Equal(t, Target{File: "a.html", Label: "Chapter One"}, index["cha:one"])
	// Non-heading ids inherit the nearest preceding heading's text.
	require.Equal(t, Target{File: "a.html", Label: "Chapter One"}, index["para1"])
	require.Equal(t, Target{File: "b.html", Label: "Section Two"}, index["sec:two"])
	// No preceding heading: the raw id is the label.
	require.Equal(t, Target{File: "b.html", Label: "orphan"}, index["orphan"])
}

func TestResolveRefMacros(t *testing.T) {
	index := IDIndex{"sec:sprites": {File: "3-graphics.html", Label: "Sprites"}}
	rw := testRewriter(index, t.TempDir())

	got := rw.RewritePage("1-intro.html", `<p>See \vref{sec:sprites} and \bookvref{sec:missing}.</p>`)
	require.Contains(t, got, `<a href="3-graphics.html#sec:sprites">Sprites</a>`)
	// Unresolvable identifiers degrade to a same-page anchor.
	require.Contains(t, got, `<a href="#sec:missing">sec:missing</a>`)
}

func TestPromoteLocalAnchors(t *testing.T) {
	index := IDIndex{
		"sec:far":  {File: "far.html", Label: "Far Away"},
		"sec:here": {File: "this.html", Label: "Right Here"},
	}
	rw := testRewriter(index, t.TempDir())

	in := `<a href="#sec:far">sec:far</a>` +
		`<a href="#sec:far">Custom Text</a>` +
		`<a href="#sec:here">sec:here</a>` +
		`<a href="#sec:unknown">x</a>`
	got := rw.RewritePage("this.html", in)

	// Placeholder text is replaced by the heading label.
	require.Contains(t, got, `<a href="far.html#sec:far">Far Away</a>`)
	// Author-chosen text survives the retarget.
	require.Contains(t, got, `<a href="far.html#sec:far">Custom Text</a>`)
	// Same-page targets stay local.
	require.Contains(t, got, `<a href="#sec:here">sec:here</a>`)
	// Unknown targets are untouched.
	require.Contains(t, got, `<a href="#sec:unknown">x</a>`)
}

func TestRewriteFboxImages(t *testing.T) {
	rw := testRewriter(IDIndex{}, t.TempDir())
	got := rw.RewritePage("p.html", `\fbox{\includegraphics[width=0.8\linewidth]{images/board.png}}`)
	require.Contains(t, got, `<img src="images/board.png" alt="" style="width:80%;">`)

	got = rw.RewritePage("p.html", `\fbox{\includegraphics{images/plain.png}}`)
	require.Contains(t, got, `<img src="images/plain.png" alt="">`)
}

func TestRewriteEmbeds_CachedPNG(t *testing.T) {
	dir := t.TempDir()
	// Pre-existing PNG means no external tool runs and the embed converts.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "circuit.png"), []byte("png"), 0644))
	rw := testRewriter(IDIndex{}, dir)

	got := rw.RewritePage("p.html", `<embed width="500" src="circuit.pdf" />`)
	require.Contains(t, got, `<img src="circuit.png" alt="" width="500">`)
}

func TestRewriteEmbeds_FailureKeepsEmbed(t *testing.T) {
	rw := testRewriter(IDIndex{}, t.TempDir())
	in := `<embed src="missing.pdf" />`
	got := rw.RewritePage("p.html", in)
	require.Contains(t, got, "<embed")
	require.Contains(t, got, "missing.pdf")
}

func TestResidualCleanup(t *testing.T) {
	rw := testRewriter(IDIndex{}, t.TempDir())

	cases := map[string]string{
		`a $\cdots$ b \cdots c`:         "a ⋯ b ⋯ c",
		`MEGA65\textregistered{} rocks`: "MEGA65<sup>®</sup> rocks",
		`C64\texttrademark`:             "C64<sup>™</sup>",
		`one\newline two`:               "one<br />two",
		`keep\newpage this`:             "keepthis",
		`x\vspace{2em} y`:               "xy",
		`@@SIZEHUGE{BIG}`:               `<span class="size-huge">BIG</span>`,
		`\huge 0`:                       `<span class="size-huge">0</span>`,
		`\small 128`:                    `<span class="size-small">128</span>`,
		`\ldots`:                        "…",
		`{\em emphasized words}`:        "<em>emphasized words</em>",
	}
	for in, want := range cases {
		require.Equal(t, want, rw.RewritePage("p.html", in), "input %q", in)
	}
}

func TestResidualScreenEnvs(t *testing.T) {
	rw := testRewriter(IDIndex{}, t.TempDir())

	got := rw.RewritePage("p.html",
		"<p>\\begin{screencode}\nPRINT \\$0400\n\\end{screencode}</p>")
	require.Contains(t, got, `<div class="screen"><pre><code>`)
	// Dollars escaped during preprocessing come back literal inside screens.
	require.Contains(t, got, "PRINT $0400")

	got = rw.RewritePage("p.html", "text \\begin{basiccode}\n10 GOTO <20>\n\\end{basiccode} more")
	require.Contains(t, got, "10 GOTO &lt;20&gt;")
}

func TestResidualKeyMacros(t *testing.T) {
	rw := testRewriter(IDIndex{}, t.TempDir())

	got := rw.RewritePage("p.html", `\specialkey{CLR\\HOME}`)
	require.Contains(t, got, `<span class="key specialkey"><span class="k-top">CLR</span><span class="k-bot">HOME</span></span>`)

	got = rw.RewritePage("p.html", `\megakey{A} \widekey{RETURN}`)
	require.Contains(t, got, `<span class="key megakey">A</span>`)
	require.Contains(t, got, `<span class="key widekey">RETURN</span>`)
}

func TestResidualParagraphMergesConverge(t *testing.T) {
	rw := testRewriter(IDIndex{}, t.TempDir())

	in := `<p>Type the command below.</p>
<p><span class="screentext">RUN</span> starts the program.</p>
<p><span class="screentext">LIST</span> shows the listing.</p>`

	once := rw.RewritePage("p.html", in)
	// Consecutive span-led paragraphs all fold into the leading sentence.
	require.Equal(t, 1, strings.Count(once, "<p>"))
	require.Contains(t, once,
		`Type the command below. <span class="screentext">RUN</span> starts the program. <span class="screentext">LIST</span> shows the listing.`)

	// Nothing is left to merge on a later pass over the same page.
	twice := rw.RewritePage("p.html", once)
	require.Equal(t, once, twice)
}

func TestChapterTailDropped(t *testing.T) {
	rw := testRewriter(IDIndex{}, t.TempDir())
	got := rw.RewritePage("p.html", "<p>real content</p>\n\\chapter{Leaked}\nspill over")
	require.Contains(t, got, "real content")
	require.NotContains(t, got, "Leaked")
	require.NotContains(t, got, "spill over")
}

func TestExtractTOCAndInjectSidebar(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "index.html", page("Home",
		`<nav id="TOC" role="doc-toc"><ul><li><a href="2-basics.html">Basics</a></li></ul></nav>`))

	toc := ExtractTOC(dir, "index.html")
	require.Contains(t, toc, `href="2-basics.html"`)

	data := page("Basics", "<h1>Basics</h1>")
	injected := InjectSidebar(data, toc, "2-basics.html")
	require.Contains(t, injected, `<div class="sidebar">`)
	require.Contains(t, injected, `id="searchInput"`)
	require.Contains(t, injected, `<div class="main-content">`)
	require.Contains(t, injected, `</div></body>`)
	// Current page link is marked active.
	require.Contains(t, injected, `href="2-basics.html" class="active"`)

	// A second injection is a no-op.
	require.Equal(t, injected, InjectSidebar(injected, toc, "2-basics.html"))
}

func TestInjectSearchScriptIdempotent(t *testing.T) {
	data := page("T", "<p>x</p>")
	once := InjectSearchScript(data)
	require.Contains(t, once, "fuse.basic.min.js")
	require.Contains(t, once, "search-index.json")
	require.Equal(t, once, InjectSearchScript(once))
}

func TestBuildSearchIndex(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "1-intro.html", page("Introduction",
		`<h1>Welcome</h1><p>Some \textbf{bold} content here.</p><script>ignored()</script>`))
	writePage(t, dir, "2-basics.html", "<html><head></head><body><h2>Basics</h2><p>More text.</p></body></html>")

	records, err := BuildSearchIndex(dir)
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, "Introduction", records[0].Title)
	require.Equal(t, "1-intro.html", records[0].URL)
	require.Equal(t, "1-intro", records[0].Filename)
	require.Contains(t, records[0].Content, "content here")
	require.NotContains(t, records[0].Content, "ignored")
	// Residual LaTeX commands are stripped from search text.
	require.NotContains(t, records[0].Content, `\textbf`)
	require.Contains(t, records[0].Headings, "Welcome")

	// Pages without a <title> fall back to the filename stem.
	require.Equal(t, "2-basics", records[1].Title)

	require.NoError(t, WriteSearchIndex(dir, records))
	raw := readPage(t, dir, SearchIndexFile)
	var decoded []PageRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	require.Len(t, decoded, 2)
}

func TestEnrichLanding(t *testing.T) {
	dir := t.TempDir()
	roster := filepath.Join(dir, "roster.tex")
	require.NoError(t, os.WriteFile(roster, []byte(
		"\\begin{minipage}{0.3\\textwidth}\n{\\large\\bf Jane Doe}\\\\\n\\textit{(jd)}\\\\\nLead Developer\\\\\n\\end{minipage}\n"), 0644))
	gitinfo := filepath.Join(dir, "gitinfo.tex")
	require.NoError(t, os.WriteFile(gitinfo, []byte(
		"\\begin{verbatim}\ncommit 0123abc456789\ndate: 2026-08-01\n\\end{verbatim}\n"), 0644))

	rw := testRewriter(IDIndex{}, dir)
	data := page("Home", `<nav id="TOC"></nav><h1>The Book</h1><p>intro</p>`)
	got := rw.EnrichLanding(data, "frontcover/cover.png", roster, gitinfo)

	require.Contains(t, got, `class="frontcover"`)
	require.Contains(t, got, `src="frontcover/cover.png"`)
	require.Contains(t, got, "<strong>Jane Doe</strong>")
	require.Contains(t, got, "<em>(jd)</em>")
	require.Contains(t, got, "Lead Developer")
	require.Contains(t, got, "commit 0123abc456789")
	require.Contains(t, got, "date: 2026-08-01")

	// The cover lands after the nav, the sections after the h1.
	require.Less(t, strings.Index(got, "</nav>"), strings.Index(got, coverMarker))
	require.Less(t, strings.Index(got, "</h1>"), strings.Index(got, "Jane Doe"))

	// Re-enrichment is a no-op.
	require.Equal(t, got, rw.EnrichLanding(got, "frontcover/cover.png", roster, gitinfo))
}

func TestEnrichLanding_MissingAuxOmitsSections(t *testing.T) {
	rw := testRewriter(IDIndex{}, t.TempDir())
	data := page("Home", "<h1>The Book</h1>")
	got := rw.EnrichLanding(data, "", "no-such-roster.tex", "no-such-gitinfo.tex")
	require.Equal(t, data, got)
}

func newTestProcessor(dir string) *Processor {
	post := config.PostConfig{
		TOCPage:             "index.html",
		LandingPage:         "index.html",
		PlaceholderPrefixes: []string{"sec:", "cha:"},
	}
	images := config.ImagesConfig{Root: dir, HTMLExtensions: []string{".png", ".jpg", ".jpeg", ".svg"}}
	return NewProcessor(dir, post, images, NewRasterizer(config.RasterConfig{}, nil), nil)
}

func TestProcessorRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "index.html", page("Home",
		`<nav id="TOC"><ul><li><a href="sec:deep.html">Deep</a></li></ul></nav><h1 id="top">Home</h1>`))
	writePage(t, dir, "sec:deep.html", page("Deep",
		`<h1 id="sec:deep">Deep Topic</h1><p>see \vref{top}</p>`))

	results, err := newTestProcessor(dir).Run()
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.True(t, r.IsOk())
	}

	// Colon file renamed and the TOC link updated before resolution.
	require.NoFileExists(t, filepath.Join(dir, "sec:deep.html"))
	deep := readPage(t, dir, "sec_deep.html")
	home := readPage(t, dir, "index.html")
	require.Contains(t, home, `href="sec_deep.html"`)

	// Cross-page reference resolved against the renamed page set.
	require.Contains(t, deep, `<a href="index.html#top">Home</a>`)

	// Sidebar and search script present everywhere.
	require.Contains(t, deep, `<div class="sidebar">`)
	require.Contains(t, home, "fuse.basic.min.js")
	require.FileExists(t, filepath.Join(dir, SearchIndexFile))
}

func TestProcessorRun_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "index.html", page("Home",
		`<nav id="TOC"><ul><li><a href="two.html">Two</a></li></ul></nav><h1 id="cha:home">Home</h1>`))
	writePage(t, dir, "two.html", page("Two",
		`<h1 id="cha:two">Second Chapter</h1><p>\vref{cha:home} and <a href="#cha:home">cha:home</a></p>`))

	_, err := newTestProcessor(dir).Run()
	require.NoError(t, err)
	first := map[string]string{
		"index.html": readPage(t, dir, "index.html"),
		"two.html":   readPage(t, dir, "two.html"),
		"search":     readPage(t, dir, SearchIndexFile),
	}

	_, err = newTestProcessor(dir).Run()
	require.NoError(t, err)
	require.Equal(t, first["index.html"], readPage(t, dir, "index.html"))
	require.Equal(t, first["two.html"], readPage(t, dir, "two.html"))
	require.Equal(t, first["search"], readPage(t, dir, SearchIndexFile))
}

func TestProcessorRun_NotADirectory(t *testing.T) {
	_, err := newTestProcessor(filepath.Join(t.TempDir(), "missing")).Run()
	require.Error(t, err)
}
