package htmlpost

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	vrefRE     = regexp.MustCompile(`\\vref\{([^}]+)\}`)
	bookvrefRE = regexp.MustCompile(`\\bookvref\{([^}]+)\}`)

	fboxImgRE    = regexp.MustCompile(`\\fbox\{\s*\\includegraphics(?:\[([^\]]*)\])?\{([^}]+)\}\s*\}`)
	linewidthRE  = regexp.MustCompile(`width\s*=\s*([0-9.]+)\\linewidth`)
	embedPdfRE   = regexp.MustCompile(`(?i)<embed([^>]*)\ssrc="([^"]+\.pdf)"([^>]*?)\s*/?>(?:\s*</embed>)?`)
	widthAttrRE  = regexp.MustCompile(`\bwidth="([^"]+)"`)
	localancRE   = regexp.MustCompile(`(?is)<a([^>]*)\shref="#([^"]+)"([^>]*)>(.*?)</a>`)
	chapterTail  = regexp.MustCompile(`(?s)\n\\chapter\{[^}]+\}.*$`)
	hasFileExtRE = regexp.MustCompile(`\.[A-Za-z0-9]{3,4}$`)
)

// Rewriter applies the per-page reference and markup reconciliation passes.
// One Rewriter serves the whole run; it only reads shared state.
type Rewriter struct {
	index        IDIndex
	placeholders []string
	raster       *Rasterizer
	imagesRoot   string
	imageExts    []string
	dir          string
	log          *slog.Logger
}

// NewRewriter builds a Rewriter over an immutable identifier index.
func NewRewriter(dir string, index IDIndex, placeholders []string, imagesRoot string, imageExts []string, raster *Rasterizer, log *slog.Logger) *Rewriter {
	if log == nil {
		log = slog.Default()
	}
	return &Rewriter{
		index:        index,
		placeholders: placeholders,
		raster:       raster,
		imagesRoot:   imagesRoot,
		imageExts:    imageExts,
		dir:          dir,
		log:          log,
	}
}

// RewritePage runs every reconciliation pass over one page's content.
func (rw *Rewriter) RewritePage(page, data string) string {
	data = rw.resolveRefMacros(data)
	data = rw.rewriteFboxImages(data)
	data = rw.rewriteEmbeds(data)
	data = rw.promoteLocalAnchors(page, data)
	data = rw.cleanResidualMarkup(data)
	data = chapterTail.ReplaceAllString(data, "\n")
	return data
}

// resolveRefMacros turns literal \vref{id} and \bookvref{id} occurrences
// into links. A resolvable id links to its owning page with the heading text
// as anchor text; an unknown id degrades to a same-page anchor showing the
// raw id.
func (rw *Rewriter) resolveRefMacros(data string) string {
	repl := func(label string) string {
		if t, ok := rw.index[label]; ok {
			return fmt.Sprintf(`<a href="%s#%s">%s</a>`, t.File, label, t.Label)
		}
		return fmt.Sprintf(`<a href="#%s">%s</a>`, label, label)
	}
	data = replaceSub(vrefRE, data, func(g []string) string { return repl(g[1]) })
	return replaceSub(bookvrefRE, data, func(g []string) string { return repl(g[1]) })
}

// rewriteFboxImages converts leaked \fbox{\includegraphics[..]{src}} to a
// plain img tag, translating a width=X\linewidth option into a percentage
// style.
func (rw *Rewriter) rewriteFboxImages(data string) string {
	return replaceSub(fboxImgRE, data, func(g []string) string {
		style := ""
		if m := linewidthRE.FindStringSubmatch(g[1]); m != nil {
			var frac float64
			if _, err := fmt.Sscanf(m[1], "%g", &frac); err == nil {
				style = fmt.Sprintf(` style="width:%.0f%%;"`, frac*100)
			}
		}
		return fmt.Sprintf(`<img src="%s" alt=""%s>`, g[2], style)
	})
}

// rewriteEmbeds replaces embedded PDF objects with rasterized PNG images.
// The PNG lives next to the PDF and is cached across runs. When both
// rasterizer tools fail, the original embed stays.
func (rw *Rewriter) rewriteEmbeds(data string) string {
	return replaceSub(embedPdfRE, data, func(g []string) string {
		pdfRel := g[2]
		pngRel := strings.TrimSuffix(pdfRel, ".pdf") + ".png"
		pdfPath := filepath.Join(rw.dir, pdfRel)
		pngPath := filepath.Join(rw.dir, pngRel)
		if err := rw.raster.Rasterize(pdfPath, pngPath); err != nil {
			rw.log.Warn("rasterization failed, keeping embed", "pdf", pdfRel, "error", err)
			return g[0]
		}
		widthAttr := ""
		if w := widthAttrRE.FindStringSubmatch(g[1] + g[3]); w != nil {
			widthAttr = fmt.Sprintf(` width="%s"`, w[1])
		}
		return fmt.Sprintf(`<img src="%s" alt=""%s>`, pngRel, widthAttr)
	})
}

// promoteLocalAnchors retargets same-page anchors whose identifier actually
// lives on another page. The anchor text is replaced by the indexed heading
// label only when it is a placeholder: the raw identifier itself or text
// starting with one of the configured placeholder prefixes. Anything else is
// author-chosen text and stays.
func (rw *Rewriter) promoteLocalAnchors(page, data string) string {
	return replaceSub(localancRE, data, func(g []string) string {
		label := g[2]
		target, ok := rw.index[label]
		if !ok || target.File == page {
			return g[0]
		}
		display := g[4]
		if rw.isPlaceholderText(StripTags(g[4]), label) {
			display = target.Label
		}
		return fmt.Sprintf(`<a%s href="%s#%s"%s>%s</a>`, g[1], target.File, label, g[3], display)
	})
}

func (rw *Rewriter) isPlaceholderText(text, label string) bool {
	if text == label {
		return true
	}
	for _, prefix := range rw.placeholders {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

// probeImageExt returns src with the first extension under root that exists
// on disk, or src unchanged when nothing matches.
func (rw *Rewriter) probeImageExt(root, src string) string {
	if hasFileExtRE.MatchString(src) {
		return src
	}
	for _, ext := range rw.imageExts {
		if fileExists(filepath.Join(root, src+ext)) {
			return src + ext
		}
	}
	return src
}

// replaceSub is ReplaceAllStringFunc with access to submatch groups.
func replaceSub(re *regexp.Regexp, text string, repl func(groups []string) string) string {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return text
	}
	var b strings.Builder
	last := 0
	for _, idx := range matches {
		b.WriteString(text[last:idx[0]])
		groups := make([]string, 0, len(idx)/2)
		for g := 0; g < len(idx); g += 2 {
			if idx[g] < 0 {
				groups = append(groups, "")
			} else {
				groups = append(groups, text[idx[g]:idx[g+1]])
			}
		}
		b.WriteString(repl(groups))
		last = idx[1]
	}
	b.WriteString(text[last:])
	return b.String()
}
