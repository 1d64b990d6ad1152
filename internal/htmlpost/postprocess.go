// Package htmlpost reconciles the converter's chunked HTML output: it
// resolves cross-document references against a global identifier index,
// rewrites embedded media, rebuilds navigation and search, and cleans up
// LaTeX markup that leaked through rendering. Everything after the initial
// directory check is best-effort per page.
package htmlpost

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/texweb/internal/config"
	pkgerrors "git.home.luguber.info/inful/texweb/internal/errors"
	"git.home.luguber.info/inful/texweb/internal/foundation"
)

// Processor runs the full postprocessing sequence over one output directory.
type Processor struct {
	dir    string
	post   config.PostConfig
	images config.ImagesConfig
	raster *Rasterizer
	log    *slog.Logger
}

// NewProcessor wires a Processor from config.
func NewProcessor(dir string, post config.PostConfig, images config.ImagesConfig, raster *Rasterizer, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{dir: dir, post: post, images: images, raster: raster, log: log}
}

// Run executes the passes in their required order. Renaming must complete
// before anything builds an index or resolves a link, so every later pass
// sees only final filenames. The per-page results report which pages were
// rewritten; a single page's failure never stops the batch.
func (p *Processor) Run() ([]foundation.Result[string, error], error) {
	info, err := os.Stat(p.dir)
	if err != nil || !info.IsDir() {
		return nil, pkgerrors.New(pkgerrors.CategoryInput, pkgerrors.SeverityFatal,
			fmt.Sprintf("not a directory: %s", p.dir))
	}

	renames, err := RenameColonFiles(p.dir)
	if err != nil {
		return nil, pkgerrors.WrapError(err, pkgerrors.CategoryFileSystem, "rename pass")
	}
	if len(renames) > 0 {
		p.log.Info("renamed pages with illegal filename characters", "count", len(renames))
		if err := p.rewriteAllLinks(renames); err != nil {
			return nil, err
		}
	}

	toc := ExtractTOC(p.dir, p.post.TOCPage)
	if toc == "" {
		p.log.Warn("no TOC fragment found, sidebar injection disabled", "page", p.post.TOCPage)
	}

	index, err := BuildIDIndex(p.dir)
	if err != nil {
		return nil, err
	}
	p.log.Debug("identifier index built", "ids", len(index))

	rewriter := NewRewriter(p.dir, index, p.post.PlaceholderPrefixes,
		p.images.Root, p.images.HTMLExtensions, p.raster, p.log)

	pages, err := SortedPages(p.dir)
	if err != nil {
		return nil, err
	}
	results := make([]foundation.Result[string, error], 0, len(pages))
	for _, page := range pages {
		results = append(results, p.processPage(rewriter, page, toc))
	}

	// The search index captures the final page content, after every
	// rewrite, so re-runs regenerate it byte-identically.
	records, err := BuildSearchIndex(p.dir)
	if err != nil {
		return nil, err
	}
	if err := WriteSearchIndex(p.dir, records); err != nil {
		return nil, pkgerrors.WrapError(err, pkgerrors.CategoryFileSystem, "write search index")
	}
	p.log.Info("search index written", "pages", len(records))

	return results, nil
}

func (p *Processor) processPage(rw *Rewriter, page, toc string) foundation.Result[string, error] {
	path := filepath.Join(p.dir, page)
	raw, err := os.ReadFile(path)
	if err != nil {
		return foundation.Err[string, error](
			pkgerrors.WrapError(err, pkgerrors.CategoryFileSystem, fmt.Sprintf("read %s", page)))
	}
	data := string(raw)
	original := data

	if toc != "" {
		data = InjectSidebar(data, toc, page)
	}
	data = InjectSearchScript(data)
	data = rw.RewritePage(page, data)
	if page == p.post.LandingPage {
		data = rw.EnrichLanding(data, p.post.CoverImage, p.post.RosterFile, p.post.GitInfoFile)
	}

	if data != original {
		if err := os.WriteFile(path, []byte(data), 0644); err != nil {
			return foundation.Err[string, error](
				pkgerrors.WrapError(err, pkgerrors.CategoryFileSystem, fmt.Sprintf("write %s", page)))
		}
	}
	return foundation.Ok[string, error](page)
}

func (p *Processor) rewriteAllLinks(renames map[string]string) error {
	pages, err := SortedPages(p.dir)
	if err != nil {
		return err
	}
	for _, page := range pages {
		path := filepath.Join(p.dir, page)
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		updated := UpdateLinks(string(raw), renames)
		if updated != string(raw) {
			if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
				return pkgerrors.WrapError(err, pkgerrors.CategoryFileSystem,
					fmt.Sprintf("update links in %s", page))
			}
		}
	}
	return nil
}
