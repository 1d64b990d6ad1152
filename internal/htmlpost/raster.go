package htmlpost

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"git.home.luguber.info/inful/texweb/internal/config"
)

// Rasterizer converts vector PDF assets to PNG for inline display. Inkscape
// is tried first; imagemagick convert is the fallback. Existing output files
// are reused, which makes re-runs skip the expensive external calls.
type Rasterizer struct {
	inkscape string
	convert  string
	density  int
	log      *slog.Logger
}

// NewRasterizer builds a Rasterizer from config.
func NewRasterizer(cfg config.RasterConfig, log *slog.Logger) *Rasterizer {
	if log == nil {
		log = slog.Default()
	}
	return &Rasterizer{
		inkscape: cfg.Inkscape,
		convert:  cfg.Convert,
		density:  cfg.Density,
		log:      log,
	}
}

// Rasterize renders pdfPath to pngPath. The PNG is cached: when it already
// exists nothing runs. Both tool failures together leave no output file and
// return the last error; the caller keeps the original embed in that case.
func (r *Rasterizer) Rasterize(pdfPath, pngPath string) error {
	if _, err := os.Stat(pngPath); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(pngPath), 0755); err != nil {
		return fmt.Errorf("create raster output dir: %w", err)
	}

	if err := r.run(r.inkscape, "--export-type=png", "--export-filename="+pngPath, pdfPath); err == nil {
		if _, statErr := os.Stat(pngPath); statErr == nil {
			return nil
		}
	} else {
		r.log.Debug("inkscape rasterization failed, trying convert", "pdf", pdfPath, "error", err)
	}

	err := r.run(r.convert,
		"-density", strconv.Itoa(r.density), pdfPath+"[0]",
		"-background", "white", "-alpha", "remove", pngPath)
	if err != nil {
		return fmt.Errorf("rasterize %s: %w", pdfPath, err)
	}
	if _, statErr := os.Stat(pngPath); statErr != nil {
		return fmt.Errorf("rasterize %s: no output produced", pdfPath)
	}
	return nil
}

func (r *Rasterizer) run(bin string, args ...string) error {
	if bin == "" {
		return fmt.Errorf("rasterizer binary not configured")
	}
	cmd := exec.Command(bin, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run()
}
