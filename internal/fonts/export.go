package fonts

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	pkgerrors "git.home.luguber.info/inful/texweb/internal/errors"
	"git.home.luguber.info/inful/texweb/internal/foundation"
)

// Backend turns a possibly malformed source font into web-deliverable WOFF2
// bytes. Both backends are fallible converters; the batch tries them in order
// and skips any font that survives neither.
type Backend interface {
	Name() string
	Export(data []byte, vendor string) ([]byte, error)
}

// RepairExporter completes missing metadata before export: parse, synthesize
// OS/2 when absent, re-encode as WOFF2.
type RepairExporter struct{}

func (RepairExporter) Name() string { return "repair" }

func (RepairExporter) Export(data []byte, vendor string) ([]byte, error) {
	font, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := EnsureOS2(font, vendor); err != nil {
		return nil, err
	}
	return ExportWOFF2(font)
}

// RawExporter re-encodes the font as-is, with no metadata synthesis. It is
// the fallback for fonts whose auxiliary tables the repair path cannot read.
type RawExporter struct{}

func (RawExporter) Name() string { return "raw" }

func (RawExporter) Export(data []byte, vendor string) ([]byte, error) {
	font, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return ExportWOFF2(font)
}

// Conversion records one successfully exported font.
type Conversion struct {
	Source  string `json:"source"`
	Output  string `json:"output"`
	Backend string `json:"backend"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Converter drives the per-font batch.
type Converter struct {
	InputDir  string
	OutputDir string
	Mapping   map[string]string
	Vendor    string
	Backends  []Backend

	log *slog.Logger
}

// NewConverter returns a Converter with the default backend order
// (repair, then raw fallback).
func NewConverter(inputDir, outputDir string, mapping map[string]string, vendor string, log *slog.Logger) *Converter {
	if log == nil {
		log = slog.Default()
	}
	return &Converter{
		InputDir:  inputDir,
		OutputDir: outputDir,
		Mapping:   mapping,
		Vendor:    vendor,
		Backends:  []Backend{RepairExporter{}, RawExporter{}},
		log:       log,
	}
}

// ConvertAll processes every mapped font in deterministic (sorted source
// name) order. A missing source file is skipped silently; a font failing
// every backend yields an Err result; neither stops the batch.
func (c *Converter) ConvertAll() []foundation.Result[Conversion, error] {
	names := make([]string, 0, len(c.Mapping))
	for src := range c.Mapping {
		names = append(names, src)
	}
	sort.Strings(names)

	results := make([]foundation.Result[Conversion, error], 0, len(names))
	for _, name := range names {
		results = append(results, c.convertOne(name, c.Mapping[name]))
	}
	return results
}

func (c *Converter) convertOne(srcName, dstName string) foundation.Result[Conversion, error] {
	src := filepath.Join(c.InputDir, srcName)
	dst := filepath.Join(c.OutputDir, dstName)

	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			c.log.Debug("font source absent, skipping", "font", srcName)
			return foundation.Ok[Conversion, error](Conversion{Source: src, Output: dst, Skipped: true})
		}
		return foundation.Err[Conversion, error](
			pkgerrors.WrapError(err, pkgerrors.CategoryFileSystem, fmt.Sprintf("read font %s", srcName)))
	}

	var lastErr error
	for _, backend := range c.Backends {
		out, err := backend.Export(data, c.Vendor)
		if err != nil {
			c.log.Warn("font backend failed", "font", srcName, "backend", backend.Name(), "error", err)
			lastErr = err
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return foundation.Err[Conversion, error](
				pkgerrors.WrapError(err, pkgerrors.CategoryFileSystem, "create font output dir"))
		}
		if err := os.WriteFile(dst, out, 0644); err != nil {
			return foundation.Err[Conversion, error](
				pkgerrors.WrapError(err, pkgerrors.CategoryFileSystem, fmt.Sprintf("write %s", dstName)))
		}
		c.log.Info("font exported", "font", srcName, "output", dstName, "backend", backend.Name())
		return foundation.Ok[Conversion, error](Conversion{Source: src, Output: dst, Backend: backend.Name()})
	}

	return foundation.Err[Conversion, error](
		pkgerrors.Wrap(lastErr, pkgerrors.CategoryFont, pkgerrors.SeverityWarning,
			fmt.Sprintf("no backend could export %s", srcName)))
}
