// Package convert invokes the external LaTeX-to-HTML converter. The converter
// is a black box: a cleaned .tex file and a set of rendering filters go in, a
// directory of chunked HTML comes out, and the exit status is the only
// contract.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"git.home.luguber.info/inful/texweb/internal/config"
	pkgerrors "git.home.luguber.info/inful/texweb/internal/errors"
)

// Runner executes one converter invocation per build.
type Runner struct {
	cfg config.ConverterConfig
	log *slog.Logger
}

// NewRunner returns a Runner for the configured converter command.
func NewRunner(cfg config.ConverterConfig, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{cfg: cfg, log: log}
}

// Available reports whether the converter binary can be found in PATH.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.cfg.Command)
	return err == nil
}

// Run converts input into chunked HTML under outputDir. Skip in the config
// turns the call into a logged no-op so postprocess-only runs work on
// machines without the converter installed.
func (r *Runner) Run(ctx context.Context, input, outputDir string) error {
	if r.cfg.Skip {
		r.log.Info("converter invocation skipped by config")
		return nil
	}
	if _, err := os.Stat(input); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CategoryInput, pkgerrors.SeverityFatal,
			fmt.Sprintf("converter input %s not found", input))
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return pkgerrors.WrapError(err, pkgerrors.CategoryFileSystem, "create converter output dir")
	}

	args := make([]string, 0, len(r.cfg.Args)+2*len(r.cfg.Filters)+3)
	args = append(args, r.cfg.Args...)
	for _, f := range r.cfg.Filters {
		args = append(args, "--lua-filter", f)
	}
	args = append(args, input, "-o", outputDir)

	cmd := exec.CommandContext(ctx, r.cfg.Command, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	r.log.Info("running converter", "command", r.cfg.Command, "input", input, "output", outputDir)
	start := time.Now()
	if err := cmd.Run(); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CategoryConvert, pkgerrors.SeverityFatal,
			fmt.Sprintf("%s failed", r.cfg.Command))
	}
	r.log.Info("converter finished", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}
