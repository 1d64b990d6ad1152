package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/texweb/internal/config"
	"git.home.luguber.info/inful/texweb/internal/convert"
	"git.home.luguber.info/inful/texweb/internal/flatten"
	"git.home.luguber.info/inful/texweb/internal/fonts"
	"git.home.luguber.info/inful/texweb/internal/htmlpost"
	"git.home.luguber.info/inful/texweb/internal/linkcheck"
	"git.home.luguber.info/inful/texweb/internal/observability"
	"git.home.luguber.info/inful/texweb/internal/texnorm"
)

// Stage names in execution order.
const (
	StagePrepare     = "prepare"
	StageFlatten     = "flatten"
	StagePreprocess  = "preprocess"
	StageFonts       = "fonts"
	StageConvert     = "convert"
	StagePostprocess = "postprocess"
	StageVerify      = "verify"
)

// Builder runs the full book build against one configuration.
type Builder struct {
	cfg *config.Config
	log *slog.Logger
}

// NewBuilder wires a Builder. A nil logger falls back to the default.
func NewBuilder(cfg *config.Config, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{cfg: cfg, log: log}
}

// Build executes every stage and persists the build report into the output
// directory. The returned report is always non-nil; the error is the fatal
// or cancellation stage error, nil for success and warning outcomes.
func (b *Builder) Build(ctx context.Context) (*BuildReport, error) {
	buildID := uuid.NewString()
	ctx = observability.WithBuildID(ctx, buildID)

	report := newBuildReport(buildID)
	bs := newBuildState(b.cfg, report)
	bs.OutputDir = b.cfg.Output.Directory
	bs.WorkDir = filepath.Join(bs.OutputDir, "_work")
	bs.FlatFile = filepath.Join(bs.WorkDir, "book-flat.tex")
	bs.PrepFile = filepath.Join(bs.WorkDir, "book.tex")

	b.log.Info("build starting", "build_id", buildID, "root", b.cfg.Book.Root, "output", bs.OutputDir)

	err := runStages(ctx, bs, []namedStage{
		{StagePrepare, b.stagePrepare},
		{StageFlatten, b.stageFlatten},
		{StagePreprocess, b.stagePreprocess},
		{StageFonts, b.stageFonts},
		{StageConvert, b.stageConvert},
		{StagePostprocess, b.stagePostprocess},
		{StageVerify, b.stageVerify},
	})

	report.finish()
	report.deriveOutcome()
	if perr := report.Persist(bs.OutputDir); perr != nil {
		b.log.Warn("could not persist build report", "error", perr)
	}
	b.log.Info("build finished", "summary", report.Summary())
	return report, err
}

// stagePrepare creates (and optionally clears) the output tree.
func (b *Builder) stagePrepare(ctx context.Context, bs *BuildState) error {
	if bs.Config.Output.Clean {
		if err := os.RemoveAll(bs.OutputDir); err != nil {
			return newFatalStageError(StagePrepare, fmt.Errorf("clean output: %w", err))
		}
	}
	if err := os.MkdirAll(bs.WorkDir, 0755); err != nil {
		return newFatalStageError(StagePrepare, fmt.Errorf("create output: %w", err))
	}
	return nil
}

// stageFlatten expands include directives and keeps the document body as the
// one linear source file the normalizer consumes.
func (b *Builder) stageFlatten(ctx context.Context, bs *BuildState) error {
	body, err := flatten.File(bs.Config.Book.Root)
	if err != nil {
		bs.Report.AddIssue(IssueFlattenFailure, StageFlatten, SeverityError, err.Error(), false, nil)
		return newFatalStageError(StageFlatten, err)
	}
	bs.Report.SourceLines = strings.Count(body, "\n")
	if err := os.WriteFile(bs.FlatFile, []byte(body), 0644); err != nil {
		return newFatalStageError(StageFlatten, fmt.Errorf("write flattened source: %w", err))
	}
	observability.InfoContext(ctx, "source flattened", slog.Int("lines", bs.Report.SourceLines))
	return nil
}

// stagePreprocess normalizes the flattened LaTeX for the converter.
func (b *Builder) stagePreprocess(ctx context.Context, bs *BuildState) error {
	opts := texnorm.DefaultOptions()
	if bs.Config.Images.Root != "" {
		opts.ImageRoot = bs.Config.Images.Root
	}
	if len(bs.Config.Images.TexExtensions) > 0 {
		opts.ImageExtensions = bs.Config.Images.TexExtensions
	}
	opts.DemoteChapter = bs.Config.Book.DemoteChapter

	if err := texnorm.New(opts).NormalizeFile(bs.FlatFile, bs.PrepFile); err != nil {
		return newFatalStageError(StagePreprocess, err)
	}
	return nil
}

// stageFonts repairs and exports the mapped fonts. Individual failures are
// never fatal; the stage warns so the build continues with whatever fonts
// exported cleanly.
func (b *Builder) stageFonts(ctx context.Context, bs *BuildState) error {
	fc := bs.Config.Fonts
	if fc.InputDir == "" || len(fc.Mapping) == 0 {
		return nil
	}
	outDir := fc.OutputDir
	if outDir == "" {
		outDir = filepath.Join(bs.OutputDir, "fonts")
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return newWarnStageError(StageFonts, fmt.Errorf("create font output: %w", err))
	}

	conv := fonts.NewConverter(fc.InputDir, outDir, fc.Mapping, fc.Vendor, b.log)
	for _, res := range conv.ConvertAll() {
		if res.IsErr() {
			bs.Report.FontsFailed++
			bs.Report.AddIssue(IssueFontExport, StageFonts, SeverityWarning,
				res.UnwrapErr().Error(), false, nil)
			continue
		}
		if res.Unwrap().Skipped {
			bs.Report.FontsSkipped++
		} else {
			bs.Report.FontsConverted++
		}
	}
	if bs.Report.FontsFailed > 0 {
		return newWarnStageError(StageFonts,
			fmt.Errorf("%d of %d fonts failed to export", bs.Report.FontsFailed, len(fc.Mapping)))
	}
	return nil
}

// stageConvert invokes the external LaTeX-to-HTML converter. A missing
// binary is a warning so postprocess-only runs over existing output still
// work; an execution failure is fatal.
func (b *Builder) stageConvert(ctx context.Context, bs *BuildState) error {
	if bs.Config.Converter.Skip {
		bs.Report.SkipReason = "converter_skipped"
		return nil
	}
	runner := convert.NewRunner(bs.Config.Converter, b.log)
	if !runner.Available() {
		err := fmt.Errorf("converter binary not found: %s", bs.Config.Converter.Command)
		bs.Report.AddIssue(IssueConverterMissing, StageConvert, SeverityWarning, err.Error(), false, nil)
		return newWarnStageError(StageConvert, err)
	}
	if err := runner.Run(ctx, bs.PrepFile, bs.OutputDir); err != nil {
		if ctx.Err() != nil {
			return newCanceledStageError(StageConvert, ctx.Err())
		}
		bs.Report.AddIssue(IssueConverterFailure, StageConvert, SeverityError, err.Error(), true, nil)
		return newFatalStageError(StageConvert, err)
	}
	bs.Report.ConverterRan = true
	return nil
}

// stagePostprocess rewrites the chunked HTML in place.
func (b *Builder) stagePostprocess(ctx context.Context, bs *BuildState) error {
	raster := htmlpost.NewRasterizer(bs.Config.Raster, b.log)
	proc := htmlpost.NewProcessor(bs.OutputDir, bs.Config.Post, bs.Config.Images, raster, b.log)
	results, err := proc.Run()
	if err != nil {
		return newFatalStageError(StagePostprocess, err)
	}
	for _, res := range results {
		if res.IsErr() {
			bs.Report.PagesFailed++
			bs.Report.AddIssue(IssuePageRewrite, StagePostprocess, SeverityWarning,
				res.UnwrapErr().Error(), false, nil)
			continue
		}
		bs.Report.Pages++
	}
	if bs.Report.PagesFailed > 0 {
		return newWarnStageError(StagePostprocess,
			fmt.Errorf("%d pages failed postprocessing", bs.Report.PagesFailed))
	}
	return nil
}

// stageVerify runs the offline internal-link check over the finished site.
// Broken links never fail the build; they downgrade it to a warning.
func (b *Builder) stageVerify(ctx context.Context, bs *BuildState) error {
	if !bs.Config.Post.VerifyLinks {
		return nil
	}
	issues, err := linkcheck.New(bs.OutputDir, b.log).Check()
	if err != nil {
		return newWarnStageError(StageVerify, err)
	}
	bs.Report.BrokenLinks = len(issues)
	for _, issue := range issues {
		bs.Report.AddIssue(IssueBrokenLink, StageVerify, SeverityWarning, issue.String(), false, nil)
	}
	if len(issues) > 0 {
		return newWarnStageError(StageVerify, fmt.Errorf("%d broken internal links", len(issues)))
	}
	return nil
}
