package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"git.home.luguber.info/inful/texweb/internal/config"
	"git.home.luguber.info/inful/texweb/internal/flatten"
	"git.home.luguber.info/inful/texweb/internal/fonts"
	"git.home.luguber.info/inful/texweb/internal/htmlpost"
	"git.home.luguber.info/inful/texweb/internal/linkcheck"
	"git.home.luguber.info/inful/texweb/internal/pipeline"
	"git.home.luguber.info/inful/texweb/internal/texnorm"
	"git.home.luguber.info/inful/texweb/internal/version"
	"git.home.luguber.info/inful/texweb/internal/watch"
	"github.com/alecthomas/kong"
)

var CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"texweb.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `help:"Print version and exit"`

	Build struct {
		Output string `short:"o" help:"Output directory for the generated site (overrides config)"`
	} `cmd:"" help:"Run the full book build"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Flatten struct {
		Root   string `arg:"" help:"Top-level .tex file whose includes get expanded"`
		Output string `short:"o" help:"Output file (stdout if omitted)"`
	} `cmd:"" help:"Flatten include directives into one source file"`

	Preprocess struct {
		Input  string `arg:"" help:"Flattened .tex input"`
		Output string `arg:"" help:"Normalized .tex output"`
	} `cmd:"" help:"Normalize flattened LaTeX for the converter"`

	Fonts struct{} `cmd:"" help:"Repair and export the configured fonts to woff2"`

	Postprocess struct {
		Dir string `short:"d" help:"HTML directory (defaults to output.directory)"`
	} `cmd:"" help:"Postprocess an existing chunked HTML directory"`

	Verify struct {
		Dir string `short:"d" help:"HTML directory (defaults to output.directory)"`
	} `cmd:"" help:"Verify internal links of a finished site"`

	Watch struct {
		Output   string        `short:"o" help:"Output directory for the generated site (overrides config)"`
		Debounce time.Duration `help:"Quiet period before a rebuild" default:"2s"`
	} `cmd:"" help:"Build, then rebuild on source changes"`
}

func main() {
	kctx := kong.Parse(&CLI, kong.Vars{"version": version.Version})

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch {
	case kctx.Command() == "build":
		err = runBuild(ctx, CLI.Build.Output)
	case kctx.Command() == "init":
		err = config.Init(CLI.Config, CLI.Init.Force)
	case strings.HasPrefix(kctx.Command(), "flatten"):
		err = runFlatten(CLI.Flatten.Root, CLI.Flatten.Output)
	case strings.HasPrefix(kctx.Command(), "preprocess"):
		err = runPreprocess(CLI.Preprocess.Input, CLI.Preprocess.Output)
	case kctx.Command() == "fonts":
		err = runFonts()
	case kctx.Command() == "postprocess":
		err = runPostprocess(CLI.Postprocess.Dir)
	case kctx.Command() == "verify":
		err = runVerify(CLI.Verify.Dir)
	case kctx.Command() == "watch":
		err = runWatch(ctx, CLI.Watch.Output, CLI.Watch.Debounce)
	}
	if err != nil {
		slog.Error("Command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

func runBuild(ctx context.Context, outputDir string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if outputDir != "" {
		cfg.Output.Directory = outputDir
	}
	report, err := pipeline.NewBuilder(cfg, slog.Default()).Build(ctx)
	if err != nil {
		return err
	}
	if report.OutcomeT == pipeline.OutcomeWarning {
		slog.Warn("Build completed with warnings", "warnings", len(report.Warnings))
	}
	return nil
}

func runFlatten(root, output string) error {
	text, err := flatten.File(root)
	if err != nil {
		return err
	}
	if output == "" {
		_, err = os.Stdout.WriteString(text)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return err
	}
	return os.WriteFile(output, []byte(text), 0644)
}

func runPreprocess(input, output string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts := texnorm.DefaultOptions()
	if cfg.Images.Root != "" {
		opts.ImageRoot = cfg.Images.Root
	}
	if len(cfg.Images.TexExtensions) > 0 {
		opts.ImageExtensions = cfg.Images.TexExtensions
	}
	opts.DemoteChapter = cfg.Book.DemoteChapter
	return texnorm.New(opts).NormalizeFile(input, output)
}

func runFonts() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Fonts.Mapping) == 0 {
		slog.Warn("No fonts configured, nothing to do")
		return nil
	}
	if err := os.MkdirAll(cfg.Fonts.OutputDir, 0755); err != nil {
		return err
	}
	conv := fonts.NewConverter(cfg.Fonts.InputDir, cfg.Fonts.OutputDir, cfg.Fonts.Mapping, cfg.Fonts.Vendor, slog.Default())
	converted, skipped, failed := 0, 0, 0
	for _, res := range conv.ConvertAll() {
		if res.IsErr() {
			failed++
			continue
		}
		if res.Unwrap().Skipped {
			skipped++
		} else {
			converted++
		}
	}
	slog.Info("Font export finished", "converted", converted, "skipped", skipped, "failed", failed)
	if failed > 0 && converted == 0 {
		return fmt.Errorf("all %d fonts failed to export", failed)
	}
	return nil
}

func runPostprocess(dir string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dir == "" {
		dir = cfg.Output.Directory
	}
	raster := htmlpost.NewRasterizer(cfg.Raster, slog.Default())
	proc := htmlpost.NewProcessor(dir, cfg.Post, cfg.Images, raster, slog.Default())
	results, err := proc.Run()
	if err != nil {
		return err
	}
	failed := 0
	for _, res := range results {
		if res.IsErr() {
			failed++
			slog.Warn("Page postprocessing failed", "error", res.UnwrapErr())
		}
	}
	slog.Info("Postprocessing finished", "pages", len(results)-failed, "failed", failed)
	return nil
}

func runVerify(dir string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dir == "" {
		dir = cfg.Output.Directory
	}
	issues, err := linkcheck.New(dir, slog.Default()).Check()
	if err != nil {
		return err
	}
	for _, issue := range issues {
		slog.Warn("Broken link", "page", issue.Page, "url", issue.URL, "reason", issue.Reason)
	}
	if len(issues) > 0 {
		return fmt.Errorf("%d broken internal links", len(issues))
	}
	return nil
}

func runWatch(ctx context.Context, outputDir string, debounce time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if outputDir != "" {
		cfg.Output.Directory = outputDir
	}

	builder := pipeline.NewBuilder(cfg, slog.Default())
	rebuild := func(ctx context.Context) {
		if _, err := builder.Build(ctx); err != nil {
			slog.Error("Rebuild failed", "error", err)
		}
	}
	rebuild(ctx)

	dirs := []string{cfg.Book.SourceDir, cfg.Images.Root, cfg.Fonts.InputDir}
	w, err := watch.New(dirs, debounce, rebuild, slog.Default())
	if err != nil {
		return err
	}
	defer w.Stop()
	if err := w.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	slog.Info("Shutting down watcher")
	return nil
}
