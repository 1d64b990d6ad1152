package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Book      BookConfig      `yaml:"book"`
	Images    ImagesConfig    `yaml:"images"`
	Fonts     FontsConfig     `yaml:"fonts"`
	Converter ConverterConfig `yaml:"converter"`
	Raster    RasterConfig    `yaml:"raster"`
	Post      PostConfig      `yaml:"postprocess"`
	Output    OutputConfig    `yaml:"output"`
}

// BookConfig describes the LaTeX source tree
type BookConfig struct {
	// Root is the top-level .tex file whose includes get flattened.
	Root string `yaml:"root"`
	// SourceDir is the directory includes and assets resolve against.
	// Defaults to the directory of Root.
	SourceDir string `yaml:"source_dir,omitempty"`
	// DemoteChapter names a chapter heading that is demoted to a section,
	// together with every heading inside its span, so it does not fragment
	// top-level navigation. Empty disables the pass.
	DemoteChapter string `yaml:"demote_chapter,omitempty"`
}

// ImagesConfig controls image reference resolution
type ImagesConfig struct {
	// Root is the directory image paths in the LaTeX source resolve against.
	Root string `yaml:"root,omitempty"`
	// TexExtensions is the probe order for extensionless \includegraphics
	// references during preprocessing.
	TexExtensions []string `yaml:"tex_extensions,omitempty"`
	// HTMLExtensions is the probe order for extensionless <img> sources
	// during HTML postprocessing.
	HTMLExtensions []string `yaml:"html_extensions,omitempty"`
}

// FontsConfig controls font repair and web export
type FontsConfig struct {
	InputDir  string `yaml:"input_dir,omitempty"`
	OutputDir string `yaml:"output_dir,omitempty"`
	// Mapping maps input font filenames to output .woff2 filenames.
	Mapping map[string]string `yaml:"mapping,omitempty"`
	// Vendor is the OS/2 achVendID stamped into repaired fonts.
	Vendor string `yaml:"vendor,omitempty"`
}

// ConverterConfig describes the external LaTeX-to-HTML converter invocation
type ConverterConfig struct {
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
	Filters []string `yaml:"filters,omitempty"`
	// Skip disables the converter invocation (postprocess-only runs,
	// environments without the converter installed).
	Skip bool `yaml:"skip,omitempty"`
}

// RasterConfig describes the external vector rasterizer tools
type RasterConfig struct {
	// Inkscape is the first-choice rasterizer binary.
	Inkscape string `yaml:"inkscape,omitempty"`
	// Convert is the imagemagick fallback binary.
	Convert string `yaml:"convert,omitempty"`
	// Density is the imagemagick render density.
	Density int `yaml:"density,omitempty"`
}

// PostConfig controls HTML postprocessing
type PostConfig struct {
	// TOCPage is the page the shared table-of-contents fragment is read from.
	TOCPage string `yaml:"toc_page,omitempty"`
	// LandingPage is the single page that receives enrichment sections.
	LandingPage string `yaml:"landing_page,omitempty"`
	// PlaceholderPrefixes lists link-text prefixes treated as placeholders:
	// anchor text matching the raw identifier or one of these prefixes is
	// replaced by the indexed heading label during promotion.
	PlaceholderPrefixes []string `yaml:"placeholder_prefixes,omitempty"`
	// RosterFile is the contributor roster .tex parsed for the landing page.
	RosterFile string `yaml:"roster_file,omitempty"`
	// GitInfoFile is the build/version descriptor .tex parsed for the landing page.
	GitInfoFile string `yaml:"gitinfo_file,omitempty"`
	// CoverImage is the front cover image injected into the landing page.
	CoverImage string `yaml:"cover_image,omitempty"`
	// VerifyLinks enables the offline internal-link check after
	// postprocessing. Broken links downgrade the build to a warning.
	VerifyLinks bool `yaml:"verify_links,omitempty"`
}

// OutputConfig represents output configuration
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Clean     bool   `yaml:"clean"` // Clean output directory before build
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if present; existing environment wins.
	if err := godotenv.Load(); err != nil {
		// Not an error: most deployments configure via the YAML file alone.
		_ = err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// Default returns a configuration with all defaults applied and no source tree.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
