package config

import "path/filepath"

// applyDefaults fills zero-valued fields after unmarshal.
func (c *Config) applyDefaults() {
	if c.Book.SourceDir == "" && c.Book.Root != "" {
		c.Book.SourceDir = filepath.Dir(c.Book.Root)
	}
	if len(c.Images.TexExtensions) == 0 {
		c.Images.TexExtensions = []string{".png", ".jpg", ".jpeg", ".svg"}
	}
	if len(c.Images.HTMLExtensions) == 0 {
		c.Images.HTMLExtensions = []string{".png", ".jpg", ".jpeg", ".svg"}
	}
	if c.Fonts.InputDir == "" {
		c.Fonts.InputDir = "fonts"
	}
	if c.Fonts.OutputDir == "" {
		c.Fonts.OutputDir = "fonts-web"
	}
	if c.Fonts.Vendor == "" {
		c.Fonts.Vendor = "TXWB"
	}
	if c.Converter.Command == "" {
		c.Converter.Command = "pandoc"
	}
	if c.Raster.Inkscape == "" {
		c.Raster.Inkscape = "inkscape"
	}
	if c.Raster.Convert == "" {
		c.Raster.Convert = "convert"
	}
	if c.Raster.Density == 0 {
		c.Raster.Density = 200
	}
	if c.Post.TOCPage == "" {
		c.Post.TOCPage = "index.html"
	}
	if c.Post.LandingPage == "" {
		c.Post.LandingPage = "index.html"
	}
	if len(c.Post.PlaceholderPrefixes) == 0 {
		c.Post.PlaceholderPrefixes = []string{"sec:", "cha:"}
	}
	if c.Output.Directory == "" {
		c.Output.Directory = "./site"
	}
}
