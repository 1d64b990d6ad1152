package config

import (
	"fmt"
	"os"
)

const defaultConfigTemplate = `# texweb configuration
book:
  root: book.tex
  # demote_chapter: "Appendices"

images:
  root: .

fonts:
  input_dir: fonts
  output_dir: fonts-web
  mapping:
    # Book-Regular.ttf: Book-Regular.woff2

converter:
  command: pandoc
  args: []
  filters: []

postprocess:
  toc_page: index.html
  landing_page: index.html
  placeholder_prefixes: ["sec:", "cha:"]
  # verify_links: true

output:
  directory: ./site
  clean: true
`

// Init writes a starter configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(defaultConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
