package texnorm

import (
	"os"
	"path/filepath"
	"regexp"
)

var includeGraphicsRE = regexp.MustCompile(`\\includegraphics(\[[^\]]*\])?\{([^}]+)\}`)

// fixImageRefs resolves \includegraphics references lacking a recognized
// extension by probing the filesystem in the configured priority order.
// References whose target exists as written are kept; references with no
// resolvable target are dropped rather than emitting a broken image.
func (n *Normalizer) fixImageRefs(text string) string {
	return replaceGroups(includeGraphicsRE, text, func(g []string) string {
		opts, raw := g[1], g[2]
		if fileExists(filepath.Join(n.opts.ImageRoot, raw)) {
			return g[0]
		}
		for _, ext := range n.opts.ImageExtensions {
			if fileExists(filepath.Join(n.opts.ImageRoot, raw+ext)) {
				return `\includegraphics` + opts + `{` + raw + ext + `}`
			}
		}
		return ""
	})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
