package htmlpost

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// RenameColonFiles renames every file in dir whose name contains a colon,
// substituting underscores, and returns the old-name to new-name map. Colons
// in filenames come from heading identifiers like "cha:intro" and break
// same-origin URL handling in browsers. The map is transient; it is consumed
// by UpdateLinks in the same run and never persisted.
func RenameColonFiles(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}
	renames := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !strings.Contains(e.Name(), ":") {
			continue
		}
		newName := strings.ReplaceAll(e.Name(), ":", "_")
		if err := os.Rename(filepath.Join(dir, e.Name()), filepath.Join(dir, newName)); err != nil {
			return nil, fmt.Errorf("rename %s: %w", e.Name(), err)
		}
		renames[e.Name()] = newName
	}
	return renames, nil
}

// UpdateLinks rewrites every href pointing at a renamed file, with or
// without a leading path component.
func UpdateLinks(data string, renames map[string]string) string {
	for oldName, newName := range renames {
		re := regexp.MustCompile(`href="([^"]*?)` + regexp.QuoteMeta(oldName) + `"`)
		data = re.ReplaceAllString(data, `href="${1}`+newName+`"`)
	}
	return data
}
