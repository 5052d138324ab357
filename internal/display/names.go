package display

import (
	"regexp"
	"strings"
)

// ShortName drops the import path directories from a qualified item path.
// e.g., "github.com/foo/bar/pkg.Type.Method" -> "pkg.Type.Method"
func ShortName(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

var importDirs = regexp.MustCompile(`(?:[\w.\-]+/)+`)

// ShortSignature simplifies package paths in a signature.
// e.g., "func(db *github.com/jinzhu/gorm.DB) error" -> "func(db *gorm.DB) error"
func ShortSignature(sig string) string {
	return importDirs.ReplaceAllString(sig, "")
}

// Truncate shortens s to at most n runes, marking the cut with "..."
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
