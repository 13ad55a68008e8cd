package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// MinSuffix is inserted before the extension of minified outputs
const MinSuffix = ".min"

// EnsureDir ensures the parent directory of path exists, creating it if necessary
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// RelSlash returns path relative to root using forward slashes. Paths outside
// root are returned cleaned but otherwise unchanged.
func RelSlash(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(filepath.Clean(path))
	}
	return filepath.ToSlash(rel)
}

// OutputName renames a source file for the output tree: the extension is
// replaced by ext and suffix is inserted before it.
//
//	OutputName("src/scss/main.scss", ".min", ".css") // "main.min.css"
func OutputName(source, suffix, ext string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + suffix + ext
}

// IsPartial reports whether a style source is a partial (leading underscore)
func IsPartial(path string) bool {
	return strings.HasPrefix(filepath.Base(path), "_")
}

// IsDir reports whether path exists and is a directory
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
