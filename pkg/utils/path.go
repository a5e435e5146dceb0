package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateDirectory checks that path is absolute and names an existing
// directory.
func ValidateDirectory(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute: %s", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// IsWithin reports whether path equals base or lies beneath it. Both are
// cleaned lexically; symlinks are not resolved.
func IsWithin(base, path string) bool {
	cleanBase := filepath.Clean(base)
	cleanPath := filepath.Clean(path)

	if cleanPath == cleanBase {
		return true
	}
	if cleanBase == string(filepath.Separator) {
		return filepath.IsAbs(cleanPath)
	}
	return strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator))
}
