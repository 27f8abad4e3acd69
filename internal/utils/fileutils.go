package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// RecreateDir removes a directory and creates it again empty. Used for
// per-video scratch folders such as the audio segment directory.
func RecreateDir(path string) error {
	if _, err := os.Stat(path); err == nil {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove directory %s: %w", path, err)
		}
		LogVerbose("Recreated directory: %s", path)
	} else {
		LogVerbose("Created directory: %s", path)
	}
	return os.MkdirAll(path, 0755)
}

// EnsureDir creates a directory if it does not already exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists reports whether path exists and is a regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// BaseNameWithoutExt returns the file name without directory or extension
func BaseNameWithoutExt(path string) string {
	name := filepath.Base(path)
	return name[:len(name)-len(filepath.Ext(name))]
}
