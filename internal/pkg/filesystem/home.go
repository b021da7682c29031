// Package filesystem resolves user-relative paths.
package filesystem

import (
	"os"
	"path/filepath"
	"strings"
)

// StateDirName is the per-user directory holding config and state.
const StateDirName = ".kernhell"

// UserHomeDir returns the current user's home directory, or "." when it is unknown.
func UserHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// DefaultStateDir is ~/.kernhell.
func DefaultStateDir() string {
	return filepath.Join(UserHomeDir(), StateDirName)
}

// ExpandHome replaces a leading ~ with the home directory and cleans the result.
func ExpandHome(path string) string {
	if path == "~" {
		return UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(UserHomeDir(), path[2:])
	}
	if path == "" {
		return ""
	}
	return filepath.Clean(path)
}
