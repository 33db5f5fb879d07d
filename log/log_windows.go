//go:build windows

package log

import (
	"os"
	"path/filepath"
)

// userLogRoot prefers the local (non-roaming) app data directory.
func userLogRoot() (root, sub string, err error) {
	if local := os.Getenv("LOCALAPPDATA"); local != "" {
		return local, "logs", nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", err
	}
	return filepath.Join(home, "AppData", "Local"), "logs", nil
}
