//go:build !windows

package log

import (
	"os"
	"path/filepath"
	"runtime"
)

func userLogRoot() (root, sub string, err error) {
	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		return filepath.Join(home, "Library", "Logs"), "", nil
	}
	// $XDG_CONFIG_HOME, falling back to ~/.config
	config, err := os.UserConfigDir()
	if err != nil {
		return "", "", err
	}
	return config, "logs", nil
}
