package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appDirName = "MultiDL"

// GetAppDir returns the per-user config root based on OS conventions.
func GetAppDir() string {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		return filepath.Join(appData, appDirName)
	case "darwin": //MacOS
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", appDirName)
	default: //Linux
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, _ := os.UserHomeDir()
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, appDirName)
	}
}

// GetStateDir returns the directory for persistent state (history DB).
func GetStateDir() string {
	return filepath.Join(GetAppDir(), "state")
}

// GetHistoryPath returns the default history database path.
func GetHistoryPath() string {
	return filepath.Join(GetStateDir(), "history.db")
}

// EnsureDirs creates all required directories.
func EnsureDirs() error {
	dirs := []string{GetAppDir(), GetStateDir()}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
