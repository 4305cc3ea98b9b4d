package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureAbsPath normalizes a path so the same directory always maps to the same lock and history key.
func EnsureAbsPath(path string) string {
	if path == "" {
		path = "."
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// OutputDir returns <root>/<fileType> as an absolute path.
func OutputDir(root, fileType string) string {
	return EnsureAbsPath(filepath.Join(root, fileType))
}

// PrepareOutputDir creates dir if needed and checks that files can be created in it.
func PrepareOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat output directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output path %s is not a directory", dir)
	}

	probe, err := os.CreateTemp(dir, ".multidl-probe-*")
	if err != nil {
		return fmt.Errorf("output directory not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return nil
}
