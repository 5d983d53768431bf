package main

import (
	"os"
	"path/filepath"
	"strings"
)

// resolveDAGPath resolves a user-supplied DAG path against dagsDir. A path
// that already exists, is absolute, or contains a directory separator is
// used as given. A bare name (e.g. "etl" or "etl.yaml") is instead looked
// up under dagsDir, trying the name as given and then with the .yaml,
// .yml, and .json extensions, so `--file etl` and DAGS_DIR=/etc/dags can
// resolve to /etc/dags/etl.yaml without the caller spelling out the
// extension.
func resolveDAGPath(dagsDir, path string) string {
	if path == "" {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	if filepath.IsAbs(path) || strings.ContainsRune(path, filepath.Separator) {
		return path
	}
	if dagsDir == "" {
		return path
	}

	for _, candidate := range []string{path, path + ".yaml", path + ".yml", path + ".json"} {
		full := filepath.Join(dagsDir, candidate)
		if _, err := os.Stat(full); err == nil {
			return full
		}
	}
	return path
}
