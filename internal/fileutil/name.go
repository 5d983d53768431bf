// Package fileutil holds small filesystem helpers shared by the CLI and
// the file-backed store implementations.
package fileutil

import (
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reservedCharRegex  = regexp.MustCompile(`[<>:"/\\|!?*\x00-\x1f]`)
	reservedNamesRegex = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[0-9]|lpt[0-9])$`)
	spaceRegex         = regexp.MustCompile(`\s+`)
)

const maxSafeNameRunes = 100

// SafeName turns an arbitrary string (a workflow or task name) into a
// string safe to use as a path component: lowercase, reserved characters
// and periods replaced with underscores, truncated to maxSafeNameRunes
// runes.
func SafeName(name string) string {
	s := spaceRegex.ReplaceAllString(name, "_")
	s = reservedCharRegex.ReplaceAllString(s, "_")
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ToLower(s)

	if reservedNamesRegex.MatchString(s) {
		s = "_" + s + "_"
	}

	if utf8.RuneCountInString(s) > maxSafeNameRunes {
		runes := []rune(s)
		s = string(runes[:maxSafeNameRunes])
	}
	return s
}

// MustGetwd returns the current working directory or panics.
func MustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return wd
}

// MustGetUserHomeDir returns $HOME (or the OS equivalent) or panics.
func MustGetUserHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	return home
}

// MustTempDir creates a temporary directory with the given prefix or panics.
func MustTempDir(prefix string) string {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		panic(err)
	}
	return dir
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
