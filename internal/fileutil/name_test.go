package fileutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Basic", "hello world", "hello_world"},
		{"Reserved characters", "file<>:\"/\\|!?*.txt", "file___________txt"},
		{"Reserved Windows name", "CON", "_con_"},
		{"Mixed case", "MixedCASE.txt", "mixedcase_txt"},
		{"Each dot replaced", "file...name", "file___name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, SafeName(tt.input))
		})
	}
}

func TestSafeNameLengthLimit(t *testing.T) {
	result := SafeName(strings.Repeat("a", 1000))
	require.Len(t, []rune(result), maxSafeNameRunes)
}

func TestSafeNameNoPeriods(t *testing.T) {
	for _, input := range []string{"file.name", ".hidden", "visible.", "a.b.c.d"} {
		require.NotContains(t, SafeName(input), ".")
	}
}
