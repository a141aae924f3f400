package util

import (
	"strings"
	"unicode"

	"github.com/goliatone/go-slug"
)

// Username turns a display name into a login handle: slugged, no separators.
func Username(name string) string {
	normalized, err := slug.Normalize(name)
	if err != nil || normalized == "" {
		normalized = strings.ToLower(strings.Join(strings.Fields(name), ""))
	}
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '_' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, normalized)
}

// SanitizeFilename replaces characters that are unsafe in file names and caps the length.
func SanitizeFilename(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
