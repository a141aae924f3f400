package pipeline

import (
	"iter"
	"strings"
)

// SplitSections yields the text between successive occurrences of marker.
// Text before the first marker is dropped, the last fragment runs to the end
// of text. A marker that never occurs (or is empty) yields nothing.
func SplitSections(text, marker string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if marker == "" {
			return
		}
		start := strings.Index(text, marker)
		if start < 0 {
			return
		}
		rest := text[start+len(marker):]
		for {
			next := strings.Index(rest, marker)
			if next < 0 {
				yield(rest)
				return
			}
			if !yield(rest[:next]) {
				return
			}
			rest = rest[next+len(marker):]
		}
	}
}
