package pipeline

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testMarker = "📌 *"

func TestSplitSectionsDropsPreamble(t *testing.T) {
	text := "intro line\n📌 *A*\nrow a\n📌 *B*\nrow b\n"
	got := slices.Collect(SplitSections(text, testMarker))
	assert.Equal(t, []string{"A*\nrow a\n", "B*\nrow b\n"}, got)
}

func TestSplitSectionsWithoutMarker(t *testing.T) {
	assert.Empty(t, slices.Collect(SplitSections("| 1 | Jane | - | 1 |", testMarker)))
	assert.Empty(t, slices.Collect(SplitSections("📌 *A*", "")))
}

func TestSplitSectionsMarkerAnywhere(t *testing.T) {
	got := slices.Collect(SplitSections("x 📌 *A* y 📌 *B*", testMarker))
	assert.Equal(t, []string{"A* y ", "B*"}, got)
}

func TestSplitSectionsStopsEarly(t *testing.T) {
	seen := 0
	for range SplitSections("📌 *A*📌 *B*📌 *C*", testMarker) {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}
