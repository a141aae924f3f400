package pipeline

import (
	_ "embed"

	"rosterimport/internal"
	"rosterimport/internal/config"
)

//go:embed data/roster.md
var embeddedRoster string

// EmbeddedRoster returns the roster text compiled into the binary.
func EmbeddedRoster() string {
	return embeddedRoster
}

type Options struct {
	SectionMarker     string
	PlaceholderDomain string
}

func DefaultOptions() Options {
	return Options{
		SectionMarker:     config.DefaultSectionMarker,
		PlaceholderDomain: config.DefaultPlaceholderDomain,
	}
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		SectionMarker:     cfg.SectionMarker,
		PlaceholderDomain: cfg.PlaceholderDomain,
	}
}

// ParseRoster runs split, parse and normalize over text and returns the
// records in section order, then row order. Never nil.
func ParseRoster(text string, opts Options) []internal.Record {
	records := make([]internal.Record, 0)
	for fragment := range SplitSections(text, opts.SectionMarker) {
		section := ParseSection(fragment)
		for _, row := range section.Rows {
			records = append(records, NormalizeRow(row, section.Label, opts.PlaceholderDomain))
		}
	}
	return records
}
