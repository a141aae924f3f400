package pipeline

import (
	"strings"

	"rosterimport/internal"
)

const (
	columnSeparator = "|"
	emphasis        = "*"

	// headerRowCount is the number of candidate rows skipped before data:
	// the header row and the alignment row of a markdown table. The skip is
	// positional, so a table missing either row loses a data row instead.
	headerRowCount = 2

	minRowFields = 5
)

type Section struct {
	Label string
	Rows  []internal.TableRow
}

// ParseSection reads the group label from the first line of fragment and the
// data rows of the table that follows it.
func ParseSection(fragment string) Section {
	lines := strings.Split(strings.TrimSpace(normalizeNewlines(fragment)), "\n")
	section := Section{Label: sectionLabel(lines[0])}

	skipped := 0
	for _, line := range lines[1:] {
		if !strings.Contains(line, columnSeparator) {
			continue
		}
		if skipped < headerRowCount {
			skipped++
			continue
		}
		fields := splitRow(line)
		if len(fields) < minRowFields {
			continue
		}
		section.Rows = append(section.Rows, internal.TableRow{
			Ordinal:           fields[1],
			Name:              fields[2],
			Email:             fields[3],
			ParticipantNumber: fields[4],
		})
	}

	return section
}

func sectionLabel(line string) string {
	return strings.ReplaceAll(strings.TrimSpace(line), emphasis, "")
}

func splitRow(line string) []string {
	parts := strings.Split(line, columnSeparator)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func normalizeNewlines(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}
