package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosterimport/internal"
)

func TestParseRosterScenarioA(t *testing.T) {
	records := ParseRoster("📌 *"+scenarioFragment, DefaultOptions())

	require.Len(t, records, 1)
	assert.Equal(t, internal.Record{Name: "Jane Doe", Email: "jane@x.com", ParticipantNumber: "123", GroupLabel: "XI AKL 1"}, records[0])
}

func TestParseRosterScenarioB(t *testing.T) {
	text := "📌 *" + strings.Replace(scenarioFragment, "jane@x.com", "-", 1)
	records := ParseRoster(text, DefaultOptions())

	require.Len(t, records, 1)
	assert.Equal(t, "jane.doe.1.example.com", records[0].Email)
	assert.NotContains(t, records[0].Email, "@")
}

func TestParseRosterScenarioC(t *testing.T) {
	text := "📌 *" + scenarioFragment + "| 2 | Broken |\n"
	assert.Len(t, ParseRoster(text, DefaultOptions()), 1)
}

func TestParseRosterScenarioD(t *testing.T) {
	records := ParseRoster("| 1 | Jane Doe | jane@x.com | 123 |\n", DefaultOptions())

	require.NotNil(t, records)
	assert.Empty(t, records)
}

func TestParseRosterCustomOptions(t *testing.T) {
	opts := Options{SectionMarker: "## ", PlaceholderDomain: "school.test"}
	text := "## XI AKL 1\n| a | b | c | d |\n| - | - | - | - |\n| 3 | Ana Lee | - | 1 |\n"
	records := ParseRoster(text, opts)

	require.Len(t, records, 1)
	assert.Equal(t, "XI AKL 1", records[0].GroupLabel)
	assert.Equal(t, "ana.lee.3.school.test", records[0].Email)
}

func TestParseRosterEmbedded(t *testing.T) {
	records := ParseRoster(EmbeddedRoster(), DefaultOptions())
	require.Len(t, records, 15)

	groups := []string{}
	for _, rec := range records {
		assert.NotEqual(t, internal.MissingValue, rec.Email, rec.Name)
		if len(groups) == 0 || groups[len(groups)-1] != rec.GroupLabel {
			groups = append(groups, rec.GroupLabel)
		}
	}
	assert.Equal(t, []string{
		"XI AKUNTANSI DAN KEUANGAN LEMBAGA (AKL) 1",
		"XI AKUNTANSI DAN KEUANGAN LEMBAGA (AKL) 2",
		"XI MANAJEMEN PERKANTORAN (MP) 1",
	}, groups)

	assert.Equal(t, "Adinda Rahma Putri", records[0].Name)
	assert.Equal(t, "citra.ayu.lestari.3.example.com", records[2].Email)
	assert.Equal(t, "hana.nur'aini.2.example.com", records[7].Email)
	assert.Equal(t, "Kevin Saputra", records[10].Name)
	assert.Equal(t, "-", records[10].ParticipantNumber)
	assert.Equal(t, "Oki Firmansyah", records[14].Name)
}

// Every data row of the embedded roster must survive: the number of rows with
// enough fields, minus the two header rows per section.
func TestParseRosterCountMatchesCandidateRows(t *testing.T) {
	opts := DefaultOptions()
	want := 0
	for fragment := range SplitSections(EmbeddedRoster(), opts.SectionMarker) {
		rows := 0
		for _, line := range strings.Split(fragment, "\n") {
			if strings.Contains(line, "|") && len(strings.Split(line, "|")) >= 5 {
				rows++
			}
		}
		want += max(rows-2, 0)
	}

	assert.Len(t, ParseRoster(EmbeddedRoster(), opts), want)
}

func TestParseRosterIdempotent(t *testing.T) {
	first, err := EncodeRecordsJSON(ParseRoster(EmbeddedRoster(), DefaultOptions()))
	require.NoError(t, err)
	second, err := EncodeRecordsJSON(ParseRoster(EmbeddedRoster(), DefaultOptions()))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
