package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectRosterEmail(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "roster.eml"))
	require.NoError(t, err)
	ext, err := ExtractRecordsFromEmailRaw(raw, DefaultOptions())
	require.NoError(t, err)

	res := DetectRoster(ext.Subject, ext.Text, ext.HTML, ext.AttachmentNames, testMarker)
	assert.True(t, res.IsRoster)
	assert.Equal(t, "rules_positive", res.Reason)
	assert.LessOrEqual(t, res.Score, 1.0)
}

func TestDetectRosterUnrelatedEmail(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "unrelated.eml"))
	require.NoError(t, err)
	ext, err := ExtractRecordsFromEmailRaw(raw, DefaultOptions())
	require.NoError(t, err)

	assert.Empty(t, ext.Records)
	res := DetectRoster(ext.Subject, ext.Text, ext.HTML, ext.AttachmentNames, testMarker)
	assert.False(t, res.IsRoster)
	assert.Equal(t, "rules_negative", res.Reason)
}

func TestDetectRosterSpreadsheetAttachment(t *testing.T) {
	res := DetectRoster("Daftar kelas", "terlampir", "", []string{"XI-AKL.xlsx"}, testMarker)
	assert.True(t, res.IsRoster)
}
