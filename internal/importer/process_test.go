package importer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosterimport/internal"
	"rosterimport/internal/logging"
	"rosterimport/internal/storage"
)

func storeEmail(t *testing.T, db *storage.DB, provider, messageID, rawRef string) internal.EmailRow {
	t.Helper()
	row, err := db.UpsertEmail(provider, messageID, "", "", "2025-10-06T01:00:00Z", "hash-"+messageID, rawRef, StatusFetched)
	require.NoError(t, err)
	return row
}

func TestProcessEmailImportsRoster(t *testing.T) {
	cfg := testConfig(t)
	db := openTestDB(t, cfg)
	email := storeEmail(t, db, "imap", "<roster-1@mail.test>", "testdata/roster.eml")

	svc := NewProcessingService(db, cfg, logging.Nop())
	res, err := svc.ProcessByProviderMessageID(context.Background(), "imap", "<roster-1@mail.test>")
	require.NoError(t, err)

	assert.Equal(t, email.ID, res.EmailID)
	assert.False(t, res.Skipped)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "john.roe.2.example.com", res.Records[1].Email)
	assert.Equal(t, 2, res.Import.Created)

	got, err := db.GetEmailByProviderMessageID("imap", "<roster-1@mail.test>")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusProcessed, got.Status)

	student, err := db.GetStudentByEmail("jane@x.com")
	require.NoError(t, err)
	require.NotNil(t, student)
	assert.Equal(t, "XI AKL 1", student.GroupLabel)
}

func TestProcessEmailSkipsUnrelatedMessage(t *testing.T) {
	cfg := testConfig(t)
	db := openTestDB(t, cfg)
	email := storeEmail(t, db, "imap", "<meeting-1@mail.test>", "testdata/unrelated.eml")

	svc := NewProcessingService(db, cfg, logging.Nop())
	res, err := svc.ProcessEmail(context.Background(), email)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	got, err := db.GetEmailByProviderMessageID("imap", "<meeting-1@mail.test>")
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, got.Status)

	students, err := db.ListStudents()
	require.NoError(t, err)
	assert.Empty(t, students)

	runs, err := db.CountRuns()
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
}

func TestProcessPendingFiltersByProvider(t *testing.T) {
	cfg := testConfig(t)
	db := openTestDB(t, cfg)
	storeEmail(t, db, "imap", "<roster-1@mail.test>", "testdata/roster.eml")
	storeEmail(t, db, "gmail", "<meeting-1@mail.test>", "testdata/unrelated.eml")

	svc := NewProcessingService(db, cfg, logging.Nop())
	results, err := svc.ProcessPending(context.Background(), 10, "imap")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "<roster-1@mail.test>", results[0].MessageID)

	pending, err := db.ListEmailsByStatus(StatusFetched, "", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "gmail", pending[0].Provider)

	results, err = svc.ProcessPending(context.Background(), 10, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
}

func TestProcessByProviderMessageIDUnknown(t *testing.T) {
	cfg := testConfig(t)
	db := openTestDB(t, cfg)

	svc := NewProcessingService(db, cfg, logging.Nop())
	_, err := svc.ProcessByProviderMessageID(context.Background(), "imap", "<missing@mail.test>")
	require.Error(t, err)
}

func TestProcessPendingLimitAppliesPerProvider(t *testing.T) {
	cfg := testConfig(t)
	db := openTestDB(t, cfg)
	storeEmail(t, db, "gmail", "<meeting-1@mail.test>", "testdata/unrelated.eml")
	storeEmail(t, db, "imap", "<roster-1@mail.test>", "testdata/roster.eml")

	svc := NewProcessingService(db, cfg, logging.Nop())
	results, err := svc.ProcessPending(context.Background(), 1, "imap")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "<roster-1@mail.test>", results[0].MessageID)
	assert.Equal(t, 2, results[0].Import.Created)
}

func TestProcessPendingContinuesAfterBrokenEmail(t *testing.T) {
	cfg := testConfig(t)
	db := openTestDB(t, cfg)
	storeEmail(t, db, "imap", "<gone@mail.test>", "testdata/missing.eml")
	storeEmail(t, db, "imap", "<roster-1@mail.test>", "testdata/roster.eml")

	svc := NewProcessingService(db, cfg, logging.Nop())
	results, err := svc.ProcessPending(context.Background(), 10, "imap")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Failed)
	assert.False(t, results[1].Failed)
	assert.Len(t, results[1].Records, 2)

	broken, err := db.GetEmailByProviderMessageID("imap", "<gone@mail.test>")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, broken.Status)
	roster, err := db.GetEmailByProviderMessageID("imap", "<roster-1@mail.test>")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, roster.Status)

	// the broken email is not retried on the next pass
	results, err = svc.ProcessPending(context.Background(), 10, "imap")
	require.NoError(t, err)
	assert.Empty(t, results)
}
