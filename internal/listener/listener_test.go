package listener

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"rosterimport/internal"
	"rosterimport/internal/config"
	"rosterimport/internal/connectors"
	"rosterimport/internal/importer"
	"rosterimport/internal/logging"
	"rosterimport/internal/pipeline"
	"rosterimport/internal/storage"
)

type fakeConnector struct {
	messages []internal.FetchedMailMessage
	failures int
	calls    int
}

func (f *fakeConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.messages, nil
}

func testService(t *testing.T, messages ...internal.FetchedMailMessage) (*Service, *storage.DB, *fakeConnector) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		SectionMarker:            config.DefaultSectionMarker,
		PlaceholderDomain:        config.DefaultPlaceholderDomain,
		DBPath:                   filepath.Join(dir, "roster.db"),
		RawMailDir:               filepath.Join(dir, "raw"),
		OutputDir:                filepath.Join(dir, "out"),
		StudentRole:              "siswa",
		ParticipantFallbackMin:   50065000,
		ParticipantFallbackMax:   50069000,
		BcryptCost:               bcrypt.MinCost,
		MailListenerProvider:     "imap",
		MailListenerLabel:        "INBOX",
		MailListenerIntervalSec:  1,
		MailListenerFetchMax:     10,
		MailListenerFetchRetries: 3,
		MailListenerProcessBatch: 10,
		MailListenerAutoExport:   true,
	}

	db, err := storage.Open(cfg.DBPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	conn := &fakeConnector{messages: messages}
	svc := NewService(db, cfg, logging.Nop())
	svc.newConnector = func(config.Config, string) (connectors.MailConnector, error) {
		return conn, nil
	}
	svc.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return svc, db, conn
}

func fixture(t *testing.T, name, messageID string) internal.FetchedMailMessage {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "pipeline", "testdata", name))
	require.NoError(t, err)
	return internal.FetchedMailMessage{Provider: "imap", MessageID: messageID, ReceivedAt: "2025-10-06T01:00:00Z", Raw: raw}
}

func TestRunCycleImportsAndExports(t *testing.T) {
	svc, db, _ := testService(t,
		fixture(t, "roster.eml", "<roster-1@mail.test>"),
		fixture(t, "unrelated.eml", "<meeting-1@mail.test>"),
	)

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleResult{Fetched: 2, Stored: 2, Processed: 1, Skipped: 1, Exported: 1}, res)

	email, err := db.GetEmailByProviderMessageID("imap", "<roster-1@mail.test>")
	require.NoError(t, err)
	require.NotNil(t, email)
	assert.Equal(t, importer.StatusExported, email.Status)

	out := filepath.Join(svc.cfg.OutputDir, "listener", "1__roster-1@mail.test_.xlsx")
	records, err := pipeline.ExtractRecordsFromInput(internal.InputXLSX, out, pipeline.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Jane Doe", records[0].Name)
	assert.Equal(t, "XI AKL 1", records[0].GroupLabel)

	// nothing new on the second pass
	res, err = svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, 0, res.Stored)
}

func TestRunCycleWithoutAutoExport(t *testing.T) {
	svc, db, _ := testService(t, fixture(t, "roster.eml", "<roster-1@mail.test>"))
	svc.cfg.MailListenerAutoExport = false

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 0, res.Exported)

	email, err := db.GetEmailByProviderMessageID("imap", "<roster-1@mail.test>")
	require.NoError(t, err)
	assert.Equal(t, importer.StatusProcessed, email.Status)
}

func TestRunCycleRetriesFetch(t *testing.T) {
	svc, _, conn := testService(t, fixture(t, "roster.eml", "<roster-1@mail.test>"))
	conn.failures = 2

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, conn.calls)
	assert.Equal(t, 1, res.Processed)
}

func TestRunCycleGivesUpAfterRetries(t *testing.T) {
	svc, _, conn := testService(t)
	conn.failures = 10

	_, err := svc.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, conn.calls)
}

func TestRunCycleConnectorError(t *testing.T) {
	svc, _, _ := testService(t)
	boom := errors.New("no credentials")
	svc.newConnector = func(config.Config, string) (connectors.MailConnector, error) { return nil, boom }

	_, err := svc.RunCycle(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, _, _ := testService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, svc.Run(ctx))
}

func TestRunRejectsZeroInterval(t *testing.T) {
	svc, _, _ := testService(t)
	svc.cfg.MailListenerIntervalSec = 0

	require.Error(t, svc.Run(context.Background()))
}

func TestNewConnectorUnknownProvider(t *testing.T) {
	_, err := NewConnector(config.Config{}, "pop3")
	require.Error(t, err)
}

func TestRunCycleCountsBrokenEmailAndKeepsGoing(t *testing.T) {
	svc, db, _ := testService(t, fixture(t, "roster.eml", "<roster-1@mail.test>"))
	_, err := db.UpsertEmail("imap", "<gone@mail.test>", "", "", "2025-10-05T00:00:00Z", "gone", filepath.Join(t.TempDir(), "gone.eml"), importer.StatusFetched)
	require.NoError(t, err)

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Exported)
}
