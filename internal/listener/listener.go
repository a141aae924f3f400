package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"rosterimport/internal/config"
	"rosterimport/internal/connectors"
	gmailconnector "rosterimport/internal/connectors/gmail"
	imapconnector "rosterimport/internal/connectors/imap"
	"rosterimport/internal/importer"
	"rosterimport/internal/logging"
	"rosterimport/internal/pipeline"
	"rosterimport/internal/storage"
	"rosterimport/internal/util"
)

type ConnectorFactory func(cfg config.Config, provider string) (connectors.MailConnector, error)

type Service struct {
	db           *storage.DB
	cfg          config.Config
	log          *logging.Logger
	newConnector ConnectorFactory
	newBackOff   func() backoff.BackOff
}

func NewService(db *storage.DB, cfg config.Config, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{db: db, cfg: cfg, log: log, newConnector: NewConnector, newBackOff: fetchBackOff}
}

func fetchBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 2 * time.Second
	exp.MaxInterval = 30 * time.Second
	exp.Reset()
	return exp
}

type CycleResult struct {
	Fetched   int
	Stored    int
	Processed int
	Skipped   int
	Failed    int
	Exported  int
}

// Run polls the mailbox until ctx is done. A failed cycle is logged and the
// next one starts after the usual interval.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		return fmt.Errorf("MAIL_LISTENER_INTERVAL_SEC must be positive, got %d", s.cfg.MailListenerIntervalSec)
	}

	for {
		if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			s.log.Errorw("listener cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector, err := s.newConnector(s.cfg, provider)
	if err != nil {
		return CycleResult{}, err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector)
	attempt := 0
	fetchResult, err := backoff.Retry(ctx, func() (connectors.FetchResult, error) {
		attempt++
		res, err := fetchService.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
		if err != nil {
			s.log.Warnw("mail fetch failed", "provider", provider, "attempt", attempt, "error", err)
		}
		return res, err
	}, backoff.WithBackOff(s.newBackOff()), backoff.WithMaxTries(uint(max(s.cfg.MailListenerFetchRetries, 1))))
	if err != nil {
		return CycleResult{}, err
	}

	res := CycleResult{Fetched: fetchResult.Fetched, Stored: fetchResult.Stored}

	processor := importer.NewProcessingService(s.db, s.cfg, s.log)
	results, err := processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return res, err
	}

	for _, pr := range results {
		if pr.Failed {
			res.Failed++
			continue
		}
		if pr.Skipped {
			res.Skipped++
			continue
		}
		res.Processed++
		if !s.cfg.MailListenerAutoExport {
			continue
		}
		if err := s.export(pr); err != nil {
			return res, err
		}
		res.Exported++
	}

	s.log.Infow("listener cycle done", "provider", provider, "fetched", res.Fetched, "stored", res.Stored, "processed", res.Processed, "skipped", res.Skipped, "failed", res.Failed, "exported", res.Exported)
	return res, nil
}

func (s *Service) export(pr importer.ProcessResult) error {
	filename := fmt.Sprintf("%d_%s.xlsx", pr.EmailID, util.SanitizeFilename(pr.MessageID))
	outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
	if err := pipeline.ExportRecordsToXLSX(pr.Records, outputPath); err != nil {
		return fmt.Errorf("export email %d: %w", pr.EmailID, err)
	}
	return s.db.UpdateEmailStatus(pr.EmailID, importer.StatusExported)
}

// NewConnector builds the mail connector for provider.
func NewConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case gmailconnector.ProviderName:
		return gmailconnector.NewConnector(cfg)
	case imapconnector.ProviderName:
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
