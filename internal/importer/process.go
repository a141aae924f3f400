package importer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"rosterimport/internal"
	"rosterimport/internal/config"
	"rosterimport/internal/logging"
	"rosterimport/internal/pipeline"
	"rosterimport/internal/storage"
)

const (
	StatusFetched   = "fetched"
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusExported  = "exported"
	StatusFailed    = "failed"
)

type ProcessingService struct {
	db       *storage.DB
	cfg      config.Config
	log      *logging.Logger
	importer *Service
}

func NewProcessingService(db *storage.DB, cfg config.Config, log *logging.Logger) *ProcessingService {
	if log == nil {
		log = logging.Nop()
	}
	return &ProcessingService{db: db, cfg: cfg, log: log, importer: NewService(db, cfg, log)}
}

type ProcessResult struct {
	EmailID   int
	MessageID string
	Skipped   bool
	Failed    bool
	Records   []internal.Record
	Import    Result
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(ctx, email)
}

// ProcessPending handles up to limit fetched emails of provider, oldest
// first. An empty provider matches every provider. An email that cannot be
// processed is marked failed and the rest of the batch still runs.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) ([]ProcessResult, error) {
	pending, err := s.db.ListEmailsByStatus(StatusFetched, provider, limit)
	if err != nil {
		return nil, err
	}

	out := make([]ProcessResult, 0, len(pending))
	for _, email := range pending {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := s.ProcessEmail(ctx, email)
		if err != nil {
			if ctx.Err() != nil {
				return out, err
			}
			s.log.Errorw("process email failed", "emailId", email.ID, "messageId", email.MessageID, "error", err)
			if err := s.db.UpdateEmailStatus(email.ID, StatusFailed); err != nil {
				return out, fmt.Errorf("mark email %d failed: %w", email.ID, err)
			}
			res = ProcessResult{EmailID: email.ID, MessageID: email.MessageID, Failed: true}
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *ProcessingService) ProcessEmail(ctx context.Context, email internal.EmailRow) (ProcessResult, error) {
	start := time.Now()
	log := s.log.With("emailId", email.ID, "messageId", email.MessageID)

	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	opts := pipeline.OptionsFromConfig(s.cfg)
	extraction, err := pipeline.ExtractRecordsFromEmailRaw(raw, opts)
	if err != nil {
		return ProcessResult{}, err
	}

	detect := pipeline.DetectRoster(firstNonEmpty(extraction.Subject, email.Subject), extraction.Text, extraction.HTML, extraction.AttachmentNames, opts.SectionMarker)
	log.Debugw("roster detection", "score", detect.Score, "reason", detect.Reason, "records", len(extraction.Records))

	if !detect.IsRoster || len(extraction.Records) == 0 {
		if err := s.db.UpdateEmailStatus(email.ID, StatusSkipped); err != nil {
			return ProcessResult{}, err
		}
		_ = s.db.InsertRun(traceID(), "email", &email.ID, map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}, map[string]int{"records": len(extraction.Records)})
		log.Infow("email skipped", "score", detect.Score)
		return ProcessResult{EmailID: email.ID, MessageID: email.MessageID, Skipped: true}, nil
	}

	imported, err := s.importer.Import(ctx, "email", &email.ID, extraction.Records)
	if err != nil {
		return ProcessResult{}, err
	}
	if err := s.db.UpdateEmailStatus(email.ID, StatusProcessed); err != nil {
		return ProcessResult{}, err
	}

	return ProcessResult{EmailID: email.ID, MessageID: email.MessageID, Records: extraction.Records, Import: imported}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
