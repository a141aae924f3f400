package connectors

import (
	"context"
	"fmt"

	"rosterimport/internal/storage"
)

type FetchService struct {
	db        *storage.DB
	connector MailConnector
	store     *MailStoreService
}

type FetchResult struct {
	Fetched    int
	Stored     int
	Duplicates int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector) *FetchService {
	return &FetchService{
		db:        db,
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
	}
}

// FetchAndStore saves every fetched message. Messages already known by
// provider and message id are refreshed but keep their processing status.
func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	if max <= 0 {
		return FetchResult{}, fmt.Errorf("max must be positive, got %d", max)
	}

	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		existing, err := s.db.GetEmailByProviderMessageID(msg.Provider, msg.MessageID)
		if err != nil {
			return res, err
		}
		if _, err := s.store.Store(msg); err != nil {
			return res, fmt.Errorf("store %s: %w", msg.MessageID, err)
		}
		if existing != nil {
			res.Duplicates++
			continue
		}
		res.Stored++
	}

	return res, nil
}
