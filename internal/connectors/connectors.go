// Package connectors pulls raw roster emails out of a mailbox and stores them
// for the importer.
package connectors

import (
	"context"

	"rosterimport/internal"
)

type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
