package pipeline

import (
	"strings"

	"rosterimport/internal"
)

// NormalizeRow turns a parsed table row into a Record for group label.
// A missing email is replaced by PlaceholderEmail; every other field is kept
// as parsed, including a participant number of "-".
func NormalizeRow(row internal.TableRow, label, domain string) internal.Record {
	email := strings.TrimSpace(row.Email)
	if email == internal.MissingValue {
		email = PlaceholderEmail(row.Name, row.Ordinal, domain)
	}
	return internal.Record{
		Name:              row.Name,
		Email:             email,
		ParticipantNumber: row.ParticipantNumber,
		GroupLabel:        label,
	}
}

// PlaceholderEmail builds "<name lowercased, spaces as dots>.<ordinal>.<domain>".
// The name is not sanitized further: diacritics and punctuation are kept so the
// result stays a pure function of the row.
func PlaceholderEmail(name, ordinal, domain string) string {
	local := strings.ReplaceAll(strings.ToLower(name), " ", ".")
	return local + "." + ordinal + "." + domain
}
