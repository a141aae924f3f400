package internal

type InputType string

const (
	InputEmbedded InputType = "embedded"
	InputMarkdown InputType = "markdown"
	InputEmail    InputType = "email"
	InputHTML     InputType = "html"
	InputPDF      InputType = "pdf"
	InputXLSX     InputType = "xlsx"
)

// MissingValue marks an absent cell in the source tables.
const MissingValue = "-"

// TableRow is one data row of a roster table, fields trimmed, in column order.
type TableRow struct {
	Ordinal           string
	Name              string
	Email             string
	ParticipantNumber string
}

// Record is the normalized output unit. Field order drives JSON key order.
type Record struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	ParticipantNumber string `json:"participant_number"`
	GroupLabel        string `json:"group_label"`
}

type GroupRow struct {
	ID    int
	Label string
}

type StudentRow struct {
	ID                int
	Name              string
	Username          string
	Email             string
	ParticipantNumber string
	PasswordHash      string
	Role              string
	GroupID           int
	GroupLabel        string
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
