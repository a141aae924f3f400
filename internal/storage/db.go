package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"rosterimport/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS classes (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  label TEXT NOT NULL UNIQUE,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS students (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  participantNumber TEXT NOT NULL,
  passwordHash TEXT NOT NULL,
  role TEXT NOT NULL,
  classId INTEGER NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(classId) REFERENCES classes(id)
);
CREATE INDEX IF NOT EXISTS idx_students_classId ON students(classId);

CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  source TEXT NOT NULL,
  emailId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// FindOrCreateClass returns the class with label, inserting it first if needed.
func (d *DB) FindOrCreateClass(label string) (internal.GroupRow, error) {
	if _, err := d.conn.Exec(`INSERT INTO classes (label) VALUES (?) ON CONFLICT(label) DO NOTHING`, label); err != nil {
		return internal.GroupRow{}, err
	}

	var row internal.GroupRow
	if err := d.conn.QueryRow(`SELECT id, label FROM classes WHERE label = ?`, label).Scan(&row.ID, &row.Label); err != nil {
		return internal.GroupRow{}, err
	}
	return row, nil
}

func (d *DB) ListClasses() ([]internal.GroupRow, error) {
	rows, err := d.conn.Query(`SELECT id, label FROM classes ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.GroupRow
	for rows.Next() {
		var row internal.GroupRow
		if err := rows.Scan(&row.ID, &row.Label); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UsernameTaken reports whether username belongs to a student other than email.
func (d *DB) UsernameTaken(username, email string) (bool, error) {
	var count int
	err := d.conn.QueryRow(`SELECT COUNT(1) FROM students WHERE username = ? AND email != ?`, username, email).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpsertStudent inserts or updates the student keyed by email and reports
// whether a new row was created.
func (d *DB) UpsertStudent(s internal.StudentRow) (bool, error) {
	existing, err := d.GetStudentByEmail(s.Email)
	if err != nil {
		return false, err
	}

	_, err = d.conn.Exec(`
INSERT INTO students (name, username, email, participantNumber, passwordHash, role, classId)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(email) DO UPDATE SET
  name=excluded.name,
  username=excluded.username,
  participantNumber=excluded.participantNumber,
  passwordHash=excluded.passwordHash,
  role=excluded.role,
  classId=excluded.classId,
  updatedAt=CURRENT_TIMESTAMP
`, s.Name, s.Username, s.Email, s.ParticipantNumber, s.PasswordHash, s.Role, s.GroupID)
	if err != nil {
		return false, err
	}
	return existing == nil, nil
}

const studentColumns = `s.id, s.name, s.username, s.email, s.participantNumber, s.passwordHash, s.role, s.classId, c.label`

func (d *DB) GetStudentByEmail(email string) (*internal.StudentRow, error) {
	var row internal.StudentRow
	err := d.conn.QueryRow(`
SELECT `+studentColumns+`
FROM students s JOIN classes c ON c.id = s.classId
WHERE s.email = ?
`, email).Scan(
		&row.ID, &row.Name, &row.Username, &row.Email, &row.ParticipantNumber, &row.PasswordHash, &row.Role, &row.GroupID, &row.GroupLabel,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListStudents() ([]internal.StudentRow, error) {
	rows, err := d.conn.Query(`
SELECT ` + studentColumns + `
FROM students s JOIN classes c ON c.id = s.classId
ORDER BY c.id ASC, s.id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.StudentRow
	for rows.Next() {
		var row internal.StudentRow
		if err := rows.Scan(
			&row.ID, &row.Name, &row.Username, &row.Email, &row.ParticipantNumber, &row.PasswordHash, &row.Role, &row.GroupID, &row.GroupLabel,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

const emailColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef`

func scanEmail(scan func(dest ...any) error) (internal.EmailRow, error) {
	var row internal.EmailRow
	err := scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef)
	return row, err
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE provider = ? AND messageId = ?`, provider, messageID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

// ListEmailsByStatus returns up to limit emails with status, oldest first.
// An empty provider matches every provider.
func (d *DB) ListEmailsByStatus(status, provider string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`
SELECT `+emailColumns+` FROM emails
WHERE status = ? AND (? = '' OR provider = ?)
ORDER BY receivedAt ASC, id ASC
LIMIT ?`, status, provider, provider, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		row, err := scanEmail(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

// InsertRun records one import run. emailID is nil for runs not fed by a stored email.
func (d *DB) InsertRun(traceID, source string, emailID *int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, source, emailId, timingsJson, countsJson) VALUES (?, ?, ?, ?, ?)`, traceID, source, emailID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) CountRuns() (int, error) {
	var count int
	err := d.conn.QueryRow(`SELECT COUNT(1) FROM runs`).Scan(&count)
	return count, err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
