// Package importer turns parsed roster records into student accounts.
//
// Each record becomes one row in the students table, keyed by email. The
// class named by the record's group label is created on first use, the
// participant number doubles as the initial password and the login name is
// derived from the student's name.
package importer

import (
	"context"
	"fmt"
	mrand "math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"rosterimport/internal"
	"rosterimport/internal/config"
	"rosterimport/internal/logging"
	"rosterimport/internal/storage"
	"rosterimport/internal/util"
)

const (
	MetadataLastImport = "roster.last_import"
	defaultUsername    = "student"
)

type Service struct {
	db  *storage.DB
	cfg config.Config
	log *logging.Logger

	// intN returns a value in [0, n); swapped in tests.
	intN func(n int) int
}

type Result struct {
	Classes int
	Created int
	Updated int
	Failed  int
}

func (r Result) Imported() int {
	return r.Created + r.Updated
}

func NewService(db *storage.DB, cfg config.Config, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{db: db, cfg: cfg, log: log, intN: mrand.IntN}
}

// Import upserts every record. A record that fails is logged and counted,
// the rest still go through. The returned error is only set when the run
// itself cannot continue, such as a cancelled context.
func (s *Service) Import(ctx context.Context, source string, emailID *int, records []internal.Record) (Result, error) {
	start := time.Now()
	res := Result{}
	classes := map[string]int{}

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		created, err := s.importOne(rec, classes)
		if err != nil {
			res.Failed++
			s.log.Errorw("import student failed", "index", i, "name", rec.Name, "email", rec.Email, "error", err)
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}
	res.Classes = len(classes)

	if err := s.db.SetMetadata(MetadataLastImport, time.Now().UTC().Format(time.RFC3339)); err != nil {
		s.log.Warnw("store last import time", "error", err)
	}
	counts := map[string]int{"records": len(records), "created": res.Created, "updated": res.Updated, "failed": res.Failed, "classes": res.Classes}
	if err := s.db.InsertRun(traceID(), source, emailID, map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}, counts); err != nil {
		s.log.Warnw("store import run", "error", err)
	}

	s.log.Infow("import done", "source", source, "created", res.Created, "updated", res.Updated, "failed", res.Failed, "classes", res.Classes)
	return res, nil
}

func (s *Service) importOne(rec internal.Record, classes map[string]int) (bool, error) {
	email := strings.TrimSpace(rec.Email)
	if email == "" || email == internal.MissingValue {
		return false, fmt.Errorf("record has no email")
	}

	classID, ok := classes[rec.GroupLabel]
	if !ok {
		class, err := s.db.FindOrCreateClass(rec.GroupLabel)
		if err != nil {
			return false, fmt.Errorf("find or create class %q: %w", rec.GroupLabel, err)
		}
		classID = class.ID
		classes[rec.GroupLabel] = classID
	}

	number := s.participantNumber(rec.ParticipantNumber)
	hash, err := bcrypt.GenerateFromPassword([]byte(number), s.cfg.BcryptCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	username, err := s.uniqueUsername(rec.Name, email)
	if err != nil {
		return false, err
	}

	return s.db.UpsertStudent(internal.StudentRow{
		Name:              rec.Name,
		Username:          username,
		Email:             email,
		ParticipantNumber: number,
		PasswordHash:      string(hash),
		Role:              s.cfg.StudentRole,
		GroupID:           classID,
	})
}

// participantNumber keeps a real number and draws a fallback for a missing one.
func (s *Service) participantNumber(value string) string {
	value = strings.TrimSpace(value)
	if value != "" && value != internal.MissingValue {
		return value
	}
	lo, hi := s.cfg.ParticipantFallbackMin, s.cfg.ParticipantFallbackMax
	return strconv.Itoa(lo + s.intN(hi-lo+1))
}

// uniqueUsername appends 1, 2, ... until no other email owns the handle.
func (s *Service) uniqueUsername(name, email string) (string, error) {
	base := util.Username(name)
	if base == "" {
		base = defaultUsername
	}

	username := base
	for counter := 1; ; counter++ {
		taken, err := s.db.UsernameTaken(username, email)
		if err != nil {
			return "", fmt.Errorf("check username %q: %w", username, err)
		}
		if !taken {
			return username, nil
		}
		username = base + strconv.Itoa(counter)
	}
}

func traceID() string {
	return uuid.NewString()
}
