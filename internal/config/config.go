package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

const (
	DefaultSectionMarker     = "📌 *"
	DefaultPlaceholderDomain = "example.com"
	DefaultOutputPath        = "students_data.json"
)

type Config struct {
	InputType         string `validate:"oneof=embedded markdown email html pdf xlsx"`
	InputPath         string
	OutputPath        string `validate:"required"`
	XLSXOutputPath    string
	SectionMarker     string `validate:"required"`
	PlaceholderDomain string `validate:"required,hostname_rfc1123"`

	DBPath     string `validate:"required"`
	RawMailDir string `validate:"required"`

	StudentRole            string `validate:"required"`
	ParticipantFallbackMin int    `validate:"gte=0"`
	ParticipantFallbackMax int    `validate:"gtefield=ParticipantFallbackMin"`
	BcryptCost             int    `validate:"min=4,max=31"`

	LogEnv    string
	OutputDir string `validate:"required"`

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int `validate:"min=1,max=65535"`
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string `validate:"oneof=gmail imap"`
	MailListenerLabel        string `validate:"required"`
	MailListenerIntervalSec  int    `validate:"min=1"`
	MailListenerFetchMax     int    `validate:"min=1"`
	MailListenerFetchRetries int    `validate:"min=1"`
	MailListenerProcessBatch int    `validate:"min=1"`
	MailListenerAutoExport   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		InputType:         getEnv("ROSTER_INPUT_TYPE", "embedded"),
		InputPath:         getEnv("ROSTER_INPUT", ""),
		OutputPath:        getEnv("ROSTER_OUTPUT", DefaultOutputPath),
		XLSXOutputPath:    getEnv("ROSTER_XLSX_OUTPUT", ""),
		SectionMarker:     getEnv("ROSTER_SECTION_MARKER", DefaultSectionMarker),
		PlaceholderDomain: getEnv("ROSTER_PLACEHOLDER_DOMAIN", DefaultPlaceholderDomain),

		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "roster.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),

		StudentRole:            getEnv("STUDENT_ROLE", "siswa"),
		ParticipantFallbackMin: getEnvInt("PARTICIPANT_FALLBACK_MIN", 50065000),
		ParticipantFallbackMax: getEnvInt("PARTICIPANT_FALLBACK_MAX", 50069000),
		BcryptCost:             getEnvInt("BCRYPT_COST", 10),

		LogEnv:    getEnv("LOG_ENV", "production"),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "gmail"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 60),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 50),
		MailListenerFetchRetries: getEnvInt("MAIL_LISTENER_FETCH_RETRIES", 3),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks ranges and enumerations; credentials are checked by the
// connectors that need them.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", e.Field(), e.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
