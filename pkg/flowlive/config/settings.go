package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	flerrors "github.com/randalmurphal/flowlive/pkg/flowlive/errors"
	"github.com/randalmurphal/flowlive/pkg/flowlive/protocol"
)

// Settings is the validated configuration of a flowlive client.
type Settings struct {
	ServerURL string `validate:"required,wsurl"`
	FlowID    string

	Structural      bool
	MaxPaths        int `validate:"gte=1"`
	FormConcurrency int `validate:"gte=0"`

	HandshakeTimeout time.Duration `validate:"gt=0"`
	WriteTimeout     time.Duration `validate:"gt=0"`
	ReadLimit        int64         `validate:"gte=0"`
	LockCloseCodes   []int         `validate:"dive,gte=1000,lte=4999"`

	HistoryDB       string
	HistoryPageSize int `validate:"gte=1,lte=500"`
	MaxTranscript   int `validate:"gte=0"`

	Reconnect flerrors.RetryConfig
}

// Default values.
const (
	DefaultMaxPaths         = 10000
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultReadLimit        = 4 << 20
	DefaultHistoryPageSize  = 20
)

// DefaultSettings returns settings with every default filled in and no
// server URL.
func DefaultSettings() Settings {
	return Settings{
		MaxPaths:         DefaultMaxPaths,
		HandshakeTimeout: DefaultHandshakeTimeout,
		WriteTimeout:     DefaultWriteTimeout,
		ReadLimit:        DefaultReadLimit,
		LockCloseCodes:   slices.Clone(protocol.LockCloseCodes),
		HistoryPageSize:  DefaultHistoryPageSize,
		Reconnect:        flerrors.DefaultRetry,
	}
}

// ClosePolicy returns the configured close policy.
func (s Settings) ClosePolicy() protocol.ClosePolicy {
	return protocol.ClosePolicy(slices.Clone(s.LockCloseCodes))
}

// Validate checks every field and returns a *ValidationError listing all
// failures.
func (s Settings) Validate() error {
	err := settingsValidate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return out
}

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invalid settings: " + strings.Join(e.Fields, "; ")
}

// SettingsFrom builds Settings from a Config, applying defaults for missing
// keys, and validates the result.
func SettingsFrom(c Config) (Settings, error) {
	d := DefaultSettings()
	s := Settings{
		ServerURL:       c.String("server_url", d.ServerURL),
		FlowID:          c.String("flow_id", d.FlowID),
		Structural:      c.Bool("structural", d.Structural),
		MaxPaths:        c.Int("max_paths", d.MaxPaths),
		FormConcurrency: c.Int("form_concurrency", d.FormConcurrency),

		HandshakeTimeout: c.Duration("connection.handshake_timeout", d.HandshakeTimeout),
		WriteTimeout:     c.Duration("connection.write_timeout", d.WriteTimeout),
		ReadLimit:        int64(c.Int("connection.read_limit", int(d.ReadLimit))),
		LockCloseCodes:   c.IntSlice("connection.lock_close_codes", d.LockCloseCodes),

		HistoryDB:       c.String("history.db", d.HistoryDB),
		HistoryPageSize: c.Int("history.page_size", d.HistoryPageSize),
		MaxTranscript:   c.Int("history.max_transcript", d.MaxTranscript),

		Reconnect: flerrors.RetryConfig{
			MaxAttempts:    c.Int("reconnect.max_attempts", d.Reconnect.MaxAttempts),
			InitialBackoff: c.Duration("reconnect.initial_backoff", d.Reconnect.InitialBackoff),
			MaxBackoff:     c.Duration("reconnect.max_backoff", d.Reconnect.MaxBackoff),
			BackoffFactor:  c.Float("reconnect.backoff_factor", d.Reconnect.BackoffFactor),
			Jitter:         c.Float("reconnect.jitter", d.Reconnect.Jitter),
		},
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Load reads a YAML or JSON file, applies the environment overrides and
// returns validated Settings.
func Load(path string) (Settings, error) {
	c, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	return SettingsFrom(c.Overlay(os.LookupEnv))
}

var settingsValidate *validator.Validate

func init() {
	settingsValidate = validator.New()
	_ = settingsValidate.RegisterValidation("wsurl", validateWSURL)
}

// validateWSURL accepts absolute ws, wss, http and https URLs with a host.
func validateWSURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
		return true
	}
	return false
}
