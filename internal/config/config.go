// Package config loads the server configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then a
// .env file in the working directory (when present), then CRM_* environment
// variables. Later layers win.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // studio zone on hosts without zoneinfo

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"crmpilates/internal/logging"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// KeySize is the length of every secret key, in bytes.
const KeySize = 32

// Config is the full server configuration.
type Config struct {
	Addr     string `yaml:"addr"`
	Env      string `yaml:"env"`
	TimeZone string `yaml:"time_zone"`

	APIBaseURL    string        `yaml:"api_base_url"`
	APITimeout    time.Duration `yaml:"api_timeout"`
	APIMaxRetries int           `yaml:"api_max_retries"`

	DBPath     string        `yaml:"db_path"`
	SessionTTL time.Duration `yaml:"session_ttl"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Hex-encoded 32-byte secrets; generated per start outside production.
	CSRFKey    string `yaml:"csrf_key"`
	SessionKey string `yaml:"session_key"`
	StorageKey string `yaml:"storage_key"`

	TrustedOrigins []string `yaml:"trusted_origins"`

	AlertEmail         string `yaml:"alert_email"`
	ResendKey          string `yaml:"resend_key"`
	ResendFrom         string `yaml:"resend_from"`
	LowCreditThreshold int    `yaml:"low_credit_threshold"`

	PurgeSchedule string        `yaml:"purge_schedule"`
	SlowRequest   time.Duration `yaml:"slow_request"`
	SlowQuery     time.Duration `yaml:"slow_query"`
	SlowUpstream  time.Duration `yaml:"slow_upstream"`
}

// Default returns the development defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		Env:                EnvDevelopment,
		TimeZone:           "Europe/Paris",
		APIBaseURL:         "http://localhost:8000",
		APITimeout:         10 * time.Second,
		APIMaxRetries:      2,
		DBPath:             "crmpilates.db",
		SessionTTL:         24 * time.Hour,
		LogLevel:           "info",
		LogFormat:          "text",
		TrustedOrigins:     []string{"localhost:8080", "127.0.0.1:8080"},
		ResendFrom:         "Pilates CRM <noreply@localhost>",
		LowCreditThreshold: 1,
		PurgeSchedule:      "@every 1h",
		SlowRequest:        200 * time.Millisecond,
		SlowQuery:          50 * time.Millisecond,
		SlowUpstream:       500 * time.Millisecond,
	}
}

// Load builds the configuration from defaults, path (if non-empty), .env and
// the environment, then validates it.
// POST: missing keys are generated outside production
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.fillKeys(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields from CRM_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		if v, ok := lookup(name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
		return nil
	}
	num := func(name string, dst *int) error {
		if v, ok := lookup(name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
		return nil
	}

	str("CRM_ADDR", &c.Addr)
	str("CRM_ENV", &c.Env)
	str("CRM_TIME_ZONE", &c.TimeZone)
	str("CRM_API_BASE_URL", &c.APIBaseURL)
	str("CRM_DB_PATH", &c.DBPath)
	str("CRM_LOG_LEVEL", &c.LogLevel)
	str("CRM_LOG_FORMAT", &c.LogFormat)
	str("CRM_CSRF_KEY", &c.CSRFKey)
	str("CRM_SESSION_KEY", &c.SessionKey)
	str("CRM_STORAGE_KEY", &c.StorageKey)
	str("CRM_ALERT_EMAIL", &c.AlertEmail)
	str("CRM_RESEND_KEY", &c.ResendKey)
	str("CRM_RESEND_FROM", &c.ResendFrom)
	str("CRM_PURGE_SCHEDULE", &c.PurgeSchedule)
	if v, ok := lookup("CRM_TRUSTED_ORIGINS"); ok && v != "" {
		c.TrustedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.TrustedOrigins = append(c.TrustedOrigins, origin)
			}
		}
	}

	return errors.Join(
		dur("CRM_API_TIMEOUT", &c.APITimeout),
		dur("CRM_SESSION_TTL", &c.SessionTTL),
		dur("CRM_SLOW_REQUEST", &c.SlowRequest),
		dur("CRM_SLOW_QUERY", &c.SlowQuery),
		dur("CRM_SLOW_UPSTREAM", &c.SlowUpstream),
		num("CRM_API_MAX_RETRIES", &c.APIMaxRetries),
		num("CRM_LOW_CREDIT_THRESHOLD", &c.LowCreditThreshold),
	)
}

// fillKeys generates missing secrets in development.
// Sessions and stored tokens do not survive a restart with generated keys.
func (c *Config) fillKeys() error {
	for _, k := range []struct {
		name string
		dst  *string
	}{
		{"csrf_key", &c.CSRFKey},
		{"session_key", &c.SessionKey},
		{"storage_key", &c.StorageKey},
	} {
		if *k.dst != "" || c.IsProduction() {
			continue
		}
		b := make([]byte, KeySize)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("generate %s: %w", k.name, err)
		}
		*k.dst = hex.EncodeToString(b)
		slog.Warn("config_event", "event", "key_generated", "key", k.name)
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate checks every field and returns all problems at once.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("env %q must be %s or %s", c.Env, EnvDevelopment, EnvProduction))
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("time_zone: %w", err))
	}
	if u, err := url.Parse(c.APIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_base_url %q must be an absolute http(s) URL", c.APIBaseURL))
	}
	if c.APITimeout <= 0 {
		errs = append(errs, errors.New("api_timeout must be positive"))
	}
	if c.APIMaxRetries < 0 {
		errs = append(errs, errors.New("api_max_retries must not be negative"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session_ttl must be positive"))
	}
	if err := logging.Validate(logging.Options{Level: c.LogLevel, Format: c.LogFormat}); err != nil {
		errs = append(errs, err)
	}
	for name, value := range map[string]string{"csrf_key": c.CSRFKey, "session_key": c.SessionKey, "storage_key": c.StorageKey} {
		if _, err := decodeKey(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.LowCreditThreshold < 0 {
		errs = append(errs, errors.New("low_credit_threshold must not be negative"))
	}
	if _, err := cron.ParseStandard(c.PurgeSchedule); err != nil {
		errs = append(errs, fmt.Errorf("purge_schedule: %w", err))
	}
	return errors.Join(errs...)
}

// Location returns the studio time zone.
// PRE: Validate succeeded
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Keys returns the decoded CSRF, session and storage keys.
// PRE: Validate succeeded
func (c Config) Keys() (csrfKey, sessionKey, storageKey []byte) {
	csrfKey, _ = decodeKey(c.CSRFKey)
	sessionKey, _ = decodeKey(c.SessionKey)
	storageKey, _ = decodeKey(c.StorageKey)
	return csrfKey, sessionKey, storageKey
}

func decodeKey(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("is required")
	}
	key, err := hex.DecodeString(value)
	if err != nil || len(key) != KeySize {
		return nil, fmt.Errorf("must be %d hex characters", KeySize*2)
	}
	return key, nil
}
