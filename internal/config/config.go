// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, moderation thresholds,
// rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// ClassifierConfig defines remote AI classifier settings. An empty APIKey
// disables the remote layer entirely; the pipeline then runs on local
// pattern matching and the toxicity model alone.
type ClassifierConfig struct {
	BaseURL string        // CLASSIFIER_BASE_URL (OpenAI-compatible endpoint)
	APIKey  string        // CLASSIFIER_API_KEY
	Model   string        // CLASSIFIER_MODEL
	Timeout time.Duration // CLASSIFIER_TIMEOUT
}

// VouchConfig defines ledger behavior: duplicate suppression and notice
// lifetimes.
type VouchConfig struct {
	DupWindow   time.Duration // VOUCH_DUP_WINDOW
	AckDelay    time.Duration // VOUCH_ACK_DELAY
	NoticeDelay time.Duration // VOUCH_NOTICE_DELAY
	NoteMaxLen  int           // VOUCH_NOTE_MAX_LEN (runes, command path)
}

// ModerationConfig defines velocity, probation and strike settings.
type ModerationConfig struct {
	MsgLimit       int           // MSG_RATE_LIMIT
	MsgWindow      time.Duration // MSG_RATE_WINDOW
	LinkLimit      int           // LINK_RATE_LIMIT
	LinkWindow     time.Duration // LINK_RATE_WINDOW
	Probation      time.Duration // NEW_ACCOUNT_PROBATION
	MaxStrikes     int           // MAX_STRIKES
	StrikeReset    time.Duration // STRIKE_RESET
	StrikeCapacity int           // STRIKE_CAPACITY (tracked users)
	MuteDuration   time.Duration // MUTE_DURATION
	ToxicThreshold float64       // TOXIC_THRESHOLD in [0,1]
	DedupWindow    time.Duration // MESSAGE_DEDUP_WINDOW
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "vouchguard")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server (admin API)
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath  string // SQLite path for the vouch ledger
	AdminID int64  // platform user id with admin rights

	// Admin API rate limiting (token bucket per client)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	Classifier ClassifierConfig
	Vouch      VouchConfig
	Moderation ModerationConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DBPath:  getenv("DB_PATH", "vouchguard.db"),
		AdminID: getint64("ADMIN_ID", 0),

		// Admin API rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		Classifier: ClassifierConfig{
			BaseURL: getenv("CLASSIFIER_BASE_URL", "https://api.groq.com/openai/v1"),
			APIKey:  getenv("CLASSIFIER_API_KEY", ""),
			Model:   getenv("CLASSIFIER_MODEL", "llama-3.1-8b-instant"),
			Timeout: getdur("CLASSIFIER_TIMEOUT", 15*time.Second),
		},

		Vouch: VouchConfig{
			DupWindow:   getdur("VOUCH_DUP_WINDOW", 24*time.Hour),
			AckDelay:    getdur("VOUCH_ACK_DELAY", 10*time.Second),
			NoticeDelay: getdur("VOUCH_NOTICE_DELAY", 15*time.Second),
			NoteMaxLen:  getint("VOUCH_NOTE_MAX_LEN", 160),
		},

		Moderation: ModerationConfig{
			MsgLimit:       getint("MSG_RATE_LIMIT", 5),
			MsgWindow:      getdur("MSG_RATE_WINDOW", 10*time.Second),
			LinkLimit:      getint("LINK_RATE_LIMIT", 3),
			LinkWindow:     getdur("LINK_RATE_WINDOW", 30*time.Second),
			Probation:      getdur("NEW_ACCOUNT_PROBATION", 24*time.Hour),
			MaxStrikes:     getint("MAX_STRIKES", 3),
			StrikeReset:    getdur("STRIKE_RESET", 24*time.Hour),
			StrikeCapacity: getint("STRIKE_CAPACITY", 4096),
			MuteDuration:   getdur("MUTE_DURATION", time.Hour),
			ToxicThreshold: getfloat("TOXIC_THRESHOLD", 0.80),
			DedupWindow:    getdur("MESSAGE_DEDUP_WINDOW", 300*time.Second),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "vouchguard"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Classifier.Timeout <= 0 {
		return cfg, errors.New("CLASSIFIER_TIMEOUT must be > 0")
	}
	if cfg.Vouch.DupWindow < 0 {
		return cfg, errors.New("VOUCH_DUP_WINDOW must be >= 0")
	}
	if cfg.Vouch.NoteMaxLen < 1 {
		return cfg, errors.New("VOUCH_NOTE_MAX_LEN must be >= 1")
	}
	if cfg.Moderation.MsgLimit < 1 || cfg.Moderation.LinkLimit < 1 {
		return cfg, errors.New("rate limits must be >= 1")
	}
	if cfg.Moderation.MaxStrikes < 1 {
		return cfg, errors.New("MAX_STRIKES must be >= 1")
	}
	if cfg.Moderation.ToxicThreshold < 0 || cfg.Moderation.ToxicThreshold > 1 {
		return cfg, errors.New("TOXIC_THRESHOLD must be between 0 and 1")
	}
	if cfg.Moderation.DedupWindow <= 0 {
		return cfg, errors.New("MESSAGE_DEDUP_WINDOW must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
