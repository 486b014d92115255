// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes bot settings, the
// HTTP server, logging, the SQLite path, rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on minimal images
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "feedback-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// BotConfig holds the chat-side settings.
type BotConfig struct {
	Token              string        // BOT_TOKEN
	AdminID            int64         // ADMIN_ID, the single administrator
	MaxMessageLength   int           // MAX_MESSAGE_LENGTH in runes
	UnansweredPageSize int           // UNANSWERED_PAGE_SIZE
	HistoryPageSize    int           // HISTORY_PAGE_SIZE
	SessionTTL         time.Duration // SESSION_TTL, pending intents expire after this
	UpdateDedupeTTL    time.Duration // UPDATE_DEDUPE_TTL
	UserRateRPS        float64       // USER_RATE_RPS per sender
	UserRateBurst      int           // USER_RATE_BURST
	PollTimeout        int           // POLL_TIMEOUT seconds
	QueueSize          int           // EVENT_QUEUE_SIZE
	TimeZone           string        // TIMEZONE for rendered timestamps
}

// WebhookConfig switches update delivery from long polling to webhook.
type WebhookConfig struct {
	URL    string // WEBHOOK_URL, public https base URL; empty means polling
	Secret string // WEBHOOK_SECRET, last path segment of the webhook route
}

// Enabled reports whether webhook delivery is configured.
func (w WebhookConfig) Enabled() bool { return w.URL != "" }

// Endpoint is the full URL registered with Telegram.
func (w WebhookConfig) Endpoint() string {
	return strings.TrimRight(w.URL, "/") + "/telegram/" + w.Secret
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	ShutdownTimeout   time.Duration // graceful drain on SIGTERM
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for the admin API

	// Storage
	DBPath string // SQLite path

	// Bot
	Bot     BotConfig
	Webhook WebhookConfig

	// AdminAPIToken enables the read-only admin API when set.
	AdminAPIToken string

	// HTTP rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

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

// webhookSecretRE matches what Telegram accepts as a secret token; the same
// alphabet is safe as a URL path segment.
var webhookSecretRE = regexp.MustCompile(`^[A-Za-z0-9_-]{16,256}$`)

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
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBPath: getenv("DB_PATH", "feedback.db"),

		// Bot
		Bot: BotConfig{
			Token:              strings.TrimSpace(getenv("BOT_TOKEN", "")),
			AdminID:            getint64("ADMIN_ID", 0),
			MaxMessageLength:   getint("MAX_MESSAGE_LENGTH", 4000),
			UnansweredPageSize: getint("UNANSWERED_PAGE_SIZE", 10),
			HistoryPageSize:    getint("HISTORY_PAGE_SIZE", 5),
			SessionTTL:         getdur("SESSION_TTL", 30*time.Minute),
			UpdateDedupeTTL:    getdur("UPDATE_DEDUPE_TTL", 24*time.Hour),
			UserRateRPS:        getfloat("USER_RATE_RPS", 1.0),
			UserRateBurst:      getint("USER_RATE_BURST", 5),
			PollTimeout:        getint("POLL_TIMEOUT", 60),
			QueueSize:          getint("EVENT_QUEUE_SIZE", 256),
			TimeZone:           getenv("TIMEZONE", "UTC"),
		},
		Webhook: WebhookConfig{
			URL:    strings.TrimSpace(getenv("WEBHOOK_URL", "")),
			Secret: strings.TrimSpace(getenv("WEBHOOK_SECRET", "")),
		},
		AdminAPIToken: strings.TrimSpace(getenv("ADMIN_API_TOKEN", "")),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "feedback-bot"),
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

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("DB_PATH must not be empty")
	}

	b := cfg.Bot
	if b.Token == "" {
		return errors.New("BOT_TOKEN must not be empty")
	}
	if b.AdminID <= 0 {
		return errors.New("ADMIN_ID must be a positive user id")
	}
	if b.MaxMessageLength < 1 {
		return errors.New("MAX_MESSAGE_LENGTH must be >= 1")
	}
	if b.UnansweredPageSize < 1 || b.HistoryPageSize < 1 {
		return errors.New("UNANSWERED_PAGE_SIZE and HISTORY_PAGE_SIZE must be >= 1")
	}
	if b.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be > 0")
	}
	if b.UpdateDedupeTTL <= 0 {
		return errors.New("UPDATE_DEDUPE_TTL must be > 0")
	}
	if b.UserRateRPS < 0 {
		return errors.New("USER_RATE_RPS must be >= 0")
	}
	if b.UserRateBurst < 1 {
		return errors.New("USER_RATE_BURST must be >= 1")
	}
	if b.PollTimeout < 1 {
		return errors.New("POLL_TIMEOUT must be >= 1")
	}
	if b.QueueSize < 1 {
		return errors.New("EVENT_QUEUE_SIZE must be >= 1")
	}
	if _, err := time.LoadLocation(b.TimeZone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}

	if cfg.Webhook.Enabled() {
		if !strings.HasPrefix(cfg.Webhook.URL, "https://") {
			return errors.New("WEBHOOK_URL must be an https:// URL")
		}
		if !webhookSecretRE.MatchString(cfg.Webhook.Secret) {
			return errors.New("WEBHOOK_SECRET must be 16-256 chars of A-Z, a-z, 0-9, _ or -")
		}
	}

	if cfg.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// Location returns the time zone used to render timestamps. Load has
// already validated the name.
func (b BotConfig) Location() *time.Location {
	loc, err := time.LoadLocation(b.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ---- helpers ----

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
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
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

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
