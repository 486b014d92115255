package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"
)

// withRequired sets the variables Load refuses to run without.
func withRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123456:test-token")
	t.Setenv("ADMIN_ID", "1000")
}

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	withRequired(t)
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_PanicsWithoutToken(t *testing.T) {
	t.Setenv("ADMIN_ID", "1000")
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic without BOT_TOKEN")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	withRequired(t)

	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging / Docs
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v1/") // no leading slash + trailing slash -> "/api/v1"

	// Storage
	t.Setenv("DB_PATH", "db.sqlite")

	// Bot
	t.Setenv("MAX_MESSAGE_LENGTH", "500")
	t.Setenv("UNANSWERED_PAGE_SIZE", "8")
	t.Setenv("HISTORY_PAGE_SIZE", "3")
	t.Setenv("SESSION_TTL", "10m")
	t.Setenv("UPDATE_DEDUPE_TTL", "1h")
	t.Setenv("USER_RATE_RPS", "0.5")
	t.Setenv("USER_RATE_BURST", "2")
	t.Setenv("POLL_TIMEOUT", "30")
	t.Setenv("TIMEZONE", "Europe/Moscow")
	t.Setenv("ADMIN_API_TOKEN", " s3cret ")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.ShutdownTimeout != 5*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging / Docs
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}

	if cfg.DBPath != "db.sqlite" {
		t.Fatalf("db path unexpected: %q", cfg.DBPath)
	}

	// Bot
	b := cfg.Bot
	if b.Token != "123456:test-token" || b.AdminID != 1000 ||
		b.MaxMessageLength != 500 ||
		b.UnansweredPageSize != 8 || b.HistoryPageSize != 3 ||
		b.SessionTTL != 10*time.Minute || b.UpdateDedupeTTL != time.Hour ||
		b.UserRateRPS != 0.5 || b.UserRateBurst != 2 ||
		b.PollTimeout != 30 || b.QueueSize != 256 {
		t.Fatalf("bot fields unexpected: %+v", b)
	}
	if got := b.Location().String(); got != "Europe/Moscow" {
		t.Fatalf("location = %q", got)
	}
	if cfg.AdminAPIToken != "s3cret" {
		t.Fatalf("admin api token should be trimmed, got %q", cfg.AdminAPIToken)
	}
	if cfg.Webhook.Enabled() {
		t.Fatalf("webhook should be disabled by default")
	}

	// Rate limiting (parse fallback to defaults)
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}

	// Web protection
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	withRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("API_BASE_PATH default expected '/api/v1', got %q", cfg.APIBasePath)
	}
	if cfg.DBPath != "feedback.db" {
		t.Fatalf("DB_PATH default = %q", cfg.DBPath)
	}
	b := cfg.Bot
	if b.MaxMessageLength != 4000 || b.UnansweredPageSize != 10 || b.HistoryPageSize != 5 {
		t.Fatalf("bot defaults unexpected: %+v", b)
	}
	if b.SessionTTL != 30*time.Minute || b.UpdateDedupeTTL != 24*time.Hour || b.PollTimeout != 60 {
		t.Fatalf("bot durations unexpected: %+v", b)
	}
	if b.Location() != time.UTC {
		t.Fatalf("default location should be UTC, got %v", b.Location())
	}
	if cfg.AdminAPIToken != "" {
		t.Fatalf("admin api should be off by default")
	}
}

func TestLoad_Webhook(t *testing.T) {
	withRequired(t)
	t.Setenv("WEBHOOK_URL", "https://bot.example.com/")
	t.Setenv("WEBHOOK_SECRET", "abcdefghijklmnop_-42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Webhook.Enabled() {
		t.Fatalf("webhook should be enabled")
	}
	if got, want := cfg.Webhook.Endpoint(), "https://bot.example.com/telegram/abcdefghijklmnop_-42"; got != want {
		t.Fatalf("Endpoint = %q; want %q", got, want)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid LOG_LEVEL", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"empty PORT via spaces", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"non-positive timeouts", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"max header bytes <= 0", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"empty DB_PATH", map[string]string{"DB_PATH": "   "}, "DB_PATH must not be empty"},
		{"empty BOT_TOKEN", map[string]string{"BOT_TOKEN": "  "}, "BOT_TOKEN"},
		{"missing ADMIN_ID", map[string]string{"ADMIN_ID": "abc"}, "ADMIN_ID"},
		{"negative ADMIN_ID", map[string]string{"ADMIN_ID": "-5"}, "ADMIN_ID"},
		{"max message length", map[string]string{"MAX_MESSAGE_LENGTH": "0"}, "MAX_MESSAGE_LENGTH"},
		{"page size", map[string]string{"HISTORY_PAGE_SIZE": "0"}, "PAGE_SIZE"},
		{"session ttl", map[string]string{"SESSION_TTL": "0s"}, "SESSION_TTL"},
		{"dedupe ttl", map[string]string{"UPDATE_DEDUPE_TTL": "-1s"}, "UPDATE_DEDUPE_TTL"},
		{"user rate rps", map[string]string{"USER_RATE_RPS": "-1"}, "USER_RATE_RPS"},
		{"user rate burst", map[string]string{"USER_RATE_BURST": "0"}, "USER_RATE_BURST"},
		{"poll timeout", map[string]string{"POLL_TIMEOUT": "0"}, "POLL_TIMEOUT"},
		{"queue size", map[string]string{"EVENT_QUEUE_SIZE": "0"}, "EVENT_QUEUE_SIZE"},
		{"unknown timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}, "TIMEZONE"},
		{"webhook without https", map[string]string{"WEBHOOK_URL": "http://bot.example.com", "WEBHOOK_SECRET": "abcdefghijklmnop"}, "https"},
		{"webhook without secret", map[string]string{"WEBHOOK_URL": "https://bot.example.com"}, "WEBHOOK_SECRET"},
		{"webhook secret with slash", map[string]string{"WEBHOOK_URL": "https://bot.example.com", "WEBHOOK_SECRET": "abcdefgh/ijklmnop"}, "WEBHOOK_SECRET"},
		{"rate rps negative", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"rate burst < 1", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"hsts max age negative", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"otel sample ratio out of range", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			withRequired(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); !containsErr(err, tc.want) {
				t.Fatalf("expected error containing %q, got: %v", tc.want, err)
			}
		})
	}

	// Note: API_BASE_PATH validation is effectively unreachable due to normalizeBasePath
	// always ensuring a leading '/' and returning "/" for empty input.
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_numbers_and_durations(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}

	t.Setenv("I_VALID", "42")
	if getint("I_VALID", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatalf("getint default on bad parse failed")
	}

	t.Setenv("I64_VALID", " 9007199254740993 ")
	if getint64("I64_VALID", 0) != 9007199254740993 {
		t.Fatalf("getint64 parse failed")
	}
	t.Setenv("I64_BAD", "1e3")
	if getint64("I64_BAD", 5) != 5 {
		t.Fatalf("getint64 default on bad parse failed")
	}

	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	trueVals := []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"}
	for i, v := range trueVals {
		k := "B_T_" + strconv.Itoa(i)
		t.Setenv(k, v)
		if !getbool(k, false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	falseVals := []string{"0", "false", "FALSE", " no ", "N", "off", "Off"}
	for i, v := range falseVals {
		k := "B_F_" + strconv.Itoa(i)
		t.Setenv(k, v)
		if getbool(k, true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	// default on unset/empty
	t.Setenv("B_EMPTY", "")
	if !getbool("B_EMPTY", true) || getbool("B_EMPTY", false) {
		t.Fatalf("getbool default behavior unexpected")
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	in := " a, ,b ,  c  ,"
	want := []string{"a", "b", "c"}
	if got := splitCSV(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("splitCSV mismatch: got %#v want %#v", got, want)
	}

	if normalizeBasePath("") != "/" {
		t.Fatalf("normalizeBasePath empty -> '/' failed")
	}
	if normalizeBasePath("v1") != "/v1" {
		t.Fatalf("normalizeBasePath missing leading slash failed")
	}
	if normalizeBasePath("/v1/") != "/v1" {
		t.Fatalf("normalizeBasePath trailing slash trim failed")
	}
	if normalizeBasePath(" / ") != "/" {
		t.Fatalf("normalizeBasePath whitespace failed")
	}
}

// Ensure tests don't pick up the developer's shell.
func TestMain(m *testing.M) {
	for _, k := range []string{
		"PORT", "BOT_TOKEN", "ADMIN_ID", "WEBHOOK_URL", "WEBHOOK_SECRET",
		"ADMIN_API_TOKEN", "TIMEZONE", "DB_PATH", "LOG_LEVEL", "API_BASE_PATH",
	} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	withRequired(t)
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBasePath == "" {
		t.Fatalf("unexpected empty config from MustLoad")
	}
}
