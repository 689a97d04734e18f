package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// baseEnv sets the minimum env for a valid config.
func baseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TENANTS", "duck")
	t.Setenv("DUCK_SIGNING_SECRET", "s3cret")
}

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	baseEnv(t)
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"
	t.Setenv("EVENTS_PATH", "hooks/slack/")
	t.Setenv("EVENTS_ASYNC", "off")

	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")

	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/bot")
	t.Setenv("HISTORY_LIMIT", "x") // -> default 30

	t.Setenv("TENANTS", "Duck, goose,duck")
	t.Setenv("DUCK_SIGNING_SECRET", "d-secret")
	t.Setenv("GOOSE_SIGNING_SECRET", "g-secret")
	t.Setenv("GOOSE_MODEL", "gpt-4o-mini")
	t.Setenv("GOOSE_PREFIX", "[HONK]")

	t.Setenv("RATE_LIMIT", "50")
	t.Setenv("RATE_WINDOW", "30m")
	t.Setenv("DEDUP_BACKEND", "SQL")
	t.Setenv("DEDUP_TTL", "10m")

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("COMPLETION_TIMEOUT", "5s")

	t.Setenv("ADMIN_USER_IDS", " U1 , , U2 ")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")

	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" ||
		cfg.EventsPath != "/hooks/slack" ||
		cfg.AsyncEvents {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}
	if cfg.DatabaseURL != "postgres://u:p@db:5432/bot" || cfg.HistoryLimit != 30 || cfg.RetentionLimit != 100 {
		t.Fatalf("storage unexpected: %+v", cfg)
	}

	// Tenants: lowercased, de-duplicated, in order.
	if len(cfg.Tenants) != 2 || cfg.Tenants[0].ID != "duck" || cfg.Tenants[1].ID != "goose" {
		t.Fatalf("tenants unexpected: %+v", cfg.Tenants)
	}
	duck, _ := cfg.Tenant("duck")
	if duck.Prefix != "[Duck]" || duck.Model != "gpt-3.5-turbo" || duck.SigningSecret != "d-secret" {
		t.Fatalf("duck defaults unexpected: %+v", duck)
	}
	if !strings.Contains(duck.Directive, "[Duck]") || strings.Contains(duck.Directive, "{prefix}") {
		t.Fatalf("duck directive should have prefix substituted")
	}
	goose, _ := cfg.Tenant("goose")
	if goose.Prefix != "[HONK]" || goose.Model != "gpt-4o-mini" {
		t.Fatalf("goose overrides unexpected: %+v", goose)
	}
	if _, ok := cfg.Tenant("swan"); ok {
		t.Fatalf("unknown tenant should not resolve")
	}

	if cfg.RateLimit != 50 || cfg.RateWindow != 30*time.Minute {
		t.Fatalf("admission unexpected: %d %v", cfg.RateLimit, cfg.RateWindow)
	}
	if cfg.Dedup.Backend != "sql" || cfg.Dedup.TTL != 10*time.Minute || cfg.Dedup.Capacity != 1000 {
		t.Fatalf("dedup unexpected: %+v", cfg.Dedup)
	}
	if cfg.Completion.APIKey != "sk-test" || cfg.Completion.Timeout != 5*time.Second || cfg.Completion.MaxTokens != 500 {
		t.Fatalf("completion unexpected: %+v", cfg.Completion)
	}
	if !reflect.DeepEqual(cfg.Admin.UserIDs, []string{"U1", "U2"}) {
		t.Fatalf("admins unexpected: %#v", cfg.Admin.UserIDs)
	}
	if !reflect.DeepEqual(cfg.Admin.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.Admin.CORS.AllowedOrigins)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_LegacySlackVarsConfigureDuck(t *testing.T) {
	t.Setenv("TENANTS", "duck")
	t.Setenv("DUCK_SIGNING_SECRET", "")
	t.Setenv("DUCK_BOT_TOKEN", "")
	t.Setenv("SLACK_SIGNING_SECRET", "legacy")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-legacy")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Tenants[0].SigningSecret != "legacy" || cfg.Tenants[0].BotToken != "xoxb-legacy" {
		t.Fatalf("legacy vars not applied: %+v", cfg.Tenants[0])
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid LOG_LEVEL", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"bad timeout", map[string]string{"READ_TIMEOUT": "-1s"}, "timeouts"},
		{"header bytes", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"history limit", map[string]string{"HISTORY_LIMIT": "0"}, "HISTORY_LIMIT"},
		{"missing secret", map[string]string{"DUCK_SIGNING_SECRET": "", "SLACK_SIGNING_SECRET": ""}, "DUCK_SIGNING_SECRET"},
		{"rate limit", map[string]string{"RATE_LIMIT": "0"}, "RATE_LIMIT"},
		{"rate window", map[string]string{"RATE_WINDOW": "-1m"}, "RATE_WINDOW"},
		{"dedup backend", map[string]string{"DEDUP_BACKEND": "memcache"}, "DEDUP_BACKEND"},
		{"redis url", map[string]string{"DEDUP_BACKEND": "redis", "REDIS_URL": ""}, "REDIS_URL"},
		{"dedup capacity", map[string]string{"DEDUP_CAPACITY": "0"}, "DEDUP_CAPACITY"},
		{"completion temp", map[string]string{"COMPLETION_TEMPERATURE": "3"}, "COMPLETION_TEMPERATURE"},
		{"admin secret", map[string]string{"ADMIN_API_ENABLED": "true", "ADMIN_JWT_SECRET": ""}, "ADMIN_JWT_SECRET"},
		{"admin burst", map[string]string{"ADMIN_RATE_BURST": "0"}, "ADMIN_RATE_BURST"},
		{"otel ratio", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			baseEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadDotenv_DoesNotOverrideAndIgnoresMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("DUCKBOT_TEST_A=from-file\nDUCKBOT_TEST_B=file-b\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("DUCKBOT_TEST_A", "from-env")
	t.Setenv("DUCKBOT_TEST_B", "")
	_ = os.Unsetenv("DUCKBOT_TEST_B")

	if err := LoadDotenv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}
	if got := os.Getenv("DUCKBOT_TEST_A"); got != "from-env" {
		t.Fatalf("existing env overridden: %q", got)
	}
	if got := os.Getenv("DUCKBOT_TEST_B"); got != "file-b" {
		t.Fatalf("file value not loaded: %q", got)
	}
}

func TestDefaultDirective(t *testing.T) {
	if d := DefaultDirective("goose", "[Goose]"); !strings.Contains(d, "[Goose]") {
		t.Fatalf("goose directive missing prefix")
	}
	if d := DefaultDirective("swan", "[Swan]"); !strings.Contains(d, "[Swan]") {
		t.Fatalf("generic directive missing prefix")
	}
}

func TestSplitCSV_AndNormalizePath(t *testing.T) {
	if got := splitCSV(""); got != nil {
		t.Fatalf("empty csv should be nil, got %#v", got)
	}
	cases := map[string]string{"": "/", "x": "/x", "/x/": "/x", "/": "/"}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q; want %q", in, got, want)
		}
	}
}
