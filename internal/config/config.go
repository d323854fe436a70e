package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/backoffice-api/internal/document"
	"github.com/noah-isme/backoffice-api/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	BodyLimitBytes     int64

	VATRate                  float64
	CurrencyCode             string
	InvoiceDefaultTerm       document.Term
	ProformaDefaultValidity  document.Term
	QuotationDefaultValidity document.Term
	CashpowerTariff          float64
	LedgerAccount            string

	WebhookEndpoints   string
	WebhookTimeout     time.Duration
	WebhookMaxAttempts int
	WebhookReplayTTL   time.Duration

	AuditEnabled      bool
	AuditSamplingRate float64

	CashpowerVendorURL       string
	CashpowerVendorAPIKey    string
	CashpowerVendorTimeout   time.Duration
	CashpowerVendorAttempts  int
	CircuitVendorMinRequests int
	CircuitVendorFailureRate float64
	CircuitVendorOpenFor     time.Duration

	CatalogCacheTTL       time.Duration
	DashboardCacheTTL     time.Duration
	DashboardDefaultRange int
	IdempotencyTTL        time.Duration
	RateLimit             string

	LockTTL          time.Duration
	LockRetryBackoff time.Duration
	LockMaxWait      time.Duration

	WorkerConcurrency  int
	ProformaExpiryCron string

	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	TracingSampling  float64
	PprofEnabled     bool
	PprofUser        string
	PprofPass        string

	HealthDBTimeout    time.Duration
	HealthRedisTimeout time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BodyLimitBytes:     int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 1<<20)),

		VATRate:         parseFloat(k.String("PRICING_VAT_RATE"), pricing.DefaultVATRate),
		CurrencyCode:    strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "RWF")),
		CashpowerTariff: parseFloat(k.String("CASHPOWER_TARIFF"), 182),
		LedgerAccount:   valueOrDefault(k.String("LEDGER_ACCOUNT"), "main"),

		WebhookEndpoints:   strings.TrimSpace(k.String("WEBHOOK_ENDPOINTS")),
		WebhookTimeout:     parseDuration(k.String("WEBHOOK_TIMEOUT"), "5s"),
		WebhookMaxAttempts: parseInt(k.String("WEBHOOK_MAX_ATTEMPTS"), 3),
		WebhookReplayTTL:   parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),

		AuditEnabled:      parseBool(k.String("AUDIT_ENABLED"), true),
		AuditSamplingRate: parseFloat(k.String("AUDIT_SAMPLING_RATE"), 1),

		CashpowerVendorURL:       strings.TrimSpace(k.String("CASHPOWER_VENDOR_URL")),
		CashpowerVendorAPIKey:    strings.TrimSpace(k.String("CASHPOWER_VENDOR_API_KEY")),
		CashpowerVendorTimeout:   parseDuration(k.String("CASHPOWER_VENDOR_TIMEOUT"), "5s"),
		CashpowerVendorAttempts:  parseInt(k.String("CASHPOWER_VENDOR_MAX_ATTEMPTS"), 1),
		CircuitVendorMinRequests: parseInt(k.String("CIRCUIT_VENDOR_MIN_REQUESTS"), 5),
		CircuitVendorFailureRate: parseFloat(k.String("CIRCUIT_VENDOR_FAILURE_RATE"), 0.5),
		CircuitVendorOpenFor:     parseDuration(k.String("CIRCUIT_VENDOR_OPEN_FOR"), "30s"),

		CatalogCacheTTL:       parseDuration(k.String("CATALOG_CACHE_TTL"), "60s"),
		DashboardCacheTTL:     parseDuration(k.String("DASHBOARD_CACHE_TTL"), "5m"),
		DashboardDefaultRange: parseInt(k.String("DASHBOARD_DEFAULT_RANGE_DAYS"), 30),
		IdempotencyTTL:        parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimit:             valueOrDefault(k.String("RATE_LIMIT"), "300-M"),

		LockTTL:          parseDuration(k.String("LOCK_TTL"), "10s"),
		LockRetryBackoff: parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),
		LockMaxWait:      parseDuration(k.String("LOCK_MAX_WAIT"), "5s"),

		WorkerConcurrency:  parseInt(k.String("WORKER_CONCURRENCY"), 5),
		ProformaExpiryCron: valueOrDefault(k.String("PROFORMA_EXPIRY_CRON"), "@every 15m"),

		LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsEnabled:   parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "backoffice"),
		MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
		TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING"), false),
		TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSampling:  parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
		PprofEnabled:     parseBool(k.String("OBS_ENABLE_PPROF"), false),
		PprofUser:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
		PprofPass:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),

		HealthDBTimeout:    parseDuration(k.String("HEALTH_READY_DB_TIMEOUT"), "500ms"),
		HealthRedisTimeout: parseDuration(k.String("HEALTH_READY_REDIS_TIMEOUT"), "300ms"),
	}

	var err error
	if cfg.InvoiceDefaultTerm, err = parseTerm("INVOICE_DEFAULT_TERM", k.String("INVOICE_DEFAULT_TERM"), "30 days"); err != nil {
		return nil, err
	}
	if cfg.ProformaDefaultValidity, err = parseTerm("PROFORMA_DEFAULT_VALIDITY", k.String("PROFORMA_DEFAULT_VALIDITY"), "15 days"); err != nil {
		return nil, err
	}
	if cfg.QuotationDefaultValidity, err = parseTerm("QUOTATION_DEFAULT_VALIDITY", k.String("QUOTATION_DEFAULT_VALIDITY"), "30 days"); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.VATRate < 0 || cfg.VATRate >= 1 {
		return nil, fmt.Errorf("PRICING_VAT_RATE must be in [0, 1), got %v", cfg.VATRate)
	}
	if cfg.CashpowerTariff <= 0 {
		return nil, errors.New("CASHPOWER_TARIFF must be positive")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func parseTerm(key, value, fallback string) (document.Term, error) {
	raw := valueOrDefault(value, fallback)
	t, err := document.ParseTerm(raw)
	if err != nil {
		return document.Term{}, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return n
	}
	return fallback
}

func parseFloat(value string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return f
	}
	return fallback
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
