package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Env      string
	HTTPAddr string
	BaseURL  string

	DBDSN     string
	JWTSecret string

	LogLevel string

	RateLimitRPM int

	MaxIntakeItems int

	NotifyWebhookURL string
	NotifyTimeoutMS  int

	SessionDays int

	InviteRetentionDays int
	AuditRetentionDays  int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = strings.TrimSpace(os.Getenv("TD_ENV"))
	if cfg.Env == "" {
		return nil, fmt.Errorf("TD_ENV is required")
	}
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return nil, fmt.Errorf("TD_ENV must be one of: dev, prod (got: %s)", cfg.Env)
	}

	cfg.HTTPAddr = getEnvOrDefault("TD_HTTP_ADDR", ":8080")

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("TD_BASE_URL")), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("TD_BASE_URL is required")
	}

	cfg.DBDSN = strings.TrimSpace(os.Getenv("TD_DB_DSN"))
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("TD_DB_DSN is required")
	}

	cfg.JWTSecret = os.Getenv("TD_JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("TD_JWT_SECRET is required")
	}
	if cfg.Env == "prod" && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("TD_JWT_SECRET must be at least 32 characters (currently %d)", len(cfg.JWTSecret))
	}

	cfg.LogLevel = getEnvOrDefault("TD_LOG_LEVEL", "info")
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("TD_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", cfg.LogLevel)
	}

	var err error
	cfg.RateLimitRPM, err = getEnvIntOrDefault("TD_RATE_LIMIT_RPM", 120)
	if err != nil {
		return nil, err
	}

	cfg.MaxIntakeItems, err = getEnvIntOrDefault("TD_MAX_INTAKE_ITEMS", 50)
	if err != nil {
		return nil, err
	}
	if cfg.MaxIntakeItems <= 0 || cfg.MaxIntakeItems > 500 {
		return nil, fmt.Errorf("TD_MAX_INTAKE_ITEMS must be between 1 and 500 (got: %d)", cfg.MaxIntakeItems)
	}

	// Optional. When empty, domain events are logged but no webhook is called.
	cfg.NotifyWebhookURL = strings.TrimSpace(os.Getenv("TD_NOTIFY_WEBHOOK_URL"))

	cfg.NotifyTimeoutMS, err = getEnvIntOrDefault("TD_NOTIFY_TIMEOUT_MS", 2000)
	if err != nil {
		return nil, err
	}
	if cfg.NotifyTimeoutMS <= 0 || cfg.NotifyTimeoutMS > 30000 {
		return nil, fmt.Errorf("TD_NOTIFY_TIMEOUT_MS must be between 1 and 30000 (got: %d)", cfg.NotifyTimeoutMS)
	}

	cfg.SessionDays, err = getEnvIntOrDefault("TD_SESSION_DAYS", 7)
	if err != nil {
		return nil, err
	}

	cfg.InviteRetentionDays, err = getEnvIntOrDefault("TD_INVITE_RETENTION_DAYS", 30)
	if err != nil {
		return nil, err
	}

	cfg.AuditRetentionDays, err = getEnvIntOrDefault("TD_AUDIT_RETENTION_DAYS", 365)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDev returns true if running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// RedactedValues returns a map of config values with secrets redacted.
func (c *Config) RedactedValues() map[string]string {
	webhook := ""
	if c.NotifyWebhookURL != "" {
		webhook = "[SET]"
	}
	return map[string]string{
		"TD_ENV":                   c.Env,
		"TD_HTTP_ADDR":             c.HTTPAddr,
		"TD_BASE_URL":              c.BaseURL,
		"TD_DB_DSN":                redactDSN(c.DBDSN),
		"TD_JWT_SECRET":            "[REDACTED]",
		"TD_LOG_LEVEL":             c.LogLevel,
		"TD_RATE_LIMIT_RPM":        fmt.Sprintf("%d", c.RateLimitRPM),
		"TD_MAX_INTAKE_ITEMS":      fmt.Sprintf("%d", c.MaxIntakeItems),
		"TD_NOTIFY_WEBHOOK_URL":    webhook,
		"TD_NOTIFY_TIMEOUT_MS":     fmt.Sprintf("%d", c.NotifyTimeoutMS),
		"TD_SESSION_DAYS":          fmt.Sprintf("%d", c.SessionDays),
		"TD_INVITE_RETENTION_DAYS": fmt.Sprintf("%d", c.InviteRetentionDays),
		"TD_AUDIT_RETENTION_DAYS":  fmt.Sprintf("%d", c.AuditRetentionDays),
	}
}

func redactDSN(dsn string) string {
	if start := strings.Index(dsn, "://"); start != -1 {
		if end := strings.Index(dsn[start+3:], "@"); end != -1 {
			return dsn[:start+3] + "[REDACTED]" + dsn[start+3+end:]
		}
	}
	return dsn
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %q)", key, value)
	}
	return parsed, nil
}
