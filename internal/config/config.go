// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the gateway server.
type Config struct {
	DatabaseURL          string // DSN for the application role (structured path)
	InspectorDatabaseURL string // DSN for the privilege-restricted read-only role (ad-hoc path)
	ListenAddr           string // HTTP listen address (default ":8080")
	LogLevel             string // log level: debug, info, warn, error (default "info")
	Env                  string // environment: "development" (default) or "production"

	// AssertionSecret verifies the HMAC-signed principal assertion minted by
	// the upstream auth layer.
	AssertionSecret string

	// Execution limits
	StatementTimeout time.Duration // per-statement timeout (default 5s)
	MaxResultRows    int           // hard cap on returned rows (default 1000)

	// Metadata registry
	MetadataTTL time.Duration // cache entry TTL (default 30s)

	// Quota plans
	PlansPath string // path to the quota plans YAML file

	// Edge rate limiting (per client IP, in front of the per-tenant layer)
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// SweepInterval drives background cleanup of expired rate-limit buckets
	// and stale registry cache entries (default 1m).
	SweepInterval time.Duration

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		InspectorDatabaseURL: os.Getenv("INSPECTOR_DATABASE_URL"),
		ListenAddr:           os.Getenv("LISTEN_ADDR"),
		LogLevel:             os.Getenv("LOG_LEVEL"),
		Env:                  os.Getenv("ENV"),
		AssertionSecret:      os.Getenv("ASSERTION_SECRET"),
		PlansPath:            os.Getenv("QUOTA_PLANS_PATH"),
	}

	if v := os.Getenv("STATEMENT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid STATEMENT_TIMEOUT: %w", err)
		}
		cfg.StatementTimeout = d
	}
	if v := os.Getenv("MAX_RESULT_ROWS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_RESULT_ROWS: %w", err)
		}
		cfg.MaxResultRows = n
	}
	if v := os.Getenv("METADATA_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid METADATA_TTL: %w", err)
		}
		cfg.MetadataTTL = d
	}
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
		}
		cfg.SweepInterval = d
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	// Defaults
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.InspectorDatabaseURL == "" {
		cfg.Warnings = append(cfg.Warnings, "INSPECTOR_DATABASE_URL not set — ad-hoc queries will run under the application role")
		cfg.InspectorDatabaseURL = cfg.DatabaseURL
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AssertionSecret == "" {
		cfg.AssertionSecret = "dev-secret-change-in-production"
		cfg.Warnings = append(cfg.Warnings, "ASSERTION_SECRET not set — using insecure default. Set ASSERTION_SECRET in production!")
	}
	if cfg.StatementTimeout == 0 {
		cfg.StatementTimeout = 5 * time.Second
	}
	if cfg.MaxResultRows == 0 {
		cfg.MaxResultRows = 1000
	}
	if cfg.MetadataTTL == 0 {
		cfg.MetadataTTL = 30 * time.Second
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.AssertionSecret == "dev-secret-change-in-production" {
			return nil, fmt.Errorf("ASSERTION_SECRET must be set in production (ENV=production)")
		}
		if cfg.InspectorDatabaseURL == cfg.DatabaseURL {
			return nil, fmt.Errorf("INSPECTOR_DATABASE_URL must point at a read-only role in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. Lines must be in KEY=VALUE format. Comments (#) and blank
// lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
