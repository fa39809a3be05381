/*
Package config loads server configuration from the environment.

SOURCES (later wins):
  1. Defaults
  2. .env in the working directory (best effort)
  3. Process environment
  4. PROGRAM_FILE (YAML) for benefit program constants
  5. CLI flags applied by cmd/portal

REQUIRED:
  JWT_SECRET                      always
  STRIPE_SECRET_KEY               unless DEMO_MODE=true
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/elitesleep/portal/benefits"
)

type LedgerMode string

const (
	LedgerMirror   LedgerMode = "mirror"
	LedgerProvider LedgerMode = "provider"
)

const minJWTSecretLength = 32

// Config holds all configuration for the portal server.
type Config struct {
	Port                int
	DatabaseURL         string
	LedgerMode          LedgerMode
	StripeAPIKey        string
	StripeWebhookSecret string
	JWTSecret           string
	JWTIssuer           string
	Employees           string // id:password:Display Name,...
	CORSOrigins         []string
	DemoMode            bool
	LogLevel            string
	LogFormat           string
	StaleCheckInterval  time.Duration
	ProgramFile         string
	Program             benefits.Program
}

// Load reads configuration. A .env file is loaded if present but not required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := envOrDefaultInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	demo, err := envOrDefaultBool("DEMO_MODE", false)
	if err != nil {
		return nil, err
	}
	interval, err := envOrDefaultDuration("STALE_CHECK_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                port,
		DatabaseURL:         envOrDefault("DATABASE_URL", "portal.db"),
		LedgerMode:          LedgerMode(strings.ToLower(envOrDefault("LEDGER_MODE", string(LedgerMirror)))),
		StripeAPIKey:        strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		StripeWebhookSecret: strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		JWTSecret:           strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:           envOrDefault("JWT_ISSUER", "elite-sleep-portal"),
		Employees:           strings.TrimSpace(os.Getenv("EMPLOYEES")),
		CORSOrigins:         splitList(envOrDefault("CORS_ORIGINS", "*")),
		DemoMode:            demo,
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
		LogFormat:           envOrDefault("LOG_FORMAT", "auto"),
		StaleCheckInterval:  interval,
		ProgramFile:         strings.TrimSpace(os.Getenv("PROGRAM_FILE")),
		Program:             benefits.DefaultProgram(),
	}

	if cfg.ProgramFile != "" {
		if err := cfg.loadProgram(cfg.ProgramFile); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Validate checks the settings the server needs. CLI commands that only
// touch the database skip it.
func (c *Config) Validate() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.StripeAPIKey == "" && !c.DemoMode {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.LedgerMode != LedgerMirror && c.LedgerMode != LedgerProvider {
		return fmt.Errorf("LEDGER_MODE must be %q or %q, got %q", LedgerMirror, LedgerProvider, c.LedgerMode)
	}
	if c.StaleCheckInterval <= 0 {
		return fmt.Errorf("STALE_CHECK_INTERVAL must be positive")
	}
	return nil
}

// =============================================================================
// PROGRAM FILE
// =============================================================================

// programFile is the YAML shape of PROGRAM_FILE. Omitted fields keep defaults.
type programFile struct {
	CreditPerPayment     string   `yaml:"creditPerPayment"`
	InvoiceLimit         *int     `yaml:"invoiceLimit"`
	ReservationHold      string   `yaml:"reservationHold"`
	DeliveryEstimateDays *int     `yaml:"deliveryEstimateDays"`
	ActiveStatuses       []string `yaml:"activeStatuses"`
}

func (c *Config) loadProgram(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read program file: %w", err)
	}
	program, err := ParseProgram(data, c.Program)
	if err != nil {
		return fmt.Errorf("program file %s: %w", path, err)
	}
	c.Program = program
	return nil
}

// ParseProgram overlays YAML program settings on base.
func ParseProgram(data []byte, base benefits.Program) (benefits.Program, error) {
	var pf programFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return base, fmt.Errorf("parse yaml: %w", err)
	}

	p := base
	if pf.CreditPerPayment != "" {
		d, err := decimal.NewFromString(pf.CreditPerPayment)
		if err != nil || d.IsNegative() {
			return base, fmt.Errorf("creditPerPayment must be a non-negative number")
		}
		p.CreditPerPayment = d
	}
	if pf.InvoiceLimit != nil {
		if *pf.InvoiceLimit < 0 {
			return base, fmt.Errorf("invoiceLimit must not be negative")
		}
		p.InvoiceLimit = *pf.InvoiceLimit
	}
	if pf.ReservationHold != "" {
		d, err := time.ParseDuration(pf.ReservationHold)
		if err != nil || d <= 0 {
			return base, fmt.Errorf("reservationHold must be a positive duration")
		}
		p.ReservationHold = d
	}
	if pf.DeliveryEstimateDays != nil {
		if *pf.DeliveryEstimateDays < 0 {
			return base, fmt.Errorf("deliveryEstimateDays must not be negative")
		}
		p.DeliveryEstimate = time.Duration(*pf.DeliveryEstimateDays) * 24 * time.Hour
	}
	if len(pf.ActiveStatuses) > 0 {
		p.ActiveStatuses = pf.ActiveStatuses
	}
	return p, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) (int, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
		}
		return n, nil
	}
	return fallback, nil
}

func envOrDefaultBool(key string, fallback bool) (bool, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%s must be a boolean: %w", key, err)
		}
		return b, nil
	}
	return fallback, nil
}

func envOrDefaultDuration(key string, fallback time.Duration) (time.Duration, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a duration: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
