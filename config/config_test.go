package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elitesleep/portal/benefits"
)

const validSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "LEDGER_MODE", "DEMO_MODE", "CORS_ORIGINS", "PROGRAM_FILE", "STALE_CHECK_INTERVAL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "portal.db", cfg.DatabaseURL)
	assert.Equal(t, LedgerMirror, cfg.LedgerMode)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 15*time.Minute, cfg.StaleCheckInterval)
	assert.Equal(t, "15", cfg.Program.CreditPerPayment.String())
	assert.False(t, cfg.DemoMode)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LEDGER_MODE", "Provider")
	t.Setenv("DEMO_MODE", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("STALE_CHECK_INTERVAL", "5m")
	t.Setenv("PROGRAM_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, LedgerProvider, cfg.LedgerMode)
	assert.True(t, cfg.DemoMode)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 5*time.Minute, cfg.StaleCheckInterval)
}

func TestLoad_InvalidNumbers(t *testing.T) {
	t.Setenv("PORT", "eighty")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProgramFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "program.yaml")
	require.NoError(t, os.WriteFile(path, []byte("creditPerPayment: \"20\"\ninvoiceLimit: 0\n"), 0o600))
	t.Setenv("PROGRAM_FILE", path)
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "20", cfg.Program.CreditPerPayment.String())
	assert.Equal(t, 0, cfg.Program.InvoiceLimit)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:               8080,
			LedgerMode:         LedgerMirror,
			StripeAPIKey:       "sk_test_123",
			JWTSecret:          validSecret,
			StaleCheckInterval: time.Minute,
		}
	}
	require.NoError(t, base().Validate())

	cfg := base()
	cfg.StripeAPIKey = ""
	assert.ErrorContains(t, cfg.Validate(), "STRIPE_SECRET_KEY")
	cfg.DemoMode = true
	assert.NoError(t, cfg.Validate(), "demo mode needs no provider key")

	cfg = base()
	cfg.JWTSecret = "short"
	assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET")

	cfg = base()
	cfg.LedgerMode = "eventual"
	assert.ErrorContains(t, cfg.Validate(), "LEDGER_MODE")

	cfg = base()
	cfg.Port = 0
	assert.ErrorContains(t, cfg.Validate(), "PORT")
}

func TestParseProgram(t *testing.T) {
	yaml := []byte(`
creditPerPayment: "12.5"
invoiceLimit: 50
reservationHold: 48h
deliveryEstimateDays: 7
activeStatuses: [active]
`)
	p, err := ParseProgram(yaml, benefits.DefaultProgram())
	require.NoError(t, err)

	assert.Equal(t, "12.5", p.CreditPerPayment.String())
	assert.Equal(t, 50, p.InvoiceLimit)
	assert.Equal(t, 48*time.Hour, p.ReservationHold)
	assert.Equal(t, 7*24*time.Hour, p.DeliveryEstimate)
	assert.Equal(t, []string{"active"}, p.ActiveStatuses)
}

func TestParseProgram_KeepsDefaultsAndRejectsBadValues(t *testing.T) {
	p, err := ParseProgram([]byte("{}"), benefits.DefaultProgram())
	require.NoError(t, err)
	assert.Equal(t, benefits.DefaultProgram().InvoiceLimit, p.InvoiceLimit)

	for _, bad := range []string{
		`creditPerPayment: "-1"`,
		`invoiceLimit: -3`,
		`reservationHold: soon`,
		`deliveryEstimateDays: -1`,
		`: [`,
	} {
		_, err := ParseProgram([]byte(bad), benefits.DefaultProgram())
		assert.Error(t, err, bad)
	}
}
