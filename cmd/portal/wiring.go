package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/elitesleep/portal/auth"
	"github.com/elitesleep/portal/benefits"
	"github.com/elitesleep/portal/config"
	"github.com/elitesleep/portal/coupons"
	"github.com/elitesleep/portal/logging"
	providermemory "github.com/elitesleep/portal/provider/memory"
	providerstripe "github.com/elitesleep/portal/provider/stripe"
	"github.com/elitesleep/portal/store/sqldb"
)

// app is everything the commands share.
type app struct {
	cfg      *config.Config
	db       *sqldb.Store
	billing  benefits.BillingProvider
	demo     *providermemory.Provider // set in demo mode
	ledger   benefits.LedgerStore
	benefits *benefits.Service
	coupons  *coupons.Service
}

// loadConfig reads configuration and applies persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagDatabaseURL != "" {
		cfg.DatabaseURL = flagDatabaseURL
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	logging.Init(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel, Component: "portal"})
	return cfg, nil
}

// buildApp opens storage and the payment provider.
func buildApp(cfg *config.Config) (*app, error) {
	db, err := sqldb.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, db: db}
	if cfg.DemoMode {
		a.demo = providermemory.New()
		a.billing = a.demo
		log.Warn().Msg("DEMO_MODE enabled: using in-memory payment provider")
	} else {
		client, err := providerstripe.New(cfg.StripeAPIKey)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("payment provider: %w", err)
		}
		a.billing = client
	}

	switch cfg.LedgerMode {
	case config.LedgerProvider:
		a.ledger = benefits.NewProviderStore(a.billing)
		log.Warn().Msg("LEDGER_MODE=provider: saves are last-write-wins on provider metadata")
	default:
		a.ledger = benefits.NewMirroredStore(db, a.billing)
	}

	a.benefits = benefits.NewService(a.ledger, a.billing, cfg.Program)
	a.coupons = coupons.NewService(db)
	return a, nil
}

func (a *app) authService() (*auth.Service, error) {
	employees, err := auth.ParseEmployees(a.cfg.Employees)
	if err != nil {
		return nil, fmt.Errorf("EMPLOYEES: %w", err)
	}
	tokens := auth.NewTokens(a.cfg.JWTSecret, a.cfg.JWTIssuer)
	return auth.NewService(a.db, a.billing, employees, tokens), nil
}

func (a *app) Close() error {
	return a.db.Close()
}
