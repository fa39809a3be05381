package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/elitesleep/portal/api"
	"github.com/elitesleep/portal/config"
)

var flagPort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if flagPort != 0 {
			cfg.Port = flagPort
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runServer(cfg)
	},
}

func init() {
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "HTTP server port (overrides PORT)")
}

func runServer(cfg *config.Config) error {
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	authSvc, err := a.authService()
	if err != nil {
		return err
	}
	if authSvc.Employees.Len() == 0 {
		log.Warn().Msg("EMPLOYEES is empty: no store staff can log in")
	}

	handler := api.NewHandler(a.benefits, authSvc, a.coupons)
	handler.Webhooks = api.NewWebhookHandler(cfg.StripeWebhookSecret, a.benefits, a.db)
	if a.demo != nil {
		handler.Demo = api.NewScenarioLoader(a.demo, a.ledger)
	}

	router := api.NewRouter(handler, api.RouterOptions{
		Tokens:         authSvc.Tokens,
		AllowedOrigins: cfg.CORSOrigins,
	})

	var monitor *api.StaleReservationMonitor
	if cfg.LedgerMode == config.LedgerMirror {
		monitor = api.NewStaleReservationMonitor(a.db)
		monitor.CheckInterval = cfg.StaleCheckInterval
		monitor.Start()
		defer monitor.Stop()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("ledger_mode", string(cfg.LedgerMode)).
			Str("db_driver", a.db.Driver()).
			Bool("demo", cfg.DemoMode).
			Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-quit:
	}

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}
