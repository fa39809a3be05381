/*
main.go - Application entry point

PURPOSE:
  The portal binary: runs the HTTP server and the operator commands that
  share its wiring.

COMMANDS:
  portal serve                          Start the HTTP server
  portal ledger show <customer>         Print a member's ledger record
  portal ledger reset <customer>        Clear ledger keys by scope
  portal ledger migrate-history [ids]   Rewrite compact cashback histories
  portal admin create                   Create a superadmin login

STARTUP SEQUENCE (serve):
  1. Load configuration (.env, environment, PROGRAM_FILE, flags)
  2. Open the SQL store (SQLite or Postgres)
  3. Build the payment provider (Stripe, or in-memory in demo mode)
  4. Wire services, handler and router
  5. Start the stale reservation monitor (mirror mode)
  6. Serve with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the monitor and close the database
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set at build time with -ldflags)
var Version = "dev"

var (
	flagDatabaseURL string
	flagLogLevel    string
)

var rootCmd = &cobra.Command{
	Use:           "portal",
	Short:         "Elite Sleep+ member benefits portal",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDatabaseURL, "db", "", "database path or postgres:// URL (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.AddCommand(serveCmd, ledgerCmd, adminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
