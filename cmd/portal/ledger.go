package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/elitesleep/portal/api"
	"github.com/elitesleep/portal/benefits"
)

var (
	flagResetScopes []string
	flagMigrateAll  bool
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and repair member ledgers",
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show <customerId>",
	Short: "Print a member's ledger record and derived balances",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			rec, err := a.ledger.Load(ctx, args[0])
			if err != nil {
				return err
			}
			credits, err := a.benefits.Credits(ctx, args[0])
			if err != nil {
				return err
			}
			cashback := benefits.ComputeCashback(benefits.DecodeMetadata(rec.Metadata))

			out := map[string]any{
				"customerId": rec.CustomerID,
				"email":      rec.Email,
				"version":    rec.Version,
				"metadata":   rec.Metadata,
				"credits": map[string]string{
					"earned":    credits.TotalEarned.String(),
					"used":      credits.Used.String(),
					"reserved":  credits.Reserved.String(),
					"available": credits.Available.String(),
				},
				"cashback": map[string]any{
					"balance": cashback.Balance.String(),
					"format":  cashback.Format,
					"entries": len(cashback.History),
				},
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		})
	},
}

var ledgerResetCmd = &cobra.Command{
	Use:   "reset <customerId>",
	Short: "Clear ledger keys for the given scopes",
	Long: `Clear ledger keys for the given scopes.

Scopes: reservation, credits, cashback, protectors, all.
Only keys owned by the ledger schema are touched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scopes, err := benefits.ParseResetScopes(flagResetScopes)
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			if _, err := a.benefits.Reset(ctx, args[0], scopes...); err != nil {
				return err
			}
			log.Info().
				Str("customer_id", args[0]).
				Strs("scopes", flagResetScopes).
				Msg("Ledger reset")
			fmt.Printf("Reset %s for %s\n", strings.Join(flagResetScopes, ","), args[0])
			return nil
		})
	},
}

var ledgerMigrateCmd = &cobra.Command{
	Use:   "migrate-history [customerId...]",
	Short: "Rewrite compact cashback histories in the full encoding",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !flagMigrateAll {
			return errors.New("pass customer ids or --all")
		}
		return withApp(func(ctx context.Context, a *app) error {
			ids := args
			if flagMigrateAll {
				records, err := a.db.List(ctx)
				if err != nil {
					return err
				}
				ids = nil
				for _, rec := range records {
					ids = append(ids, rec.CustomerID)
				}
			}

			migrated := 0
			for _, id := range ids {
				ok, err := a.benefits.MigrateHistory(ctx, id)
				if err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
				if ok {
					migrated++
					log.Info().Str("customer_id", id).Msg("Cashback history migrated")
				}
			}
			fmt.Printf("Migrated %d of %d customers\n", migrated, len(ids))
			return nil
		})
	},
}

var ledgerStaleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List reservations whose hold has expired",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			stale, err := api.NewStaleReservationMonitor(a.db).Scan(ctx)
			if err != nil {
				return err
			}
			for _, s := range stale {
				fmt.Printf("%s\treserved=%s\texpired=%s\n",
					s.CustomerID, s.Reserved, s.Expires.Format(benefits.TimeLayout))
			}
			fmt.Printf("%d stale reservation(s)\n", len(stale))
			return nil
		})
	},
}

func init() {
	ledgerResetCmd.Flags().StringSliceVar(&flagResetScopes, "scope", []string{string(benefits.ResetReservation)}, "scopes to clear (repeatable or comma separated)")
	ledgerMigrateCmd.Flags().BoolVar(&flagMigrateAll, "all", false, "migrate every customer in the ledger database")
	ledgerCmd.AddCommand(ledgerShowCmd, ledgerResetCmd, ledgerMigrateCmd, ledgerStaleCmd)
}

// withApp loads configuration, builds the app and runs fn.
func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a)
}
