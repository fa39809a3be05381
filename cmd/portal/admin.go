package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/elitesleep/portal/auth"
	"github.com/elitesleep/portal/store/sqldb"
)

var (
	flagAdminEmail    string
	flagAdminName     string
	flagAdminPassword string
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage superadmin logins",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a superadmin login",
	Long: `Create a superadmin login.

The password is read from --password, or from PORTAL_ADMIN_PASSWORD when
the flag is omitted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := flagAdminPassword
		if password == "" {
			password = os.Getenv("PORTAL_ADMIN_PASSWORD")
		}
		if password == "" {
			return errors.New("--password or PORTAL_ADMIN_PASSWORD is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := sqldb.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		svc := auth.NewService(db, nil, nil, nil)
		admin, err := svc.CreateSuperadmin(context.Background(), flagAdminEmail, flagAdminName, password)
		if err != nil {
			return err
		}
		fmt.Printf("Created superadmin %s (%s)\n", admin.Email, admin.ID)
		return nil
	},
}

func init() {
	adminCreateCmd.Flags().StringVar(&flagAdminEmail, "email", "", "login email (required)")
	adminCreateCmd.Flags().StringVar(&flagAdminName, "name", "", "display name")
	adminCreateCmd.Flags().StringVar(&flagAdminPassword, "password", "", "password (min 8 characters)")
	_ = adminCreateCmd.MarkFlagRequired("email")
	adminCmd.AddCommand(adminCreateCmd)
}
