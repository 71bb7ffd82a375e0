package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lborres/starterp"
	"github.com/lborres/starterp/services"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.InMemory {
				return errors.New("nothing to migrate with in-memory storage")
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}

			store, err := openStorage(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer store.close()

			if err := store.pg.Migrate(cmd.Context()); err != nil {
				return err
			}
			log.Info("schema up to date")
			return nil
		},
	}
}

func createAdminCmd(configPath *string) *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a user if needed and grant it the admin role",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			store, err := openStorage(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer store.close()

			user, created, err := createAdmin(cmd.Context(), store, log, email, password, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s (%s) created=%t\n", user.Email, user.ID, created)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email (required)")
	cmd.Flags().StringVar(&password, "password", "", "password for a new user")
	cmd.Flags().StringVar(&name, "name", "", "display name for a new user")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// createAdmin makes sure the user exists and then records the admin role.
func createAdmin(ctx context.Context, store *storage, log *slog.Logger, email, password, name string) (*starterp.User, bool, error) {
	users := services.NewUserService(store.auth, starterp.NewArgon2(), log)
	roles := services.NewRoleService(store.app, store.app, log)

	user, created, err := users.EnsureUser(ctx, email, password, name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}
	if _, err := roles.SetUserRole(ctx, user.ID, starterp.RoleAdmin, ""); err != nil {
		return nil, false, fmt.Errorf("failed to grant admin: %w", err)
	}
	return user, created, nil
}
