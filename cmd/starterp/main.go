package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "starterp",
		Short: "Session and authentication server",
		Long: `starterp serves email/password and Google sign-in, cookie and bearer
session checks, and role management for an application API.

Settings come from an optional YAML file (--config) and the environment.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	cmd.AddCommand(
		serveCmd(&configPath),
		migrateCmd(&configPath),
		createAdminCmd(&configPath),
	)
	return cmd
}
