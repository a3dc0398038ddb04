package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/shabda-setu/internal/db"
)

var migrateCommand = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL schema",
}

var migrateUpCommand = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigrate(cmd, db.Up)
	},
}

var migrateDownCommand = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigrate(cmd, db.Down)
	},
}

var migrateVersionCommand = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE:  runMigrateVersion,
}

func init() {
	migrateCommand.AddCommand(migrateUpCommand)
	migrateCommand.AddCommand(migrateDownCommand)
	migrateCommand.AddCommand(migrateVersionCommand)

	rootCmd.AddCommand(migrateCommand)
}

func databaseURL(cmd *cobra.Command) (string, *app, error) {
	a, err := loadApp(cmd.OutOrStdout())
	if err != nil {
		return "", nil, err
	}
	if a.cfg.DatabaseURL == "" {
		a.close()
		return "", nil, fmt.Errorf("DATABASE_URL environment variable or database_url config is required")
	}
	return a.cfg.DatabaseURL, a, nil
}

func runMigrate(cmd *cobra.Command, direction db.Direction) error {
	url, a, err := databaseURL(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if err := db.Migrate(url, direction); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s)\n", direction)
	return nil
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	url, a, err := databaseURL(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	status, err := db.Version(url)
	if err != nil {
		return err
	}
	if !status.Applied {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No migrations applied")
		return nil
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Version %d (dirty: %t)\n", status.Version, status.Dirty)
	return nil
}
