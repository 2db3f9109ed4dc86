// Package main applies the rule-set store schema.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/liamcoop/csvetl/internal/logger"
	"github.com/spf13/cobra"
)

type migrateOptions struct {
	databaseURL    string
	migrationsPath string
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	opts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the rule-set store schema",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Check for database URL from flag or environment
			if opts.databaseURL == "" {
				opts.databaseURL = getenv("DATABASE_URL")
			}
			if opts.databaseURL == "" {
				return errors.New("database URL is required, use --database or DATABASE_URL")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database", "", "Database URL (default $DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.migrationsPath, "path", "migrations", "Path to migrations directory")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrate(opts, up)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrate(opts, down)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrate(opts, func(m *migrate.Migrate) error {
					version, dirty, err := m.Version()
					if err != nil {
						return fmt.Errorf("failed to get version: %w", err)
					}
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d (dirty: %v)\n", version, dirty)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version number: %w", err)
				}
				return withMigrate(opts, func(m *migrate.Migrate) error {
					if err := m.Force(version); err != nil {
						return fmt.Errorf("failed to force version: %w", err)
					}
					logger.Info("forced schema version", "version", version)
					return nil
				})
			},
		},
	)

	return cmd
}

func withMigrate(opts *migrateOptions, fn func(*migrate.Migrate) error) error {
	logger.Info("connecting to database", "migrations", opts.migrationsPath)

	m, err := migrate.New("file://"+opts.migrationsPath, opts.databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer m.Close() //nolint:errcheck

	return fn(m)
}

func up(m *migrate.Migrate) error {
	err := m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to run, database is up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("migrations completed")
	return nil
}

func down(m *migrate.Migrate) error {
	err := m.Down()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	logger.Info("rollback completed")
	return nil
}

func main() {
	if err := newRootCmd(os.Getenv).Execute(); err != nil {
		logger.Fatal("migrate failed", "error", err)
	}
}
