package main

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/shopdesk/internal/config"
	"github.com/gosuda/shopdesk/internal/store/postgres"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return withMigrator(func(mg *postgres.Migrator) error {
					if err := mg.Up(); err != nil {
						return err
					}
					return logVersion(mg)
				})
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (default 1 step)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("steps must be a positive integer, got %q", args[0])
					}
					steps = n
				}
				return withMigrator(func(mg *postgres.Migrator) error {
					if err := mg.Down(steps); err != nil {
						return err
					}
					return logVersion(mg)
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return withMigrator(logVersion)
			},
		},
	)
	return cmd
}

func withMigrator(fn func(mg *postgres.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	mg, err := postgres.NewMigrator(cfg.Database.MigrateURL())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := mg.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("migrator close")
		}
	}()
	return fn(mg)
}

func logVersion(mg *postgres.Migrator) error {
	v, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	log.Info().Uint("version", v).Bool("dirty", dirty).Msg("schema version")
	return nil
}
