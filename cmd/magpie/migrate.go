package main

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var migrationsPath string

	cmd := &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply database migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			m, err := migrate.New("file://"+migrationsPath, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to create migrator: %w", err)
			}
			defer func() { _, _ = m.Close() }()

			switch args[0] {
			case "up":
				err = m.Up()
			case "down":
				err = m.Down()
			default:
				return fmt.Errorf("invalid direction %q (must be up or down)", args[0])
			}
			if err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration %s failed: %w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "migration %s complete\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&migrationsPath, "migrations", "migrations", "path to migrations directory")
	return cmd
}
