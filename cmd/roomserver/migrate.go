package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/cory-johannsen/hyggen/internal/config"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var (
		dir   string
		steps int
	)
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back journal schema migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			m, err := migrate.New("file://"+dir, cfg.Database.DSN())
			if err != nil {
				return fmt.Errorf("creating migrator: %w", err)
			}
			defer m.Close()

			err = runMigration(m, args[0], steps)
			if err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration failed: %w", err)
			}

			version, dirty, _ := m.Version()
			out := cmd.OutOrStdout()
			if errors.Is(err, migrate.ErrNoChange) {
				fmt.Fprintf(out, "no changes (version=%d dirty=%v) [%s]\n", version, dirty, time.Since(start))
			} else {
				fmt.Fprintf(out, "migrated %s to version=%d dirty=%v [%s]\n", args[0], version, dirty, time.Since(start))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "migrations", "directory containing migration files")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return cmd
}

func runMigration(m *migrate.Migrate, direction string, steps int) error {
	switch direction {
	case "up":
		if steps > 0 {
			return m.Steps(steps)
		}
		return m.Up()
	case "down":
		if steps > 0 {
			return m.Steps(-steps)
		}
		return m.Down()
	default:
		return fmt.Errorf("invalid direction %q: must be 'up' or 'down'", direction)
	}
}
