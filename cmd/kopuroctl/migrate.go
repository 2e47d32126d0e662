package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"kopuro/internal/infra/config"
	"kopuro/internal/infra/db"
	"kopuro/internal/infra/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Управление схемой БД",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Применить все новые миграции",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(m *db.Migrator) error {
			return m.Up()
		})
	},
}

var migrateDownSteps int

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Откатить последние миграции",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(m *db.Migrator) error {
			return m.Down(migrateDownSteps)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Показать текущую версию схемы",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(m *db.Migrator) error {
			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
			return nil
		})
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateDownSteps, "steps", 1, "сколько миграций откатить")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}

func withMigrator(ctx context.Context, fn func(*db.Migrator) error) error {
	cfg, err := config.Parse()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := log.NewLogger(cfg.AppEnv, "kopuroctl")
	pool, err := db.Connect(ctx, cfg.PGDSN, 2)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()
	m, err := db.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}
