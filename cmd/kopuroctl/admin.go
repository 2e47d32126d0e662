package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kopuro/internal/adapters/repo"
	"kopuro/internal/infra/config"
	"kopuro/internal/infra/db"
	"kopuro/internal/infra/log"
	"kopuro/internal/usecase/auth"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Управление учётными записями сотрудников",
}

var (
	adminEmail    string
	adminPassword string
)

var adminBootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Создать администратора, если такого email ещё нет",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := config.Parse()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if adminEmail == "" {
			adminEmail = cfg.Auth.FirstAdminEmail
		}
		if adminPassword == "" {
			adminPassword = cfg.Auth.FirstAdminPassword
		}
		if adminEmail == "" || adminPassword == "" {
			return fmt.Errorf("нужны --email и --password или FIRST_ADMIN_EMAIL/FIRST_ADMIN_PASSWORD")
		}

		logger := log.NewLogger(cfg.AppEnv, "kopuroctl")
		pool, err := db.Connect(ctx, cfg.PGDSN, 2)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer pool.Close()

		svc, err := auth.NewService(repo.NewPostgres(pool), cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenExpireMinutes)*time.Minute, logger)
		if err != nil {
			return err
		}
		created, err := svc.EnsureFirstAdmin(ctx, adminEmail, adminPassword)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "администратор %s создан\n", adminEmail)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "пользователь %s уже существует\n", adminEmail)
		}
		return nil
	},
}

var adminConfirmCmd = &cobra.Command{
	Use:   "confirm-worker <id>",
	Short: "Подтвердить учётную запись сотрудника",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id int64
		if _, err := fmt.Sscan(args[0], &id); err != nil || id <= 0 {
			return fmt.Errorf("некорректный id: %s", args[0])
		}
		ctx := cmd.Context()
		cfg, err := config.Parse()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		pool, err := db.Connect(ctx, cfg.PGDSN, 2)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer pool.Close()

		u, err := repo.NewPostgres(pool).ConfirmWorker(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "сотрудник %s подтверждён\n", u.Email)
		return nil
	},
}

func init() {
	adminBootstrapCmd.Flags().StringVar(&adminEmail, "email", "", "email администратора")
	adminBootstrapCmd.Flags().StringVar(&adminPassword, "password", "", "пароль администратора")
	adminCmd.AddCommand(adminBootstrapCmd, adminConfirmCmd)
}
