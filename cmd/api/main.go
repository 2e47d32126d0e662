package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"kopuro/internal/adapters/httpapi"
	"kopuro/internal/adapters/repo"
	"kopuro/internal/infra/cache"
	"kopuro/internal/infra/config"
	"kopuro/internal/infra/db"
	httpinfra "kopuro/internal/infra/http"
	"kopuro/internal/infra/log"
	"kopuro/internal/infra/metrics"
	"kopuro/internal/infra/ollama"
	"kopuro/internal/infra/queue"
	"kopuro/internal/usecase/analysis"
	"kopuro/internal/usecase/auth"
	"kopuro/internal/usecase/issues"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv, "api")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		migrator, err := db.NewMigrator(pool, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: не удалось подготовить миграции")
		}
		if err := migrator.Up(); err != nil {
			logger.Fatal().Err(err).Msg("api: не удалось применить миграции")
		}
		_ = migrator.Close()
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к Redis")
	}
	if rdb != nil {
		defer rdb.Close()
	}
	notices, closeQueue, err := queue.Open(cfg.Queues.Backend, rdb, cfg.AMQPURL, cfg.Queues.Notices)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось открыть очередь уведомлений")
	}
	defer closeQueue()
	if notices == nil {
		logger.Warn().Msg("api: уведомления о решении обращений отключены")
	}

	store := repo.NewPostgres(pool)
	llm := ollama.NewClient(cfg.LLM.URL, cfg.LLM.Model, cfg.LLM.AnalysisTimeout)
	analyzer := analysis.NewReconciler(llm, cfg.LLM.AnalysisTimeout, logger)
	issueService := issues.NewService(store, store, analyzer, notices, logger)

	authService, err := auth.NewService(store, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenExpireMinutes)*time.Minute, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: некорректные настройки авторизации")
	}
	created, err := authService.EnsureFirstAdmin(ctx, cfg.Auth.FirstAdminEmail, cfg.Auth.FirstAdminPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось создать первого администратора")
	}
	if created {
		logger.Info().Str("email", cfg.Auth.FirstAdminEmail).Msg("api: создан первый администратор")
	}

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	requestTimeout := cfg.LLM.AnalysisTimeout + 30*time.Second
	server := httpinfra.NewServer(logger, requestTimeout)
	httpapi.NewServer(issueService, authService, httpapi.WithLogger(logger)).Register(server.Router)

	if err := server.Start(ctx, fmt.Sprintf(":%d", cfg.Port), requestTimeout+5*time.Second); err != nil {
		logger.Fatal().Err(err).Msg("api: сервер остановлен с ошибкой")
	}
	logger.Info().Msg("api: остановка")
}
