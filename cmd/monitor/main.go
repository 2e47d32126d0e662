package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"kopuro/internal/adapters/repo"
	"kopuro/internal/infra/config"
	"kopuro/internal/infra/db"
	"kopuro/internal/infra/log"
	"kopuro/internal/infra/metrics"
	"kopuro/internal/infra/ollama"
	"kopuro/internal/infra/youtube"
	"kopuro/internal/usecase/monitor"
	"kopuro/internal/usecase/sentiment"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv, "monitor")

	if len(cfg.YouTube.ChannelIDs) == 0 {
		logger.Fatal().Msg("monitor: YOUTUBE_CHANNEL_IDS не задан")
	}
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("monitor: нет подключения к БД")
	}
	defer pool.Close()

	feed, err := youtube.NewClient(ctx, cfg.YouTube.APIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("monitor: не удалось создать клиента YouTube")
	}

	llm := ollama.NewClient(cfg.LLM.URL, cfg.LLM.Model, cfg.LLM.SentimentTimeout)
	classifier := sentiment.NewReconciler(llm, sentiment.NewCache(cfg.LLM.SentimentCache), cfg.LLM.SentimentTimeout, logger)
	svc := monitor.NewService(feed, classifier, repo.NewPostgres(pool), monitor.Config{
		ChannelIDs:          cfg.YouTube.ChannelIDs,
		VideosPerChannel:    cfg.YouTube.VideosPerChannel,
		MaxCommentsPerVideo: cfg.YouTube.MaxCommentsPerVideo,
		Interval:            cfg.YouTube.Interval,
	}, logger)

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	logger.Info().Strs("channels", cfg.YouTube.ChannelIDs).Dur("interval", cfg.YouTube.Interval).Msg("monitor: старт")
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("monitor: остановлен с ошибкой")
	}
	logger.Info().Msg("monitor: остановка")
}
