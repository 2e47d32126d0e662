package main

import (
	"context"
	"fmt"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"kopuro/internal/adapters/bot"
	"kopuro/internal/adapters/intakeapi"
	"kopuro/internal/domain"
	"kopuro/internal/infra/cache"
	"kopuro/internal/infra/config"
	httpinfra "kopuro/internal/infra/http"
	"kopuro/internal/infra/log"
	"kopuro/internal/infra/metrics"
	"kopuro/internal/infra/queue"
)

const defaultWebhookPath = "/telegram/webhook"

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv, "bot")

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("bot: TG_BOT_TOKEN не задан")
	}
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: не удалось создать бота")
	}
	logger.Info().Str("username", api.Self.UserName).Msg("bot: авторизован")

	intake, err := intakeapi.New(cfg.Intake.URL, intakeapi.WithTimeout(cfg.Intake.Timeout))
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: некорректный адрес API приёма обращений")
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: нет подключения к Redis")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	h := bot.NewHandler(api, intake, logger)

	notices, closeQueue, err := queue.Open(cfg.Queues.Backend, rdb, cfg.AMQPURL, cfg.Queues.Notices)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: не удалось открыть очередь уведомлений")
	}
	defer closeQueue()
	if notices != nil {
		if n, err := queue.RequeueStale(ctx, notices); err != nil {
			logger.Warn().Err(err).Msg("bot: не удалось вернуть зависшие уведомления")
		} else if n > 0 {
			logger.Info().Int("count", n).Msg("bot: зависшие уведомления возвращены в очередь")
		}
		go h.ConsumeNotices(ctx, notices)
	}

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	if cfg.Telegram.WebhookURL == "" {
		if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			logger.Warn().Err(err).Msg("bot: не удалось снять webhook")
		}
		logger.Info().Msg("bot: long polling запущен")
		bot.Poll(ctx, api, h)
		logger.Info().Msg("bot: остановка")
		return
	}

	if err := serveWebhook(ctx, cfg, logger, api, h, dedupCache(rdb)); err != nil {
		logger.Fatal().Err(err).Msg("bot: webhook сервер остановлен с ошибкой")
	}
	logger.Info().Msg("bot: остановка")
}

func dedupCache(rdb *redis.Client) domain.Cache {
	if rdb == nil {
		return cache.NewMemory()
	}
	return cache.NewRedis(rdb, "kopuro:bot:")
}

func serveWebhook(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger, api *tgbotapi.BotAPI, h *bot.Handler, dedup domain.Cache) error {
	hookURL, err := url.Parse(cfg.Telegram.WebhookURL)
	if err != nil {
		return fmt.Errorf("parse webhook url: %w", err)
	}
	path := hookURL.Path
	if path == "" || path == "/" {
		path = defaultWebhookPath
		hookURL.Path = path
	}
	wh, err := tgbotapi.NewWebhook(hookURL.String())
	if err != nil {
		return fmt.Errorf("webhook config: %w", err)
	}
	if _, err := api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	server := httpinfra.NewServer(logger, cfg.Intake.Timeout+10*time.Second)
	server.Router.Post(path, bot.WebhookHandler(h, dedup))
	return server.Start(ctx, fmt.Sprintf(":%d", cfg.Port), cfg.Intake.Timeout+15*time.Second)
}
