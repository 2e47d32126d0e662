package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kopuro/internal/adapters/repo"
	"kopuro/internal/infra/config"
	"kopuro/internal/infra/db"
	"kopuro/internal/infra/log"
	"kopuro/internal/infra/ollama"
	"kopuro/internal/infra/youtube"
	"kopuro/internal/usecase/monitor"
	"kopuro/internal/usecase/sentiment"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor-once",
	Short: "Выполнить один проход монитора комментариев и выйти",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
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

		feed, err := youtube.NewClient(ctx, cfg.YouTube.APIKey)
		if err != nil {
			return err
		}
		llm := ollama.NewClient(cfg.LLM.URL, cfg.LLM.Model, cfg.LLM.SentimentTimeout)
		classifier := sentiment.NewReconciler(llm, sentiment.NewCache(cfg.LLM.SentimentCache), cfg.LLM.SentimentTimeout, logger)
		svc := monitor.NewService(feed, classifier, repo.NewPostgres(pool), monitor.Config{
			ChannelIDs:          cfg.YouTube.ChannelIDs,
			VideosPerChannel:    cfg.YouTube.VideosPerChannel,
			MaxCommentsPerVideo: cfg.YouTube.MaxCommentsPerVideo,
		}, logger)

		stats, err := svc.RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "каналов=%d роликов=%d получено=%d пропущено=%d сохранено=%d\n",
			stats.Channels, stats.Videos, stats.Fetched, stats.Skipped, stats.Saved)
		return nil
	},
}
