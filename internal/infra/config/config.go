package config

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv         string `envconfig:"APP_ENV" default:"dev"`
	Port           int    `envconfig:"PORT" default:"8000"`
	MetricsAddr    string `envconfig:"METRICS_ADDR" default:":9090"`
	MigrateOnStart bool   `envconfig:"MIGRATE_ON_START" default:"true"`

	PGDSN      string `envconfig:"PG_DSN"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"10"`

	RedisAddr string `envconfig:"REDIS_ADDR"`
	AMQPURL   string `envconfig:"AMQP_URL"`

	Queues struct {
		Backend string `envconfig:"QUEUE_BACKEND" default:"redis"`
		Notices string `envconfig:"NOTICE_QUEUE_KEY" default:"resolution_notices"`
	} `envconfig:""`

	Auth struct {
		JWTSecret          string `envconfig:"JWT_SECRET"`
		TokenExpireMinutes int    `envconfig:"ACCESS_TOKEN_EXPIRE_MINUTES" default:"30"`
		FirstAdminEmail    string `envconfig:"FIRST_ADMIN_EMAIL"`
		FirstAdminPassword string `envconfig:"FIRST_ADMIN_PASSWORD"`
	} `envconfig:""`

	LLM struct {
		URL              string        `envconfig:"OLLAMA_API_URL" default:"http://localhost:11434/api/generate"`
		Model            string        `envconfig:"OLLAMA_MODEL" default:"gemma3:27b"`
		AnalysisTimeout  time.Duration `envconfig:"ANALYSIS_TIMEOUT" default:"120s"`
		SentimentTimeout time.Duration `envconfig:"SENTIMENT_TIMEOUT" default:"90s"`
		SentimentCache   int           `envconfig:"SENTIMENT_CACHE_SIZE" default:"10000"`
	} `envconfig:""`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
	} `envconfig:""`

	Intake struct {
		URL     string        `envconfig:"INTAKE_API_URL" default:"http://localhost:8000"`
		Timeout time.Duration `envconfig:"INTAKE_API_TIMEOUT" default:"70s"`
	} `envconfig:""`

	YouTube struct {
		APIKey              string        `envconfig:"YOUTUBE_API_KEY"`
		ChannelIDs          []string      `envconfig:"YOUTUBE_CHANNEL_IDS"`
		VideosPerChannel    int           `envconfig:"YOUTUBE_VIDEOS_PER_CHANNEL" default:"10"`
		MaxCommentsPerVideo int           `envconfig:"YOUTUBE_MAX_COMMENTS_PER_VIDEO" default:"100"`
		Interval            time.Duration `envconfig:"MONITOR_INTERVAL" default:"60m"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения. Файл .env, если есть, подхватывается заранее.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse читает .env и окружение и возвращает ошибку вместо остановки процесса.
func Parse() (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, err
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	cfg.YouTube.ChannelIDs = compact(cfg.YouTube.ChannelIDs)
	return cfg, nil
}

func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
