package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port          string
	WebhookSecret string

	GitHubToken    string
	GitHubOwner    string
	GitHubRepo     string
	GitHubFilePath string
	GitHubBranch   string

	DatabaseURL string
	RedisURL    string

	NotifyWebhookURL   string
	NotifyWebhookToken string
	DiscordWebhookURL  string
	KafkaBrokers       string
	KafkaTopic         string

	WorkerCount        int
	QueueSize          int
	MaxRetries         int
	RetryBaseBackoffMS int

	WebhookRateLimit  int
	WebhookRateWindow time.Duration
}

func Load() (Config, error) {
	config := Config{
		Port:          getEnv("PORT", "4000"),
		WebhookSecret: strings.TrimSpace(os.Getenv("WEBHOOK_SECRET")),

		GitHubToken:    strings.TrimSpace(os.Getenv("GITHUB_TOKEN")),
		GitHubOwner:    strings.TrimSpace(os.Getenv("GITHUB_REPO_OWNER")),
		GitHubRepo:     strings.TrimSpace(os.Getenv("GITHUB_REPO_NAME")),
		GitHubFilePath: getEnv("GITHUB_FILE_PATH", "cicd/prompt_manifest.json"),
		GitHubBranch:   getEnv("GITHUB_BRANCH", "main"),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),

		NotifyWebhookURL:   strings.TrimSpace(os.Getenv("NOTIFY_WEBHOOK_URL")),
		NotifyWebhookToken: strings.TrimSpace(os.Getenv("NOTIFY_WEBHOOK_TOKEN")),
		DiscordWebhookURL:  strings.TrimSpace(os.Getenv("DISCORD_WEBHOOK_URL")),
		KafkaBrokers:       strings.TrimSpace(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "prompt-commits"),

		WorkerCount:        getEnvInt("WORKER_COUNT", 4),
		QueueSize:          getEnvInt("QUEUE_SIZE", 256),
		MaxRetries:         getEnvInt("MAX_RETRIES", 3),
		RetryBaseBackoffMS: getEnvInt("RETRY_BASE_BACKOFF_MS", 400),

		WebhookRateLimit:  getEnvInt("WEBHOOK_RATE_LIMIT", 30),
		WebhookRateWindow: time.Duration(getEnvInt("WEBHOOK_RATE_WINDOW_SECONDS", 60)) * time.Second,
	}

	if config.GitHubToken == "" {
		return Config{}, errors.New("GITHUB_TOKEN is required")
	}
	if config.GitHubOwner == "" {
		return Config{}, errors.New("GITHUB_REPO_OWNER is required")
	}
	if config.GitHubRepo == "" {
		return Config{}, errors.New("GITHUB_REPO_NAME is required")
	}
	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}
	if config.QueueSize < 1 {
		config.QueueSize = 128
	}

	return config, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
