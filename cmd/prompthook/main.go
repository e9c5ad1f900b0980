package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/gordonpn/prompthook/internal/config"
	"github.com/gordonpn/prompthook/internal/github"
	"github.com/gordonpn/prompthook/internal/httpapi"
	"github.com/gordonpn/prompthook/internal/metrics"
	"github.com/gordonpn/prompthook/internal/notify"
	"github.com/gordonpn/prompthook/internal/ratelimit"
	"github.com/gordonpn/prompthook/internal/store"
	"github.com/gordonpn/prompthook/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	appMetrics := metrics.New()
	httpClient := &http.Client{Timeout: 15 * time.Second}

	committer := github.NewClient(httpClient, github.Config{
		Token:    cfg.GitHubToken,
		Owner:    cfg.GitHubOwner,
		Repo:     cfg.GitHubRepo,
		FilePath: cfg.GitHubFilePath,
		Branch:   cfg.GitHubBranch,
	})

	options := httpapi.Options{
		WebhookSecret: cfg.WebhookSecret,
		Limiter:       ratelimit.New(cfg.WebhookRateLimit, cfg.WebhookRateWindow),
		Metrics:       appMetrics,
		Committer:     committer,
	}

	if cfg.DatabaseURL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connect failed: %v", err)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			log.Fatalf("database ping failed: %v", err)
		}
		options.Repository = store.NewPostgres(dbPool)
		log.Printf("delivery log enabled")
	}

	if cfg.RedisURL != "" {
		redisOptions, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		redisClient := redis.NewClient(redisOptions)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping failed: %v", err)
		}
		defer redisClient.Close()

		options.Tracker = tracker.New(redisClient)
		log.Printf("prompt tracker enabled")
	}

	var notifiers []notify.Notifier
	if cfg.NotifyWebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(httpClient, cfg.NotifyWebhookURL, cfg.NotifyWebhookToken))
	}
	if cfg.DiscordWebhookURL != "" {
		notifiers = append(notifiers, notify.NewDiscordNotifier(httpClient, cfg.DiscordWebhookURL))
	}
	if cfg.KafkaBrokers != "" {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaNotifier.Close()
		notifiers = append(notifiers, kafkaNotifier)
	}

	if len(notifiers) > 0 {
		dispatcher := notify.NewDispatcher(notify.Config{
			WorkerCount:        cfg.WorkerCount,
			QueueSize:          cfg.QueueSize,
			MaxRetries:         cfg.MaxRetries,
			RetryBaseBackoffMS: cfg.RetryBaseBackoffMS,
		}, notifiers, appMetrics)
		dispatcher.Start()
		defer dispatcher.Stop()
		options.Dispatcher = dispatcher
		log.Printf("fan-out enabled with %d sink(s)", len(notifiers))
	}

	router := httpapi.NewRouter(options)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("prompthook listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}
