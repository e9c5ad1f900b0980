package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gordonpn/prompthook/internal/metrics"
)

type Config struct {
	WorkerCount        int
	QueueSize          int
	MaxRetries         int
	RetryBaseBackoffMS int
}

// Dispatcher fans accepted commit events out to every configured sink from
// a background worker pool. Sink failures never reach the webhook response;
// they are retried, then logged and counted.
type Dispatcher struct {
	config    Config
	notifiers []Notifier
	metrics   *metrics.Metrics
	queue     chan Notification
	waitGroup sync.WaitGroup
}

func NewDispatcher(config Config, notifiers []Notifier, m *metrics.Metrics) *Dispatcher {
	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}
	if config.QueueSize < 1 {
		config.QueueSize = 128
	}

	return &Dispatcher{
		config:    config,
		notifiers: notifiers,
		metrics:   m,
		queue:     make(chan Notification, config.QueueSize),
	}
}

func (dispatcher *Dispatcher) Start() {
	for range dispatcher.config.WorkerCount {
		dispatcher.waitGroup.Add(1)
		go func() {
			defer dispatcher.waitGroup.Done()
			for item := range dispatcher.queue {
				dispatcher.deliver(item)
			}
		}()
	}
}

func (dispatcher *Dispatcher) Stop() {
	close(dispatcher.queue)
	dispatcher.waitGroup.Wait()
}

func (dispatcher *Dispatcher) Enqueue(notification Notification) {
	dispatcher.queue <- notification
}

func (dispatcher *Dispatcher) deliver(notification Notification) {
	for _, notifier := range dispatcher.notifiers {
		dispatcher.sendWithRetry(notifier, notification)
	}
}

func (dispatcher *Dispatcher) sendWithRetry(notifier Notifier, notification Notification) {
	for attempt := 0; attempt <= dispatcher.config.MaxRetries; attempt++ {
		err := notifier.Notify(context.Background(), notification)
		if err == nil {
			dispatcher.metrics.RecordNotifyPublish(nil)
			return
		}

		if attempt < dispatcher.config.MaxRetries {
			time.Sleep(backoffDuration(dispatcher.config.RetryBaseBackoffMS, attempt))
			continue
		}

		dispatcher.metrics.RecordNotifyPublish(err)
		log.Printf("notify send failed sink=%s prompt=%s commit=%s err=%v", notifier.Name(), notification.PromptID, notification.CommitHash, err)
	}
}

func backoffDuration(baseMS, attempt int) time.Duration {
	if baseMS < 1 {
		baseMS = 1
	}
	delay := baseMS << attempt
	return time.Duration(delay) * time.Millisecond
}
