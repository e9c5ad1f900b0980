package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gordonpn/prompthook/internal/domain"
	"github.com/gordonpn/prompthook/internal/github"
	"github.com/gordonpn/prompthook/internal/metrics"
	"github.com/gordonpn/prompthook/internal/notify"
	"github.com/gordonpn/prompthook/internal/ratelimit"
	"github.com/gordonpn/prompthook/internal/store"
	"github.com/gordonpn/prompthook/internal/tracker"
)

// Committer performs the configured side effect for an accepted event.
type Committer interface {
	CommitManifest(ctx context.Context, event domain.CommitEvent) (github.CommitResult, error)
}

// Enqueuer hands an accepted event to the fan-out dispatcher.
type Enqueuer interface {
	Enqueue(notification notify.Notification)
}

// PromptTracker records the latest commit per prompt.
type PromptTracker interface {
	RecordCommit(ctx context.Context, event domain.CommitEvent) error
	ListPrompts(ctx context.Context) ([]tracker.PromptState, error)
}

// Options carries the handler dependencies. Repository, Tracker, Dispatcher,
// and Metrics may be nil; the matching features are simply off.
type Options struct {
	WebhookSecret string
	Limiter       *ratelimit.Limiter
	Metrics       *metrics.Metrics
	Committer     Committer
	Dispatcher    Enqueuer
	Repository    store.Repository
	Tracker       PromptTracker
}

type Handlers struct {
	options Options
}

func NewRouter(options Options) http.Handler {
	handlers := &Handlers{options: options}
	router := chi.NewRouter()

	router.Get("/healthz", handlers.healthz)
	if options.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", options.Metrics.Handler())
	}

	router.Route("/webhook", func(r chi.Router) {
		r.With(handlers.secretAuth).Post("/commit", handlers.commit)
	})

	// chi panics when serving an empty subrouter, so the /api group only
	// exists when at least one optional feature is on.
	if options.Repository != nil || options.Tracker != nil {
		router.Route("/api", func(r chi.Router) {
			if options.Repository != nil {
				r.Get("/deliveries", handlers.deliveries)
			}
			if options.Tracker != nil {
				r.Get("/prompts", handlers.prompts)
			}
		})
	}

	return router
}

// secretAuth gates the webhook behind a shared secret. An empty configured
// secret disables the check.
func (handlers *Handlers) secretAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if handlers.options.WebhookSecret == "" {
			next.ServeHTTP(writer, request)
			return
		}

		header := request.Header.Get("X-Webhook-Secret")
		if !secureCompare(handlers.options.WebhookSecret, header) {
			handlers.options.Metrics.RecordRejected()
			writeJSON(writer, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(writer, request)
	})
}

func (handlers *Handlers) healthz(writer http.ResponseWriter, _ *http.Request) {
	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write([]byte("ok"))
}

func (handlers *Handlers) commit(writer http.ResponseWriter, request *http.Request) {
	handlers.options.Metrics.RecordReceived()

	if handlers.options.Limiter != nil && !handlers.options.Limiter.Allow(requestIP(request)) {
		handlers.options.Metrics.RecordRateLimited()
		writeJSON(writer, http.StatusTooManyRequests, map[string]string{"error": "rate_limited"})
		return
	}

	var event domain.CommitEvent
	if err := json.NewDecoder(request.Body).Decode(&event); err != nil {
		handlers.options.Metrics.RecordRejected()
		writeJSON(writer, http.StatusBadRequest, map[string]string{"error": "invalid_json"})
		return
	}

	if err := event.Validate(); err != nil {
		handlers.options.Metrics.RecordRejected()
		writeJSON(writer, http.StatusBadRequest, map[string]string{"error": "invalid_payload", "detail": err.Error()})
		return
	}

	startTime := time.Now()
	result, err := handlers.options.Committer.CommitManifest(request.Context(), event)
	handlers.options.Metrics.RecordGitHubCommit(time.Since(startTime), err)
	if err != nil {
		log.Printf("manifest commit failed prompt=%s commit=%s err=%v", event.PromptID, event.CommitHash, err)

		var apiErr *github.APIError
		switch {
		case errors.Is(err, github.ErrUnavailable):
			writeJSON(writer, http.StatusServiceUnavailable, map[string]string{"error": "github_unreachable"})
		case errors.As(err, &apiErr):
			writeJSON(writer, http.StatusBadGateway, map[string]any{"error": "github_error", "github_status": apiErr.StatusCode})
		default:
			writeJSON(writer, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		}
		return
	}

	handlers.recordDelivery(request.Context(), event, result)

	if handlers.options.Dispatcher != nil {
		handlers.options.Dispatcher.Enqueue(notify.FromEvent(event, result.CommitURL))
	}

	handlers.options.Metrics.RecordAccepted()
	log.Printf("manifest committed prompt=%s commit=%s sha=%s", event.PromptID, event.CommitHash, result.CommitSHA)
	writeJSON(writer, http.StatusCreated, map[string]any{
		"message": "webhook received and manifest committed",
		"commit":  result,
	})
}

// recordDelivery updates the optional delivery log and prompt tracker. The
// manifest is already committed at this point, so failures here are logged
// and do not change the response.
func (handlers *Handlers) recordDelivery(ctx context.Context, event domain.CommitEvent, result github.CommitResult) {
	if handlers.options.Repository != nil {
		delivery := domain.Delivery{
			ID:         uuid.NewString(),
			PromptID:   event.PromptID,
			PromptName: event.PromptName,
			CommitHash: event.CommitHash,
			CreatedBy:  event.CreatedBy,
			CommitURL:  result.CommitURL,
			ReceivedAt: time.Now().UTC(),
		}
		if err := handlers.options.Repository.InsertDelivery(ctx, delivery); err != nil {
			log.Printf("delivery log insert failed prompt=%s err=%v", event.PromptID, err)
		}
	}

	if handlers.options.Tracker != nil {
		if err := handlers.options.Tracker.RecordCommit(ctx, event); err != nil {
			log.Printf("prompt tracker update failed prompt=%s err=%v", event.PromptID, err)
		}
	}
}

func (handlers *Handlers) deliveries(writer http.ResponseWriter, request *http.Request) {
	limit := 50
	if raw := strings.TrimSpace(request.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(writer, http.StatusBadRequest, map[string]string{"error": "invalid_limit"})
			return
		}
		if parsed > 1000 {
			parsed = 1000
		}
		limit = parsed
	}

	items, err := handlers.options.Repository.ListRecent(request.Context(), limit)
	if err != nil {
		log.Printf("deliveries query failed: %v", err)
		writeJSON(writer, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}

	writeJSON(writer, http.StatusOK, map[string]any{"deliveries": items})
}

func (handlers *Handlers) prompts(writer http.ResponseWriter, request *http.Request) {
	states, err := handlers.options.Tracker.ListPrompts(request.Context())
	if err != nil {
		log.Printf("prompts query failed: %v", err)
		writeJSON(writer, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}

	writeJSON(writer, http.StatusOK, map[string]any{"prompts": states})
}

func secureCompare(expected, actual string) bool {
	if len(expected) == 0 || len(actual) == 0 {
		return false
	}
	if len(expected) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(actual)) == 1
}

func requestIP(request *http.Request) string {
	forwardedFor := strings.TrimSpace(strings.Split(request.Header.Get("X-Forwarded-For"), ",")[0])
	if forwardedFor != "" {
		return forwardedFor
	}

	realIP := strings.TrimSpace(request.Header.Get("X-Real-IP"))
	if realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(request.RemoteAddr))
	if err != nil {
		return request.RemoteAddr
	}
	return host
}

func writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(payload)
}
