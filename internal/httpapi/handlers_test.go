package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gordonpn/prompthook/internal/domain"
	"github.com/gordonpn/prompthook/internal/github"
	"github.com/gordonpn/prompthook/internal/notify"
	"github.com/gordonpn/prompthook/internal/ratelimit"
	"github.com/gordonpn/prompthook/internal/tracker"
)

type fakeCommitter struct {
	mu     sync.Mutex
	err    error
	events []domain.CommitEvent
}

func (f *fakeCommitter) CommitManifest(_ context.Context, event domain.CommitEvent) (github.CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return github.CommitResult{}, f.err
	}
	f.events = append(f.events, event)
	return github.CommitResult{CommitSHA: "abc123", CommitURL: "https://github.test/c/abc123"}, nil
}

func (f *fakeCommitter) commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fakeEnqueuer struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (f *fakeEnqueuer) Enqueue(n notify.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, n)
}

type fakeRepository struct {
	mu         sync.Mutex
	deliveries []domain.Delivery
	listErr    error
}

func (f *fakeRepository) InsertDelivery(_ context.Context, delivery domain.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, delivery)
	return nil
}

func (f *fakeRepository) ListRecent(_ context.Context, limit int) ([]domain.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit > len(f.deliveries) {
		limit = len(f.deliveries)
	}
	return append([]domain.Delivery(nil), f.deliveries[:limit]...), nil
}

type fakeTracker struct {
	mu     sync.Mutex
	states map[string]tracker.PromptState
}

func (f *fakeTracker) RecordCommit(_ context.Context, event domain.CommitEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.states == nil {
		f.states = make(map[string]tracker.PromptState)
	}
	f.states[event.PromptID] = tracker.PromptState{
		PromptID:   event.PromptID,
		PromptName: event.PromptName,
		CommitHash: event.CommitHash,
	}
	return nil
}

func (f *fakeTracker) ListPrompts(_ context.Context) ([]tracker.PromptState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	states := make([]tracker.PromptState, 0, len(f.states))
	for _, state := range f.states {
		states = append(states, state)
	}
	return states, nil
}

const validBody = `{
	"prompt_id": "a2f1c6de-9d3b-4f5a-8c21-7b0f2d9e4a11",
	"prompt_name": "support-triage",
	"commit_hash": "9c4e1f0",
	"created_at": "2026-08-30T12:04:05Z",
	"created_by": "release-bot",
	"manifest": {"model": "gpt-4o"}
}`

func postCommit(router http.Handler, body, secret string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(http.MethodPost, "/webhook/commit", strings.NewReader(body))
	request.RemoteAddr = "198.51.100.7:55000"
	if secret != "" {
		request.Header.Set("X-Webhook-Secret", secret)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func TestCommitValidPayload(t *testing.T) {
	committer := &fakeCommitter{}
	enqueuer := &fakeEnqueuer{}
	router := NewRouter(Options{Committer: committer, Dispatcher: enqueuer})

	recorder := postCommit(router, validBody, "")
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", recorder.Code, recorder.Body.String())
	}
	if committer.commits() != 1 {
		t.Errorf("commits = %d, want exactly 1 side effect", committer.commits())
	}
	if len(enqueuer.got) != 1 {
		t.Errorf("enqueued = %d, want 1", len(enqueuer.got))
	}
	if !strings.Contains(recorder.Body.String(), "abc123") {
		t.Errorf("body missing commit details: %s", recorder.Body.String())
	}
}

func TestCommitEmptyObjectIsBadRequest(t *testing.T) {
	committer := &fakeCommitter{}
	router := NewRouter(Options{Committer: committer})

	recorder := postCommit(router, `{}`, "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
	if committer.commits() != 0 {
		t.Errorf("commits = %d, want no side effect", committer.commits())
	}
}

func TestCommitMalformedJSONIsBadRequest(t *testing.T) {
	committer := &fakeCommitter{}
	router := NewRouter(Options{Committer: committer})

	recorder := postCommit(router, `{not json`, "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
	if committer.commits() != 0 {
		t.Error("malformed payload must not trigger a side effect")
	}
}

func TestCommitDuplicatePayloadsAreIndependent(t *testing.T) {
	committer := &fakeCommitter{}
	router := NewRouter(Options{Committer: committer})

	for i := 0; i < 2; i++ {
		if recorder := postCommit(router, validBody, ""); recorder.Code != http.StatusCreated {
			t.Fatalf("request %d status = %d, want 201", i+1, recorder.Code)
		}
	}
	if committer.commits() != 2 {
		t.Errorf("commits = %d, want 2 (no deduplication)", committer.commits())
	}
}

func TestCommitSecretRequired(t *testing.T) {
	committer := &fakeCommitter{}
	router := NewRouter(Options{WebhookSecret: "s3cret", Committer: committer})

	if recorder := postCommit(router, validBody, ""); recorder.Code != http.StatusUnauthorized {
		t.Errorf("missing secret status = %d, want 401", recorder.Code)
	}
	if recorder := postCommit(router, validBody, "wrong"); recorder.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret status = %d, want 401", recorder.Code)
	}
	if committer.commits() != 0 {
		t.Error("unauthorized requests must not trigger side effects")
	}

	if recorder := postCommit(router, validBody, "s3cret"); recorder.Code != http.StatusCreated {
		t.Errorf("correct secret status = %d, want 201", recorder.Code)
	}
}

func TestCommitDownstreamFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"github unreachable", github.ErrUnavailable, http.StatusServiceUnavailable},
		{"github conflict", &github.APIError{StatusCode: http.StatusConflict, Body: "stale sha"}, http.StatusBadGateway},
		{"github unprocessable", &github.APIError{StatusCode: http.StatusUnprocessableEntity, Body: "no branch"}, http.StatusBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enqueuer := &fakeEnqueuer{}
			router := NewRouter(Options{Committer: &fakeCommitter{err: tc.err}, Dispatcher: enqueuer})

			recorder := postCommit(router, validBody, "")
			if recorder.Code != tc.want {
				t.Errorf("status = %d, want %d", recorder.Code, tc.want)
			}
			if len(enqueuer.got) != 0 {
				t.Error("failed commit must not fan out")
			}
		})
	}
}

func TestCommitRateLimited(t *testing.T) {
	committer := &fakeCommitter{}
	router := NewRouter(Options{
		Committer: committer,
		Limiter:   ratelimit.New(1, time.Minute),
	})

	if recorder := postCommit(router, validBody, ""); recorder.Code != http.StatusCreated {
		t.Fatalf("first request status = %d, want 201", recorder.Code)
	}
	if recorder := postCommit(router, validBody, ""); recorder.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", recorder.Code)
	}
	if committer.commits() != 1 {
		t.Errorf("commits = %d, want 1", committer.commits())
	}
}

func TestCommitRecordsDeliveryAndTracker(t *testing.T) {
	repository := &fakeRepository{}
	promptTracker := &fakeTracker{}
	router := NewRouter(Options{Committer: &fakeCommitter{}, Repository: repository, Tracker: promptTracker})

	if recorder := postCommit(router, validBody, ""); recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", recorder.Code)
	}

	if len(repository.deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(repository.deliveries))
	}
	delivery := repository.deliveries[0]
	if delivery.ID == "" {
		t.Error("delivery id should be assigned")
	}
	if delivery.CommitURL != "https://github.test/c/abc123" {
		t.Errorf("CommitURL = %q", delivery.CommitURL)
	}
	if len(promptTracker.states) != 1 {
		t.Errorf("tracked prompts = %d, want 1", len(promptTracker.states))
	}
}

func TestHealthz(t *testing.T) {
	router := NewRouter(Options{Committer: &fakeCommitter{}})

	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", recorder.Code)
	}
	if recorder.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", recorder.Body.String())
	}
}

func TestDeliveriesEndpoint(t *testing.T) {
	repository := &fakeRepository{deliveries: []domain.Delivery{
		{ID: "d1", PromptID: "p1", CommitHash: "c1"},
	}}
	router := NewRouter(Options{Committer: &fakeCommitter{}, Repository: repository})

	request := httptest.NewRequest(http.MethodGet, "/api/deliveries", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `"d1"`) {
		t.Errorf("body = %s", recorder.Body.String())
	}

	request = httptest.NewRequest(http.MethodGet, "/api/deliveries?limit=zero", nil)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", recorder.Code)
	}
}

func TestDeliveriesEndpointAbsentWithoutRepository(t *testing.T) {
	router := NewRouter(Options{Committer: &fakeCommitter{}})

	request := httptest.NewRequest(http.MethodGet, "/api/deliveries", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no repository configured", recorder.Code)
	}
}

func TestPromptsEndpoint(t *testing.T) {
	promptTracker := &fakeTracker{}
	router := NewRouter(Options{Committer: &fakeCommitter{}, Tracker: promptTracker})

	if recorder := postCommit(router, validBody, ""); recorder.Code != http.StatusCreated {
		t.Fatalf("seed commit status = %d", recorder.Code)
	}

	request := httptest.NewRequest(http.MethodGet, "/api/prompts", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "support-triage") {
		t.Errorf("body = %s", recorder.Body.String())
	}
}

func TestDeliveriesQueryFailureIs5xx(t *testing.T) {
	repository := &fakeRepository{listErr: errors.New("db down")}
	router := NewRouter(Options{Committer: &fakeCommitter{}, Repository: repository})

	request := httptest.NewRequest(http.MethodGet, "/api/deliveries", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", recorder.Code)
	}
}
