package tracker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/gordonpn/prompthook/internal/domain"
)

func TestRecordCommitUnavailableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	tracker := New(client)
	err := tracker.RecordCommit(context.Background(), domain.CommitEvent{
		PromptID:   "a2f1c6de-9d3b-4f5a-8c21-7b0f2d9e4a11",
		PromptName: "support-triage",
		CommitHash: "9c4e1f0",
	})
	if err == nil {
		t.Error("RecordCommit() = nil, want error when redis is unreachable")
	}
}

func TestTrackerIntegration(t *testing.T) {
	// Integration test - requires Redis
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 9})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping integration test: redis not available: %v", err)
	}
	t.Cleanup(func() { client.FlushDB(ctx) })

	promptTracker := New(client)

	events := []domain.CommitEvent{
		{PromptID: "11111111-1111-4111-8111-111111111111", PromptName: "zeta", CommitHash: "c1", CreatedAt: "2026-08-30T12:00:00Z", CreatedBy: "alice", Manifest: json.RawMessage(`{}`)},
		{PromptID: "22222222-2222-4222-8222-222222222222", PromptName: "alpha", CommitHash: "c2", CreatedAt: "2026-08-30T12:01:00Z", CreatedBy: "bob", Manifest: json.RawMessage(`{}`)},
	}
	for _, event := range events {
		if err := promptTracker.RecordCommit(ctx, event); err != nil {
			t.Fatalf("RecordCommit() = %v", err)
		}
	}

	// Re-commit the first prompt; last write wins.
	events[0].CommitHash = "c3"
	if err := promptTracker.RecordCommit(ctx, events[0]); err != nil {
		t.Fatalf("RecordCommit() = %v", err)
	}

	states, err := promptTracker.ListPrompts(ctx)
	if err != nil {
		t.Fatalf("ListPrompts() = %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("prompts = %d, want 2", len(states))
	}
	if states[0].PromptName != "alpha" || states[1].PromptName != "zeta" {
		t.Errorf("prompts not sorted by name: %+v", states)
	}
	if states[1].CommitHash != "c3" {
		t.Errorf("zeta commit = %q, want c3 (last write wins)", states[1].CommitHash)
	}
}
