// Package tracker keeps the latest known commit per prompt in Redis so the
// receiver can answer "what version is live" without a round trip to the
// platform.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/gordonpn/prompthook/internal/domain"
)

const (
	promptKeyPrefix = "prompthook:prompt:"
	promptIndexKey  = "prompthook:prompts"
)

// PromptState is the latest commit we have seen for one prompt.
type PromptState struct {
	PromptID   string `json:"prompt_id"`
	PromptName string `json:"prompt_name"`
	CommitHash string `json:"commit_hash"`
	CreatedAt  string `json:"created_at"`
	CreatedBy  string `json:"created_by"`
}

type Tracker struct {
	client *redis.Client
}

func New(client *redis.Client) *Tracker {
	return &Tracker{client: client}
}

// RecordCommit overwrites the tracked state for the event's prompt and adds
// the prompt to the index set. Last write wins; ordering between concurrent
// events is not guaranteed and not needed here.
func (tracker *Tracker) RecordCommit(ctx context.Context, event domain.CommitEvent) error {
	state := PromptState{
		PromptID:   event.PromptID,
		PromptName: event.PromptName,
		CommitHash: event.CommitHash,
		CreatedAt:  event.CreatedAt,
		CreatedBy:  event.CreatedBy,
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal prompt state: %w", err)
	}

	if err := tracker.client.Set(ctx, promptKeyPrefix+event.PromptID, data, 0).Err(); err != nil {
		return fmt.Errorf("set prompt state: %w", err)
	}
	if err := tracker.client.SAdd(ctx, promptIndexKey, event.PromptID).Err(); err != nil {
		return fmt.Errorf("index prompt: %w", err)
	}
	return nil
}

// ListPrompts returns the tracked state of every known prompt, sorted by
// prompt name for stable output.
func (tracker *Tracker) ListPrompts(ctx context.Context) ([]PromptState, error) {
	ids, err := tracker.client.SMembers(ctx, promptIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list prompt ids: %w", err)
	}

	states := make([]PromptState, 0, len(ids))
	for _, id := range ids {
		data, err := tracker.client.Get(ctx, promptKeyPrefix+id).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get prompt state %s: %w", id, err)
		}

		var state PromptState
		if err := json.Unmarshal([]byte(data), &state); err != nil {
			return nil, fmt.Errorf("unmarshal prompt state %s: %w", id, err)
		}
		states = append(states, state)
	}

	sort.Slice(states, func(i, j int) bool { return states[i].PromptName < states[j].PromptName })
	return states, nil
}
