package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CommitEvent is the notification payload the platform sends when a prompt
// gains a new committed version. The manifest body is opaque to us; it is
// passed through to the configured sinks untouched.
type CommitEvent struct {
	PromptID   string          `json:"prompt_id"`
	PromptName string          `json:"prompt_name"`
	CommitHash string          `json:"commit_hash"`
	CreatedAt  string          `json:"created_at"`
	CreatedBy  string          `json:"created_by"`
	Manifest   json.RawMessage `json:"manifest"`
}

// Validate checks that every required field is present and well formed.
// It returns all problems at once so the caller can report them together.
func (event CommitEvent) Validate() error {
	var problems []string

	if strings.TrimSpace(event.PromptID) == "" {
		problems = append(problems, "prompt_id is required")
	} else if _, err := uuid.Parse(event.PromptID); err != nil {
		problems = append(problems, "prompt_id must be a valid UUID")
	}
	if strings.TrimSpace(event.PromptName) == "" {
		problems = append(problems, "prompt_name is required")
	}
	if strings.TrimSpace(event.CommitHash) == "" {
		problems = append(problems, "commit_hash is required")
	}
	if strings.TrimSpace(event.CreatedAt) == "" {
		problems = append(problems, "created_at is required")
	}
	if strings.TrimSpace(event.CreatedBy) == "" {
		problems = append(problems, "created_by is required")
	}
	if len(event.Manifest) == 0 || string(event.Manifest) == "null" {
		problems = append(problems, "manifest is required")
	} else if !json.Valid(event.Manifest) {
		problems = append(problems, "manifest must be valid JSON")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid commit event: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Delivery records one received commit event and the outcome of its side
// effect, for the optional delivery log.
type Delivery struct {
	ID         string    `json:"id"`
	PromptID   string    `json:"prompt_id"`
	PromptName string    `json:"prompt_name"`
	CommitHash string    `json:"commit_hash"`
	CreatedBy  string    `json:"created_by"`
	CommitURL  string    `json:"commit_url,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}
