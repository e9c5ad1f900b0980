package notify

import (
	"context"
	"fmt"

	"github.com/gordonpn/prompthook/internal/domain"
)

// Notification is the destination-agnostic summary of a commit event.
type Notification struct {
	PromptID   string
	PromptName string
	CommitHash string
	CreatedBy  string
	CommitURL  string
	Body       string
}

// Notifier delivers notifications to a single destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// FromEvent builds the sink notification for an accepted commit event.
func FromEvent(event domain.CommitEvent, commitURL string) Notification {
	body := fmt.Sprintf("prompt %q committed %s by %s", event.PromptName, event.CommitHash, event.CreatedBy)
	if commitURL != "" {
		body += " " + commitURL
	}

	return Notification{
		PromptID:   event.PromptID,
		PromptName: event.PromptName,
		CommitHash: event.CommitHash,
		CreatedBy:  event.CreatedBy,
		CommitURL:  commitURL,
		Body:       body,
	}
}
