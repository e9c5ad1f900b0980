package store

import (
	"context"

	"github.com/gordonpn/prompthook/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the delivery log. It exists for operators who want to see
// what arrived; the receiver works without it.
type Repository interface {
	InsertDelivery(ctx context.Context, delivery domain.Delivery) error
	ListRecent(ctx context.Context, limit int) ([]domain.Delivery, error)
}

type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (repository *Postgres) InsertDelivery(ctx context.Context, delivery domain.Delivery) error {
	query := `
		INSERT INTO webhook_deliveries (id, prompt_id, prompt_name, commit_hash, created_by, commit_url, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := repository.db.Exec(ctx, query,
		delivery.ID, delivery.PromptID, delivery.PromptName, delivery.CommitHash,
		delivery.CreatedBy, delivery.CommitURL, delivery.ReceivedAt)
	return err
}

func (repository *Postgres) ListRecent(ctx context.Context, limit int) ([]domain.Delivery, error) {
	if limit < 1 {
		limit = 50
	}

	query := `
		SELECT id, prompt_id, prompt_name, commit_hash, created_by, commit_url, received_at
		FROM webhook_deliveries
		ORDER BY received_at DESC
		LIMIT $1
	`
	rows, err := repository.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Delivery, 0)
	for rows.Next() {
		item := domain.Delivery{}
		if err := rows.Scan(&item.ID, &item.PromptID, &item.PromptName, &item.CommitHash, &item.CreatedBy, &item.CommitURL, &item.ReceivedAt); err != nil {
			return nil, err
		}
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
