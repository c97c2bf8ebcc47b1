package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cofund/cofund/internal/shared"
)

// Repository persists audit events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes one audit event. Meta is stored as JSONB.
func (r *Repository) Insert(ctx context.Context, event shared.AuditEvent) error {
	meta, err := json.Marshal(event.Meta)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO audit_events (id, actor_id, action, entity, entity_id, meta, at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`,
		event.ID, event.ActorID, event.Action, event.Entity, event.EntityID, meta, event.At)
	return err
}
