package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/labelforge/labelforge-api/internal/models"
)

// ActivityRepository is the append-only ledger of prepress job events. It
// records what it is given and fails only on persistence errors; business
// validation happens in the engine. There is deliberately no update or
// delete.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append inserts one ledger entry and returns its id.
func (r *ActivityRepository) Append(ctx context.Context, entry *models.ActivityEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO prepress_activities
	(id, prepress_job_id, actor_id, action, from_status, to_status, remark, metadata, created_at)
	VALUES (:id, :prepress_job_id, :actor_id, :action, :from_status, :to_status, :remark, :metadata, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return "", fmt.Errorf("append activity entry: %w", err)
	}
	return entry.ID, nil
}

// ListByJob returns every ledger entry for a job, newest first.
func (r *ActivityRepository) ListByJob(ctx context.Context, jobID string) ([]models.ActivityEntry, error) {
	const query = `SELECT id, prepress_job_id, actor_id, action, from_status, to_status, remark, metadata, created_at
	FROM prepress_activities WHERE prepress_job_id = $1 ORDER BY created_at DESC`
	var entries []models.ActivityEntry
	if err := r.db.SelectContext(ctx, &entries, query, jobID); err != nil {
		return nil, fmt.Errorf("list activity entries: %w", err)
	}
	return entries, nil
}
