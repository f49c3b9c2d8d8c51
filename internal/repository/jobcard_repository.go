package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/labelforge/labelforge-api/internal/models"
)

// JobCardRepository reads production job cards owned by the wider ERP. The
// prepress module only checks existence and current status.
type JobCardRepository struct {
	db *sqlx.DB
}

// NewJobCardRepository constructs the repository.
func NewJobCardRepository(db *sqlx.DB) *JobCardRepository {
	return &JobCardRepository{db: db}
}

// FindByID returns the job card, or sql.ErrNoRows when absent.
func (r *JobCardRepository) FindByID(ctx context.Context, id string) (*models.JobCard, error) {
	const query = `SELECT id, status FROM job_cards WHERE id = $1 LIMIT 1`
	var card models.JobCard
	if err := r.db.GetContext(ctx, &card, query, id); err != nil {
		return nil, err
	}
	return &card, nil
}

// UpdatePrepressStatus mirrors the current prepress stage onto the owning
// job card so planners see it without joining into this module's tables.
func (r *JobCardRepository) UpdatePrepressStatus(ctx context.Context, id, status string) error {
	const query = `UPDATE job_cards SET prepress_status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return err
	}
	return nil
}
