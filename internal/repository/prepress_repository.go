package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/labelforge/labelforge-api/internal/models"
	"github.com/labelforge/labelforge-api/internal/workflow"
)

const prepressJobColumns = `id, job_card_id, status, assigned_designer_id, priority, due_date,
       started_at, completed_at, hod_last_remark, po_number, product_code, company_name,
       created_by, updated_by, created_at, updated_at`

// PrepressRepository persists prepress job records. Jobs are never deleted;
// all mutations flow through the workflow engine.
type PrepressRepository struct {
	db *sqlx.DB
}

// NewPrepressRepository constructs the repository.
func NewPrepressRepository(db *sqlx.DB) *PrepressRepository {
	return &PrepressRepository{db: db}
}

// Create inserts a new job row. The caller enforces the one-job-per-job-card
// invariant up front; the unique index on job_card_id backs it up.
func (r *PrepressRepository) Create(ctx context.Context, job *models.PrepressJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	const query = `INSERT INTO prepress_jobs
	(id, job_card_id, status, assigned_designer_id, priority, due_date, started_at, completed_at,
	 hod_last_remark, po_number, product_code, company_name, created_by, updated_by, created_at, updated_at)
	VALUES (:id, :job_card_id, :status, :assigned_designer_id, :priority, :due_date, :started_at, :completed_at,
	 :hod_last_remark, :po_number, :product_code, :company_name, :created_by, :updated_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create prepress job: %w", err)
	}
	return nil
}

// GetByID fetches a job by identifier.
func (r *PrepressRepository) GetByID(ctx context.Context, id string) (*models.PrepressJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM prepress_jobs WHERE id = $1`, prepressJobColumns)
	var job models.PrepressJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetByJobCardID fetches the job opened for a job card, if any.
func (r *PrepressRepository) GetByJobCardID(ctx context.Context, jobCardID string) (*models.PrepressJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM prepress_jobs WHERE job_card_id = $1`, prepressJobColumns)
	var job models.PrepressJob
	if err := r.db.GetContext(ctx, &job, query, jobCardID); err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns jobs matching the filter ordered by urgency: priority first,
// then earliest due date, ties broken by recency.
func (r *PrepressRepository) List(ctx context.Context, filter models.PrepressJobFilter) ([]models.PrepressJob, int, error) {
	baseQuery := `FROM prepress_jobs WHERE 1=1`
	var conditions []string
	var args []interface{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.DesignerID != "" {
		args = append(args, filter.DesignerID)
		conditions = append(conditions, fmt.Sprintf("assigned_designer_id = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		idx := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(job_card_id) LIKE $%d OR LOWER(po_number) LIKE $%d OR LOWER(product_code) LIKE $%d OR LOWER(company_name) LIKE $%d)",
			idx, idx, idx, idx))
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	orderBy := ` ORDER BY CASE priority
		WHEN 'CRITICAL' THEN 4 WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 ELSE 1 END DESC,
		due_date ASC NULLS LAST, created_at DESC`

	listQuery := fmt.Sprintf("SELECT %s %s%s LIMIT %d OFFSET %d",
		prepressJobColumns, baseQuery, orderBy, pageSize, offset)

	var jobs []models.PrepressJob
	if err := r.db.SelectContext(ctx, &jobs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list prepress jobs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count prepress jobs: %w", err)
	}

	return jobs, total, nil
}

// UpdateStatusParams groups the columns touched by a workflow transition.
type UpdateStatusParams struct {
	ID          string
	FromStatus  workflow.Status
	ToStatus    workflow.Status
	StartedAt   *time.Time
	CompletedAt *time.Time
	UpdatedBy   string
}

// UpdateStatus persists a transition conditioned on the status the engine
// read before validating. Zero rows affected means a concurrent actor moved
// the job first; the caller surfaces that as a conflict.
func (r *PrepressRepository) UpdateStatus(ctx context.Context, params UpdateStatusParams) error {
	setParts := []string{
		"status = :to_status",
		"updated_by = :updated_by",
		"updated_at = :updated_at",
	}
	if params.StartedAt != nil {
		setParts = append(setParts, "started_at = :started_at")
	}
	if params.CompletedAt != nil {
		setParts = append(setParts, "completed_at = :completed_at")
	}
	query := fmt.Sprintf("UPDATE prepress_jobs SET %s WHERE id = :id AND status = :from_status",
		strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":           params.ID,
		"from_status":  params.FromStatus,
		"to_status":    params.ToStatus,
		"started_at":   params.StartedAt,
		"completed_at": params.CompletedAt,
		"updated_by":   params.UpdatedBy,
		"updated_at":   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("update prepress job status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check prepress job update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateAssignment sets the designer and forces status to ASSIGNED. Used by
// the privileged assign/reassign path, not by ordinary transitions.
func (r *PrepressRepository) UpdateAssignment(ctx context.Context, id, designerID, updatedBy string) error {
	const query = `UPDATE prepress_jobs SET assigned_designer_id = $2, status = $3, updated_by = $4, updated_at = $5 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, designerID, workflow.StatusAssigned, updatedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update prepress job assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check prepress job assignment rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdatePriority changes the job's priority.
func (r *PrepressRepository) UpdatePriority(ctx context.Context, id string, priority models.JobPriority, updatedBy string) error {
	const query = `UPDATE prepress_jobs SET priority = $2, updated_by = $3, updated_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, priority, updatedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update prepress job priority: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check prepress job priority rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateHODRemark overwrites the last HOD-authored remark.
func (r *PrepressRepository) UpdateHODRemark(ctx context.Context, id, remark, updatedBy string) error {
	const query = `UPDATE prepress_jobs SET hod_last_remark = $2, updated_by = $3, updated_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, remark, updatedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update prepress job hod remark: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check prepress job remark rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// StatusCounts aggregates job counts per status within an optional creation
// date range.
func (r *PrepressRepository) StatusCounts(ctx context.Context, filter models.StatisticsFilter) ([]models.StatusCount, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT status, COUNT(*) AS count FROM prepress_jobs WHERE 1=1`)
	var args []interface{}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		builder.WriteString(fmt.Sprintf(" AND created_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		builder.WriteString(fmt.Sprintf(" AND created_at <= $%d", len(args)))
	}
	builder.WriteString(" GROUP BY status")

	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("count prepress jobs by status: %w", err)
	}
	return counts, nil
}

// ActiveDesignerCount returns the number of distinct designers currently
// holding non-terminal work.
func (r *PrepressRepository) ActiveDesignerCount(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(DISTINCT assigned_designer_id) FROM prepress_jobs
	WHERE assigned_designer_id IS NOT NULL
	  AND status IN ('ASSIGNED', 'IN_PROGRESS', 'PAUSED', 'HOD_REVIEW')`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count active designers: %w", err)
	}
	return count, nil
}

// TurnaroundStats holds the average elapsed work time in hours and the
// number of jobs contributing to it. Jobs missing either timestamp are
// excluded, not treated as zero.
type TurnaroundStats struct {
	AvgHours   *float64 `db:"avg_hours"`
	SampleSize int      `db:"sample_size"`
}

// AverageTurnaround computes mean(completed_at - started_at) over jobs where
// both timestamps are set.
func (r *PrepressRepository) AverageTurnaround(ctx context.Context, filter models.StatisticsFilter) (*TurnaroundStats, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT AVG(EXTRACT(EPOCH FROM (completed_at - started_at)) / 3600.0) AS avg_hours,
       COUNT(*) AS sample_size
	FROM prepress_jobs
	WHERE started_at IS NOT NULL AND completed_at IS NOT NULL`)
	var args []interface{}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		builder.WriteString(fmt.Sprintf(" AND created_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		builder.WriteString(fmt.Sprintf(" AND created_at <= $%d", len(args)))
	}

	var stats TurnaroundStats
	if err := r.db.GetContext(ctx, &stats, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("compute prepress turnaround: %w", err)
	}
	return &stats, nil
}
