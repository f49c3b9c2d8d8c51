package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/labelforge/labelforge-api/internal/models"
	"github.com/labelforge/labelforge-api/internal/workflow"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func prepressJobRows(job *models.PrepressJob) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "job_card_id", "status", "assigned_designer_id", "priority", "due_date",
		"started_at", "completed_at", "hod_last_remark", "po_number", "product_code",
		"company_name", "created_by", "updated_by", "created_at", "updated_at",
	}).AddRow(
		job.ID, job.JobCardID, job.Status, job.AssignedDesignerID, job.Priority, job.DueDate,
		job.StartedAt, job.CompletedAt, job.HODLastRemark, job.PONumber, job.ProductCode,
		job.CompanyName, job.CreatedBy, job.UpdatedBy, job.CreatedAt, job.UpdatedAt,
	)
}

func TestPrepressRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPrepressRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO prepress_jobs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.PrepressJob{
		JobCardID: "jc-42",
		Status:    workflow.StatusPending,
		Priority:  models.PriorityMedium,
		CreatedBy: "merch-1",
		UpdatedBy: "merch-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.ID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, job_card_id, status")).
		WithArgs(job.ID).
		WillReturnRows(prepressJobRows(job))

	found, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, "jc-42", found.JobCardID)
	require.Equal(t, workflow.StatusPending, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrepressRepositoryGetByJobCardIDMiss(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPrepressRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, job_card_id, status")).
		WithArgs("jc-404").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByJobCardID(context.Background(), "jc-404")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPrepressRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPrepressRepository(db)
	job := &models.PrepressJob{
		ID:        "pj-1",
		JobCardID: "jc-1",
		Status:    workflow.StatusInProgress,
		Priority:  models.PriorityHigh,
		CreatedBy: "hod-1",
		UpdatedBy: "d-1",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, job_card_id, status")).
		WithArgs("IN_PROGRESS", "d-1").
		WillReturnRows(prepressJobRows(job))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("IN_PROGRESS", "d-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	jobs, total, err := repo.List(context.Background(), models.PrepressJobFilter{
		Statuses:   []workflow.Status{workflow.StatusInProgress},
		DesignerID: "d-1",
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, jobs, 1)
	require.Equal(t, "pj-1", jobs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrepressRepositoryUpdateStatusConditional(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPrepressRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE prepress_jobs SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:         "pj-1",
		FromStatus: workflow.StatusAssigned,
		ToStatus:   workflow.StatusInProgress,
		StartedAt:  &now,
		UpdatedBy:  "d-1",
	})
	require.NoError(t, err)

	// a concurrent transition already moved the row off ASSIGNED
	mock.ExpectExec(regexp.QuoteMeta("UPDATE prepress_jobs SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:         "pj-1",
		FromStatus: workflow.StatusAssigned,
		ToStatus:   workflow.StatusInProgress,
		UpdatedBy:  "d-2",
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrepressRepositoryStatusCounts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPrepressRepository(db)
	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("PENDING", 2).
		AddRow("IN_PROGRESS", 5)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS count")).
		WillReturnRows(rows)

	counts, err := repo.StatusCounts(context.Background(), models.StatisticsFilter{})
	require.NoError(t, err)
	require.Len(t, counts, 2)
	require.Equal(t, workflow.StatusInProgress, counts[1].Status)
	require.Equal(t, 5, counts[1].Count)
}

func TestPrepressRepositoryAverageTurnaround(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPrepressRepository(db)
	avg := 36.5
	rows := sqlmock.NewRows([]string{"avg_hours", "sample_size"}).AddRow(avg, 12)
	mock.ExpectQuery(regexp.QuoteMeta("AVG(EXTRACT(EPOCH FROM (completed_at - started_at))")).
		WillReturnRows(rows)

	stats, err := repo.AverageTurnaround(context.Background(), models.StatisticsFilter{})
	require.NoError(t, err)
	require.NotNil(t, stats.AvgHours)
	require.InDelta(t, 36.5, *stats.AvgHours, 0.001)
	require.Equal(t, 12, stats.SampleSize)
}
