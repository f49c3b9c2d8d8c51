package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/labelforge/labelforge-api/internal/models"
	"github.com/labelforge/labelforge-api/internal/workflow"
)

func TestActivityRepositoryAppend(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActivityRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO prepress_activities")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	from := workflow.StatusAssigned
	to := workflow.StatusInProgress
	entry := &models.ActivityEntry{
		PrepressJobID: "pj-1",
		ActorID:       "d-1",
		Action:        workflow.ActionStarted,
		FromStatus:    &from,
		ToStatus:      &to,
	}
	id, err := repo.Append(context.Background(), entry)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, entry.ID, id)
	require.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositoryListByJobNewestFirst(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActivityRepository(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "prepress_job_id", "actor_id", "action", "from_status", "to_status", "remark", "metadata", "created_at",
	}).
		AddRow("a-2", "pj-1", "d-1", "STARTED", "ASSIGNED", "IN_PROGRESS", nil, nil, now).
		AddRow("a-1", "pj-1", "hod-1", "ASSIGNED", "PENDING", "ASSIGNED", nil, nil, now.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs("pj-1").
		WillReturnRows(rows)

	entries, err := repo.ListByJob(context.Background(), "pj-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "a-2", entries[0].ID)
	require.True(t, entries[0].CreatedAt.After(entries[1].CreatedAt))
}
