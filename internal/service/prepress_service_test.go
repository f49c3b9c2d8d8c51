package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labelforge/labelforge-api/internal/dto"
	"github.com/labelforge/labelforge-api/internal/models"
	"github.com/labelforge/labelforge-api/internal/repository"
	"github.com/labelforge/labelforge-api/internal/workflow"
	appErrors "github.com/labelforge/labelforge-api/pkg/errors"
)

type jobStoreStub struct {
	jobs    map[string]*models.PrepressJob
	seq     int
	filter  models.PrepressJobFilter
	statErr error
}

func newJobStoreStub() *jobStoreStub {
	return &jobStoreStub{jobs: make(map[string]*models.PrepressJob)}
}

func (s *jobStoreStub) Create(ctx context.Context, job *models.PrepressJob) error {
	s.seq++
	job.ID = fmt.Sprintf("job-%d", s.seq)
	copy := *job
	s.jobs[job.ID] = &copy
	return nil
}

func (s *jobStoreStub) GetByID(ctx context.Context, id string) (*models.PrepressJob, error) {
	if job, ok := s.jobs[id]; ok {
		copy := *job
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *jobStoreStub) GetByJobCardID(ctx context.Context, jobCardID string) (*models.PrepressJob, error) {
	for _, job := range s.jobs {
		if job.JobCardID == jobCardID {
			copy := *job
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *jobStoreStub) List(ctx context.Context, filter models.PrepressJobFilter) ([]models.PrepressJob, int, error) {
	s.filter = filter
	result := make([]models.PrepressJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		result = append(result, *job)
	}
	return result, len(result), nil
}

func (s *jobStoreStub) UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error {
	if s.statErr != nil {
		return s.statErr
	}
	job, ok := s.jobs[params.ID]
	if !ok || job.Status != params.FromStatus {
		return sql.ErrNoRows
	}
	job.Status = params.ToStatus
	job.UpdatedBy = params.UpdatedBy
	if params.StartedAt != nil {
		job.StartedAt = params.StartedAt
	}
	if params.CompletedAt != nil {
		job.CompletedAt = params.CompletedAt
	}
	return nil
}

func (s *jobStoreStub) UpdateAssignment(ctx context.Context, id, designerID, updatedBy string) error {
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.AssignedDesignerID = &designerID
	job.Status = workflow.StatusAssigned
	job.UpdatedBy = updatedBy
	return nil
}

func (s *jobStoreStub) UpdatePriority(ctx context.Context, id string, priority models.JobPriority, updatedBy string) error {
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.Priority = priority
	job.UpdatedBy = updatedBy
	return nil
}

func (s *jobStoreStub) UpdateHODRemark(ctx context.Context, id, remark, updatedBy string) error {
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.HODLastRemark = &remark
	job.UpdatedBy = updatedBy
	return nil
}

type ledgerStub struct {
	entries []models.ActivityEntry
	err     error
}

func (l *ledgerStub) Append(ctx context.Context, entry *models.ActivityEntry) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	entry.ID = fmt.Sprintf("act-%d", len(l.entries)+1)
	entry.CreatedAt = time.Now().UTC()
	l.entries = append(l.entries, *entry)
	return entry.ID, nil
}

func (l *ledgerStub) ListByJob(ctx context.Context, jobID string) ([]models.ActivityEntry, error) {
	result := make([]models.ActivityEntry, 0, len(l.entries))
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].PrepressJobID == jobID {
			result = append(result, l.entries[i])
		}
	}
	return result, nil
}

type jobCardStub struct {
	cards map[string]*models.JobCard
}

func (j *jobCardStub) FindByID(ctx context.Context, id string) (*models.JobCard, error) {
	if card, ok := j.cards[id]; ok {
		return card, nil
	}
	return nil, sql.ErrNoRows
}

type designerStub struct {
	designers map[string]*models.User
}

func (d *designerStub) FindDesigner(ctx context.Context, id string) (*models.User, error) {
	if u, ok := d.designers[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func newEngine(t *testing.T) (*PrepressService, *jobStoreStub, *ledgerStub) {
	t.Helper()
	store := newJobStoreStub()
	ledger := &ledgerStub{}
	svc := NewPrepressService(PrepressServiceParams{
		Jobs:   store,
		Ledger: ledger,
		JobCards: &jobCardStub{cards: map[string]*models.JobCard{
			"JC-1001": {ID: "JC-1001", Status: "OPEN"},
			"JC-1002": {ID: "JC-1002", Status: "OPEN"},
		}},
		Designers: &designerStub{designers: map[string]*models.User{
			"des-1": {ID: "des-1", Role: models.RoleDesigner, Active: true},
			"des-2": {ID: "des-2", Role: models.RoleDesigner, Active: true},
		}},
	})
	return svc, store, ledger
}

var (
	merch    = Actor{ID: "mer-1", Role: models.RoleMerchandiser}
	hod      = Actor{ID: "hod-1", Role: models.RoleHODPrepress}
	designer = Actor{ID: "des-1", Role: models.RoleDesigner}
)

func TestPrepressLifecycleRejectionLoop(t *testing.T) {
	svc, store, ledger := newEngine(t)
	ctx := context.Background()

	job, err := svc.Create(ctx, dto.CreatePrepressJobRequest{
		JobCardID:  "JC-1001",
		DesignerID: "des-1",
		Priority:   models.PriorityHigh,
	}, merch)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusAssigned, job.Status)
	require.NotNil(t, job.AssignedDesignerID)
	require.Equal(t, "des-1", *job.AssignedDesignerID)

	job, err = svc.Transition(ctx, job.ID, workflow.StatusInProgress, designer, "")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusInProgress, job.Status)
	require.NotNil(t, job.StartedAt)
	firstStart := *job.StartedAt

	job, err = svc.Transition(ctx, job.ID, workflow.StatusHODReview, designer, "first pass done")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusHODReview, job.Status)

	job, err = svc.Transition(ctx, job.ID, workflow.StatusRejected, hod, "redo colors")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusRejected, job.Status)

	job, err = svc.ReassignDesigner(ctx, job.ID, "des-2", hod, "handing over")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusAssigned, job.Status)
	require.Equal(t, "des-2", *job.AssignedDesignerID)

	job, err = svc.Transition(ctx, job.ID, workflow.StatusInProgress, Actor{ID: "des-2", Role: models.RoleDesigner}, "")
	require.NoError(t, err)
	require.Equal(t, firstStart, *job.StartedAt, "startedAt must not move on rework")

	job, err = svc.Transition(ctx, job.ID, workflow.StatusHODReview, Actor{ID: "des-2", Role: models.RoleDesigner}, "second pass")
	require.NoError(t, err)

	job, err = svc.Transition(ctx, job.ID, workflow.StatusCompleted, hod, "approved")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)

	entries, err := svc.ListActivity(ctx, job.ID)
	require.NoError(t, err)
	// created, assigned, started, completed(submit), rejected, reassigned,
	// started(resumed rework), completed(submit), approved
	require.Len(t, entries, 9)
	require.Equal(t, workflow.ActionApproved, entries[0].Action)
	for i := 1; i < len(entries); i++ {
		require.False(t, entries[i].CreatedAt.After(entries[i-1].CreatedAt))
	}

	stored := store.jobs[job.ID]
	require.Equal(t, workflow.StatusCompleted, stored.Status)
	require.Len(t, ledger.entries, 9)
}

func TestPrepressCreateDuplicateJobCard(t *testing.T) {
	svc, _, _ := newEngine(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.CreatePrepressJobRequest{JobCardID: "JC-1001"}, merch)
	require.NoError(t, err)

	_, err = svc.Create(ctx, dto.CreatePrepressJobRequest{JobCardID: "JC-1001"}, merch)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrDuplicateJob.Code, appErrors.FromError(err).Code)
}

func TestPrepressCreateUnknownJobCard(t *testing.T) {
	svc, _, _ := newEngine(t)

	_, err := svc.Create(context.Background(), dto.CreatePrepressJobRequest{JobCardID: "JC-9999"}, merch)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPrepressDesignerCannotAssign(t *testing.T) {
	svc, _, _ := newEngine(t)
	ctx := context.Background()

	job, err := svc.Create(ctx, dto.CreatePrepressJobRequest{JobCardID: "JC-1001"}, merch)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPending, job.Status)

	_, err = svc.Transition(ctx, job.ID, workflow.StatusAssigned, designer, "")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)

	_, err = svc.AssignDesigner(ctx, job.ID, "des-1", designer, "")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestPrepressCompletedIsTerminal(t *testing.T) {
	svc, store, _ := newEngine(t)
	ctx := context.Background()

	job, err := svc.Create(ctx, dto.CreatePrepressJobRequest{JobCardID: "JC-1001", DesignerID: "des-1"}, hod)
	require.NoError(t, err)
	store.jobs[job.ID].Status = workflow.StatusCompleted

	_, err = svc.Transition(ctx, job.ID, workflow.StatusInProgress, Actor{ID: "adm-1", Role: models.RoleAdmin}, "")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)

	_, err = svc.AssignDesigner(ctx, job.ID, "des-2", hod, "")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestPrepressConcurrentModificationConflict(t *testing.T) {
	svc, store, _ := newEngine(t)
	ctx := context.Background()

	job, err := svc.Create(ctx, dto.CreatePrepressJobRequest{JobCardID: "JC-1001", DesignerID: "des-1"}, hod)
	require.NoError(t, err)

	// another actor wins the race after our read
	store.statErr = sql.ErrNoRows
	_, err = svc.Transition(ctx, job.ID, workflow.StatusInProgress, designer, "")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestPrepressNotifierFailureIsSwallowed(t *testing.T) {
	store := newJobStoreStub()
	ledger := &ledgerStub{}
	notified := 0
	svc := NewPrepressService(PrepressServiceParams{
		Jobs:   store,
		Ledger: ledger,
		JobCards: &jobCardStub{cards: map[string]*models.JobCard{
			"JC-1001": {ID: "JC-1001", Status: "OPEN"},
		}},
		Notifier: LifecycleNotifierFunc(func(ctx context.Context, jobCardID string, status workflow.Status, remark, actorID string) error {
			notified++
			return errors.New("downstream unavailable")
		}),
	})

	job, err := svc.Create(context.Background(), dto.CreatePrepressJobRequest{JobCardID: "JC-1001"}, merch)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPending, job.Status)
	require.Equal(t, 1, notified)
}

func TestPrepressLedgerFailurePropagates(t *testing.T) {
	svc, _, ledger := newEngine(t)
	ledger.err = errors.New("disk full")

	_, err := svc.Create(context.Background(), dto.CreatePrepressJobRequest{JobCardID: "JC-1001"}, merch)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestPrepressReassignRecordsPreviousDesigner(t *testing.T) {
	svc, _, ledger := newEngine(t)
	ctx := context.Background()

	job, err := svc.Create(ctx, dto.CreatePrepressJobRequest{JobCardID: "JC-1001", DesignerID: "des-1"}, hod)
	require.NoError(t, err)

	_, err = svc.ReassignDesigner(ctx, job.ID, "des-2", hod, "")
	require.NoError(t, err)

	last := ledger.entries[len(ledger.entries)-1]
	require.Equal(t, workflow.ActionReassigned, last.Action)
	require.JSONEq(t, `{"from":"des-1","to":"des-2"}`, string(last.Metadata))
}

func TestPrepressAddRemarkRequiresText(t *testing.T) {
	svc, _, _ := newEngine(t)
	ctx := context.Background()

	job, err := svc.Create(ctx, dto.CreatePrepressJobRequest{JobCardID: "JC-1001"}, merch)
	require.NoError(t, err)

	_, err = svc.AddRemark(ctx, job.ID, "   ", hod)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	updated, err := svc.AddRemark(ctx, job.ID, "tighten kerning", hod)
	require.NoError(t, err)
	require.NotNil(t, updated.HODLastRemark)
	require.Equal(t, "tighten kerning", *updated.HODLastRemark)
}

func TestPrepressDesignerListScopedToOwnQueue(t *testing.T) {
	svc, store, _ := newEngine(t)
	ctx := context.Background()

	_, _, err := svc.List(ctx, dto.PrepressJobQuery{DesignerID: "des-2"}, designer)
	require.NoError(t, err)
	require.Equal(t, designer.ID, store.filter.DesignerID)
}

func TestPrepressSetPriorityRoleGate(t *testing.T) {
	svc, _, ledger := newEngine(t)
	ctx := context.Background()

	job, err := svc.Create(ctx, dto.CreatePrepressJobRequest{JobCardID: "JC-1001"}, merch)
	require.NoError(t, err)

	_, err = svc.SetPriority(ctx, job.ID, models.PriorityCritical, designer)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	updated, err := svc.SetPriority(ctx, job.ID, models.PriorityCritical, hod)
	require.NoError(t, err)
	require.Equal(t, models.PriorityCritical, updated.Priority)

	last := ledger.entries[len(ledger.entries)-1]
	require.Equal(t, workflow.ActionStatusChanged, last.Action)
	require.JSONEq(t, `{"priority":"CRITICAL","previous":"MEDIUM"}`, string(last.Metadata))
}
