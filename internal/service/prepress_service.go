package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/labelforge/labelforge-api/internal/dto"
	"github.com/labelforge/labelforge-api/internal/models"
	"github.com/labelforge/labelforge-api/internal/repository"
	"github.com/labelforge/labelforge-api/internal/workflow"
	appErrors "github.com/labelforge/labelforge-api/pkg/errors"
)

type prepressJobStore interface {
	Create(ctx context.Context, job *models.PrepressJob) error
	GetByID(ctx context.Context, id string) (*models.PrepressJob, error)
	GetByJobCardID(ctx context.Context, jobCardID string) (*models.PrepressJob, error)
	List(ctx context.Context, filter models.PrepressJobFilter) ([]models.PrepressJob, int, error)
	UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error
	UpdateAssignment(ctx context.Context, id, designerID, updatedBy string) error
	UpdatePriority(ctx context.Context, id string, priority models.JobPriority, updatedBy string) error
	UpdateHODRemark(ctx context.Context, id, remark, updatedBy string) error
}

type activityLedger interface {
	Append(ctx context.Context, entry *models.ActivityEntry) (string, error)
	ListByJob(ctx context.Context, jobID string) ([]models.ActivityEntry, error)
}

type jobCardFinder interface {
	FindByID(ctx context.Context, id string) (*models.JobCard, error)
}

type designerFinder interface {
	FindDesigner(ctx context.Context, id string) (*models.User, error)
}

// LifecycleNotifier pushes prepress status changes back to the owning job
// card. Strictly best effort: the engine never fails a transition because a
// notification could not be delivered.
type LifecycleNotifier interface {
	Notify(ctx context.Context, jobCardID string, status workflow.Status, remark, actorID string) error
}

// LifecycleNotifierFunc allows using plain functions as notifiers.
type LifecycleNotifierFunc func(ctx context.Context, jobCardID string, status workflow.Status, remark, actorID string) error

// Notify implements LifecycleNotifier.
func (f LifecycleNotifierFunc) Notify(ctx context.Context, jobCardID string, status workflow.Status, remark, actorID string) error {
	return f(ctx, jobCardID, status, remark, actorID)
}

// Actor identifies who is driving an engine operation.
type Actor struct {
	ID   string
	Role models.UserRole
}

// PrepressService is the prepress job lifecycle engine. Every state change
// runs load -> authorize -> mutate -> ledger -> best-effort notify and
// returns the freshly reloaded record.
type PrepressService struct {
	jobs      prepressJobStore
	ledger    activityLedger
	jobCards  jobCardFinder
	designers designerFinder
	notifier  LifecycleNotifier
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// PrepressServiceParams groups constructor dependencies. Notifier, cache,
// metrics, and designers are optional.
type PrepressServiceParams struct {
	Jobs      prepressJobStore
	Ledger    activityLedger
	JobCards  jobCardFinder
	Designers designerFinder
	Notifier  LifecycleNotifier
	Cache     *CacheService
	Metrics   *MetricsService
	Logger    *zap.Logger
}

// NewPrepressService constructs the engine.
func NewPrepressService(params PrepressServiceParams) *PrepressService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrepressService{
		jobs:      params.Jobs,
		ledger:    params.Ledger,
		jobCards:  params.JobCards,
		designers: params.Designers,
		notifier:  params.Notifier,
		cache:     params.Cache,
		metrics:   params.Metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Create opens a prepress job for a job card. Supplying a designer puts the
// job directly into ASSIGNED; otherwise it waits in PENDING. At most one
// prepress job may exist per job card.
func (s *PrepressService) Create(ctx context.Context, req dto.CreatePrepressJobRequest, actor Actor) (*models.PrepressJob, error) {
	switch actor.Role {
	case models.RoleMerchandiser, models.RoleHODPrepress, models.RoleAdmin:
	default:
		return nil, appErrors.ErrForbidden
	}

	if _, err := s.jobCards.FindByID(ctx, req.JobCardID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job card not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job card")
	}

	if existing, err := s.jobs.GetByJobCardID(ctx, req.JobCardID); err == nil && existing != nil {
		return nil, appErrors.ErrDuplicateJob
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing prepress job")
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !models.ValidPriority(priority) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported priority")
	}

	status := workflow.StatusPending
	var designerID *string
	if req.DesignerID != "" {
		if s.designers != nil {
			if _, err := s.designers.FindDesigner(ctx, req.DesignerID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrValidation, "designer not found or inactive")
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load designer")
			}
		}
		status = workflow.StatusAssigned
		designerID = &req.DesignerID
	}

	job := &models.PrepressJob{
		JobCardID:          req.JobCardID,
		Status:             status,
		AssignedDesignerID: designerID,
		Priority:           priority,
		DueDate:            req.DueDate,
		PONumber:           optionalString(req.PONumber),
		ProductCode:        optionalString(req.ProductCode),
		CompanyName:        optionalString(req.CompanyName),
		CreatedBy:          actor.ID,
		UpdatedBy:          actor.ID,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create prepress job")
	}

	if err := s.appendEntry(ctx, &models.ActivityEntry{
		PrepressJobID: job.ID,
		ActorID:       actor.ID,
		Action:        workflow.ActionCreated,
		Remark:        optionalString(req.Remark),
	}); err != nil {
		return nil, err
	}
	if designerID != nil {
		from := workflow.StatusPending
		to := workflow.StatusAssigned
		if err := s.appendEntry(ctx, &models.ActivityEntry{
			PrepressJobID: job.ID,
			ActorID:       actor.ID,
			Action:        workflow.ActionAssigned,
			FromStatus:    &from,
			ToStatus:      &to,
		}); err != nil {
			return nil, err
		}
	}

	s.invalidateStats(ctx)
	s.notify(ctx, job.JobCardID, job.Status, req.Remark, actor.ID)
	return s.reload(ctx, job.ID)
}

// Transition drives a job along one edge of the state graph on behalf of the
// actor. First entry into IN_PROGRESS stamps startedAt; entering COMPLETED
// stamps completedAt. Exactly one ledger entry is written per transition.
func (s *PrepressService) Transition(ctx context.Context, jobID string, toStatus workflow.Status, actor Actor, remark string) (*models.PrepressJob, error) {
	job, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}

	fromStatus := job.Status
	if !workflow.IsValidTransition(fromStatus, toStatus, actor.Role.WorkflowRole()) {
		return nil, appErrors.InvalidTransition(string(fromStatus), string(toStatus), string(actor.Role))
	}

	params := repository.UpdateStatusParams{
		ID:         job.ID,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		UpdatedBy:  actor.ID,
	}
	now := s.now().UTC()
	// startedAt is set exactly once; PAUSED->IN_PROGRESS re-entry keeps it
	if toStatus == workflow.StatusInProgress && job.StartedAt == nil {
		params.StartedAt = &now
	}
	if toStatus == workflow.StatusCompleted && job.CompletedAt == nil {
		params.CompletedAt = &now
	}

	if err := s.jobs.UpdateStatus(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "job was modified concurrently, retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update prepress job status")
	}

	action := workflow.ActionFor(fromStatus, toStatus)
	if err := s.appendEntry(ctx, &models.ActivityEntry{
		PrepressJobID: job.ID,
		ActorID:       actor.ID,
		Action:        action,
		FromStatus:    &fromStatus,
		ToStatus:      &toStatus,
		Remark:        optionalString(remark),
	}); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordTransition(string(action))
	}

	s.invalidateStats(ctx)
	s.notify(ctx, job.JobCardID, toStatus, remark, actor.ID)
	return s.reload(ctx, job.ID)
}

// AssignDesigner puts a job into ASSIGNED and sets the designer. Assignment
// is a privileged administrative action that does not run through the
// generic transition policy; route-level RBAC plus the role check here keep
// it to HOD and admin.
func (s *PrepressService) AssignDesigner(ctx context.Context, jobID, designerID string, actor Actor, remark string) (*models.PrepressJob, error) {
	return s.assign(ctx, jobID, designerID, actor, remark, false)
}

// ReassignDesigner swaps the designer, recording the previous and new
// designer ids in the ledger entry metadata.
func (s *PrepressService) ReassignDesigner(ctx context.Context, jobID, designerID string, actor Actor, remark string) (*models.PrepressJob, error) {
	return s.assign(ctx, jobID, designerID, actor, remark, true)
}

func (s *PrepressService) assign(ctx context.Context, jobID, designerID string, actor Actor, remark string, reassign bool) (*models.PrepressJob, error) {
	if actor.Role != models.RoleHODPrepress && actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}

	job, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == workflow.StatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "job is already completed")
	}

	if s.designers != nil {
		if _, err := s.designers.FindDesigner(ctx, designerID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "designer not found or inactive")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load designer")
		}
	}

	if err := s.jobs.UpdateAssignment(ctx, job.ID, designerID, actor.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign designer")
	}

	fromStatus := job.Status
	toStatus := workflow.StatusAssigned
	entry := &models.ActivityEntry{
		PrepressJobID: job.ID,
		ActorID:       actor.ID,
		Action:        workflow.ActionAssigned,
		FromStatus:    &fromStatus,
		ToStatus:      &toStatus,
		Remark:        optionalString(remark),
	}
	if reassign {
		entry.Action = workflow.ActionReassigned
		metadata, err := json.Marshal(models.ReassignmentMetadata{
			From: job.AssignedDesignerID,
			To:   designerID,
		})
		if err == nil {
			entry.Metadata = metadata
		}
	}
	if err := s.appendEntry(ctx, entry); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.notify(ctx, job.JobCardID, toStatus, remark, actor.ID)
	return s.reload(ctx, job.ID)
}

// AddRemark appends a remark to the ledger without changing status. HOD
// remarks also overwrite the job's hod_last_remark field.
func (s *PrepressService) AddRemark(ctx context.Context, jobID, text string, actor Actor) (*models.PrepressJob, error) {
	if strings.TrimSpace(text) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "remark text is required")
	}

	job, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}

	isHOD := actor.Role == models.RoleHODPrepress || actor.Role == models.RoleAdmin
	if isHOD {
		if err := s.jobs.UpdateHODRemark(ctx, job.ID, text, actor.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.ErrNotFound
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update hod remark")
		}
	}

	if err := s.appendEntry(ctx, &models.ActivityEntry{
		PrepressJobID: job.ID,
		ActorID:       actor.ID,
		Action:        workflow.ActionRemark,
		Remark:        &text,
	}); err != nil {
		return nil, err
	}

	return s.reload(ctx, job.ID)
}

// SetPriority changes the queue priority of a job. HOD and admin only.
func (s *PrepressService) SetPriority(ctx context.Context, jobID string, priority models.JobPriority, actor Actor) (*models.PrepressJob, error) {
	if actor.Role != models.RoleHODPrepress && actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if !models.ValidPriority(priority) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported priority")
	}

	job, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := s.jobs.UpdatePriority(ctx, job.ID, priority, actor.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update priority")
	}

	metadata, _ := json.Marshal(map[string]string{
		"priority": string(priority),
		"previous": string(job.Priority),
	})
	if err := s.appendEntry(ctx, &models.ActivityEntry{
		PrepressJobID: job.ID,
		ActorID:       actor.ID,
		Action:        workflow.ActionStatusChanged,
		Metadata:      metadata,
	}); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	return s.reload(ctx, job.ID)
}

// Get returns a single job.
func (s *PrepressService) Get(ctx context.Context, jobID string) (*models.PrepressJob, error) {
	return s.load(ctx, jobID)
}

// List returns jobs matching the query. Designers are scoped to their own
// queue regardless of the requested designer filter.
func (s *PrepressService) List(ctx context.Context, query dto.PrepressJobQuery, actor Actor) ([]models.PrepressJob, *models.Pagination, error) {
	filter := models.PrepressJobFilter{
		Statuses:   query.Statuses,
		Priority:   query.Priority,
		DesignerID: query.DesignerID,
		DateFrom:   query.DateFrom,
		DateTo:     query.DateTo,
		Search:     strings.TrimSpace(query.Search),
		Page:       query.Page,
		PageSize:   query.PageSize,
	}
	if actor.Role == models.RoleDesigner {
		filter.DesignerID = actor.ID
	}

	jobs, total, err := s.jobs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list prepress jobs")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return jobs, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// DesignerQueue returns the open jobs assigned to one designer, most urgent
// first.
func (s *PrepressService) DesignerQueue(ctx context.Context, designerID string) ([]models.PrepressJob, error) {
	jobs, _, err := s.jobs.List(ctx, models.PrepressJobFilter{
		Statuses: []workflow.Status{
			workflow.StatusAssigned,
			workflow.StatusInProgress,
			workflow.StatusPaused,
			workflow.StatusRejected,
		},
		DesignerID: designerID,
		PageSize:   100,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load designer queue")
	}
	return jobs, nil
}

// ListActivity returns the full ledger for a job, newest first.
func (s *PrepressService) ListActivity(ctx context.Context, jobID string) ([]models.ActivityEntry, error) {
	if _, err := s.load(ctx, jobID); err != nil {
		return nil, err
	}
	entries, err := s.ledger.ListByJob(ctx, jobID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activity")
	}
	return entries, nil
}

func (s *PrepressService) load(ctx context.Context, jobID string) (*models.PrepressJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "prepress job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prepress job")
	}
	return job, nil
}

func (s *PrepressService) reload(ctx context.Context, jobID string) (*models.PrepressJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload prepress job")
	}
	return job, nil
}

// appendEntry writes one ledger record. The ledger is the audit source of
// truth: unlike the lifecycle notification, a failed append is a storage
// error and propagates to the caller.
func (s *PrepressService) appendEntry(ctx context.Context, entry *models.ActivityEntry) error {
	if _, err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append activity entry",
			zap.String("job_id", entry.PrepressJobID),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record activity")
	}
	return nil
}

// notify dispatches the lifecycle side effect. Failures are logged and
// swallowed; the transition's success is independent of downstream sync.
func (s *PrepressService) notify(ctx context.Context, jobCardID string, status workflow.Status, remark, actorID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, jobCardID, status, remark, actorID); err != nil {
		s.logger.Warn("lifecycle notification failed",
			zap.String("job_card_id", jobCardID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

func (s *PrepressService) invalidateStats(ctx context.Context) {
	if s.cache == nil || !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, "prepress:stats:*"); err != nil {
		s.logger.Warn("failed to invalidate statistics cache", zap.Error(err))
	}
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
