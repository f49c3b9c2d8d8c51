package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelforge/labelforge-api/internal/dto"
	"github.com/labelforge/labelforge-api/internal/middleware"
	"github.com/labelforge/labelforge-api/internal/models"
	"github.com/labelforge/labelforge-api/internal/service"
	"github.com/labelforge/labelforge-api/internal/workflow"
	appErrors "github.com/labelforge/labelforge-api/pkg/errors"
)

type prepressServiceMock struct {
	job        *models.PrepressJob
	err        error
	lastStatus workflow.Status
	lastQuery  dto.PrepressJobQuery
	lastActor  service.Actor
	lastJobID  string
}

func (m *prepressServiceMock) Create(ctx context.Context, req dto.CreatePrepressJobRequest, actor service.Actor) (*models.PrepressJob, error) {
	m.lastActor = actor
	return m.job, m.err
}

func (m *prepressServiceMock) Get(ctx context.Context, jobID string) (*models.PrepressJob, error) {
	m.lastJobID = jobID
	return m.job, m.err
}

func (m *prepressServiceMock) List(ctx context.Context, query dto.PrepressJobQuery, actor service.Actor) ([]models.PrepressJob, *models.Pagination, error) {
	m.lastQuery = query
	m.lastActor = actor
	if m.err != nil {
		return nil, nil, m.err
	}
	return []models.PrepressJob{*m.job}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *prepressServiceMock) DesignerQueue(ctx context.Context, designerID string) ([]models.PrepressJob, error) {
	m.lastJobID = designerID
	if m.err != nil {
		return nil, m.err
	}
	return []models.PrepressJob{*m.job}, nil
}

func (m *prepressServiceMock) ListActivity(ctx context.Context, jobID string) ([]models.ActivityEntry, error) {
	m.lastJobID = jobID
	return nil, m.err
}

func (m *prepressServiceMock) Transition(ctx context.Context, jobID string, toStatus workflow.Status, actor service.Actor, remark string) (*models.PrepressJob, error) {
	m.lastJobID = jobID
	m.lastStatus = toStatus
	m.lastActor = actor
	return m.job, m.err
}

func (m *prepressServiceMock) AssignDesigner(ctx context.Context, jobID, designerID string, actor service.Actor, remark string) (*models.PrepressJob, error) {
	m.lastJobID = jobID
	m.lastActor = actor
	return m.job, m.err
}

func (m *prepressServiceMock) ReassignDesigner(ctx context.Context, jobID, designerID string, actor service.Actor, remark string) (*models.PrepressJob, error) {
	m.lastJobID = jobID
	m.lastActor = actor
	return m.job, m.err
}

func (m *prepressServiceMock) AddRemark(ctx context.Context, jobID, text string, actor service.Actor) (*models.PrepressJob, error) {
	m.lastJobID = jobID
	return m.job, m.err
}

func (m *prepressServiceMock) SetPriority(ctx context.Context, jobID string, priority models.JobPriority, actor service.Actor) (*models.PrepressJob, error) {
	m.lastJobID = jobID
	return m.job, m.err
}

func sampleJob() *models.PrepressJob {
	return &models.PrepressJob{ID: "job-1", JobCardID: "JC-1001", Status: workflow.StatusPending, Priority: models.PriorityMedium}
}

func setClaims(c *gin.Context, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: role})
}

func TestPrepressHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &prepressServiceMock{job: sampleJob()}
	handler := NewPrepressHandler(mockSvc, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/prepress/jobs", bytes.NewBufferString(`{"jobCardId":"JC-1001"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	setClaims(c, models.RoleMerchandiser)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "user-1", mockSvc.lastActor.ID)
}

func TestPrepressHandlerCreateMissingJobCard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPrepressHandler(&prepressServiceMock{job: sampleJob()}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/prepress/jobs", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	setClaims(c, models.RoleMerchandiser)

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPrepressHandlerListParsesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &prepressServiceMock{job: sampleJob()}
	handler := NewPrepressHandler(mockSvc, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/prepress/jobs?status=IN_PROGRESS,PAUSED&priority=high&page=2", nil)
	c.Request = req
	setClaims(c, models.RoleHODPrepress)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []workflow.Status{workflow.StatusInProgress, workflow.StatusPaused}, mockSvc.lastQuery.Statuses)
	assert.Equal(t, models.PriorityHigh, mockSvc.lastQuery.Priority)
	assert.Equal(t, 2, mockSvc.lastQuery.Page)
}

func TestPrepressHandlerListRejectsUnknownStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPrepressHandler(&prepressServiceMock{job: sampleJob()}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/prepress/jobs?status=DONE", nil)
	c.Request = req
	setClaims(c, models.RoleHODPrepress)

	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPrepressHandlerSubmitTargetsHODReview(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &prepressServiceMock{job: sampleJob()}
	handler := NewPrepressHandler(mockSvc, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/prepress/jobs/job-1/submit", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	setClaims(c, models.RoleDesigner)

	handler.Submit(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, workflow.StatusHODReview, mockSvc.lastStatus)
	assert.Equal(t, "job-1", mockSvc.lastJobID)
}

func TestPrepressHandlerRejectPropagatesServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &prepressServiceMock{err: appErrors.InvalidTransition("PENDING", "REJECTED", "DESIGNER")}
	handler := NewPrepressHandler(mockSvc, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/prepress/jobs/job-1/reject", bytes.NewBufferString(`{"remark":"redo colors"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	setClaims(c, models.RoleDesigner)

	handler.Reject(c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPrepressHandlerUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPrepressHandler(&prepressServiceMock{job: sampleJob()}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/prepress/queue", nil)
	c.Request = req

	handler.MyQueue(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
