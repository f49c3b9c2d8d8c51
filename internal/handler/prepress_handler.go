package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/labelforge/labelforge-api/internal/dto"
	"github.com/labelforge/labelforge-api/internal/models"
	"github.com/labelforge/labelforge-api/internal/service"
	"github.com/labelforge/labelforge-api/internal/workflow"
	appErrors "github.com/labelforge/labelforge-api/pkg/errors"
	"github.com/labelforge/labelforge-api/pkg/response"
)

type prepressService interface {
	Create(ctx context.Context, req dto.CreatePrepressJobRequest, actor service.Actor) (*models.PrepressJob, error)
	Get(ctx context.Context, jobID string) (*models.PrepressJob, error)
	List(ctx context.Context, query dto.PrepressJobQuery, actor service.Actor) ([]models.PrepressJob, *models.Pagination, error)
	DesignerQueue(ctx context.Context, designerID string) ([]models.PrepressJob, error)
	ListActivity(ctx context.Context, jobID string) ([]models.ActivityEntry, error)
	Transition(ctx context.Context, jobID string, toStatus workflow.Status, actor service.Actor, remark string) (*models.PrepressJob, error)
	AssignDesigner(ctx context.Context, jobID, designerID string, actor service.Actor, remark string) (*models.PrepressJob, error)
	ReassignDesigner(ctx context.Context, jobID, designerID string, actor service.Actor, remark string) (*models.PrepressJob, error)
	AddRemark(ctx context.Context, jobID, text string, actor service.Actor) (*models.PrepressJob, error)
	SetPriority(ctx context.Context, jobID string, priority models.JobPriority, actor service.Actor) (*models.PrepressJob, error)
}

type queueExporter interface {
	Queue(ctx context.Context, filter models.PrepressJobFilter, format service.ExportFormat) (*service.ExportResult, error)
}

// PrepressHandler exposes REST endpoints for the prepress job lifecycle.
type PrepressHandler struct {
	service  prepressService
	exporter queueExporter
}

// NewPrepressHandler constructs the handler. The exporter is optional.
func NewPrepressHandler(svc prepressService, exporter queueExporter) *PrepressHandler {
	return &PrepressHandler{service: svc, exporter: exporter}
}

func actorFromContext(c *gin.Context) (service.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return service.Actor{}, false
	}
	return service.Actor{ID: claims.UserID, Role: claims.Role}, true
}

// Create godoc
// @Summary Open a prepress job for a job card
// @Tags Prepress
// @Accept json
// @Produce json
// @Param payload body dto.CreatePrepressJobRequest true "Job payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /prepress/jobs [post]
func (h *PrepressHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreatePrepressJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid prepress job payload"))
		return
	}
	job, err := h.service.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, job, nil)
}

// List godoc
// @Summary List prepress jobs
// @Tags Prepress
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param priority query string false "Priority"
// @Param designerId query string false "Designer id"
// @Param search query string false "Search over job card, PO, product, company"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /prepress/jobs [get]
func (h *PrepressHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query, err := parseJobQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	jobs, pagination, err := h.service.List(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, pagination)
}

// Get godoc
// @Summary Get one prepress job
// @Tags Prepress
// @Produce json
// @Param id path string true "Job id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /prepress/jobs/{id} [get]
func (h *PrepressHandler) Get(c *gin.Context) {
	job, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Activity godoc
// @Summary List a job's activity ledger, newest first
// @Tags Prepress
// @Produce json
// @Param id path string true "Job id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /prepress/jobs/{id}/activity [get]
func (h *PrepressHandler) Activity(c *gin.Context) {
	entries, err := h.service.ListActivity(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// MyQueue godoc
// @Summary Open jobs assigned to the calling designer, most urgent first
// @Tags Prepress
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /prepress/queue [get]
func (h *PrepressHandler) MyQueue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	jobs, err := h.service.DesignerQueue(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, nil)
}

// Assign godoc
// @Summary Assign a designer to a job
// @Tags Prepress
// @Accept json
// @Produce json
// @Param id path string true "Job id"
// @Param payload body dto.AssignDesignerRequest true "Designer"
// @Success 200 {object} response.Envelope
// @Router /prepress/jobs/{id}/assign [post]
func (h *PrepressHandler) Assign(c *gin.Context) {
	h.assign(c, false)
}

// Reassign godoc
// @Summary Move a job to a different designer
// @Tags Prepress
// @Accept json
// @Produce json
// @Param id path string true "Job id"
// @Param payload body dto.AssignDesignerRequest true "Designer"
// @Success 200 {object} response.Envelope
// @Router /prepress/jobs/{id}/reassign [post]
func (h *PrepressHandler) Reassign(c *gin.Context) {
	h.assign(c, true)
}

func (h *PrepressHandler) assign(c *gin.Context, reassign bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AssignDesignerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "designerId is required"))
		return
	}
	var (
		job *models.PrepressJob
		err error
	)
	if reassign {
		job, err = h.service.ReassignDesigner(c.Request.Context(), c.Param("id"), req.DesignerID, actor, req.Remark)
	} else {
		job, err = h.service.AssignDesigner(c.Request.Context(), c.Param("id"), req.DesignerID, actor, req.Remark)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Start godoc
// @Summary Begin design work
// @Tags Prepress
// @Accept json
// @Produce json
// @Param id path string true "Job id"
// @Success 200 {object} response.Envelope
// @Router /prepress/jobs/{id}/start [post]
func (h *PrepressHandler) Start(c *gin.Context) {
	h.transition(c, workflow.StatusInProgress)
}

// Pause godoc
// @Summary Pause work on a job
// @Tags Prepress
// @Accept json
// @Produce json
// @Param id path string true "Job id"
// @Success 200 {object} response.Envelope
// @Router /prepress/jobs/{id}/pause [post]
func (h *PrepressHandler) Pause(c *gin.Context) {
	h.transition(c, workflow.StatusPaused)
}

// Resume godoc
// @Summary Resume a paused job
// @Tags Prepress
// @Accept json
// @Produce json
// @Param id path string true "Job id"
// @Success 200 {object} response.Envelope
// @Router /prepress/jobs/{id}/resume [post]
func (h *PrepressHandler) Resume(c *gin.Context) {
	h.transition(c, workflow.StatusInProgress)
}

// Submit godoc
// @Summary Submit finished work for HOD review
// @Tags Prepress
// @Accept json
// @Produce json
// @Param id path string true "Job id"
// @Success 200 {object} response.Envelope
// @Router /prepress/jobs/{id}/submit [post]
func (h *PrepressHandler) Submit(c *gin.Context) {
	h.transition(c, workflow.StatusHODReview)
}

// Approve godoc
// @Summary Approve reviewed work, completing the job
// @Tags Prepress
// @Accept json
// @Produce json
// @Param id path string true "Job id"
// @Success 200 {object} response.Envelope
// @Router /prepress/jobs/{id}/approve [post]
func (h *PrepressHandler) Approve(c *gin.Context) {
	h.transition(c, workflow.StatusCompleted)
}

// Reject godoc
// @Summary Reject reviewed work back to the designer
// @Tags Prepress
// @Accept json
// @Produce json
// @Param id path string true "Job id"
// @Param payload body dto.TransitionRequest true "Rejection remark"
// @Success 200 {object} response.Envelope
// @Router /prepress/jobs/{id}/reject [post]
func (h *PrepressHandler) Reject(c *gin.Context) {
	h.transition(c, workflow.StatusRejected)
}

// Transition godoc
// @Summary Move a job to an explicit status
// @Tags Prepress
// @Accept json
// @Produce json
// @Param id path string true "Job id"
// @Param status path string true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /prepress/jobs/{id}/status/{status} [post]
func (h *PrepressHandler) Transition(c *gin.Context) {
	status, err := workflow.ParseStatus(c.Param("status"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status"))
		return
	}
	h.transition(c, status)
}

func (h *PrepressHandler) transition(c *gin.Context, toStatus workflow.Status) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.TransitionRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid transition payload"))
			return
		}
	}
	job, err := h.service.Transition(c.Request.Context(), c.Param("id"), toStatus, actor, req.Remark)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Remark godoc
// @Summary Append a remark to a job's ledger
// @Tags Prepress
// @Accept json
// @Produce json
// @Param id path string true "Job id"
// @Param payload body dto.RemarkRequest true "Remark"
// @Success 200 {object} response.Envelope
// @Router /prepress/jobs/{id}/remarks [post]
func (h *PrepressHandler) Remark(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RemarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "remark text is required"))
		return
	}
	job, err := h.service.AddRemark(c.Request.Context(), c.Param("id"), req.Text, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Priority godoc
// @Summary Change a job's queue priority
// @Tags Prepress
// @Accept json
// @Produce json
// @Param id path string true "Job id"
// @Param payload body dto.PriorityRequest true "Priority"
// @Success 200 {object} response.Envelope
// @Router /prepress/jobs/{id}/priority [put]
func (h *PrepressHandler) Priority(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.PriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "priority is required"))
		return
	}
	job, err := h.service.SetPriority(c.Request.Context(), c.Param("id"), req.Priority, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Export godoc
// @Summary Download the filtered queue as CSV or PDF
// @Tags Prepress
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /prepress/jobs/export [get]
func (h *PrepressHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	if _, ok := actorFromContext(c); !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query, err := parseJobQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.PrepressJobFilter{
		Statuses:   query.Statuses,
		Priority:   query.Priority,
		DesignerID: query.DesignerID,
		DateFrom:   query.DateFrom,
		DateTo:     query.DateTo,
		Search:     query.Search,
	}
	result, err := h.exporter.Queue(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

func parseJobQuery(c *gin.Context) (dto.PrepressJobQuery, error) {
	query := dto.PrepressJobQuery{
		DesignerID: strings.TrimSpace(c.Query("designerId")),
		Search:     strings.TrimSpace(c.Query("search")),
	}
	if raw := c.Query("status"); raw != "" {
		parts := strings.Split(raw, ",")
		statuses := make([]workflow.Status, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, err := workflow.ParseStatus(part)
			if err != nil {
				return query, appErrors.Clone(appErrors.ErrValidation, "unknown status "+part)
			}
			statuses = append(statuses, status)
		}
		query.Statuses = statuses
	}
	if raw := c.Query("priority"); raw != "" {
		priority := models.JobPriority(strings.ToUpper(strings.TrimSpace(raw)))
		if !models.ValidPriority(priority) {
			return query, appErrors.Clone(appErrors.ErrValidation, "unknown priority "+raw)
		}
		query.Priority = priority
	}
	if raw := c.Query("dateFrom"); raw != "" {
		ts, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return query, appErrors.Clone(appErrors.ErrValidation, "dateFrom must be YYYY-MM-DD")
		}
		query.DateFrom = &ts
	}
	if raw := c.Query("dateTo"); raw != "" {
		ts, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return query, appErrors.Clone(appErrors.ErrValidation, "dateTo must be YYYY-MM-DD")
		}
		query.DateTo = &ts
	}
	query.Page = intQuery(c, "page", 1)
	query.PageSize = intQuery(c, "pageSize", 0)
	return query, nil
}
