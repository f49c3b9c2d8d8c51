package dto

import (
	"time"

	"github.com/labelforge/labelforge-api/internal/models"
	"github.com/labelforge/labelforge-api/internal/workflow"
)

// CreatePrepressJobRequest opens a prepress job for a job card. Supplying a
// designer creates the job directly in ASSIGNED.
type CreatePrepressJobRequest struct {
	JobCardID   string             `json:"jobCardId" binding:"required"`
	DesignerID  string             `json:"designerId"`
	Priority    models.JobPriority `json:"priority"`
	DueDate     *time.Time         `json:"dueDate"`
	PONumber    string             `json:"poNumber"`
	ProductCode string             `json:"productCode"`
	CompanyName string             `json:"companyName"`
	Remark      string             `json:"remark"`
}

// AssignDesignerRequest assigns or reassigns a designer.
type AssignDesignerRequest struct {
	DesignerID string `json:"designerId" binding:"required"`
	Remark     string `json:"remark"`
}

// TransitionRequest carries the optional remark accompanying a workflow
// action endpoint (start, pause, resume, submit, approve, reject).
type TransitionRequest struct {
	Remark string `json:"remark"`
}

// RemarkRequest appends a remark without changing status.
type RemarkRequest struct {
	Text string `json:"text" binding:"required"`
}

// PriorityRequest changes a job's priority.
type PriorityRequest struct {
	Priority models.JobPriority `json:"priority" binding:"required"`
}

// PrepressJobQuery mirrors supported listing filters.
type PrepressJobQuery struct {
	Statuses   []workflow.Status
	Priority   models.JobPriority
	DesignerID string
	DateFrom   *time.Time
	DateTo     *time.Time
	Search     string
	Page       int
	PageSize   int
}

// StatisticsQuery bounds the statistics projection.
type StatisticsQuery struct {
	DateFrom *time.Time
	DateTo   *time.Time
}
