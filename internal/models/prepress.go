package models

import (
	"time"

	"github.com/labelforge/labelforge-api/internal/workflow"
)

// JobPriority orders the designer queue. Higher sorts first.
type JobPriority string

const (
	PriorityLow      JobPriority = "LOW"
	PriorityMedium   JobPriority = "MEDIUM"
	PriorityHigh     JobPriority = "HIGH"
	PriorityCritical JobPriority = "CRITICAL"
)

// Priorities returns every defined priority value.
func Priorities() []JobPriority {
	return []JobPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// ValidPriority reports whether the value is a known priority.
func ValidPriority(p JobPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// PrepressJob is the current-state projection of one design job. One row per
// job card; mutated only through the workflow engine, never deleted.
type PrepressJob struct {
	ID                 string          `db:"id" json:"id"`
	JobCardID          string          `db:"job_card_id" json:"job_card_id"`
	Status             workflow.Status `db:"status" json:"status"`
	AssignedDesignerID *string         `db:"assigned_designer_id" json:"assigned_designer_id,omitempty"`
	Priority           JobPriority     `db:"priority" json:"priority"`
	DueDate            *time.Time      `db:"due_date" json:"due_date,omitempty"`
	StartedAt          *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt        *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	HODLastRemark      *string         `db:"hod_last_remark" json:"hod_last_remark,omitempty"`
	PONumber           *string         `db:"po_number" json:"po_number,omitempty"`
	ProductCode        *string         `db:"product_code" json:"product_code,omitempty"`
	CompanyName        *string         `db:"company_name" json:"company_name,omitempty"`
	CreatedBy          string          `db:"created_by" json:"created_by"`
	UpdatedBy          string          `db:"updated_by" json:"updated_by"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// PrepressJobFilter constrains listing queries.
type PrepressJobFilter struct {
	Statuses   []workflow.Status
	Priority   JobPriority
	DesignerID string
	DateFrom   *time.Time
	DateTo     *time.Time
	Search     string
	Page       int
	PageSize   int
}

// JobCard is the external production job the prepress job belongs to. Read
// only from this module's perspective.
type JobCard struct {
	ID     string `db:"id" json:"id"`
	Status string `db:"status" json:"status"`
}

// StatusCount pairs a status with the number of jobs currently in it.
type StatusCount struct {
	Status workflow.Status `db:"status" json:"status"`
	Count  int             `db:"count" json:"count"`
}

// PrepressStatistics aggregates the HOD dashboard counters. Average
// turnaround covers only jobs with both startedAt and completedAt set.
type PrepressStatistics struct {
	TotalJobs            int            `json:"total_jobs"`
	ByStatus             map[string]int `json:"by_status"`
	ActiveDesigners      int            `json:"active_designers"`
	AvgTurnaroundHours   *float64       `json:"avg_turnaround_hours,omitempty"`
	TurnaroundSampleSize int            `json:"turnaround_sample_size"`
	GeneratedAt          time.Time      `json:"generated_at"`
}

// StatisticsFilter bounds statistics queries to a creation date range.
type StatisticsFilter struct {
	DateFrom *time.Time
	DateTo   *time.Time
}
