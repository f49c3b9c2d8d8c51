package models

import (
	"encoding/json"
	"time"

	"github.com/labelforge/labelforge-api/internal/workflow"
)

// ActivityEntry is one immutable ledger record tied to a prepress job.
// Entries are only ever appended; the ledger is the source of historical
// truth for a job. FromStatus/ToStatus are nil for non-transition actions
// such as REMARK.
type ActivityEntry struct {
	ID            string           `db:"id" json:"id"`
	PrepressJobID string           `db:"prepress_job_id" json:"prepress_job_id"`
	ActorID       string           `db:"actor_id" json:"actor_id"`
	Action        workflow.Action  `db:"action" json:"action"`
	FromStatus    *workflow.Status `db:"from_status" json:"from_status,omitempty"`
	ToStatus      *workflow.Status `db:"to_status" json:"to_status,omitempty"`
	Remark        *string          `db:"remark" json:"remark,omitempty"`
	Metadata      json.RawMessage  `db:"metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

// ReassignmentMetadata is the structured payload recorded on REASSIGNED
// entries.
type ReassignmentMetadata struct {
	From *string `json:"from"`
	To   string  `json:"to"`
}
