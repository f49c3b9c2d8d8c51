package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionJobCreate      = "PREPRESS_JOB_CREATE"
	AuditActionJobTransition  = "PREPRESS_JOB_TRANSITION"
	AuditActionJobAssign      = "PREPRESS_JOB_ASSIGN"
	AuditActionQueueExport    = "PREPRESS_QUEUE_EXPORT"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
)

// AuditLog represents an HTTP-level audit trail record, distinct from the
// per-job activity ledger.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
