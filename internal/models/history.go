package models

import "time"

// HistoryAction constants enumerate every recordable approval action.
const (
	HistoryActionSubmitted      = "submitted"
	HistoryActionAssigned       = "assigned"
	HistoryActionApproved       = "approved"
	HistoryActionRejected       = "rejected"
	HistoryActionLevelCompleted = "level_completed"
	HistoryActionCommented      = "commented"
	HistoryActionEscalated      = "escalated"
)

// ApprovalHistory is one append-only audit row. Rows are never updated or
// deleted after insert.
type ApprovalHistory struct {
	ID              string          `db:"id" json:"id"`
	ApprovalID      string          `db:"approval_id" json:"approval_id"`
	Action          string          `db:"action" json:"action"`
	ActionBy        string          `db:"action_by" json:"action_by"`
	ActionAt        time.Time       `db:"action_at" json:"action_at"`
	Level           int             `db:"level" json:"level"`
	FromStatus      *ApprovalStatus `db:"from_status" json:"from_status,omitempty"`
	ToStatus        *ApprovalStatus `db:"to_status" json:"to_status,omitempty"`
	Comments        *string         `db:"comments" json:"comments,omitempty"`
	RejectionReason *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	IPAddress       string          `db:"ip_address" json:"ip_address"`
	UserAgent       string          `db:"user_agent" json:"user_agent"`
}
