package dto

import (
	"encoding/json"

	"github.com/SOL-ICT/hrm-erp-sub019/internal/models"
)

// CreateApprovalRequest opens a new approval for a business entity.
type CreateApprovalRequest struct {
	ApprovableKind models.ApprovableKind   `json:"approvableKind" validate:"required"`
	ApprovableID   string                  `json:"approvableId" validate:"required"`
	ApprovalType   string                  `json:"approvalType" validate:"required"`
	Priority       models.ApprovalPriority `json:"priority"`
	RequestData    json.RawMessage         `json:"requestData"`
}

// SubmitApprovalRequest assigns the approval to an approver.
type SubmitApprovalRequest struct {
	ApproverID string `json:"approverId" validate:"required"`
	Notes      string `json:"notes" validate:"max=1000"`
}

// ApproveRequest records an approve decision. Version must echo the version
// the caller read; a mismatch means someone else acted first.
type ApproveRequest struct {
	Version  int64  `json:"version" validate:"min=1"`
	Comments string `json:"comments" validate:"max=1000"`
}

// RejectRequest records a reject decision. Reason is mandatory; comments are
// free-form context stored separately from the reason.
type RejectRequest struct {
	Version  int64  `json:"version" validate:"min=1"`
	Reason   string `json:"reason" validate:"required,max=1000"`
	Comments string `json:"comments" validate:"max=1000"`
}

// CommentRequest appends a comment to the approval history.
type CommentRequest struct {
	Comment string `json:"comment" validate:"required,max=1000"`
}

// EscalateRequest reassigns the approval to another approver.
type EscalateRequest struct {
	EscalateTo string `json:"escalateTo" validate:"required"`
	Reason     string `json:"reason" validate:"required,max=1000"`
}

// ApprovalQuery mirrors supported listing filters.
type ApprovalQuery struct {
	Status       []models.ApprovalStatus
	Kind         models.ApprovableKind
	ApprovalType string
	ModuleName   string
	RequestedBy  string
	ApproverID   string
	OverdueOnly  bool
	Limit        int
	Offset       int
}
