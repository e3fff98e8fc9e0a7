package models

import (
	"encoding/json"
	"time"
)

// ApprovalStatus is the lifecycle state of an approval request.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

// Terminal reports whether the status admits no further transitions.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusRejected
}

// ApprovableKind identifies the business entity an approval wraps. The set
// is closed so every consumer of an approval's subject handles known kinds.
type ApprovableKind string

const (
	ApprovableStaffBoarding   ApprovableKind = "STAFF_BOARDING"
	ApprovableLeaveRequest    ApprovableKind = "LEAVE_REQUEST"
	ApprovableAdvanceRequest  ApprovableKind = "ADVANCE_REQUEST"
	ApprovablePurchaseRequest ApprovableKind = "PURCHASE_REQUEST"
	ApprovableClaimSubmission ApprovableKind = "CLAIM_SUBMISSION"
	ApprovableContract        ApprovableKind = "CONTRACT"
	ApprovableNameChange      ApprovableKind = "NAME_CHANGE"
)

// Valid reports whether the kind belongs to the known set.
func (k ApprovableKind) Valid() bool {
	switch k {
	case ApprovableStaffBoarding, ApprovableLeaveRequest, ApprovableAdvanceRequest,
		ApprovablePurchaseRequest, ApprovableClaimSubmission, ApprovableContract,
		ApprovableNameChange:
		return true
	}
	return false
}

// ApprovalPriority orders requests on approver dashboards.
type ApprovalPriority string

const (
	PriorityLow    ApprovalPriority = "LOW"
	PriorityMedium ApprovalPriority = "MEDIUM"
	PriorityHigh   ApprovalPriority = "HIGH"
)

// Approval is one request moving through a workflow. TotalLevels is copied
// from the workflow at creation time so later workflow edits never change
// in-flight approvals. Version increments on every state transition and is
// required from callers on approve/reject to detect concurrent decisions.
type Approval struct {
	ID                string           `db:"id" json:"id"`
	ApprovableKind    ApprovableKind   `db:"approvable_kind" json:"approvable_kind"`
	ApprovableID      string           `db:"approvable_id" json:"approvable_id"`
	ApprovalType      string           `db:"approval_type" json:"approval_type"`
	ModuleName        string           `db:"module_name" json:"module_name"`
	RequestedBy       string           `db:"requested_by" json:"requested_by"`
	WorkflowID        string           `db:"workflow_id" json:"workflow_id"`
	CurrentLevel      int              `db:"current_level" json:"current_level"`
	TotalLevels       int              `db:"total_levels" json:"total_levels"`
	CurrentApproverID *string          `db:"current_approver_id" json:"current_approver_id,omitempty"`
	Status            ApprovalStatus   `db:"status" json:"status"`
	Priority          ApprovalPriority `db:"priority" json:"priority"`
	RequestData       json.RawMessage  `db:"request_data" json:"request_data,omitempty"`
	RequestedAt       time.Time        `db:"requested_at" json:"requested_at"`
	DueDate           *time.Time       `db:"due_date" json:"due_date,omitempty"`
	CompletedBy       *string          `db:"completed_by" json:"completed_by,omitempty"`
	CompletedAt       *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	Version           int64            `db:"version" json:"version"`
}

// ApprovalFilter captures listing criteria for approvals.
type ApprovalFilter struct {
	Status       []ApprovalStatus
	Kind         ApprovableKind
	ApprovalType string
	ModuleName   string
	RequestedBy  string
	ApproverID   string
	OverdueOnly  bool
	Limit        int
	Offset       int
}

// RequestMeta carries the acting caller's request context. It is passed
// explicitly into every service operation so audit rows never depend on
// ambient HTTP state.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}
