package models

import "time"

// NotificationKind tags the approval event a notification describes.
type NotificationKind string

const (
	NotifyApprovalPending   NotificationKind = "APPROVAL_PENDING"
	NotifyApprovalApproved  NotificationKind = "APPROVAL_APPROVED"
	NotifyApprovalRejected  NotificationKind = "APPROVAL_REJECTED"
	NotifyApprovalEscalated NotificationKind = "APPROVAL_ESCALATED"
)

// NotificationStatus tracks outbox delivery state.
type NotificationStatus string

const (
	NotificationQueued NotificationStatus = "QUEUED"
	NotificationSent   NotificationStatus = "SENT"
	NotificationFailed NotificationStatus = "FAILED"
)

// Notification is one outbox row written by the dispatch worker. Mail
// delivery itself happens downstream; this service only records intent.
type Notification struct {
	ID          string             `db:"id" json:"id"`
	Kind        NotificationKind   `db:"kind" json:"kind"`
	RecipientID string             `db:"recipient_id" json:"recipient_id"`
	ApprovalID  string             `db:"approval_id" json:"approval_id"`
	Subject     string             `db:"subject" json:"subject"`
	Body        string             `db:"body" json:"body"`
	Status      NotificationStatus `db:"status" json:"status"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	SentAt      *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
}
