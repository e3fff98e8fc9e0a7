package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SOL-ICT/hrm-erp-sub019/internal/models"
	"github.com/SOL-ICT/hrm-erp-sub019/pkg/jobs"
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string) error
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error)
}

// notificationPayload travels through the job queue.
type notificationPayload struct {
	Kind        models.NotificationKind
	RecipientID string
	ApprovalID  string
	Subject     string
	Body        string
}

// NotificationService turns approval events into outbox rows via a
// background worker queue. Enqueue failures are logged and dropped; the
// approval transition that triggered them has already committed.
type NotificationService struct {
	repo   notificationStore
	queue  *jobs.Queue
	logger *zap.Logger
}

// NotificationConfig tunes the dispatch worker pool.
type NotificationConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NewNotificationService constructs the dispatcher and its queue. Call Start
// before use and Stop on shutdown.
func NewNotificationService(repo notificationStore, cfg NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{repo: repo, logger: logger}
	svc.queue = jobs.NewQueue("notifications", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// NotifyPendingApproval tells the assigned approver a request awaits them.
func (s *NotificationService) NotifyPendingApproval(approval *models.Approval, approverID string) {
	s.enqueue(notificationPayload{
		Kind:        models.NotifyApprovalPending,
		RecipientID: approverID,
		ApprovalID:  approval.ID,
		Subject:     fmt.Sprintf("Approval required: %s", approval.ApprovalType),
		Body:        fmt.Sprintf("A %s request (level %d of %d) is awaiting your decision.", approval.ApprovalType, approval.CurrentLevel, approval.TotalLevels),
	})
}

// NotifyCompleted tells the requester their request reached a terminal state.
func (s *NotificationService) NotifyCompleted(approval *models.Approval) {
	kind := models.NotifyApprovalApproved
	verb := "approved"
	if approval.Status == models.ApprovalStatusRejected {
		kind = models.NotifyApprovalRejected
		verb = "rejected"
	}
	s.enqueue(notificationPayload{
		Kind:        kind,
		RecipientID: approval.RequestedBy,
		ApprovalID:  approval.ID,
		Subject:     fmt.Sprintf("Request %s: %s", verb, approval.ApprovalType),
		Body:        fmt.Sprintf("Your %s request has been %s.", approval.ApprovalType, verb),
	})
}

// NotifyEscalated tells the new approver a request was escalated to them.
func (s *NotificationService) NotifyEscalated(approval *models.Approval, approverID string) {
	s.enqueue(notificationPayload{
		Kind:        models.NotifyApprovalEscalated,
		RecipientID: approverID,
		ApprovalID:  approval.ID,
		Subject:     fmt.Sprintf("Approval escalated to you: %s", approval.ApprovalType),
		Body:        fmt.Sprintf("A %s request at level %d was escalated to you.", approval.ApprovalType, approval.CurrentLevel),
	})
}

// ListForRecipient returns the most recent notifications for a user.
func (s *NotificationService) ListForRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	return s.repo.ListByRecipient(ctx, recipientID, limit)
}

func (s *NotificationService) enqueue(payload notificationPayload) {
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(payload.Kind),
		Payload: payload,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("kind", string(payload.Kind)),
			zap.String("approval_id", payload.ApprovalID),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationPayload)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	notification := &models.Notification{
		Kind:        payload.Kind,
		RecipientID: payload.RecipientID,
		ApprovalID:  payload.ApprovalID,
		Subject:     payload.Subject,
		Body:        payload.Body,
		Status:      models.NotificationQueued,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}
	// Delivery happens out-of-process; recording the outbox row is the
	// extent of this worker's responsibility.
	if err := s.repo.MarkSent(ctx, notification.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to mark notification sent",
			zap.String("notification_id", notification.ID), zap.Error(err))
	}
	return nil
}
