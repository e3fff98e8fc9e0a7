package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SOL-ICT/hrm-erp-sub019/internal/models"
)

type notificationStoreStub struct {
	mu      sync.Mutex
	created []models.Notification
	sent    []string
}

func (s *notificationStoreStub) Create(ctx context.Context, notification *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if notification.ID == "" {
		notification.ID = "ntf-" + notification.ApprovalID
	}
	s.created = append(s.created, *notification)
	return nil
}

func (s *notificationStoreStub) MarkSent(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, id)
	return nil
}

func (s *notificationStoreStub) MarkFailed(ctx context.Context, id string) error {
	return nil
}

func (s *notificationStoreStub) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Notification
	for _, n := range s.created {
		if n.RecipientID == recipientID {
			result = append(result, n)
		}
	}
	return result, nil
}

func (s *notificationStoreStub) counts() (created, sent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created), len(s.sent)
}

func TestNotificationServiceWritesOutboxRows(t *testing.T) {
	store := &notificationStoreStub{}
	svc := NewNotificationService(store, NotificationConfig{Workers: 1}, nil)
	svc.Start(context.Background())
	defer svc.Stop()

	approval := &models.Approval{
		ID:           "apr-1",
		ApprovalType: "leave_request",
		RequestedBy:  "user-1",
		CurrentLevel: 1,
		TotalLevels:  2,
		Status:       models.ApprovalStatusPending,
	}
	svc.NotifyPendingApproval(approval, "mgr-1")

	approval.Status = models.ApprovalStatusRejected
	svc.NotifyCompleted(approval)

	require.Eventually(t, func() bool {
		created, sent := store.counts()
		return created == 2 && sent == 2
	}, 2*time.Second, 10*time.Millisecond)

	pending, err := svc.ListForRecipient(context.Background(), "mgr-1", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, models.NotifyApprovalPending, pending[0].Kind)

	rejected, err := svc.ListForRecipient(context.Background(), "user-1", 10)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	require.Equal(t, models.NotifyApprovalRejected, rejected[0].Kind)
}

func TestNotificationServiceEnqueueBeforeStartIsDropped(t *testing.T) {
	store := &notificationStoreStub{}
	svc := NewNotificationService(store, NotificationConfig{Workers: 1}, nil)

	// Queue not started: the event is logged and dropped, never panics.
	svc.NotifyEscalated(&models.Approval{ID: "apr-1", ApprovalType: "leave_request"}, "mgr-2")

	created, _ := store.counts()
	require.Zero(t, created)
}
