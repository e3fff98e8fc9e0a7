package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/SOL-ICT/hrm-erp-sub019/internal/models"
)

// HistoryRepository persists the append-only approval audit trail. Rows are
// only ever inserted; there is no update or delete path.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository constructs the repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create appends one history row.
func (r *HistoryRepository) Create(ctx context.Context, entry *models.ApprovalHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ActionAt.IsZero() {
		entry.ActionAt = time.Now().UTC()
	}
	const query = `INSERT INTO approval_history
	(id, approval_id, action, action_by, action_at, level, from_status, to_status,
	 comments, rejection_reason, ip_address, user_agent)
	VALUES (:id, :approval_id, :action, :action_by, :action_at, :level, :from_status, :to_status,
	 :comments, :rejection_reason, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create approval history: %w", err)
	}
	return nil
}

// ListByApproval returns all history rows in insertion order.
func (r *HistoryRepository) ListByApproval(ctx context.Context, approvalID string) ([]models.ApprovalHistory, error) {
	const query = `SELECT id, approval_id, action, action_by, action_at, level, from_status, to_status,
       comments, rejection_reason, ip_address, user_agent
	FROM approval_history WHERE approval_id = $1 ORDER BY action_at ASC, id ASC`
	var entries []models.ApprovalHistory
	if err := r.db.SelectContext(ctx, &entries, query, approvalID); err != nil {
		return nil, fmt.Errorf("list approval history: %w", err)
	}
	return entries, nil
}
