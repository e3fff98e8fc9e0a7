package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/SOL-ICT/hrm-erp-sub019/internal/models"
)

const approvalColumns = `id, approvable_kind, approvable_id, approval_type, module_name,
       requested_by, workflow_id, current_level, total_levels, current_approver_id,
       status, priority, request_data, requested_at, due_date, completed_by, completed_at, version`

// ApprovalRepository persists approval requests. Every transition is a
// guarded single-row UPDATE: the WHERE clause pins the expected version and
// the PENDING status, so a lost race surfaces as zero affected rows.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Create inserts a new approval row.
func (r *ApprovalRepository) Create(ctx context.Context, approval *models.Approval) error {
	if approval.ID == "" {
		approval.ID = uuid.NewString()
	}
	if approval.Status == "" {
		approval.Status = models.ApprovalStatusPending
	}
	if approval.CurrentLevel == 0 {
		approval.CurrentLevel = 1
	}
	if approval.Version == 0 {
		approval.Version = 1
	}
	if approval.Priority == "" {
		approval.Priority = models.PriorityMedium
	}
	if approval.RequestedAt.IsZero() {
		approval.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO approvals
	(id, approvable_kind, approvable_id, approval_type, module_name, requested_by, workflow_id,
	 current_level, total_levels, current_approver_id, status, priority, request_data,
	 requested_at, due_date, completed_by, completed_at, version)
	VALUES (:id, :approvable_kind, :approvable_id, :approval_type, :module_name, :requested_by, :workflow_id,
	 :current_level, :total_levels, :current_approver_id, :status, :priority, :request_data,
	 :requested_at, :due_date, :completed_by, :completed_at, :version)`
	if _, err := r.db.NamedExecContext(ctx, query, approval); err != nil {
		return fmt.Errorf("create approval: %w", err)
	}
	return nil
}

// GetByID fetches an approval by identifier.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*models.Approval, error) {
	query := fmt.Sprintf(`SELECT %s FROM approvals WHERE id = $1`, approvalColumns)
	var approval models.Approval
	if err := r.db.GetContext(ctx, &approval, query, id); err != nil {
		return nil, err
	}
	return &approval, nil
}

// List returns approvals matching the filter (latest first).
func (r *ApprovalRepository) List(ctx context.Context, filter models.ApprovalFilter) ([]models.Approval, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 8)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM approvals`, approvalColumns))

	conditions := make([]string, 0, 6)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		conditions = append(conditions, fmt.Sprintf("approvable_kind = $%d", len(args)))
	}
	if filter.ApprovalType != "" {
		args = append(args, filter.ApprovalType)
		conditions = append(conditions, fmt.Sprintf("approval_type = $%d", len(args)))
	}
	if filter.ModuleName != "" {
		args = append(args, filter.ModuleName)
		conditions = append(conditions, fmt.Sprintf("module_name = $%d", len(args)))
	}
	if filter.RequestedBy != "" {
		args = append(args, filter.RequestedBy)
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", len(args)))
	}
	if filter.ApproverID != "" {
		args = append(args, filter.ApproverID)
		conditions = append(conditions, fmt.Sprintf("current_approver_id = $%d", len(args)))
	}
	if filter.OverdueOnly {
		conditions = append(conditions, "due_date IS NOT NULL AND due_date < NOW() AND status = 'PENDING'")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY requested_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var approvals []models.Approval
	if err := r.db.SelectContext(ctx, &approvals, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return approvals, nil
}

// AssignApprover sets the current approver on a pending approval. Used by
// submit and escalate; rejects terminal approvals via the status guard.
func (r *ApprovalRepository) AssignApprover(ctx context.Context, id, approverID string) error {
	const query = `UPDATE approvals SET current_approver_id = $2, version = version + 1
	WHERE id = $1 AND status = 'PENDING'`
	result, err := r.db.ExecContext(ctx, query, id, approverID)
	if err != nil {
		return fmt.Errorf("assign approver: %w", err)
	}
	return requireRow(result)
}

// AdvanceLevelParams groups the columns changed by a non-final approval.
type AdvanceLevelParams struct {
	ID              string
	ExpectedVersion int64
	NewLevel        int
	DueDate         *time.Time
}

// AdvanceLevel moves a pending approval to the next level, clearing the
// approver slot and recomputing the due date. Fails with sql.ErrNoRows when
// the expected version no longer matches.
func (r *ApprovalRepository) AdvanceLevel(ctx context.Context, params AdvanceLevelParams) error {
	const query = `UPDATE approvals
	SET current_level = $3, due_date = $4, current_approver_id = NULL, version = version + 1
	WHERE id = $1 AND version = $2 AND status = 'PENDING'`
	result, err := r.db.ExecContext(ctx, query, params.ID, params.ExpectedVersion, params.NewLevel, params.DueDate)
	if err != nil {
		return fmt.Errorf("advance approval level: %w", err)
	}
	return requireRow(result)
}

// CompleteParams groups the columns set on a terminal transition.
type CompleteParams struct {
	ID              string
	ExpectedVersion int64
	Status          models.ApprovalStatus
	CompletedBy     string
	CompletedAt     time.Time
}

// Complete finalizes an approval as APPROVED or REJECTED.
func (r *ApprovalRepository) Complete(ctx context.Context, params CompleteParams) error {
	const query = `UPDATE approvals
	SET status = $3, completed_by = $4, completed_at = $5, version = version + 1
	WHERE id = $1 AND version = $2 AND status = 'PENDING'`
	result, err := r.db.ExecContext(ctx, query,
		params.ID, params.ExpectedVersion, params.Status, params.CompletedBy, params.CompletedAt)
	if err != nil {
		return fmt.Errorf("complete approval: %w", err)
	}
	return requireRow(result)
}

// CountByStatus aggregates approvals per status.
func (r *ApprovalRepository) CountByStatus(ctx context.Context) ([]models.ApprovalStatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM approvals GROUP BY status`
	var counts []models.ApprovalStatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count approvals by status: %w", err)
	}
	return counts, nil
}

// CountOverdue returns the number of pending approvals past their due date.
func (r *ApprovalRepository) CountOverdue(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM approvals
	WHERE status = 'PENDING' AND due_date IS NOT NULL AND due_date < NOW()`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count overdue approvals: %w", err)
	}
	return count, nil
}

// CountPendingByModule aggregates pending approvals per business module.
func (r *ApprovalRepository) CountPendingByModule(ctx context.Context) ([]models.ApprovalGroupCount, error) {
	const query = `SELECT module_name AS key, COUNT(*) AS count FROM approvals
	WHERE status = 'PENDING' GROUP BY module_name`
	var counts []models.ApprovalGroupCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count pending by module: %w", err)
	}
	return counts, nil
}

// CountPendingByPriority aggregates pending approvals per priority.
func (r *ApprovalRepository) CountPendingByPriority(ctx context.Context) ([]models.ApprovalGroupCount, error) {
	const query = `SELECT priority AS key, COUNT(*) AS count FROM approvals
	WHERE status = 'PENDING' GROUP BY priority`
	var counts []models.ApprovalGroupCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count pending by priority: %w", err)
	}
	return counts, nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
