package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/SOL-ICT/hrm-erp-sub019/internal/models"
)

// WorkflowRepository persists approval workflow definitions and their levels.
type WorkflowRepository struct {
	db *sqlx.DB
}

// NewWorkflowRepository constructs the repository.
func NewWorkflowRepository(db *sqlx.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

const workflowColumns = `id, code, name, approval_type, description, total_levels, active, created_at`

// Create inserts a workflow together with its levels in one transaction.
func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.ApprovalWorkflow) error {
	if workflow.ID == "" {
		workflow.ID = uuid.NewString()
	}
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = time.Now().UTC()
	}
	workflow.TotalLevels = len(workflow.Levels)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin workflow tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertWorkflow = `INSERT INTO approval_workflows
	(id, code, name, approval_type, description, total_levels, active, created_at)
	VALUES (:id, :code, :name, :approval_type, :description, :total_levels, :active, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertWorkflow, workflow); err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}

	const insertLevel = `INSERT INTO approval_workflow_levels
	(id, workflow_id, level_number, name, sla_hours)
	VALUES (:id, :workflow_id, :level_number, :name, :sla_hours)`
	for i := range workflow.Levels {
		level := &workflow.Levels[i]
		if level.ID == "" {
			level.ID = uuid.NewString()
		}
		level.WorkflowID = workflow.ID
		if _, err := tx.NamedExecContext(ctx, insertLevel, level); err != nil {
			return fmt.Errorf("create workflow level %d: %w", level.LevelNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit workflow tx: %w", err)
	}
	return nil
}

// GetByID fetches a workflow with its levels.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.ApprovalWorkflow, error) {
	query := fmt.Sprintf(`SELECT %s FROM approval_workflows WHERE id = $1`, workflowColumns)
	var workflow models.ApprovalWorkflow
	if err := r.db.GetContext(ctx, &workflow, query, id); err != nil {
		return nil, err
	}
	if err := r.loadLevels(ctx, &workflow); err != nil {
		return nil, err
	}
	return &workflow, nil
}

// GetByCode fetches a workflow by its unique code.
func (r *WorkflowRepository) GetByCode(ctx context.Context, code string) (*models.ApprovalWorkflow, error) {
	query := fmt.Sprintf(`SELECT %s FROM approval_workflows WHERE code = $1`, workflowColumns)
	var workflow models.ApprovalWorkflow
	if err := r.db.GetContext(ctx, &workflow, query, code); err != nil {
		return nil, err
	}
	if err := r.loadLevels(ctx, &workflow); err != nil {
		return nil, err
	}
	return &workflow, nil
}

// FindActiveByType resolves the active workflow serving an approval type.
func (r *WorkflowRepository) FindActiveByType(ctx context.Context, approvalType string) (*models.ApprovalWorkflow, error) {
	query := fmt.Sprintf(`SELECT %s FROM approval_workflows WHERE approval_type = $1 AND active = true LIMIT 1`, workflowColumns)
	var workflow models.ApprovalWorkflow
	if err := r.db.GetContext(ctx, &workflow, query, approvalType); err != nil {
		return nil, err
	}
	if err := r.loadLevels(ctx, &workflow); err != nil {
		return nil, err
	}
	return &workflow, nil
}

// List returns workflows, optionally restricted to active ones.
func (r *WorkflowRepository) List(ctx context.Context, activeOnly bool) ([]models.ApprovalWorkflow, error) {
	query := fmt.Sprintf(`SELECT %s FROM approval_workflows`, workflowColumns)
	if activeOnly {
		query += ` WHERE active = true`
	}
	query += ` ORDER BY code ASC`

	var workflows []models.ApprovalWorkflow
	if err := r.db.SelectContext(ctx, &workflows, query); err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	return workflows, nil
}

// Deactivate hides a workflow from type resolution. In-flight approvals keep
// their denormalized level counts and are unaffected.
func (r *WorkflowRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE approval_workflows SET active = false WHERE id = $1 AND active = true`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate workflow: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deactivate rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *WorkflowRepository) loadLevels(ctx context.Context, workflow *models.ApprovalWorkflow) error {
	const query = `SELECT id, workflow_id, level_number, name, sla_hours
	FROM approval_workflow_levels WHERE workflow_id = $1 ORDER BY level_number ASC`
	if err := r.db.SelectContext(ctx, &workflow.Levels, query, workflow.ID); err != nil {
		return fmt.Errorf("load workflow levels: %w", err)
	}
	return nil
}
