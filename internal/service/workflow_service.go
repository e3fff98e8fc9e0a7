package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/SOL-ICT/hrm-erp-sub019/internal/dto"
	"github.com/SOL-ICT/hrm-erp-sub019/internal/models"
	appErrors "github.com/SOL-ICT/hrm-erp-sub019/pkg/errors"
)

type workflowAdminStore interface {
	Create(ctx context.Context, workflow *models.ApprovalWorkflow) error
	GetByID(ctx context.Context, id string) (*models.ApprovalWorkflow, error)
	GetByCode(ctx context.Context, code string) (*models.ApprovalWorkflow, error)
	List(ctx context.Context, activeOnly bool) ([]models.ApprovalWorkflow, error)
	Deactivate(ctx context.Context, id string) error
}

// WorkflowService manages workflow definitions. Workflows are append-only:
// they can be created and deactivated, never edited in place, so approvals
// in flight keep the level structure they started with.
type WorkflowService struct {
	repo      workflowAdminStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWorkflowService constructs the service.
func NewWorkflowService(repo workflowAdminStore, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		repo:      repo,
		validator: validator.New(),
		logger:    logger,
	}
}

// Create registers a workflow with its ordered levels. Level numbers must be
// contiguous from 1.
func (s *WorkflowService) Create(ctx context.Context, req dto.CreateWorkflowRequest) (*models.ApprovalWorkflow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid workflow payload")
	}
	if err := validateLevelShape(req.Levels); err != nil {
		return nil, err
	}

	workflow := &models.ApprovalWorkflow{
		Code:         strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:         strings.TrimSpace(req.Name),
		ApprovalType: strings.ToLower(strings.TrimSpace(req.ApprovalType)),
		Description:  optionalStr(req.Description),
		Active:       true,
	}
	for _, level := range req.Levels {
		workflow.Levels = append(workflow.Levels, models.ApprovalWorkflowLevel{
			LevelNumber: level.LevelNumber,
			Name:        strings.TrimSpace(level.Name),
			SLAHours:    level.SLAHours,
		})
	}

	if err := s.repo.Create(ctx, workflow); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("workflow code %s already exists", workflow.Code))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create workflow")
	}

	s.logger.Info("workflow created",
		zap.String("workflow_id", workflow.ID),
		zap.String("code", workflow.Code),
		zap.Int("levels", workflow.TotalLevels),
	)
	return workflow, nil
}

// Get returns one workflow with its levels.
func (s *WorkflowService) Get(ctx context.Context, id string) (*models.ApprovalWorkflow, error) {
	workflow, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "workflow not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow")
	}
	return workflow, nil
}

// GetByCode returns one workflow by its unique code.
func (s *WorkflowService) GetByCode(ctx context.Context, code string) (*models.ApprovalWorkflow, error) {
	workflow, err := s.repo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "workflow not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow")
	}
	return workflow, nil
}

// List returns workflows, optionally restricted to active ones.
func (s *WorkflowService) List(ctx context.Context, activeOnly bool) ([]models.ApprovalWorkflow, error) {
	workflows, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list workflows")
	}
	return workflows, nil
}

// Deactivate retires a workflow. Approvals already in flight are unaffected
// because they carry their own level count.
func (s *WorkflowService) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "workflow not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate workflow")
	}
	s.logger.Info("workflow deactivated", zap.String("workflow_id", id))
	return nil
}

func validateLevelShape(levels []dto.CreateWorkflowLevel) error {
	seen := make(map[int]bool, len(levels))
	for _, level := range levels {
		if seen[level.LevelNumber] {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate level number %d", level.LevelNumber))
		}
		seen[level.LevelNumber] = true
	}
	for n := 1; n <= len(levels); n++ {
		if !seen[n] {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("level numbers must be contiguous from 1, missing level %d", n))
		}
	}
	return nil
}
