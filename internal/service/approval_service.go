package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/SOL-ICT/hrm-erp-sub019/internal/dto"
	"github.com/SOL-ICT/hrm-erp-sub019/internal/models"
	"github.com/SOL-ICT/hrm-erp-sub019/internal/repository"
	appErrors "github.com/SOL-ICT/hrm-erp-sub019/pkg/errors"
)

type approvalStore interface {
	Create(ctx context.Context, approval *models.Approval) error
	GetByID(ctx context.Context, id string) (*models.Approval, error)
	List(ctx context.Context, filter models.ApprovalFilter) ([]models.Approval, error)
	AssignApprover(ctx context.Context, id, approverID string) error
	AdvanceLevel(ctx context.Context, params repository.AdvanceLevelParams) error
	Complete(ctx context.Context, params repository.CompleteParams) error
}

type workflowStore interface {
	FindActiveByType(ctx context.Context, approvalType string) (*models.ApprovalWorkflow, error)
	GetByID(ctx context.Context, id string) (*models.ApprovalWorkflow, error)
}

type historyStore interface {
	Create(ctx context.Context, entry *models.ApprovalHistory) error
	ListByApproval(ctx context.Context, approvalID string) ([]models.ApprovalHistory, error)
}

// Notifier dispatches approval lifecycle notifications. Dispatch is
// best-effort and must never affect the approval state transition.
type Notifier interface {
	NotifyPendingApproval(approval *models.Approval, approverID string)
	NotifyCompleted(approval *models.Approval)
	NotifyEscalated(approval *models.Approval, approverID string)
}

// moduleByApprovalType maps approval type keys to their owning business
// module for dashboards and reporting.
var moduleByApprovalType = map[string]string{
	"staff_boarding":      "recruitment",
	"recruitment_request": "recruitment",
	"ticket_assignment":   "recruitment",
	"leave_request":       "hr",
	"name_change":         "staff",
	"advance_request":     "finance",
	"advance_retirement":  "finance",
	"purchase_request":    "procurement",
	"claim_submission":    "claims",
	"contract_approval":   "contracts",
}

// ApprovalService orchestrates the multi-level approval state machine.
// Every transition requires the caller to echo the version it read; the
// guarded repository updates turn lost races into ConcurrentModification.
type ApprovalService struct {
	repo      approvalStore
	workflows workflowStore
	history   historyStore
	notifier  Notifier
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// ApprovalServiceOption configures the service.
type ApprovalServiceOption func(*ApprovalService)

// WithNotifier wires the notification dispatcher.
func WithNotifier(notifier Notifier) ApprovalServiceOption {
	return func(s *ApprovalService) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// WithDashboardCache wires cache invalidation for dashboard summaries.
func WithDashboardCache(cache *CacheService) ApprovalServiceOption {
	return func(s *ApprovalService) {
		s.cache = cache
	}
}

// WithApprovalMetrics wires domain counters.
func WithApprovalMetrics(metrics *MetricsService) ApprovalServiceOption {
	return func(s *ApprovalService) {
		s.metrics = metrics
	}
}

// NewApprovalService constructs the service with defaults.
func NewApprovalService(repo approvalStore, workflows workflowStore, history historyStore, logger *zap.Logger, opts ...ApprovalServiceOption) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ApprovalService{
		repo:      repo,
		workflows: workflows,
		history:   history,
		notifier:  noopNotifier{},
		validator: validator.New(),
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CreateApproval opens a new approval at level 1 for a business entity. The
// workflow's level count is copied onto the approval so later workflow edits
// never change requests already in flight.
func (s *ApprovalService) CreateApproval(ctx context.Context, req dto.CreateApprovalRequest, requesterID string, meta models.RequestMeta) (*models.Approval, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}
	if !req.ApprovableKind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown approvable kind: %s", req.ApprovableKind))
	}
	approvalType := strings.ToLower(strings.TrimSpace(req.ApprovalType))

	workflow, err := s.workflows.FindActiveByType(ctx, approvalType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrWorkflowNotFound, fmt.Sprintf("no active workflow for approval type %q", approvalType))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve workflow")
	}

	now := time.Now().UTC()
	approval := &models.Approval{
		ApprovableKind: req.ApprovableKind,
		ApprovableID:   req.ApprovableID,
		ApprovalType:   approvalType,
		ModuleName:     moduleName(approvalType),
		RequestedBy:    requesterID,
		WorkflowID:     workflow.ID,
		CurrentLevel:   1,
		TotalLevels:    workflow.TotalLevels,
		Status:         models.ApprovalStatusPending,
		Priority:       req.Priority,
		RequestData:    append([]byte(nil), req.RequestData...),
		RequestedAt:    now,
		DueDate:        dueDateForLevel(workflow, 1, now),
		Version:        1,
	}

	if err := s.repo.Create(ctx, approval); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create approval")
	}

	pending := models.ApprovalStatusPending
	s.logHistory(ctx, &models.ApprovalHistory{
		ApprovalID: approval.ID,
		Action:     models.HistoryActionSubmitted,
		ActionBy:   requesterID,
		Level:      1,
		ToStatus:   &pending,
		Comments:   strPtr("Approval request created"),
	}, meta)

	if s.metrics != nil {
		s.metrics.RecordApprovalCreated(approval.ModuleName)
	}
	s.invalidateDashboard(ctx)

	s.logger.Info("approval created",
		zap.String("approval_id", approval.ID),
		zap.String("approval_type", approval.ApprovalType),
		zap.String("requested_by", requesterID),
	)
	return approval, nil
}

// SubmitForApproval assigns the current approver on a pending approval.
func (s *ApprovalService) SubmitForApproval(ctx context.Context, id, approverID, notes string, actorID string, meta models.RequestMeta) (*models.Approval, error) {
	approval, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if approval.Status.Terminal() {
		return nil, appErrors.ErrApprovalFinalized
	}

	if err := s.repo.AssignApprover(ctx, id, approverID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrApprovalFinalized
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign approver")
	}
	approval.CurrentApproverID = &approverID
	approval.Version++

	comments := notes
	if comments == "" {
		comments = fmt.Sprintf("Assigned to approver (level %d)", approval.CurrentLevel)
	}
	pending := models.ApprovalStatusPending
	s.logHistory(ctx, &models.ApprovalHistory{
		ApprovalID: approval.ID,
		Action:     models.HistoryActionAssigned,
		ActionBy:   actorID,
		Level:      approval.CurrentLevel,
		FromStatus: &pending,
		ToStatus:   &pending,
		Comments:   &comments,
	}, meta)

	s.notifier.NotifyPendingApproval(approval, approverID)
	return approval, nil
}

// ApproveRequest records an approve decision by the current approver. On the
// final level the approval terminates as APPROVED; otherwise it advances one
// level, clears the approver slot and recomputes the due date from the next
// level's SLA.
func (s *ApprovalService) ApproveRequest(ctx context.Context, id, actorID string, version int64, comments string, meta models.RequestMeta) (*models.Approval, error) {
	approval, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if approval.Status.Terminal() {
		return nil, appErrors.ErrApprovalFinalized
	}
	if !s.canApprove(approval, actorID) {
		return nil, appErrors.ErrUnauthorizedApprover
	}
	if approval.Version != version {
		return nil, appErrors.ErrConcurrentModification
	}

	now := time.Now().UTC()
	pending := models.ApprovalStatusPending
	finishedLevel := approval.CurrentLevel

	if s.isWorkflowComplete(approval) {
		if err := s.repo.Complete(ctx, repository.CompleteParams{
			ID:              approval.ID,
			ExpectedVersion: approval.Version,
			Status:          models.ApprovalStatusApproved,
			CompletedBy:     actorID,
			CompletedAt:     now,
		}); err != nil {
			return nil, s.transitionError(err, "failed to finalize approval")
		}
		approval.Status = models.ApprovalStatusApproved
		approval.CompletedBy = &actorID
		approval.CompletedAt = &now
		approval.Version++

		approved := models.ApprovalStatusApproved
		s.logHistory(ctx, &models.ApprovalHistory{
			ApprovalID: approval.ID,
			Action:     models.HistoryActionApproved,
			ActionBy:   actorID,
			Level:      finishedLevel,
			FromStatus: &pending,
			ToStatus:   &approved,
			Comments:   optionalStr(comments),
		}, meta)

		s.notifier.NotifyCompleted(approval)
		s.recordDecision("approved")
		s.invalidateDashboard(ctx)
		return approval, nil
	}

	nextLevel := approval.CurrentLevel + 1
	dueDate := s.nextDueDate(ctx, approval, nextLevel, now)
	if err := s.repo.AdvanceLevel(ctx, repository.AdvanceLevelParams{
		ID:              approval.ID,
		ExpectedVersion: approval.Version,
		NewLevel:        nextLevel,
		DueDate:         dueDate,
	}); err != nil {
		return nil, s.transitionError(err, "failed to advance approval level")
	}
	approval.CurrentLevel = nextLevel
	approval.DueDate = dueDate
	approval.CurrentApproverID = nil
	approval.Version++

	s.logHistory(ctx, &models.ApprovalHistory{
		ApprovalID: approval.ID,
		Action:     models.HistoryActionLevelCompleted,
		ActionBy:   actorID,
		Level:      finishedLevel,
		FromStatus: &pending,
		ToStatus:   &pending,
		Comments:   optionalStr(comments),
	}, meta)

	s.recordDecision("level_completed")
	s.invalidateDashboard(ctx)
	return approval, nil
}

// RejectRequest terminates the approval as REJECTED regardless of the
// current level. Rejection is irreversible.
func (s *ApprovalService) RejectRequest(ctx context.Context, id, actorID string, version int64, reason, comments string, meta models.RequestMeta) (*models.Approval, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	approval, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if approval.Status.Terminal() {
		return nil, appErrors.ErrApprovalFinalized
	}
	if !s.canApprove(approval, actorID) {
		return nil, appErrors.ErrUnauthorizedApprover
	}
	if approval.Version != version {
		return nil, appErrors.ErrConcurrentModification
	}

	now := time.Now().UTC()
	if err := s.repo.Complete(ctx, repository.CompleteParams{
		ID:              approval.ID,
		ExpectedVersion: approval.Version,
		Status:          models.ApprovalStatusRejected,
		CompletedBy:     actorID,
		CompletedAt:     now,
	}); err != nil {
		return nil, s.transitionError(err, "failed to reject approval")
	}
	pending := models.ApprovalStatusPending
	rejected := models.ApprovalStatusRejected
	approval.Status = rejected
	approval.CompletedBy = &actorID
	approval.CompletedAt = &now
	approval.Version++

	s.logHistory(ctx, &models.ApprovalHistory{
		ApprovalID:      approval.ID,
		Action:          models.HistoryActionRejected,
		ActionBy:        actorID,
		Level:           approval.CurrentLevel,
		FromStatus:      &pending,
		ToStatus:        &rejected,
		Comments:        optionalStr(comments),
		RejectionReason: &reason,
	}, meta)

	s.notifier.NotifyCompleted(approval)
	s.recordDecision("rejected")
	s.invalidateDashboard(ctx)
	return approval, nil
}

// Comment appends a comment to the approval history without changing state.
func (s *ApprovalService) Comment(ctx context.Context, id, actorID, comment string, meta models.RequestMeta) error {
	if strings.TrimSpace(comment) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "comment is required")
	}
	approval, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	status := approval.Status
	s.logHistory(ctx, &models.ApprovalHistory{
		ApprovalID: approval.ID,
		Action:     models.HistoryActionCommented,
		ActionBy:   actorID,
		Level:      approval.CurrentLevel,
		FromStatus: &status,
		ToStatus:   &status,
		Comments:   &comment,
	}, meta)
	return nil
}

// Escalate reassigns a pending approval to another approver. The approval
// stays PENDING at its current level; only the approver slot changes.
func (s *ApprovalService) Escalate(ctx context.Context, id, actorID, escalateTo, reason string, meta models.RequestMeta) (*models.Approval, error) {
	if strings.TrimSpace(escalateTo) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "escalation target is required")
	}
	approval, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if approval.Status.Terminal() {
		return nil, appErrors.ErrApprovalFinalized
	}

	if err := s.repo.AssignApprover(ctx, id, escalateTo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrApprovalFinalized
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to escalate approval")
	}
	approval.CurrentApproverID = &escalateTo
	approval.Version++

	pending := models.ApprovalStatusPending
	s.logHistory(ctx, &models.ApprovalHistory{
		ApprovalID: approval.ID,
		Action:     models.HistoryActionEscalated,
		ActionBy:   actorID,
		Level:      approval.CurrentLevel,
		FromStatus: &pending,
		ToStatus:   &pending,
		Comments:   optionalStr(reason),
	}, meta)

	s.notifier.NotifyEscalated(approval, escalateTo)
	return approval, nil
}

// Get returns one approval.
func (s *ApprovalService) Get(ctx context.Context, id string) (*models.Approval, error) {
	return s.load(ctx, id)
}

// List returns approvals matching the query.
func (s *ApprovalService) List(ctx context.Context, query dto.ApprovalQuery) ([]models.Approval, error) {
	approvals, err := s.repo.List(ctx, models.ApprovalFilter{
		Status:       query.Status,
		Kind:         query.Kind,
		ApprovalType: strings.ToLower(strings.TrimSpace(query.ApprovalType)),
		ModuleName:   query.ModuleName,
		RequestedBy:  query.RequestedBy,
		ApproverID:   query.ApproverID,
		OverdueOnly:  query.OverdueOnly,
		Limit:        query.Limit,
		Offset:       query.Offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approvals")
	}
	return approvals, nil
}

// GetApprovalHistory returns the audit trail in insertion order.
func (s *ApprovalService) GetApprovalHistory(ctx context.Context, approvalID string) ([]models.ApprovalHistory, error) {
	if _, err := s.load(ctx, approvalID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByApproval(ctx, approvalID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval history")
	}
	return entries, nil
}

func (s *ApprovalService) load(ctx context.Context, id string) (*models.Approval, error) {
	approval, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "approval not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval")
	}
	return approval, nil
}

func (s *ApprovalService) isWorkflowComplete(approval *models.Approval) bool {
	return approval.CurrentLevel >= approval.TotalLevels
}

func (s *ApprovalService) canApprove(approval *models.Approval, userID string) bool {
	if approval.Status != models.ApprovalStatusPending {
		return false
	}
	return approval.CurrentApproverID != nil && *approval.CurrentApproverID == userID
}

// nextDueDate resolves the SLA of the upcoming level. A missing workflow or
// level leaves the due date unset rather than failing the transition.
func (s *ApprovalService) nextDueDate(ctx context.Context, approval *models.Approval, level int, from time.Time) *time.Time {
	workflow, err := s.workflows.GetByID(ctx, approval.WorkflowID)
	if err != nil {
		s.logger.Warn("failed to load workflow for due date",
			zap.String("approval_id", approval.ID), zap.Error(err))
		return nil
	}
	return dueDateForLevel(workflow, level, from)
}

// logHistory appends an audit row. Failures are logged and swallowed so the
// parent state change is never rolled back by audit trouble.
func (s *ApprovalService) logHistory(ctx context.Context, entry *models.ApprovalHistory, meta models.RequestMeta) {
	entry.IPAddress = meta.IPAddress
	entry.UserAgent = meta.UserAgent
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to persist approval history",
			zap.String("approval_id", entry.ApprovalID),
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}

func (s *ApprovalService) transitionError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.ErrConcurrentModification
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *ApprovalService) recordDecision(action string) {
	if s.metrics != nil {
		s.metrics.RecordApprovalDecision(action)
	}
}

func (s *ApprovalService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCacheKeyPattern); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func dueDateForLevel(workflow *models.ApprovalWorkflow, levelNumber int, from time.Time) *time.Time {
	level := workflow.Level(levelNumber)
	if level == nil || level.SLAHours <= 0 {
		return nil
	}
	due := from.Add(time.Duration(level.SLAHours) * time.Hour)
	return &due
}

func moduleName(approvalType string) string {
	if module, ok := moduleByApprovalType[approvalType]; ok {
		return module
	}
	return "general"
}

func strPtr(v string) *string {
	return &v
}

func optionalStr(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}

type noopNotifier struct{}

func (noopNotifier) NotifyPendingApproval(*models.Approval, string) {}
func (noopNotifier) NotifyCompleted(*models.Approval)               {}
func (noopNotifier) NotifyEscalated(*models.Approval, string)       {}
