package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SOL-ICT/hrm-erp-sub019/internal/dto"
	"github.com/SOL-ICT/hrm-erp-sub019/internal/models"
	"github.com/SOL-ICT/hrm-erp-sub019/internal/repository"
	appErrors "github.com/SOL-ICT/hrm-erp-sub019/pkg/errors"
)

type approvalStoreStub struct {
	approvals map[string]*models.Approval
	filter    models.ApprovalFilter
}

func newApprovalStoreStub() *approvalStoreStub {
	return &approvalStoreStub{approvals: make(map[string]*models.Approval)}
}

func (s *approvalStoreStub) Create(ctx context.Context, approval *models.Approval) error {
	if approval.ID == "" {
		approval.ID = "apr-" + approval.ApprovableID
	}
	clone := *approval
	s.approvals[approval.ID] = &clone
	return nil
}

func (s *approvalStoreStub) GetByID(ctx context.Context, id string) (*models.Approval, error) {
	if approval, ok := s.approvals[id]; ok {
		clone := *approval
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (s *approvalStoreStub) List(ctx context.Context, filter models.ApprovalFilter) ([]models.Approval, error) {
	s.filter = filter
	result := make([]models.Approval, 0, len(s.approvals))
	for _, approval := range s.approvals {
		result = append(result, *approval)
	}
	return result, nil
}

func (s *approvalStoreStub) AssignApprover(ctx context.Context, id, approverID string) error {
	approval, ok := s.approvals[id]
	if !ok || approval.Status != models.ApprovalStatusPending {
		return sql.ErrNoRows
	}
	approval.CurrentApproverID = &approverID
	approval.Version++
	return nil
}

func (s *approvalStoreStub) AdvanceLevel(ctx context.Context, params repository.AdvanceLevelParams) error {
	approval, ok := s.approvals[params.ID]
	if !ok || approval.Status != models.ApprovalStatusPending || approval.Version != params.ExpectedVersion {
		return sql.ErrNoRows
	}
	approval.CurrentLevel = params.NewLevel
	approval.DueDate = params.DueDate
	approval.CurrentApproverID = nil
	approval.Version++
	return nil
}

func (s *approvalStoreStub) Complete(ctx context.Context, params repository.CompleteParams) error {
	approval, ok := s.approvals[params.ID]
	if !ok || approval.Status != models.ApprovalStatusPending || approval.Version != params.ExpectedVersion {
		return sql.ErrNoRows
	}
	approval.Status = params.Status
	approval.CompletedBy = &params.CompletedBy
	approval.CompletedAt = &params.CompletedAt
	approval.Version++
	return nil
}

type workflowStoreStub struct {
	workflows map[string]*models.ApprovalWorkflow
}

func newWorkflowStoreStub(workflows ...*models.ApprovalWorkflow) *workflowStoreStub {
	stub := &workflowStoreStub{workflows: make(map[string]*models.ApprovalWorkflow)}
	for _, wf := range workflows {
		stub.workflows[wf.ID] = wf
	}
	return stub
}

func (s *workflowStoreStub) FindActiveByType(ctx context.Context, approvalType string) (*models.ApprovalWorkflow, error) {
	for _, wf := range s.workflows {
		if wf.ApprovalType == approvalType && wf.Active {
			return wf, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *workflowStoreStub) GetByID(ctx context.Context, id string) (*models.ApprovalWorkflow, error) {
	if wf, ok := s.workflows[id]; ok {
		return wf, nil
	}
	return nil, sql.ErrNoRows
}

type historyStoreStub struct {
	entries []models.ApprovalHistory
	failing bool
}

func (s *historyStoreStub) Create(ctx context.Context, entry *models.ApprovalHistory) error {
	if s.failing {
		return errors.New("history store down")
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *historyStoreStub) ListByApproval(ctx context.Context, approvalID string) ([]models.ApprovalHistory, error) {
	var result []models.ApprovalHistory
	for _, entry := range s.entries {
		if entry.ApprovalID == approvalID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type notifierStub struct {
	pending   []string
	completed []string
	escalated []string
}

func (n *notifierStub) NotifyPendingApproval(approval *models.Approval, approverID string) {
	n.pending = append(n.pending, approverID)
}

func (n *notifierStub) NotifyCompleted(approval *models.Approval) {
	n.completed = append(n.completed, approval.ID)
}

func (n *notifierStub) NotifyEscalated(approval *models.Approval, approverID string) {
	n.escalated = append(n.escalated, approverID)
}

func twoLevelWorkflow() *models.ApprovalWorkflow {
	return &models.ApprovalWorkflow{
		ID:           "wf-leave",
		Code:         "WF_LEAVE",
		Name:         "Leave Approval",
		ApprovalType: "leave_request",
		TotalLevels:  2,
		Active:       true,
		Levels: []models.ApprovalWorkflowLevel{
			{ID: "lvl-1", WorkflowID: "wf-leave", LevelNumber: 1, Name: "Line Manager", SLAHours: 24},
			{ID: "lvl-2", WorkflowID: "wf-leave", LevelNumber: 2, Name: "HR Head", SLAHours: 48},
		},
	}
}

func newTestApprovalService(repo *approvalStoreStub, workflows *workflowStoreStub, history *historyStoreStub, notifier Notifier) *ApprovalService {
	opts := []ApprovalServiceOption{}
	if notifier != nil {
		opts = append(opts, WithNotifier(notifier))
	}
	return NewApprovalService(repo, workflows, history, nil, opts...)
}

var testMeta = models.RequestMeta{IPAddress: "10.0.0.1", UserAgent: "go-test"}

func TestCreateApprovalResolvesWorkflowAndDueDate(t *testing.T) {
	repo := newApprovalStoreStub()
	history := &historyStoreStub{}
	svc := newTestApprovalService(repo, newWorkflowStoreStub(twoLevelWorkflow()), history, nil)

	before := time.Now().UTC()
	approval, err := svc.CreateApproval(context.Background(), dto.CreateApprovalRequest{
		ApprovableKind: models.ApprovableLeaveRequest,
		ApprovableID:   "leave-1",
		ApprovalType:   "Leave_Request",
		Priority:       models.PriorityHigh,
		RequestData:    []byte(`{"days":3}`),
	}, "user-1", testMeta)
	require.NoError(t, err)

	require.Equal(t, models.ApprovalStatusPending, approval.Status)
	require.Equal(t, 1, approval.CurrentLevel)
	require.Equal(t, 2, approval.TotalLevels)
	require.Equal(t, "leave_request", approval.ApprovalType)
	require.Equal(t, "hr", approval.ModuleName)
	require.Equal(t, int64(1), approval.Version)
	require.NotNil(t, approval.DueDate)
	require.WithinDuration(t, before.Add(24*time.Hour), *approval.DueDate, time.Minute)

	require.Len(t, history.entries, 1)
	require.Equal(t, models.HistoryActionSubmitted, history.entries[0].Action)
	require.Equal(t, "10.0.0.1", history.entries[0].IPAddress)
}

func TestCreateApprovalUnknownTypeFails(t *testing.T) {
	svc := newTestApprovalService(newApprovalStoreStub(), newWorkflowStoreStub(), &historyStoreStub{}, nil)

	_, err := svc.CreateApproval(context.Background(), dto.CreateApprovalRequest{
		ApprovableKind: models.ApprovableLeaveRequest,
		ApprovableID:   "leave-1",
		ApprovalType:   "leave_request",
	}, "user-1", testMeta)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrWorkflowNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubmitAssignsApproverAndNotifies(t *testing.T) {
	repo := newApprovalStoreStub()
	history := &historyStoreStub{}
	notifier := &notifierStub{}
	svc := newTestApprovalService(repo, newWorkflowStoreStub(twoLevelWorkflow()), history, notifier)

	approval, err := svc.CreateApproval(context.Background(), dto.CreateApprovalRequest{
		ApprovableKind: models.ApprovableLeaveRequest,
		ApprovableID:   "leave-1",
		ApprovalType:   "leave_request",
	}, "user-1", testMeta)
	require.NoError(t, err)

	updated, err := svc.SubmitForApproval(context.Background(), approval.ID, "mgr-1", "", "user-1", testMeta)
	require.NoError(t, err)
	require.NotNil(t, updated.CurrentApproverID)
	require.Equal(t, "mgr-1", *updated.CurrentApproverID)
	require.Equal(t, int64(2), updated.Version)
	require.Equal(t, []string{"mgr-1"}, notifier.pending)
	require.Equal(t, models.HistoryActionAssigned, history.entries[len(history.entries)-1].Action)
}

func TestApproveAdvancesThenFinalizes(t *testing.T) {
	repo := newApprovalStoreStub()
	history := &historyStoreStub{}
	notifier := &notifierStub{}
	svc := newTestApprovalService(repo, newWorkflowStoreStub(twoLevelWorkflow()), history, notifier)

	approval, err := svc.CreateApproval(context.Background(), dto.CreateApprovalRequest{
		ApprovableKind: models.ApprovableLeaveRequest,
		ApprovableID:   "leave-1",
		ApprovalType:   "leave_request",
	}, "user-1", testMeta)
	require.NoError(t, err)
	approval, err = svc.SubmitForApproval(context.Background(), approval.ID, "mgr-1", "", "user-1", testMeta)
	require.NoError(t, err)

	before := time.Now().UTC()
	approval, err = svc.ApproveRequest(context.Background(), approval.ID, "mgr-1", approval.Version, "fine by me", testMeta)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusPending, approval.Status)
	require.Equal(t, 2, approval.CurrentLevel)
	require.Nil(t, approval.CurrentApproverID)
	require.NotNil(t, approval.DueDate)
	require.WithinDuration(t, before.Add(48*time.Hour), *approval.DueDate, time.Minute)

	last := history.entries[len(history.entries)-1]
	require.Equal(t, models.HistoryActionLevelCompleted, last.Action)
	require.Equal(t, 1, last.Level)
	require.Equal(t, "fine by me", *last.Comments)
	require.Empty(t, notifier.completed)

	approval, err = svc.SubmitForApproval(context.Background(), approval.ID, "hr-1", "", "user-1", testMeta)
	require.NoError(t, err)
	approval, err = svc.ApproveRequest(context.Background(), approval.ID, "hr-1", approval.Version, "", testMeta)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusApproved, approval.Status)
	require.NotNil(t, approval.CompletedBy)
	require.Equal(t, "hr-1", *approval.CompletedBy)
	require.NotNil(t, approval.CompletedAt)
	require.Equal(t, []string{approval.ID}, notifier.completed)

	final := history.entries[len(history.entries)-1]
	require.Equal(t, models.HistoryActionApproved, final.Action)
	require.Equal(t, 2, final.Level)
}

func TestApproveSingleLevelFastPath(t *testing.T) {
	workflow := &models.ApprovalWorkflow{
		ID:           "wf-claim",
		Code:         "WF_CLAIM",
		Name:         "Claim Approval",
		ApprovalType: "claim_submission",
		TotalLevels:  1,
		Active:       true,
		Levels: []models.ApprovalWorkflowLevel{
			{ID: "lvl-1", WorkflowID: "wf-claim", LevelNumber: 1, Name: "Claims Officer", SLAHours: 24},
		},
	}
	repo := newApprovalStoreStub()
	svc := newTestApprovalService(repo, newWorkflowStoreStub(workflow), &historyStoreStub{}, nil)

	approval, err := svc.CreateApproval(context.Background(), dto.CreateApprovalRequest{
		ApprovableKind: models.ApprovableClaimSubmission,
		ApprovableID:   "claim-1",
		ApprovalType:   "claim_submission",
	}, "user-1", testMeta)
	require.NoError(t, err)
	approval, err = svc.SubmitForApproval(context.Background(), approval.ID, "officer-1", "", "user-1", testMeta)
	require.NoError(t, err)

	approval, err = svc.ApproveRequest(context.Background(), approval.ID, "officer-1", approval.Version, "", testMeta)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusApproved, approval.Status)
	require.Equal(t, "claims", approval.ModuleName)
}

func TestApproveUnauthorizedActorLeavesNoTrace(t *testing.T) {
	repo := newApprovalStoreStub()
	history := &historyStoreStub{}
	svc := newTestApprovalService(repo, newWorkflowStoreStub(twoLevelWorkflow()), history, nil)

	approval, err := svc.CreateApproval(context.Background(), dto.CreateApprovalRequest{
		ApprovableKind: models.ApprovableLeaveRequest,
		ApprovableID:   "leave-1",
		ApprovalType:   "leave_request",
	}, "user-1", testMeta)
	require.NoError(t, err)
	approval, err = svc.SubmitForApproval(context.Background(), approval.ID, "mgr-1", "", "user-1", testMeta)
	require.NoError(t, err)

	entriesBefore := len(history.entries)
	_, err = svc.ApproveRequest(context.Background(), approval.ID, "intruder", approval.Version, "", testMeta)
	require.ErrorIs(t, err, appErrors.ErrUnauthorizedApprover)

	stored, err := repo.GetByID(context.Background(), approval.ID)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusPending, stored.Status)
	require.Equal(t, 1, stored.CurrentLevel)
	require.Len(t, history.entries, entriesBefore)
}

func TestApproveVersionMismatch(t *testing.T) {
	repo := newApprovalStoreStub()
	svc := newTestApprovalService(repo, newWorkflowStoreStub(twoLevelWorkflow()), &historyStoreStub{}, nil)

	approval, err := svc.CreateApproval(context.Background(), dto.CreateApprovalRequest{
		ApprovableKind: models.ApprovableLeaveRequest,
		ApprovableID:   "leave-1",
		ApprovalType:   "leave_request",
	}, "user-1", testMeta)
	require.NoError(t, err)
	approval, err = svc.SubmitForApproval(context.Background(), approval.ID, "mgr-1", "", "user-1", testMeta)
	require.NoError(t, err)

	_, err = svc.ApproveRequest(context.Background(), approval.ID, "mgr-1", approval.Version-1, "", testMeta)
	require.ErrorIs(t, err, appErrors.ErrConcurrentModification)
}

func TestRejectRecordsReasonAndCommentsVerbatim(t *testing.T) {
	repo := newApprovalStoreStub()
	history := &historyStoreStub{}
	notifier := &notifierStub{}
	svc := newTestApprovalService(repo, newWorkflowStoreStub(twoLevelWorkflow()), history, notifier)

	approval, err := svc.CreateApproval(context.Background(), dto.CreateApprovalRequest{
		ApprovableKind: models.ApprovableLeaveRequest,
		ApprovableID:   "leave-1",
		ApprovalType:   "leave_request",
	}, "user-1", testMeta)
	require.NoError(t, err)
	approval, err = svc.SubmitForApproval(context.Background(), approval.ID, "mgr-1", "", "user-1", testMeta)
	require.NoError(t, err)

	approval, err = svc.RejectRequest(context.Background(), approval.ID, "mgr-1", approval.Version,
		"insufficient leave balance", "see policy 4.2", testMeta)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusRejected, approval.Status)

	last := history.entries[len(history.entries)-1]
	require.Equal(t, models.HistoryActionRejected, last.Action)
	require.Equal(t, "insufficient leave balance", *last.RejectionReason)
	require.Equal(t, "see policy 4.2", *last.Comments)
	require.Equal(t, []string{approval.ID}, notifier.completed)

	// Rejection is terminal at any level.
	_, err = svc.ApproveRequest(context.Background(), approval.ID, "mgr-1", approval.Version, "", testMeta)
	require.ErrorIs(t, err, appErrors.ErrApprovalFinalized)
}

func TestRejectRequiresReason(t *testing.T) {
	svc := newTestApprovalService(newApprovalStoreStub(), newWorkflowStoreStub(), &historyStoreStub{}, nil)
	_, err := svc.RejectRequest(context.Background(), "apr-1", "mgr-1", 1, "  ", "", testMeta)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEscalateReassignsAndStaysPending(t *testing.T) {
	repo := newApprovalStoreStub()
	history := &historyStoreStub{}
	notifier := &notifierStub{}
	svc := newTestApprovalService(repo, newWorkflowStoreStub(twoLevelWorkflow()), history, notifier)

	approval, err := svc.CreateApproval(context.Background(), dto.CreateApprovalRequest{
		ApprovableKind: models.ApprovableLeaveRequest,
		ApprovableID:   "leave-1",
		ApprovalType:   "leave_request",
	}, "user-1", testMeta)
	require.NoError(t, err)
	approval, err = svc.SubmitForApproval(context.Background(), approval.ID, "mgr-1", "", "user-1", testMeta)
	require.NoError(t, err)

	approval, err = svc.Escalate(context.Background(), approval.ID, "admin-1", "director-1", "manager unavailable", testMeta)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusPending, approval.Status)
	require.Equal(t, 1, approval.CurrentLevel)
	require.Equal(t, "director-1", *approval.CurrentApproverID)
	require.Equal(t, []string{"director-1"}, notifier.escalated)
	require.Equal(t, models.HistoryActionEscalated, history.entries[len(history.entries)-1].Action)
}

func TestCommentDoesNotChangeState(t *testing.T) {
	repo := newApprovalStoreStub()
	history := &historyStoreStub{}
	svc := newTestApprovalService(repo, newWorkflowStoreStub(twoLevelWorkflow()), history, nil)

	approval, err := svc.CreateApproval(context.Background(), dto.CreateApprovalRequest{
		ApprovableKind: models.ApprovableLeaveRequest,
		ApprovableID:   "leave-1",
		ApprovalType:   "leave_request",
	}, "user-1", testMeta)
	require.NoError(t, err)

	require.NoError(t, svc.Comment(context.Background(), approval.ID, "hr-1", "please attach the medical report", testMeta))

	stored, err := repo.GetByID(context.Background(), approval.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stored.Version)
	last := history.entries[len(history.entries)-1]
	require.Equal(t, models.HistoryActionCommented, last.Action)
	require.Equal(t, "please attach the medical report", *last.Comments)
}

func TestHistoryFailureDoesNotFailOperation(t *testing.T) {
	repo := newApprovalStoreStub()
	history := &historyStoreStub{failing: true}
	svc := newTestApprovalService(repo, newWorkflowStoreStub(twoLevelWorkflow()), history, nil)

	approval, err := svc.CreateApproval(context.Background(), dto.CreateApprovalRequest{
		ApprovableKind: models.ApprovableLeaveRequest,
		ApprovableID:   "leave-1",
		ApprovalType:   "leave_request",
	}, "user-1", testMeta)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusPending, approval.Status)
}

func TestListPassesFiltersThrough(t *testing.T) {
	repo := newApprovalStoreStub()
	svc := newTestApprovalService(repo, newWorkflowStoreStub(), &historyStoreStub{}, nil)

	_, err := svc.List(context.Background(), dto.ApprovalQuery{
		Status:      []models.ApprovalStatus{models.ApprovalStatusPending},
		ModuleName:  "hr",
		OverdueOnly: true,
	})
	require.NoError(t, err)
	require.Equal(t, "hr", repo.filter.ModuleName)
	require.True(t, repo.filter.OverdueOnly)
	require.Equal(t, []models.ApprovalStatus{models.ApprovalStatusPending}, repo.filter.Status)
}
