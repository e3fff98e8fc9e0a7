package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/SOL-ICT/hrm-erp-sub019/internal/middleware"
	"github.com/SOL-ICT/hrm-erp-sub019/internal/models"
	"github.com/SOL-ICT/hrm-erp-sub019/internal/repository"
	"github.com/SOL-ICT/hrm-erp-sub019/internal/service"
)

type approvalStoreStub struct {
	approvals map[string]*models.Approval
}

func newApprovalStoreStub() *approvalStoreStub {
	return &approvalStoreStub{approvals: make(map[string]*models.Approval)}
}

func (s *approvalStoreStub) Create(ctx context.Context, approval *models.Approval) error {
	if approval.ID == "" {
		approval.ID = fmt.Sprintf("apr-%d", len(s.approvals)+1)
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
	workflow *models.ApprovalWorkflow
}

func (s *workflowStoreStub) FindActiveByType(ctx context.Context, approvalType string) (*models.ApprovalWorkflow, error) {
	if s.workflow != nil && s.workflow.ApprovalType == approvalType {
		return s.workflow, nil
	}
	return nil, sql.ErrNoRows
}

func (s *workflowStoreStub) GetByID(ctx context.Context, id string) (*models.ApprovalWorkflow, error) {
	if s.workflow != nil && s.workflow.ID == id {
		return s.workflow, nil
	}
	return nil, sql.ErrNoRows
}

type historyStoreStub struct {
	entries []models.ApprovalHistory
}

func (s *historyStoreStub) Create(ctx context.Context, entry *models.ApprovalHistory) error {
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

func testWorkflow() *models.ApprovalWorkflow {
	return &models.ApprovalWorkflow{
		ID:           "wf-leave",
		Code:         "WF_LEAVE",
		Name:         "Leave Approval",
		ApprovalType: "leave_request",
		TotalLevels:  1,
		Active:       true,
		Levels: []models.ApprovalWorkflowLevel{
			{ID: "lvl-1", WorkflowID: "wf-leave", LevelNumber: 1, Name: "Line Manager", SLAHours: 24},
		},
	}
}

func testClaims(c *gin.Context) {
	userID := c.GetHeader("X-Test-User")
	if userID == "" {
		c.Next()
		return
	}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID: userID,
		Role:   models.UserRole(c.GetHeader("X-Test-Role")),
	})
	c.Next()
}

func buildApprovalRouter(store *approvalStoreStub, history *historyStoreStub) *gin.Engine {
	gin.SetMode(gin.TestMode)

	approvalSvc := service.NewApprovalService(store, &workflowStoreStub{workflow: testWorkflow()}, history, nil)
	exportSvc := service.NewExportService(approvalSvc, nil, nil, nil)
	h := NewApprovalHandler(approvalSvc, exportSvc)

	router := gin.New()
	router.Use(testClaims)
	approvals := router.Group("/approvals")
	approvals.POST("", h.Create)
	approvals.GET("", h.List)
	approvals.GET("/:id", h.Get)
	approvals.POST("/:id/submit", h.Submit)
	approvals.POST("/:id/approve", h.Approve)
	approvals.POST("/:id/reject", h.Reject)
	approvals.POST("/:id/comment", h.Comment)
	approvals.GET("/:id/history", h.History)
	approvals.GET("/:id/history/export", h.ExportHistory)
	return router
}

func performRequest(router *gin.Engine, method, path, user, role string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req, _ = http.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
		req.Header.Set("X-Test-Role", role)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestApprovalRoutesLifecycle(t *testing.T) {
	store := newApprovalStoreStub()
	history := &historyStoreStub{}
	router := buildApprovalRouter(store, history)

	resp := performRequest(router, http.MethodPost, "/approvals", "user-1", "STAFF",
		`{"approvableKind":"LEAVE_REQUEST","approvableId":"leave-1","approvalType":"leave_request"}`)
	require.Equal(t, http.StatusCreated, resp.Code)

	var created struct {
		Data models.Approval `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	id := created.Data.ID
	require.NotEmpty(t, id)
	require.Equal(t, models.ApprovalStatusPending, created.Data.Status)

	resp = performRequest(router, http.MethodPost, "/approvals/"+id+"/submit", "user-1", "MANAGER",
		`{"approverId":"mgr-1"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = performRequest(router, http.MethodPost, "/approvals/"+id+"/approve", "mgr-1", "MANAGER",
		`{"version":2,"comments":"ok"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	var approved struct {
		Data models.Approval `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &approved))
	require.Equal(t, models.ApprovalStatusApproved, approved.Data.Status)

	resp = performRequest(router, http.MethodGet, "/approvals/"+id+"/history", "user-1", "STAFF", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"submitted"`)
	require.Contains(t, resp.Body.String(), `"approved"`)
}

func TestApprovalRoutesRequireAuth(t *testing.T) {
	router := buildApprovalRouter(newApprovalStoreStub(), &historyStoreStub{})

	resp := performRequest(router, http.MethodPost, "/approvals", "", "",
		`{"approvableKind":"LEAVE_REQUEST","approvableId":"leave-1","approvalType":"leave_request"}`)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestApproveWrongActorForbidden(t *testing.T) {
	store := newApprovalStoreStub()
	router := buildApprovalRouter(store, &historyStoreStub{})

	resp := performRequest(router, http.MethodPost, "/approvals", "user-1", "STAFF",
		`{"approvableKind":"LEAVE_REQUEST","approvableId":"leave-1","approvalType":"leave_request"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	var created struct {
		Data models.Approval `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	id := created.Data.ID

	resp = performRequest(router, http.MethodPost, "/approvals/"+id+"/submit", "user-1", "MANAGER",
		`{"approverId":"mgr-1"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = performRequest(router, http.MethodPost, "/approvals/"+id+"/approve", "intruder", "STAFF",
		`{"version":2}`)
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestRejectVersionConflict(t *testing.T) {
	store := newApprovalStoreStub()
	router := buildApprovalRouter(store, &historyStoreStub{})

	resp := performRequest(router, http.MethodPost, "/approvals", "user-1", "STAFF",
		`{"approvableKind":"LEAVE_REQUEST","approvableId":"leave-1","approvalType":"leave_request"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	var created struct {
		Data models.Approval `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	id := created.Data.ID

	resp = performRequest(router, http.MethodPost, "/approvals/"+id+"/submit", "user-1", "MANAGER",
		`{"approverId":"mgr-1"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = performRequest(router, http.MethodPost, "/approvals/"+id+"/reject", "mgr-1", "MANAGER",
		`{"version":1,"reason":"stale decision"}`)
	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestCreateApprovalUnknownTypeUnprocessable(t *testing.T) {
	router := buildApprovalRouter(newApprovalStoreStub(), &historyStoreStub{})

	resp := performRequest(router, http.MethodPost, "/approvals", "user-1", "STAFF",
		`{"approvableKind":"CONTRACT","approvableId":"c-1","approvalType":"contract_approval"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestExportHistoryCSVDownload(t *testing.T) {
	store := newApprovalStoreStub()
	router := buildApprovalRouter(store, &historyStoreStub{})

	resp := performRequest(router, http.MethodPost, "/approvals", "user-1", "STAFF",
		`{"approvableKind":"LEAVE_REQUEST","approvableId":"leave-1","approvalType":"leave_request"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	var created struct {
		Data models.Approval `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))

	resp = performRequest(router, http.MethodGet, "/approvals/"+created.Data.ID+"/history/export?format=csv", "user-1", "STAFF", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "text/csv", resp.Header().Get("Content-Type"))
	require.Contains(t, resp.Header().Get("Content-Disposition"), "attachment")
	require.Contains(t, resp.Body.String(), "Action,Actor,Level")
}
