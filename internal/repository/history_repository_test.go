package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/SOL-ICT/hrm-erp-sub019/internal/models"
)

func newHistoryRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestHistoryRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newHistoryRepoMock(t)
	defer cleanup()

	repo := NewHistoryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approval_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	pending := models.ApprovalStatusPending
	entry := &models.ApprovalHistory{
		ApprovalID: "apr-1",
		Action:     models.HistoryActionSubmitted,
		ActionBy:   "user-1",
		Level:      1,
		ToStatus:   &pending,
		IPAddress:  "10.0.0.1",
		UserAgent:  "curl/8.0",
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.ActionAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepositoryListByApprovalOrder(t *testing.T) {
	db, mock, cleanup := newHistoryRepoMock(t)
	defer cleanup()

	repo := NewHistoryRepository(db)
	base := time.Now().Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"id", "approval_id", "action", "action_by", "action_at", "level", "from_status", "to_status", "comments", "rejection_reason", "ip_address", "user_agent"}).
		AddRow("h-1", "apr-1", "submitted", "user-1", base, 1, nil, "PENDING", nil, nil, "10.0.0.1", "curl/8.0").
		AddRow("h-2", "apr-1", "level_completed", "mgr-1", base.Add(10*time.Minute), 1, "PENDING", "PENDING", nil, nil, "10.0.0.2", "curl/8.0").
		AddRow("h-3", "apr-1", "approved", "hr-1", base.Add(20*time.Minute), 2, "PENDING", "APPROVED", "ok", nil, "10.0.0.3", "curl/8.0")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, approval_id, action")).
		WithArgs("apr-1").
		WillReturnRows(rows)

	entries, err := repo.ListByApproval(context.Background(), "apr-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, models.HistoryActionSubmitted, entries[0].Action)
	require.Equal(t, models.HistoryActionLevelCompleted, entries[1].Action)
	require.Equal(t, models.HistoryActionApproved, entries[2].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}
