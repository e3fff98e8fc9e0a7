package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/SOL-ICT/hrm-erp-sub019/internal/models"
	appErrors "github.com/SOL-ICT/hrm-erp-sub019/pkg/errors"
)

const (
	dashboardCacheKey        = "dashboard:summary"
	dashboardCacheKeyPattern = "dashboard:*"
)

type approvalStatsStore interface {
	CountByStatus(ctx context.Context) ([]models.ApprovalStatusCount, error)
	CountOverdue(ctx context.Context) (int, error)
	CountPendingByModule(ctx context.Context) ([]models.ApprovalGroupCount, error)
	CountPendingByPriority(ctx context.Context) ([]models.ApprovalGroupCount, error)
}

// DashboardService aggregates approval counts for the reporting dashboard.
// Summaries are cached; approval transitions invalidate the cache.
type DashboardService struct {
	repo     approvalStatsStore
	cache    *CacheService
	metrics  *MetricsService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs the service.
func NewDashboardService(repo approvalStatsStore, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, cache: cache, metrics: metrics, cacheTTL: cacheTTL, logger: logger}
}

// Summary returns the dashboard aggregation, served from cache when warm.
func (s *DashboardService) Summary(ctx context.Context) (*models.ApprovalDashboardSummary, error) {
	if s.cache.Enabled() {
		var cached models.ApprovalDashboardSummary
		if hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	summary, err := s.build(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard summary", zap.Error(err))
		}
	}
	return summary, nil
}

func (s *DashboardService) build(ctx context.Context) (*models.ApprovalDashboardSummary, error) {
	statusCounts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approvals by status")
	}
	overdue, err := s.repo.CountOverdue(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count overdue approvals")
	}
	byModule, err := s.repo.CountPendingByModule(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approvals by module")
	}
	byPriority, err := s.repo.CountPendingByPriority(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approvals by priority")
	}

	summary := &models.ApprovalDashboardSummary{
		Overdue:     overdue,
		ByModule:    make(map[string]int, len(byModule)),
		ByPriority:  make(map[string]int, len(byPriority)),
		GeneratedAt: time.Now().UTC(),
	}
	for _, row := range statusCounts {
		switch row.Status {
		case models.ApprovalStatusPending:
			summary.Pending = row.Count
		case models.ApprovalStatusApproved:
			summary.Approved = row.Count
		case models.ApprovalStatusRejected:
			summary.Rejected = row.Count
		}
	}
	for _, row := range byModule {
		summary.ByModule[row.Key] = row.Count
	}
	for _, row := range byPriority {
		summary.ByPriority[row.Key] = row.Count
	}

	if s.metrics != nil {
		s.metrics.SetOverdueApprovals(overdue)
	}
	return summary, nil
}
