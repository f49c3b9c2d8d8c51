package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/labelforge/labelforge-api/internal/dto"
	"github.com/labelforge/labelforge-api/internal/models"
	"github.com/labelforge/labelforge-api/internal/repository"
	"github.com/labelforge/labelforge-api/internal/workflow"
	appErrors "github.com/labelforge/labelforge-api/pkg/errors"
)

type statisticsRepository interface {
	StatusCounts(ctx context.Context, filter models.StatisticsFilter) ([]models.StatusCount, error)
	ActiveDesignerCount(ctx context.Context) (int, error)
	AverageTurnaround(ctx context.Context, filter models.StatisticsFilter) (*repository.TurnaroundStats, error)
}

// StatisticsService composes the read-only HOD dashboard projection over the
// job store. Results are cached when a cache is configured.
type StatisticsService struct {
	repo     statisticsRepository
	cache    *CacheService
	logger   *zap.Logger
	now      func() time.Time
	cacheTTL time.Duration
}

// NewStatisticsService constructs the service.
func NewStatisticsService(repo statisticsRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *StatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &StatisticsService{
		repo:     repo,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
		cacheTTL: cacheTTL,
	}
}

// Snapshot returns per-status counts, the number of designers with open
// work, and the average turnaround. The boolean reports cache utilisation.
func (s *StatisticsService) Snapshot(ctx context.Context, query dto.StatisticsQuery) (*models.PrepressStatistics, bool, error) {
	cacheKey := s.cacheKey(query)
	if s.cache.Enabled() {
		var cached models.PrepressStatistics
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	filter := models.StatisticsFilter{DateFrom: query.DateFrom, DateTo: query.DateTo}

	counts, err := s.repo.StatusCounts(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count jobs by status")
	}

	byStatus := make(map[string]int, len(workflow.Statuses()))
	for _, status := range workflow.Statuses() {
		byStatus[string(status)] = 0
	}
	total := 0
	for _, c := range counts {
		byStatus[string(c.Status)] = c.Count
		total += c.Count
	}

	activeDesigners, err := s.repo.ActiveDesignerCount(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active designers")
	}

	turnaround, err := s.repo.AverageTurnaround(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute turnaround")
	}

	stats := &models.PrepressStatistics{
		TotalJobs:       total,
		ByStatus:        byStatus,
		ActiveDesigners: activeDesigners,
		GeneratedAt:     s.now().UTC(),
	}
	if turnaround != nil {
		stats.AvgTurnaroundHours = turnaround.AvgHours
		stats.TurnaroundSampleSize = turnaround.SampleSize
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, stats, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache statistics", zap.Error(err))
		}
	}

	return stats, false, nil
}

func (s *StatisticsService) cacheKey(query dto.StatisticsQuery) string {
	from, to := "all", "all"
	if query.DateFrom != nil {
		from = query.DateFrom.UTC().Format("2006-01-02")
	}
	if query.DateTo != nil {
		to = query.DateTo.UTC().Format("2006-01-02")
	}
	return fmt.Sprintf("prepress:stats:%s:%s", from, to)
}
