package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labelforge/labelforge-api/internal/dto"
	"github.com/labelforge/labelforge-api/internal/models"
	"github.com/labelforge/labelforge-api/internal/repository"
	"github.com/labelforge/labelforge-api/internal/workflow"
)

type statsRepoStub struct {
	counts     []models.StatusCount
	designers  int
	turnaround *repository.TurnaroundStats
}

func (s *statsRepoStub) StatusCounts(ctx context.Context, filter models.StatisticsFilter) ([]models.StatusCount, error) {
	return s.counts, nil
}

func (s *statsRepoStub) ActiveDesignerCount(ctx context.Context) (int, error) {
	return s.designers, nil
}

func (s *statsRepoStub) AverageTurnaround(ctx context.Context, filter models.StatisticsFilter) (*repository.TurnaroundStats, error) {
	return s.turnaround, nil
}

func TestStatisticsSnapshotAggregates(t *testing.T) {
	avg := 36.5
	repo := &statsRepoStub{
		counts: []models.StatusCount{
			{Status: workflow.StatusInProgress, Count: 4},
			{Status: workflow.StatusCompleted, Count: 10},
		},
		designers:  3,
		turnaround: &repository.TurnaroundStats{AvgHours: &avg, SampleSize: 10},
	}
	svc := NewStatisticsService(repo, nil, time.Minute, nil)

	stats, cached, err := svc.Snapshot(context.Background(), dto.StatisticsQuery{})
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 14, stats.TotalJobs)
	require.Equal(t, 4, stats.ByStatus[string(workflow.StatusInProgress)])
	require.Equal(t, 10, stats.ByStatus[string(workflow.StatusCompleted)])
	// statuses with no jobs are reported as explicit zeroes
	require.Contains(t, stats.ByStatus, string(workflow.StatusPending))
	require.Zero(t, stats.ByStatus[string(workflow.StatusPending)])
	require.Equal(t, 3, stats.ActiveDesigners)
	require.NotNil(t, stats.AvgTurnaroundHours)
	require.InDelta(t, 36.5, *stats.AvgTurnaroundHours, 0.001)
	require.Equal(t, 10, stats.TurnaroundSampleSize)
}

func TestStatisticsSnapshotNoCompletedJobs(t *testing.T) {
	repo := &statsRepoStub{turnaround: &repository.TurnaroundStats{}}
	svc := NewStatisticsService(repo, nil, time.Minute, nil)

	stats, _, err := svc.Snapshot(context.Background(), dto.StatisticsQuery{})
	require.NoError(t, err)
	require.Zero(t, stats.TotalJobs)
	require.Nil(t, stats.AvgTurnaroundHours)
	require.Zero(t, stats.TurnaroundSampleSize)
}
