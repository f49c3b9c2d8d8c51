package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/labelforge/labelforge-api/internal/workflow"
	"github.com/labelforge/labelforge-api/pkg/jobs"
)

type jobCardStatusWriter interface {
	UpdatePrepressStatus(ctx context.Context, id, status string) error
}

type lifecycleEvent struct {
	JobCardID string
	Status    workflow.Status
	Remark    string
	ActorID   string
}

// QueueNotifier delivers lifecycle notifications to the owning job card
// through a background worker pool, keeping the engine's write path free of
// cross-module latency.
type QueueNotifier struct {
	queue   *jobs.Queue
	cards   jobCardStatusWriter
	metrics *MetricsService
	logger  *zap.Logger
}

// QueueNotifierConfig tunes worker pool behaviour.
type QueueNotifierConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NewQueueNotifier constructs the notifier. Metrics are optional.
func NewQueueNotifier(cards jobCardStatusWriter, cfg QueueNotifierConfig, metrics *MetricsService, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	n := &QueueNotifier{
		cards:   cards,
		metrics: metrics,
		logger:  logger,
	}
	n.queue = jobs.NewQueue("lifecycle-notify", n.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return n
}

// Start launches the worker pool.
func (n *QueueNotifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the worker pool.
func (n *QueueNotifier) Stop() {
	n.queue.Stop()
}

// Notify implements LifecycleNotifier by enqueueing a sync job.
func (n *QueueNotifier) Notify(ctx context.Context, jobCardID string, status workflow.Status, remark, actorID string) error {
	return n.queue.Enqueue(jobs.Job{
		ID:   uuid.NewString(),
		Type: "jobcard.prepress_status",
		Payload: lifecycleEvent{
			JobCardID: jobCardID,
			Status:    status,
			Remark:    remark,
			ActorID:   actorID,
		},
	})
}

func (n *QueueNotifier) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(lifecycleEvent)
	if !ok {
		n.logger.Error("discarding notification with unexpected payload",
			zap.String("job_id", job.ID),
			zap.String("type", job.Type))
		return nil
	}

	if err := n.cards.UpdatePrepressStatus(ctx, event.JobCardID, string(event.Status)); err != nil {
		n.metrics.RecordNotification("retry")
		return fmt.Errorf("sync job card %s: %w", event.JobCardID, err)
	}

	n.metrics.RecordNotification("delivered")
	n.logger.Debug("job card prepress status synced",
		zap.String("job_card_id", event.JobCardID),
		zap.String("status", string(event.Status)),
		zap.String("actor_id", event.ActorID))
	return nil
}
