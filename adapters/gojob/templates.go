package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-channels/core"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

const (
	templateSyncScriptPath   = "channels.templates.sync"
	templateSyncDedupPolicy  = "drop"
	paramChannelID           = "channel_id"
	defaultTemplateSyncBatch = 100
)

// TemplateSyncService is the slice of core.Service the resync jobs need.
type TemplateSyncService interface {
	TemplateSyncDue(ctx context.Context, limit int) ([]core.Channel, error)
	SyncTemplates(ctx context.Context, channelID string) (core.TemplateSyncResult, error)
}

// TemplateSyncScheduler enqueues one resync job per channel whose template
// cache went stale.
type TemplateSyncScheduler struct {
	service  TemplateSyncService
	enqueuer core.JobEnqueuer
	logger   core.Logger
	batch    int
	now      core.Clock
}

type SchedulerOption func(*TemplateSyncScheduler)

func WithSchedulerBatch(limit int) SchedulerOption {
	return func(s *TemplateSyncScheduler) {
		if limit > 0 {
			s.batch = limit
		}
	}
}

func WithSchedulerLogger(logger core.Logger) SchedulerOption {
	return func(s *TemplateSyncScheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSchedulerClock(clock core.Clock) SchedulerOption {
	return func(s *TemplateSyncScheduler) {
		if clock != nil {
			s.now = clock
		}
	}
}

func NewTemplateSyncScheduler(
	service TemplateSyncService,
	enqueuer core.JobEnqueuer,
	opts ...SchedulerOption,
) *TemplateSyncScheduler {
	scheduler := &TemplateSyncScheduler{
		service:  service,
		enqueuer: enqueuer,
		logger:   glog.Nop(),
		batch:    defaultTemplateSyncBatch,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(scheduler)
		}
	}
	return scheduler
}

// ScheduleDue enqueues stale channels and returns how many jobs were accepted.
// A failed enqueue is logged and skipped so one bad channel cannot stall the batch.
func (s *TemplateSyncScheduler) ScheduleDue(ctx context.Context) (int, error) {
	if s == nil || s.service == nil || s.enqueuer == nil {
		return 0, fmt.Errorf("gojob: template sync scheduler is not configured")
	}
	channels, err := s.service.TemplateSyncDue(ctx, s.batch)
	if err != nil {
		return 0, err
	}
	window := s.now().UTC().Truncate(time.Hour).Format("2006010215")
	enqueued := 0
	for _, channel := range channels {
		msg := TemplateSyncMessage(channel.ID, window)
		if err := s.enqueuer.Enqueue(ctx, msg); err != nil {
			s.logger.WithContext(ctx).Warn("template sync enqueue failed",
				"channel_id", channel.ID,
				"error", err.Error(),
			)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

// TemplateSyncMessage builds the job message for one channel. The window
// scopes the idempotency key so repeated scheduling inside it is dropped.
func TemplateSyncMessage(channelID string, window string) *core.JobExecutionMessage {
	channelID = strings.TrimSpace(channelID)
	key := JobIDTemplateSync + ":" + channelID
	if window = strings.TrimSpace(window); window != "" {
		key += ":" + window
	}
	return &core.JobExecutionMessage{
		JobID:          JobIDTemplateSync,
		ScriptPath:     templateSyncScriptPath,
		Parameters:     map[string]any{paramChannelID: channelID},
		IdempotencyKey: key,
		DedupPolicy:    templateSyncDedupPolicy,
	}
}

// TemplateSyncWorker consumes resync jobs.
type TemplateSyncWorker struct {
	service  TemplateSyncService
	dequeuer core.JobDequeuer
	policy   RetryPolicy
	logger   core.Logger
}

func NewTemplateSyncWorker(
	service TemplateSyncService,
	dequeuer core.JobDequeuer,
	policy RetryPolicy,
	logger core.Logger,
) *TemplateSyncWorker {
	if logger == nil {
		logger = glog.Nop()
	}
	return &TemplateSyncWorker{
		service:  service,
		dequeuer: dequeuer,
		policy:   policy,
		logger:   logger,
	}
}

// ProcessNext dequeues a single delivery and handles it.
func (w *TemplateSyncWorker) ProcessNext(ctx context.Context) error {
	if w == nil || w.dequeuer == nil {
		return fmt.Errorf("gojob: template sync worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	return w.Handle(ctx, delivery)
}

// Handle runs the sync for a delivery. Success, a recorded sync failure and
// a vanished channel are acked; anything else is nacked for retry.
func (w *TemplateSyncWorker) Handle(ctx context.Context, delivery core.JobDelivery) error {
	if w == nil || w.service == nil {
		return fmt.Errorf("gojob: template sync worker is not configured")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	msg := delivery.Message()
	channelID := channelIDFromMessage(msg)
	if channelID == "" {
		return delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "missing channel_id parameter",
		})
	}

	result, err := w.service.SyncTemplates(ctx, channelID)
	if err == nil {
		if result.Outcome == core.SyncOutcomeFailed {
			w.logger.WithContext(ctx).Warn("template sync recorded failure",
				"channel_id", channelID,
				"reason", result.FailureReason,
			)
		}
		return delivery.Ack(ctx)
	}
	if isNotFound(err) {
		w.logger.WithContext(ctx).Warn("template sync skipped, channel gone", "channel_id", channelID)
		return delivery.Ack(ctx)
	}

	attempt := attemptFromMessage(msg) + 1
	opts := core.JobNackOptions{
		Delay:   w.policy.BackoffFor(attempt),
		Requeue: true,
		Reason:  err.Error(),
	}
	if adapter, ok := delivery.(*DeliveryAdapter); ok {
		return adapter.NackForAttempt(ctx, opts, attempt)
	}
	return delivery.Nack(ctx, w.policy.NormalizeAttempt(opts, attempt))
}

func channelIDFromMessage(msg *core.JobExecutionMessage) string {
	if msg == nil {
		return ""
	}
	value, _ := msg.Parameters[paramChannelID].(string)
	return strings.TrimSpace(value)
}

func attemptFromMessage(msg *core.JobExecutionMessage) int {
	if msg == nil {
		return 0
	}
	switch value := msg.Parameters["attempt"].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	}
	return 0
}

func isNotFound(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryNotFound
	}
	return false
}
