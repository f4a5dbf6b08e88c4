package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-channels/core"

	goerrors "github.com/goliatone/go-errors"
	job "github.com/goliatone/go-job"
)

func TestScheduleDueEnqueuesOneJobPerStaleChannel(t *testing.T) {
	service := &stubSyncService{
		due: []core.Channel{{ID: "ch_1"}, {ID: "ch_2"}},
	}
	enqueuer := &recordingEnqueuer{}
	fixed := time.Date(2026, 3, 4, 10, 42, 0, 0, time.UTC)
	scheduler := NewTemplateSyncScheduler(service, enqueuer,
		WithSchedulerBatch(25),
		WithSchedulerClock(func() time.Time { return fixed }),
	)

	count, err := scheduler.ScheduleDue(context.Background())
	if err != nil {
		t.Fatalf("schedule due: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 enqueued jobs, got %d", count)
	}
	if service.limit != 25 {
		t.Fatalf("expected batch limit 25, got %d", service.limit)
	}
	first := enqueuer.messages[0]
	if first.JobID != JobIDTemplateSync {
		t.Fatalf("expected job id %q, got %q", JobIDTemplateSync, first.JobID)
	}
	if first.Parameters["channel_id"] != "ch_1" {
		t.Fatalf("expected channel id parameter")
	}
	if first.IdempotencyKey != "channels.templates.sync:ch_1:2026030410" {
		t.Fatalf("unexpected idempotency key %q", first.IdempotencyKey)
	}
	if first.DedupPolicy != "drop" {
		t.Fatalf("expected drop dedup policy, got %q", first.DedupPolicy)
	}
}

func TestScheduleDueSkipsFailedEnqueue(t *testing.T) {
	service := &stubSyncService{due: []core.Channel{{ID: "ch_1"}, {ID: "ch_2"}}}
	enqueuer := &recordingEnqueuer{failFor: "ch_1"}
	scheduler := NewTemplateSyncScheduler(service, enqueuer)

	count, err := scheduler.ScheduleDue(context.Background())
	if err != nil {
		t.Fatalf("schedule due: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 enqueued job, got %d", count)
	}
}

func TestScheduleDueThroughGoJobEnqueuer(t *testing.T) {
	service := &stubSyncService{due: []core.Channel{{ID: "ch_9"}}}
	raw := &stubQueueEnqueuer{}
	scheduler := NewTemplateSyncScheduler(service, NewEnqueuerAdapter(raw))

	if _, err := scheduler.ScheduleDue(context.Background()); err != nil {
		t.Fatalf("schedule due: %v", err)
	}
	if raw.last == nil || raw.last.DedupPolicy != job.DeduplicationPolicy("drop") {
		t.Fatalf("expected go-job message with drop policy")
	}
}

func TestWorkerHandleOutcomes(t *testing.T) {
	notFound := goerrors.New("channel not found", goerrors.CategoryNotFound)

	tests := []struct {
		name        string
		result      core.TemplateSyncResult
		err         error
		wantAck     bool
		wantRequeue bool
	}{
		{name: "replaced", result: core.TemplateSyncResult{Outcome: core.SyncOutcomeReplaced}, wantAck: true},
		{name: "recorded failure", result: core.TemplateSyncResult{Outcome: core.SyncOutcomeFailed, FailureReason: "boom"}, wantAck: true},
		{name: "channel gone", err: notFound, wantAck: true},
		{name: "store error", err: errors.New("connection refused"), wantRequeue: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubSyncService{result: tc.result, err: tc.err}
			raw := &stubQueueDelivery{msg: ToExecutionMessage(TemplateSyncMessage("ch_1", ""))}
			w := NewTemplateSyncWorker(service, nil, DefaultRetryPolicy(), nil)

			if err := w.Handle(context.Background(), NewDeliveryAdapter(raw, DefaultRetryPolicy())); err != nil {
				t.Fatalf("handle: %v", err)
			}
			if service.synced != "ch_1" {
				t.Fatalf("expected sync for ch_1, got %q", service.synced)
			}
			if raw.acked != tc.wantAck {
				t.Fatalf("expected acked=%v", tc.wantAck)
			}
			if raw.nackOpts.Requeue != tc.wantRequeue {
				t.Fatalf("expected requeue=%v", tc.wantRequeue)
			}
			if tc.wantRequeue && raw.nackOpts.Delay != time.Minute {
				t.Fatalf("expected first retry delay of 1m, got %s", raw.nackOpts.Delay)
			}
		})
	}
}

func TestWorkerDeadLettersAtMaxAttempts(t *testing.T) {
	service := &stubSyncService{err: errors.New("timeout")}
	msg := TemplateSyncMessage("ch_1", "")
	msg.Parameters["attempt"] = 4
	raw := &stubQueueDelivery{msg: ToExecutionMessage(msg)}
	policy := DefaultRetryPolicy()
	w := NewTemplateSyncWorker(service, &stubQueueDequeuerAdapter{delivery: NewDeliveryAdapter(raw, policy)}, policy, nil)

	if err := w.ProcessNext(context.Background()); err != nil {
		t.Fatalf("process next: %v", err)
	}
	if raw.nackOpts.Requeue || !raw.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter at max attempts, got %+v", raw.nackOpts)
	}
}

func TestWorkerDeadLettersMessageWithoutChannel(t *testing.T) {
	service := &stubSyncService{}
	raw := &stubQueueDelivery{msg: &job.ExecutionMessage{JobID: JobIDTemplateSync}}
	w := NewTemplateSyncWorker(service, nil, DefaultRetryPolicy(), nil)

	if err := w.Handle(context.Background(), NewDeliveryAdapter(raw, DefaultRetryPolicy())); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !raw.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter for malformed message")
	}
	if service.synced != "" {
		t.Fatalf("expected no sync call")
	}
}

type stubSyncService struct {
	due    []core.Channel
	limit  int
	result core.TemplateSyncResult
	err    error
	synced string
}

func (s *stubSyncService) TemplateSyncDue(_ context.Context, limit int) ([]core.Channel, error) {
	s.limit = limit
	return s.due, nil
}

func (s *stubSyncService) SyncTemplates(_ context.Context, channelID string) (core.TemplateSyncResult, error) {
	s.synced = channelID
	if s.err != nil {
		return core.TemplateSyncResult{}, s.err
	}
	result := s.result
	result.ChannelID = channelID
	return result, nil
}

type recordingEnqueuer struct {
	failFor  string
	messages []*core.JobExecutionMessage
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, msg *core.JobExecutionMessage) error {
	if e.failFor != "" && msg.Parameters["channel_id"] == e.failFor {
		return errors.New("queue unavailable")
	}
	e.messages = append(e.messages, msg)
	return nil
}

type stubQueueDequeuerAdapter struct {
	delivery core.JobDelivery
}

func (s *stubQueueDequeuerAdapter) Dequeue(context.Context) (core.JobDelivery, error) {
	return s.delivery, nil
}
