package core

import (
	"context"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: copyTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: copyTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFieldMap(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFieldMap(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFieldMap(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func cloneFieldMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

func TestServiceObservability_SyncSuccess(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	h, err := newTestHarness(WithMetricsRecorder(metrics))
	if err != nil {
		t.Fatalf("harness: %v", err)
	}
	seeded := h.seed(Channel{ID: "ch_1", PhoneNumber: "+100", Provider: ProviderDefault, Config: ProviderConfig{APIKey: "key"}})
	h.provider.pages[""] = TemplatePage{Templates: templatesNamed("a")}

	if _, err := h.svc.SyncTemplates(context.Background(), seeded.ID); err != nil {
		t.Fatalf("sync templates: %v", err)
	}

	if !hasCounter(metrics.counters, "channels.templates.sync.total", "success") {
		t.Fatalf("expected channels.templates.sync.total success counter")
	}
	if !hasHistogram(metrics.histograms, "channels.templates.sync.duration_ms", "success") {
		t.Fatalf("expected channels.templates.sync.duration_ms histogram")
	}
	if !hasLog(h.logger.snapshot(), "info", "templates.sync succeeded", "templates.sync") {
		t.Fatalf("expected templates.sync succeeded structured log")
	}
}

func TestServiceObservability_MissingChannelFailure(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	h, err := newTestHarness(WithMetricsRecorder(metrics))
	if err != nil {
		t.Fatalf("harness: %v", err)
	}

	if _, err := h.svc.SendMessage(context.Background(), SendMessageRequest{ChannelID: "missing", To: "+1"}); err == nil {
		t.Fatalf("expected send error for a missing channel")
	}
	if !hasCounter(metrics.counters, "channels.message.send.total", "failure") {
		t.Fatalf("expected message send failure counter")
	}
	if !hasLog(h.logger.snapshot(), "error", "message.send failed", "message.send") {
		t.Fatalf("expected message send failure log")
	}
}

func TestServiceObservability_EnrichesStructuredErrorFields(t *testing.T) {
	h, err := newTestHarness()
	if err != nil {
		t.Fatalf("harness: %v", err)
	}

	richErr := goerrors.New("provider timeout", goerrors.CategoryExternal).
		WithCode(502).
		WithTextCode(ChannelErrorProviderUnreachable).
		WithSeverity(goerrors.SeverityCritical).
		WithMetadata(map[string]any{
			"request_id":   "req_123",
			"access_token": "secret_access_token",
			"channel_id":   "ch_1",
		})
	h.svc.observeOperation(
		context.Background(),
		time.Now().UTC().Add(-100*time.Millisecond),
		"token.renew",
		richErr,
		map[string]any{"provider": "whatsapp_cloud"},
	)

	records := h.logger.snapshot()
	if len(records) == 0 {
		t.Fatalf("expected logs to be emitted")
	}
	last := records[len(records)-1]
	if last.fields["error_category"] != "external" {
		t.Fatalf("expected error_category external, got %#v", last.fields["error_category"])
	}
	if last.fields["error_text_code"] != ChannelErrorProviderUnreachable {
		t.Fatalf("expected error_text_code %q, got %#v", ChannelErrorProviderUnreachable, last.fields["error_text_code"])
	}
	if last.fields["error_severity"] != goerrors.SeverityCritical.String() {
		t.Fatalf("expected critical severity, got %#v", last.fields["error_severity"])
	}
	if last.fields["request_id"] != "req_123" {
		t.Fatalf("expected request_id propagation, got %#v", last.fields["request_id"])
	}

	metadata, ok := last.fields["error_metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected redacted error_metadata map, got %#v", last.fields["error_metadata"])
	}
	if metadata["access_token"] != RedactedValue {
		t.Fatalf("expected access_token to be redacted, got %#v", metadata["access_token"])
	}
	if metadata["channel_id"] != "ch_1" {
		t.Fatalf("expected channel_id to stay visible, got %#v", metadata["channel_id"])
	}
}

func hasCounter(items []capturedCounter, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasHistogram(items []capturedHistogram, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasLog(items []capturedLog, level string, message string, eventType string) bool {
	for _, item := range items {
		if item.level != level {
			continue
		}
		if item.msg != message {
			continue
		}
		if item.fields["event_type"] == eventType {
			return true
		}
	}
	return false
}

func TestOperationTags_NormalizesProviderAndCarriesOutcome(t *testing.T) {
	tags := operationTags("templates.sync", "success", map[string]any{
		"provider":   "Something_New",
		"channel_id": "ch_1",
		"outcome":    string(SyncOutcomeReplaced),
	})
	if tags["provider"] != string(ProviderDefault) {
		t.Fatalf("expected unknown provider to be labelled default, got %q", tags["provider"])
	}
	if tags["outcome"] != "replaced" || tags["channel_id"] != "ch_1" {
		t.Fatalf("unexpected tags %#v", tags)
	}

	bare := operationTags("channel.get", "failure", map[string]any{"provider": nil})
	if _, ok := bare["provider"]; ok {
		t.Fatalf("expected no provider label for a nil field, got %#v", bare)
	}
}
