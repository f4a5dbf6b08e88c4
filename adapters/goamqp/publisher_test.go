package goamqp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-channels/core"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange = exchange
	c.key = key
	c.msg = msg
	return c.err
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublisherRoutesByEventType(t *testing.T) {
	ch := &fakeChannel{}
	pub := NewPublisher(func() (Channel, error) { return ch, nil })
	occurred := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := pub.Publish(context.Background(), core.ChannelEvent{
		ID:         "evt_1",
		Type:       core.EventChannelTemplatesSynced,
		ChannelID:  "ch_1",
		AccountID:  "42",
		Provider:   core.ProviderWhatsAppCloud,
		OccurredAt: occurred,
		Metadata:   map[string]any{"count": 3},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ch.exchange != DefaultExchange || ch.key != core.EventChannelTemplatesSynced {
		t.Fatalf("unexpected routing %q/%q", ch.exchange, ch.key)
	}
	if ch.msg.MessageId != "evt_1" || ch.msg.CorrelationId != "ch_1" {
		t.Fatalf("unexpected message ids %+v", ch.msg)
	}
	if ch.msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("expected persistent delivery")
	}
	if !ch.closed {
		t.Fatalf("expected channel to be closed after publish")
	}

	var decoded map[string]any
	if err := json.Unmarshal(ch.msg.Body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded["provider"] != "whatsapp_cloud" || decoded["account_id"] != "42" {
		t.Fatalf("unexpected body %v", decoded)
	}
}

func TestPublisherFillsMissingIDAndTimestamp(t *testing.T) {
	ch := &fakeChannel{}
	fixed := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	pub := NewPublisher(func() (Channel, error) { return ch, nil }, WithExchange("wa.events"))
	pub.now = func() time.Time { return fixed }

	if err := pub.Publish(context.Background(), core.ChannelEvent{Type: core.EventChannelCreated, ChannelID: "ch_1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ch.exchange != "wa.events" {
		t.Fatalf("expected custom exchange, got %q", ch.exchange)
	}
	if ch.msg.MessageId == "" {
		t.Fatalf("expected generated message id")
	}
	if !ch.msg.Timestamp.Equal(fixed) {
		t.Fatalf("expected fixed timestamp, got %s", ch.msg.Timestamp)
	}
}

func TestPublisherErrors(t *testing.T) {
	pub := NewPublisher(func() (Channel, error) { return nil, errors.New("connection closed") })
	if err := pub.Publish(context.Background(), core.ChannelEvent{Type: core.EventChannelCreated}); err == nil {
		t.Fatalf("expected open error")
	}

	failing := &fakeChannel{err: errors.New("nack")}
	pub = NewPublisher(func() (Channel, error) { return failing, nil })
	if err := pub.Publish(context.Background(), core.ChannelEvent{Type: core.EventChannelCreated}); err == nil {
		t.Fatalf("expected publish error")
	}
	if err := pub.Publish(context.Background(), core.ChannelEvent{}); err == nil {
		t.Fatalf("expected missing type error")
	}
}
