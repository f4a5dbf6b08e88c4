package goamqp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-logger/glog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultExchange = "channels.events"

// Channel is the slice of *amqp091.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// ChannelOpener opens a fresh AMQP channel per publish.
type ChannelOpener func() (Channel, error)

// Publisher sends channel lifecycle events to a topic exchange, routed by
// event type (channel.created, channel.templates_synced, ...).
type Publisher struct {
	open     ChannelOpener
	exchange string
	logger   core.Logger
	closer   func() error
	now      func() time.Time
}

type Option func(*Publisher)

func WithLogger(logger core.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithExchange(exchange string) Option {
	return func(p *Publisher) {
		if exchange = strings.TrimSpace(exchange); exchange != "" {
			p.exchange = exchange
		}
	}
}

func NewPublisher(open ChannelOpener, opts ...Option) *Publisher {
	p := &Publisher{
		open:     open,
		exchange: DefaultExchange,
		logger:   glog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Dial connects to the broker and declares a durable topic exchange.
func Dial(url string, opts ...Option) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("goamqp: dialing broker: %w", err)
	}
	p := NewPublisher(func() (Channel, error) { return conn.Channel() }, opts...)

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("goamqp: opening channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("goamqp: declaring exchange: %w", err)
	}
	p.closer = conn.Close
	return p, nil
}

type eventEnvelope struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	ChannelID  string         `json:"channel_id"`
	AccountID  string         `json:"account_id,omitempty"`
	Provider   string         `json:"provider,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (p *Publisher) Publish(ctx context.Context, event core.ChannelEvent) error {
	if p == nil || p.open == nil {
		return fmt.Errorf("goamqp: publisher is not configured")
	}
	if strings.TrimSpace(event.Type) == "" {
		return fmt.Errorf("goamqp: event type is required")
	}
	if strings.TrimSpace(event.ID) == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}

	body, err := json.Marshal(eventEnvelope{
		ID:         event.ID,
		Type:       event.Type,
		ChannelID:  event.ChannelID,
		AccountID:  event.AccountID,
		Provider:   string(event.Provider),
		OccurredAt: event.OccurredAt,
		Metadata:   event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("goamqp: encoding event: %w", err)
	}

	ch, err := p.open()
	if err != nil {
		return fmt.Errorf("goamqp: opening channel: %w", err)
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, p.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     event.ID,
		CorrelationId: event.ChannelID,
		Timestamp:     event.OccurredAt,
		Type:          event.Type,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("goamqp: publishing %s: %w", event.Type, err)
	}
	p.logger.WithContext(ctx).Debug("published channel event",
		"exchange", p.exchange,
		"key", event.Type,
		"channel_id", event.ChannelID,
	)
	return nil
}

func (p *Publisher) Close() error {
	if p == nil || p.closer == nil {
		return nil
	}
	return p.closer()
}

var _ core.EventPublisher = (*Publisher)(nil)
