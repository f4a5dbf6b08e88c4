package goredis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-channels/core"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "channels:reauth:"

// Tracker keeps reauthorization counters in redis so every process
// serving a channel sees the same count.
type Tracker struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

type Option func(*Tracker)

func WithKeyPrefix(prefix string) Option {
	return func(t *Tracker) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			t.prefix = prefix
		}
	}
}

// WithTTL expires idle counters. Zero keeps them until Reset.
func WithTTL(ttl time.Duration) Option {
	return func(t *Tracker) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

func NewTracker(rdb redis.UniversalClient, opts ...Option) *Tracker {
	t := &Tracker{rdb: rdb, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// NewClient opens a client from a redis:// URL and pings it.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("goredis: parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("goredis: pinging redis: %w", err)
	}
	return client, nil
}

func (t *Tracker) Increment(ctx context.Context, channelID string) (int, error) {
	if err := t.ready(); err != nil {
		return 0, err
	}
	key := t.countKey(channelID)
	pipe := t.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	if t.ttl > 0 {
		pipe.Expire(ctx, key, t.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("goredis: incrementing reauthorization count: %w", err)
	}
	return int(incr.Val()), nil
}

func (t *Tracker) MarkRequired(ctx context.Context, channelID string) error {
	if err := t.ready(); err != nil {
		return err
	}
	if err := t.rdb.Set(ctx, t.requiredKey(channelID), "1", t.ttl).Err(); err != nil {
		return fmt.Errorf("goredis: marking reauthorization required: %w", err)
	}
	return nil
}

func (t *Tracker) State(ctx context.Context, channelID string) (core.ReauthorizationState, error) {
	if err := t.ready(); err != nil {
		return core.ReauthorizationState{}, err
	}
	pipe := t.rdb.Pipeline()
	count := pipe.Get(ctx, t.countKey(channelID))
	required := pipe.Exists(ctx, t.requiredKey(channelID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return core.ReauthorizationState{}, fmt.Errorf("goredis: loading reauthorization state: %w", err)
	}

	state := core.ReauthorizationState{Required: required.Val() > 0}
	n, err := count.Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return core.ReauthorizationState{}, fmt.Errorf("goredis: parsing reauthorization count: %w", err)
	}
	state.ErrorCount = n
	return state, nil
}

func (t *Tracker) Reset(ctx context.Context, channelID string) error {
	if err := t.ready(); err != nil {
		return err
	}
	if err := t.rdb.Del(ctx, t.countKey(channelID), t.requiredKey(channelID)).Err(); err != nil {
		return fmt.Errorf("goredis: resetting reauthorization state: %w", err)
	}
	return nil
}

func (t *Tracker) ready() error {
	if t == nil || t.rdb == nil {
		return fmt.Errorf("goredis: client is not configured")
	}
	return nil
}

func (t *Tracker) countKey(channelID string) string {
	return t.prefix + strings.TrimSpace(channelID) + ":count"
}

func (t *Tracker) requiredKey(channelID string) string {
	return t.prefix + strings.TrimSpace(channelID) + ":required"
}

var _ core.ReauthorizationTracker = (*Tracker)(nil)
