package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-channels/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const channelPhoneCacheKeyPrefix = "go-channels::channel_by_phone::v1"

// CachedChannelStore memoizes phone number lookups, which back inbound webhook
// verification. Every write through the store evicts the affected keys.
type CachedChannelStore struct {
	base  core.ChannelStore
	cache repositorycache.CacheService
}

func NewCachedChannelStore(base core.ChannelStore, cacheService repositorycache.CacheService) (*CachedChannelStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base channel store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: channel cache service is required")
	}
	return &CachedChannelStore{base: base, cache: cacheService}, nil
}

// ChannelPhoneCacheKey returns go-channels::channel_by_phone::v1::<phone> with
// the phone number URL-path escaped.
func ChannelPhoneCacheKey(phoneNumber string) (string, error) {
	trimmed := strings.TrimSpace(phoneNumber)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: phone number is required")
	}
	return channelPhoneCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (s *CachedChannelStore) Create(ctx context.Context, channel core.Channel) (core.Channel, error) {
	if err := s.ready(); err != nil {
		return core.Channel{}, err
	}
	created, err := s.base.Create(ctx, channel)
	if err != nil {
		return core.Channel{}, err
	}
	if err := s.evict(ctx, created.PhoneNumber); err != nil {
		return core.Channel{}, err
	}
	return created, nil
}

func (s *CachedChannelStore) Get(ctx context.Context, id string) (core.Channel, error) {
	if err := s.ready(); err != nil {
		return core.Channel{}, err
	}
	return s.base.Get(ctx, id)
}

func (s *CachedChannelStore) GetByPhoneNumber(ctx context.Context, phoneNumber string) (core.Channel, error) {
	if err := s.ready(); err != nil {
		return core.Channel{}, err
	}
	cacheKey, err := ChannelPhoneCacheKey(phoneNumber)
	if err != nil {
		return core.Channel{}, err
	}
	channel, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Channel, error) {
		return s.base.GetByPhoneNumber(ctx, phoneNumber)
	})
	if err != nil {
		return core.Channel{}, err
	}
	return channel.Clone(), nil
}

func (s *CachedChannelStore) Update(ctx context.Context, channel core.Channel) (core.Channel, error) {
	if err := s.ready(); err != nil {
		return core.Channel{}, err
	}
	previous, err := s.base.Get(ctx, channel.ID)
	if err != nil {
		return core.Channel{}, err
	}
	updated, err := s.base.Update(ctx, channel)
	if err != nil {
		return core.Channel{}, err
	}
	if err := s.evict(ctx, previous.PhoneNumber, updated.PhoneNumber); err != nil {
		return core.Channel{}, err
	}
	return updated, nil
}

func (s *CachedChannelStore) TouchTemplatesUpdated(ctx context.Context, id string, at time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.base.TouchTemplatesUpdated(ctx, id, at); err != nil {
		return err
	}
	return s.evictByID(ctx, id)
}

func (s *CachedChannelStore) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	current, err := s.base.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.base.Delete(ctx, id); err != nil {
		return err
	}
	return s.evict(ctx, current.PhoneNumber)
}

func (s *CachedChannelStore) ListTemplateSyncDue(ctx context.Context, before time.Time, limit int) ([]core.Channel, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.base.ListTemplateSyncDue(ctx, before, limit)
}

func (s *CachedChannelStore) ready() error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached channel store is not configured")
	}
	return nil
}

func (s *CachedChannelStore) evictByID(ctx context.Context, id string) error {
	current, err := s.base.Get(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrChannelNotFound) {
			return nil
		}
		return err
	}
	return s.evict(ctx, current.PhoneNumber)
}

func (s *CachedChannelStore) evict(ctx context.Context, phoneNumbers ...string) error {
	seen := map[string]struct{}{}
	for _, phoneNumber := range phoneNumbers {
		cacheKey, err := ChannelPhoneCacheKey(phoneNumber)
		if err != nil {
			continue
		}
		if _, done := seen[cacheKey]; done {
			continue
		}
		seen[cacheKey] = struct{}{}
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			return err
		}
	}
	return nil
}

var _ core.ChannelStore = (*CachedChannelStore)(nil)
