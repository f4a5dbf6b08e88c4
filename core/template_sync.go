package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TemplateSyncEngine mirrors the provider template catalogue onto the channel.
type TemplateSyncEngine struct {
	store    ChannelStore
	maxPages int
	clock    Clock
	logger   Logger
}

type TemplateSyncConfig struct {
	Store    ChannelStore
	MaxPages int
	Clock    Clock
	Logger   Logger
}

func NewTemplateSyncEngine(cfg TemplateSyncConfig) *TemplateSyncEngine {
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultTemplateMaxPage
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &TemplateSyncEngine{
		store:    cfg.Store,
		maxPages: maxPages,
		clock:    clock,
		logger:   cfg.Logger,
	}
}

// Sync marks the channel as synced before fetching so a channel with broken
// credentials is not retried on every scheduler pass. The cached set is only
// replaced by a complete, non-empty listing.
func (e *TemplateSyncEngine) Sync(ctx context.Context, channel *Channel, provider Provider) (TemplateSyncResult, error) {
	if channel == nil || provider == nil {
		return TemplateSyncResult{}, fmt.Errorf("core: channel and provider are required for template sync")
	}
	if e.store == nil {
		return TemplateSyncResult{}, fmt.Errorf("core: channel store is required for template sync")
	}

	markedAt := e.clock()
	if err := e.store.TouchTemplatesUpdated(ctx, channel.ID, markedAt); err != nil {
		return TemplateSyncResult{}, err
	}
	channel.MessageTemplatesLastUpdated = &markedAt

	result := TemplateSyncResult{ChannelID: channel.ID, SyncedAt: markedAt}
	templates, pages, fetchErr := e.fetchAll(ctx, provider)
	result.Pages = pages
	result.Count = len(templates)

	if fetchErr != nil {
		result.Outcome = SyncOutcomeFailed
		result.FailureReason = fetchErr.Error()
		logWithLevel(ctx, e.logger, "warn", "template sync fetch failed, keeping cached templates", map[string]any{
			"channel_id": channel.ID,
			"pages":      pages,
			"error":      fetchErr.Error(),
		})
		return result, fetchErr
	}
	if len(templates) == 0 {
		result.Outcome = SyncOutcomeEmpty
		logWithLevel(ctx, e.logger, "info", "provider returned no templates, keeping cached templates", map[string]any{
			"channel_id": channel.ID,
		})
		return result, nil
	}

	updated := channel.Clone()
	updated.MessageTemplates = templates
	syncedAt := e.clock()
	updated.MessageTemplatesLastUpdated = &syncedAt
	saved, err := e.store.Update(ctx, updated)
	if err != nil {
		return result, err
	}
	*channel = saved
	result.Outcome = SyncOutcomeReplaced
	result.SyncedAt = syncedAt
	return result, nil
}

// fetchAll walks paging.next links one page at a time. A repeated link or the
// page ceiling ends the walk with an error.
func (e *TemplateSyncEngine) fetchAll(ctx context.Context, provider Provider) ([]Template, int, error) {
	var (
		templates []Template
		pageURL   string
		seen      = map[string]struct{}{}
	)
	for pages := 0; pages < e.maxPages; pages++ {
		page, err := provider.FetchTemplates(ctx, pageURL)
		if err != nil {
			return templates, pages, err
		}
		templates = append(templates, page.Templates...)

		next := strings.TrimSpace(page.Next)
		if next == "" {
			return templates, pages + 1, nil
		}
		if _, repeated := seen[next]; repeated || next == pageURL {
			return templates, pages + 1, fmt.Errorf("%w: %s", ErrTemplatePageLoop, next)
		}
		seen[next] = struct{}{}
		pageURL = next
	}
	return templates, e.maxPages, fmt.Errorf("%w: %d pages", ErrTemplatePageLimit, e.maxPages)
}

// IsTemplatePaginationDefect reports errors raised by the pagination guards
// rather than by the provider.
func IsTemplatePaginationDefect(err error) bool {
	return errors.Is(err, ErrTemplatePageLoop) || errors.Is(err, ErrTemplatePageLimit)
}
