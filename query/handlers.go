package query

import (
	"context"

	"github.com/goliatone/go-channels/core"
)

type ChannelReader interface {
	GetChannel(ctx context.Context, channelID string) (core.Channel, error)
	GetChannelByPhoneNumber(ctx context.Context, phoneNumber string) (core.Channel, error)
	TemplateSyncDue(ctx context.Context, limit int) ([]core.Channel, error)
}

type ProviderStatusReader interface {
	ValidateChannelConfig(ctx context.Context, channelID string) (bool, error)
	TokenStatus(ctx context.Context, channelID string) (core.TokenStatus, error)
	MediaURL(ctx context.Context, channelID string, mediaID string) (string, error)
	ReauthorizationRequired(ctx context.Context, channelID string) (bool, error)
}

type GetChannelQuery struct {
	reader ChannelReader
}

func NewGetChannelQuery(reader ChannelReader) *GetChannelQuery {
	return &GetChannelQuery{reader: reader}
}

func (q *GetChannelQuery) Query(ctx context.Context, msg GetChannelMessage) (core.Channel, error) {
	if q == nil || q.reader == nil {
		return core.Channel{}, queryDependencyError("query: channel reader is required")
	}
	return q.reader.GetChannel(ctx, msg.ChannelID)
}

type GetChannelByPhoneNumberQuery struct {
	reader ChannelReader
}

func NewGetChannelByPhoneNumberQuery(reader ChannelReader) *GetChannelByPhoneNumberQuery {
	return &GetChannelByPhoneNumberQuery{reader: reader}
}

func (q *GetChannelByPhoneNumberQuery) Query(ctx context.Context, msg GetChannelByPhoneNumberMessage) (core.Channel, error) {
	if q == nil || q.reader == nil {
		return core.Channel{}, queryDependencyError("query: channel reader is required")
	}
	return q.reader.GetChannelByPhoneNumber(ctx, msg.PhoneNumber)
}

type TemplateSyncDueQuery struct {
	reader ChannelReader
}

func NewTemplateSyncDueQuery(reader ChannelReader) *TemplateSyncDueQuery {
	return &TemplateSyncDueQuery{reader: reader}
}

func (q *TemplateSyncDueQuery) Query(ctx context.Context, msg TemplateSyncDueMessage) ([]core.Channel, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: channel reader is required")
	}
	return q.reader.TemplateSyncDue(ctx, msg.Limit)
}

type ValidateChannelConfigQuery struct {
	reader ProviderStatusReader
}

func NewValidateChannelConfigQuery(reader ProviderStatusReader) *ValidateChannelConfigQuery {
	return &ValidateChannelConfigQuery{reader: reader}
}

func (q *ValidateChannelConfigQuery) Query(ctx context.Context, msg ValidateChannelConfigMessage) (bool, error) {
	if q == nil || q.reader == nil {
		return false, queryDependencyError("query: provider status reader is required")
	}
	return q.reader.ValidateChannelConfig(ctx, msg.ChannelID)
}

type TokenStatusQuery struct {
	reader ProviderStatusReader
}

func NewTokenStatusQuery(reader ProviderStatusReader) *TokenStatusQuery {
	return &TokenStatusQuery{reader: reader}
}

func (q *TokenStatusQuery) Query(ctx context.Context, msg TokenStatusMessage) (core.TokenStatus, error) {
	if q == nil || q.reader == nil {
		return core.TokenStatus{}, queryDependencyError("query: provider status reader is required")
	}
	return q.reader.TokenStatus(ctx, msg.ChannelID)
}

type MediaURLQuery struct {
	reader ProviderStatusReader
}

func NewMediaURLQuery(reader ProviderStatusReader) *MediaURLQuery {
	return &MediaURLQuery{reader: reader}
}

func (q *MediaURLQuery) Query(ctx context.Context, msg MediaURLMessage) (string, error) {
	if q == nil || q.reader == nil {
		return "", queryDependencyError("query: provider status reader is required")
	}
	return q.reader.MediaURL(ctx, msg.ChannelID, msg.MediaID)
}

type ReauthorizationRequiredQuery struct {
	reader ProviderStatusReader
}

func NewReauthorizationRequiredQuery(reader ProviderStatusReader) *ReauthorizationRequiredQuery {
	return &ReauthorizationRequiredQuery{reader: reader}
}

func (q *ReauthorizationRequiredQuery) Query(ctx context.Context, msg ReauthorizationRequiredMessage) (bool, error) {
	if q == nil || q.reader == nil {
		return false, queryDependencyError("query: provider status reader is required")
	}
	return q.reader.ReauthorizationRequired(ctx, msg.ChannelID)
}
