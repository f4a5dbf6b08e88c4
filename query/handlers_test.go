package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/goliatone/go-channels/core"
)

func TestGetChannelQuery_QueryDelegates(t *testing.T) {
	called := false
	reader := stubChannelReader{
		getFn: func(_ context.Context, channelID string) (core.Channel, error) {
			called = true
			if channelID != "ch_1" {
				t.Fatalf("unexpected channel id %q", channelID)
			}
			return core.Channel{ID: "ch_1", PhoneNumber: "+15550001"}, nil
		},
	}

	result, err := NewGetChannelQuery(reader).Query(context.Background(), GetChannelMessage{ChannelID: "ch_1"})
	if err != nil {
		t.Fatalf("query channel: %v", err)
	}
	if !called {
		t.Fatalf("expected channel reader invocation")
	}
	if result.PhoneNumber != "+15550001" {
		t.Fatalf("unexpected channel result: %#v", result)
	}
}

func TestProviderStatusQueries_Delegate(t *testing.T) {
	reader := stubStatusReader{
		validFn: func(context.Context, string) (bool, error) { return true, nil },
		tokenFn: func(context.Context, string) (core.TokenStatus, error) {
			return core.TokenStatus{ExpiresAt: 1700000000, IsValid: true}, nil
		},
		mediaFn: func(_ context.Context, channelID string, mediaID string) (string, error) {
			return fmt.Sprintf("https://media.test/%s/%s", channelID, mediaID), nil
		},
		reauthFn: func(context.Context, string) (bool, error) { return false, fmt.Errorf("tracker offline") },
	}
	ctx := context.Background()

	valid, err := NewValidateChannelConfigQuery(reader).Query(ctx, ValidateChannelConfigMessage{ChannelID: "ch_1"})
	if err != nil || !valid {
		t.Fatalf("expected valid config, got %v %v", valid, err)
	}

	status, err := NewTokenStatusQuery(reader).Query(ctx, TokenStatusMessage{ChannelID: "ch_1"})
	if err != nil {
		t.Fatalf("token status: %v", err)
	}
	if status.ExpiresAt != 1700000000 || !status.IsValid {
		t.Fatalf("unexpected token status %#v", status)
	}

	url, err := NewMediaURLQuery(reader).Query(ctx, MediaURLMessage{ChannelID: "ch_1", MediaID: "m_1"})
	if err != nil {
		t.Fatalf("media url: %v", err)
	}
	if url != "https://media.test/ch_1/m_1" {
		t.Fatalf("unexpected media url %q", url)
	}

	if _, err := NewReauthorizationRequiredQuery(reader).Query(ctx, ReauthorizationRequiredMessage{ChannelID: "ch_1"}); err == nil {
		t.Fatalf("expected reader error to bubble")
	}
}

func TestTemplateSyncDueQuery_PassesLimit(t *testing.T) {
	reader := stubChannelReader{
		dueFn: func(_ context.Context, limit int) ([]core.Channel, error) {
			if limit != 10 {
				t.Fatalf("expected limit 10, got %d", limit)
			}
			return []core.Channel{{ID: "ch_1"}, {ID: "ch_2"}}, nil
		},
	}
	due, err := NewTemplateSyncDueQuery(reader).Query(context.Background(), TemplateSyncDueMessage{Limit: 10})
	if err != nil {
		t.Fatalf("sync due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected two due channels, got %d", len(due))
	}
	if err := (TemplateSyncDueMessage{Limit: -1}).Validate(); err == nil {
		t.Fatalf("expected negative limit to fail validation")
	}
}

type stubChannelReader struct {
	getFn   func(context.Context, string) (core.Channel, error)
	phoneFn func(context.Context, string) (core.Channel, error)
	dueFn   func(context.Context, int) ([]core.Channel, error)
}

func (s stubChannelReader) GetChannel(ctx context.Context, channelID string) (core.Channel, error) {
	if s.getFn == nil {
		return core.Channel{}, nil
	}
	return s.getFn(ctx, channelID)
}

func (s stubChannelReader) GetChannelByPhoneNumber(ctx context.Context, phoneNumber string) (core.Channel, error) {
	if s.phoneFn == nil {
		return core.Channel{}, nil
	}
	return s.phoneFn(ctx, phoneNumber)
}

func (s stubChannelReader) TemplateSyncDue(ctx context.Context, limit int) ([]core.Channel, error) {
	if s.dueFn == nil {
		return nil, nil
	}
	return s.dueFn(ctx, limit)
}

type stubStatusReader struct {
	validFn  func(context.Context, string) (bool, error)
	tokenFn  func(context.Context, string) (core.TokenStatus, error)
	mediaFn  func(context.Context, string, string) (string, error)
	reauthFn func(context.Context, string) (bool, error)
}

func (s stubStatusReader) ValidateChannelConfig(ctx context.Context, channelID string) (bool, error) {
	return s.validFn(ctx, channelID)
}

func (s stubStatusReader) TokenStatus(ctx context.Context, channelID string) (core.TokenStatus, error) {
	return s.tokenFn(ctx, channelID)
}

func (s stubStatusReader) MediaURL(ctx context.Context, channelID string, mediaID string) (string, error) {
	return s.mediaFn(ctx, channelID, mediaID)
}

func (s stubStatusReader) ReauthorizationRequired(ctx context.Context, channelID string) (bool, error) {
	return s.reauthFn(ctx, channelID)
}
