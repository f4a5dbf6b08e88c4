package core

import (
	"context"
	"strings"
	"sync"
)

type MemoryReauthorizationTracker struct {
	mu     sync.Mutex
	states map[string]ReauthorizationState
}

func NewMemoryReauthorizationTracker() *MemoryReauthorizationTracker {
	return &MemoryReauthorizationTracker{states: map[string]ReauthorizationState{}}
}

func (t *MemoryReauthorizationTracker) Increment(_ context.Context, channelID string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := strings.TrimSpace(channelID)
	state := t.states[key]
	state.ErrorCount++
	t.states[key] = state
	return state.ErrorCount, nil
}

func (t *MemoryReauthorizationTracker) MarkRequired(_ context.Context, channelID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := strings.TrimSpace(channelID)
	state := t.states[key]
	state.Required = true
	t.states[key] = state
	return nil
}

func (t *MemoryReauthorizationTracker) State(_ context.Context, channelID string) (ReauthorizationState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[strings.TrimSpace(channelID)], nil
}

func (t *MemoryReauthorizationTracker) Reset(_ context.Context, channelID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, strings.TrimSpace(channelID))
	return nil
}

// AuthorizationError records a credential rejection for the channel. Once the
// configured threshold is reached the channel is flagged and the notifier is
// told, exactly once per reauthorization cycle.
func (s *Service) AuthorizationError(ctx context.Context, channelID string) (state ReauthorizationState, err error) {
	startedAt := s.now()
	fields := map[string]any{"channel_id": channelID}
	defer func() {
		s.observeOperation(ctx, startedAt, "reauthorization.error", err, fields)
	}()

	channel, err := s.loadChannel(ctx, channelID)
	if err != nil {
		return ReauthorizationState{}, err
	}
	state, err = s.trackAuthorizationError(ctx, channel)
	if err != nil {
		err = s.mapError(err)
	}
	return state, err
}

// Reauthorized clears the error count and the required flag.
func (s *Service) Reauthorized(ctx context.Context, channelID string) (err error) {
	startedAt := s.now()
	fields := map[string]any{"channel_id": channelID}
	defer func() {
		s.observeOperation(ctx, startedAt, "reauthorization.reset", err, fields)
	}()

	channel, err := s.loadChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if err = s.reauthTracker.Reset(ctx, channel.ID); err != nil {
		err = s.mapError(err)
	}
	return err
}

func (s *Service) ReauthorizationRequired(ctx context.Context, channelID string) (bool, error) {
	channel, err := s.loadChannel(ctx, channelID)
	if err != nil {
		return false, err
	}
	state, err := s.reauthTracker.State(ctx, channel.ID)
	if err != nil {
		return false, s.mapError(err)
	}
	return state.Required, nil
}

func (s *Service) trackAuthorizationError(ctx context.Context, channel Channel) (ReauthorizationState, error) {
	count, err := s.reauthTracker.Increment(ctx, channel.ID)
	if err != nil {
		return ReauthorizationState{}, err
	}
	state, err := s.reauthTracker.State(ctx, channel.ID)
	if err != nil {
		return ReauthorizationState{}, err
	}
	state.ErrorCount = count
	if state.Required || count < s.config.Reauthorization.Threshold {
		return state, nil
	}

	if err := s.reauthTracker.MarkRequired(ctx, channel.ID); err != nil {
		return state, err
	}
	state.Required = true
	s.logWarn(ctx, "channel requires reauthorization", channelFields(channel))
	if s.reauthNotifier != nil {
		if notifyErr := s.reauthNotifier.NotifyReauthorizationRequired(ctx, channel); notifyErr != nil {
			fields := channelFields(channel)
			fields["error"] = notifyErr.Error()
			s.logError(ctx, "reauthorization notification failed", fields)
		}
	}
	s.publish(ctx, EventChannelReauthorizationRequired, channel, map[string]any{"error_count": count})
	return state, nil
}

// noteProviderFailure feeds credential rejections into the reauthorization
// counter. Bookkeeping errors are logged and never replace the provider error.
func (s *Service) noteProviderFailure(ctx context.Context, channel Channel, providerErr error) {
	if !IsAuthorizationFailure(providerErr) || strings.TrimSpace(channel.ID) == "" {
		return
	}
	if _, err := s.trackAuthorizationError(ctx, channel); err != nil {
		fields := channelFields(channel)
		fields["error"] = err.Error()
		s.logError(ctx, "reauthorization tracking failed", fields)
	}
}
