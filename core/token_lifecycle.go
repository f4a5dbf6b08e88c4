package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// TokenLifecycleManager inspects channel access tokens and exchanges them for
// long-lived tokens when they approach expiry.
type TokenLifecycleManager struct {
	store     ChannelStore
	appTokens AppTokenSource
	app       AppConfig
	horizon   time.Duration
	clock     Clock
	logger    Logger
}

type TokenLifecycleConfig struct {
	Store          ChannelStore
	AppTokenSource AppTokenSource
	App            AppConfig
	RenewalHorizon time.Duration
	Clock          Clock
	Logger         Logger
}

func NewTokenLifecycleManager(cfg TokenLifecycleConfig) *TokenLifecycleManager {
	horizon := cfg.RenewalHorizon
	if horizon <= 0 {
		horizon = DefaultRenewalHorizon
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &TokenLifecycleManager{
		store:     cfg.Store,
		appTokens: cfg.AppTokenSource,
		app:       cfg.App,
		horizon:   horizon,
		clock:     clock,
		logger:    cfg.Logger,
	}
}

// Status introspects the channel token. The app access token authorizes the
// first attempt; when that is rejected or unavailable the channel token is
// used to authorize its own introspection.
func (m *TokenLifecycleManager) Status(ctx context.Context, channel *Channel, provider Provider) (TokenStatus, error) {
	if channel == nil || provider == nil {
		return TokenStatus{}, fmt.Errorf("core: channel and provider are required for token status")
	}
	appToken, appErr := m.appAccessToken(ctx)
	if appErr != nil {
		logWithLevel(ctx, m.logger, "warn", "app access token unavailable, introspecting with channel token", map[string]any{
			"channel_id": channel.ID,
			"error":      appErr.Error(),
		})
	}
	if appErr == nil && appToken != "" {
		status, err := provider.TokenStatus(ctx, appToken)
		if err == nil {
			return status, nil
		}
		logWithLevel(ctx, m.logger, "warn", "token introspection with app token failed, retrying with channel token", map[string]any{
			"channel_id": channel.ID,
			"error":      err.Error(),
		})
	}

	status, err := provider.TokenStatus(ctx, channel.Config.APIKey)
	if err != nil {
		return TokenStatus{}, wrapTokenError(err, "core: token introspection failed", ChannelErrorTokenExpired)
	}
	return status, nil
}

// NeedsRenewal is true for a finite expiry strictly before now plus the horizon.
func (m *TokenLifecycleManager) NeedsRenewal(status TokenStatus, now time.Time) bool {
	if status.NeverExpires() {
		return false
	}
	return status.ExpiresAtTime().Before(now.Add(m.horizon))
}

// ShouldRenewOnUpdate applies the update trigger policy: a finite expiry not
// already beyond the horizon, and an api key that actually changed.
func (m *TokenLifecycleManager) ShouldRenewOnUpdate(kind ProviderKind, before, after ProviderConfig, status TokenStatus, now time.Time) bool {
	if !kind.TokenBearing() || status.NeverExpires() {
		return false
	}
	if status.ExpiresAtTime().After(now.Add(m.horizon)) {
		return false
	}
	return APIKeyChanged(before, after)
}

// ExtendTokenLife exchanges the channel token and persists the result. On any
// failure the channel passed in is left untouched.
func (m *TokenLifecycleManager) ExtendTokenLife(ctx context.Context, channel *Channel, provider Provider) error {
	if channel == nil || provider == nil {
		return fmt.Errorf("core: channel and provider are required for token exchange")
	}
	if m.store == nil {
		return fmt.Errorf("core: channel store is required for token exchange")
	}
	grant, err := provider.ExchangeToken(ctx, m.app.ID, m.app.Secret)
	if err != nil {
		return wrapTokenError(err, "core: token exchange failed", ChannelErrorTokenRenewalFailed)
	}
	if strings.TrimSpace(grant.AccessToken) == "" {
		return newChannelError("core: token exchange returned no access token", goerrors.CategoryExternal, ChannelErrorTokenRenewalFailed)
	}

	updated := channel.Clone()
	updated.Config.APIKey = strings.TrimSpace(grant.AccessToken)
	if grant.ExpiresIn != nil {
		updated.Config.TokenExpiry = ExpiresAt(m.clock().Add(time.Duration(*grant.ExpiresIn) * time.Second))
	} else {
		updated.Config.TokenExpiry = NeverExpires()
	}

	saved, err := m.store.Update(ctx, updated)
	if err != nil {
		return wrapChannelError(err, goerrors.CategoryInternal, "core: persist renewed token failed", ChannelErrorTokenRenewalFailed)
	}
	*channel = saved
	logWithLevel(ctx, m.logger, "info", "channel token renewed", map[string]any{
		"channel_id":   channel.ID,
		"token_expiry": channel.Config.TokenExpiry.String(),
	})
	return nil
}

func (m *TokenLifecycleManager) appAccessToken(ctx context.Context) (string, error) {
	if token := strings.TrimSpace(m.app.AccessToken); token != "" {
		return token, nil
	}
	if m.appTokens == nil {
		return "", nil
	}
	return m.appTokens.AppAccessToken(ctx)
}

func wrapTokenError(err error, message string, textCode string) error {
	var richErr *goerrors.Error
	if errors.As(err, &richErr) && (richErr.Category == goerrors.CategoryAuth || richErr.Category == goerrors.CategoryAuthz) {
		wrapped := goerrors.Wrap(err, richErr.Category, message)
		wrapped.TextCode = textCode
		return wrapped
	}
	return wrapChannelError(err, goerrors.CategoryExternal, message, textCode)
}
