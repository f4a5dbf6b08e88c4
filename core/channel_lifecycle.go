package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// CreateChannel validates, stores and onboards a channel. A token exchange
// failure during onboarding removes the stored channel and is returned; app
// and registration failures are logged and the channel is kept.
func (s *Service) CreateChannel(ctx context.Context, req CreateChannelRequest) (channel Channel, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"account_id":   req.AccountID,
		"phone_number": req.PhoneNumber,
		"provider":     req.Provider,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "channel.create", err, fields)
	}()

	accountID := strings.TrimSpace(req.AccountID)
	phone := strings.TrimSpace(req.PhoneNumber)
	if accountID == "" || phone == "" {
		return Channel{}, s.newError("core: account id and phone number are required", goerrors.CategoryBadInput, ChannelErrorBadInput)
	}
	kind := ParseProviderKind(req.Provider)
	if !ProviderKind(strings.ToLower(strings.TrimSpace(req.Provider))).Recognized() && strings.TrimSpace(req.Provider) != "" {
		s.logWarn(ctx, "unrecognized provider, using default", map[string]any{"provider": req.Provider})
	}
	fields["provider"] = string(kind)

	candidate := Channel{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		PhoneNumber: phone,
		Provider:    kind,
		Config:      req.Config.Clone(),
	}
	if err = s.preValidate(ctx, &candidate); err != nil {
		return Channel{}, err
	}
	if err = s.precommit(ctx, EventChannelCreated, candidate); err != nil {
		return Channel{}, err
	}

	created, err := s.channelStore.Create(ctx, candidate)
	if err != nil {
		return Channel{}, s.mapError(err)
	}
	fields["channel_id"] = created.ID

	if err = s.postCreate(ctx, &created); err != nil {
		s.compensateCreate(ctx, created)
		return Channel{}, s.mapError(err)
	}
	s.publish(ctx, EventChannelCreated, created, nil)
	return created, nil
}

// UpdateChannel stores new channel settings. Lifecycle fields the caller does
// not send are carried over, so the webhook verify token stays stable.
func (s *Service) UpdateChannel(ctx context.Context, req UpdateChannelRequest) (channel Channel, err error) {
	startedAt := s.now()
	fields := map[string]any{"channel_id": req.ChannelID}
	defer func() {
		s.observeOperation(ctx, startedAt, "channel.update", err, fields)
	}()

	current, err := s.loadChannel(ctx, req.ChannelID)
	if err != nil {
		return Channel{}, err
	}
	fields["provider"] = string(current.Provider)

	updated := current.Clone()
	if phone := strings.TrimSpace(req.PhoneNumber); phone != "" {
		updated.PhoneNumber = phone
	}
	if req.Config != nil {
		updated.Config = carryLifecycleFields(current.Config, req.Config.Clone())
	}

	configChanged := ConfigChanged(current.Config, updated.Config)
	phoneChanged := updated.PhoneNumber != current.PhoneNumber
	// The default provider's webhook URL embeds the phone number.
	revalidate := configChanged || (phoneChanged && updated.Provider == ProviderDefault)
	if revalidate {
		if err = s.preValidate(ctx, &updated); err != nil {
			return Channel{}, err
		}
	}
	if err = s.precommit(ctx, EventChannelUpdated, updated); err != nil {
		return Channel{}, err
	}

	saved, err := s.channelStore.Update(ctx, updated)
	if err != nil {
		return Channel{}, s.mapError(err)
	}
	var renewErr error
	if configChanged {
		renewErr = s.postUpdate(ctx, current.Config, &saved)
	}
	s.publish(ctx, EventChannelUpdated, saved, map[string]any{
		"config_changed": configChanged,
		"phone_changed":  phoneChanged,
	})
	if renewErr != nil {
		return saved, s.mapError(renewErr)
	}
	return saved, nil
}

// DestroyChannel deletes the channel and then deregisters the phone number on
// a best-effort basis.
func (s *Service) DestroyChannel(ctx context.Context, channelID string) (err error) {
	startedAt := s.now()
	fields := map[string]any{"channel_id": channelID}
	defer func() {
		s.observeOperation(ctx, startedAt, "channel.destroy", err, fields)
	}()

	channel, err := s.loadChannel(ctx, channelID)
	if err != nil {
		return err
	}
	fields["provider"] = string(channel.Provider)
	if err = s.precommit(ctx, EventChannelDestroyed, channel); err != nil {
		return err
	}
	if err = s.channelStore.Delete(ctx, channel.ID); err != nil {
		return s.mapError(err)
	}
	s.postDestroy(ctx, channel)
	s.publish(ctx, EventChannelDestroyed, channel, nil)
	return nil
}

// preValidate ensures token-bearing channels carry a verify token, checks the
// config shape locally, then asks the provider to accept the credentials.
func (s *Service) preValidate(ctx context.Context, channel *Channel) error {
	if channel.Provider.TokenBearing() && strings.TrimSpace(channel.Config.WebhookVerifyToken) == "" {
		token, err := s.verifyTokenGenerator()
		if err != nil {
			return s.newError(fmt.Sprintf("core: generate webhook verify token: %v", err), goerrors.CategoryInternal, ChannelErrorInternal)
		}
		channel.Config.WebhookVerifyToken = token
	}
	if err := channel.Config.Validate(channel.Provider); err != nil {
		return err
	}

	provider, err := s.bind(channel)
	if err != nil {
		return err
	}
	if err := provider.ValidateConfig(ctx); err != nil {
		if goerrors.IsCategory(err, goerrors.CategoryExternal) && !IsAuthorizationFailure(err) {
			s.logWarn(ctx, "provider config validation could not reach provider", channelFields(*channel))
		}
		return wrapChannelError(err, goerrors.CategoryValidation, "core: provider rejected channel configuration", ChannelErrorConfigInvalid)
	}
	return nil
}

func (s *Service) postCreate(ctx context.Context, channel *Channel) error {
	provider, err := s.bind(channel)
	if err != nil {
		return err
	}

	if channel.Provider.TokenBearing() {
		status, err := s.tokens.Status(ctx, channel, provider)
		if err != nil {
			return err
		}
		if !status.NeverExpires() {
			if err := s.tokens.ExtendTokenLife(ctx, channel, provider); err != nil {
				return err
			}
		}
		s.onboardApp(ctx, channel, provider)
	}

	s.syncAfterChange(ctx, channel, provider)
	return nil
}

// onboardApp runs the app and phone registration steps. Each failure is
// logged and the next step still runs.
func (s *Service) onboardApp(ctx context.Context, channel *Channel, provider Provider) {
	if err := s.apps.SubscribeApp(ctx, provider); err != nil {
		s.logProviderStep(ctx, *channel, "app subscription failed", err)
	}
	registered, err := s.apps.RegisterAccount(ctx, channel, provider)
	if err != nil {
		s.logProviderStep(ctx, *channel, "phone number registration failed", err)
	} else if !registered {
		s.logWarn(ctx, "phone number was not registered", channelFields(*channel))
	}
	if _, err := s.apps.ReconcileSubscribedApps(ctx, channel, provider); err != nil {
		s.logProviderStep(ctx, *channel, "subscribed app reconciliation failed", err)
	}
	if channel.Provider == ProviderWhatsAppEmbedded && s.config.Registration.EmbeddedSetWebhook {
		if err := s.setWebhook(ctx, channel, provider); err != nil {
			s.logProviderStep(ctx, *channel, "webhook registration failed", err)
		}
	}
}

// syncAfterChange runs the initial template sync. Failures never block the
// lifecycle operation that triggered it.
func (s *Service) syncAfterChange(ctx context.Context, channel *Channel, provider Provider) {
	result, err := s.templates.Sync(ctx, channel, provider)
	if err != nil {
		s.logProviderStep(ctx, *channel, "initial template sync failed", err)
		return
	}
	if result.Outcome == SyncOutcomeReplaced {
		s.publish(ctx, EventChannelTemplatesSynced, *channel, map[string]any{
			"count": result.Count,
			"pages": result.Pages,
		})
	}
}

// postUpdate renews the token after a key rotation. The channel is already
// stored, so only a failed exchange reaches the caller.
func (s *Service) postUpdate(ctx context.Context, before ProviderConfig, channel *Channel) error {
	if !channel.Provider.TokenBearing() || !APIKeyChanged(before, channel.Config) {
		return nil
	}
	provider, err := s.bind(channel)
	if err != nil {
		s.logProviderStep(ctx, *channel, "token renewal skipped, provider unavailable", err)
		return nil
	}
	status, err := s.tokens.Status(ctx, channel, provider)
	if err != nil {
		s.logProviderStep(ctx, *channel, "token introspection after update failed", err)
		return nil
	}
	if !s.tokens.ShouldRenewOnUpdate(channel.Provider, before, channel.Config, status, s.now()) {
		return nil
	}
	if err := s.tokens.ExtendTokenLife(ctx, channel, provider); err != nil {
		s.noteProviderFailure(ctx, *channel, err)
		return err
	}
	s.publish(ctx, EventChannelTokenRenewed, *channel, map[string]any{"token_expiry": channel.Config.TokenExpiry.String()})
	return nil
}

func (s *Service) postDestroy(ctx context.Context, channel Channel) {
	if !channel.Provider.TokenBearing() {
		return
	}
	provider, err := s.bind(&channel)
	if err != nil {
		s.logProviderStep(ctx, channel, "deregistration skipped, provider unavailable", err)
		return
	}
	s.apps.UnregisterAccount(ctx, channel, provider)
}

// compensateCreate removes a channel whose onboarding could not complete.
func (s *Service) compensateCreate(ctx context.Context, channel Channel) {
	cleanupCtx := context.WithoutCancel(ctx)
	if err := s.channelStore.Delete(cleanupCtx, channel.ID); err != nil {
		fields := channelFields(channel)
		fields["error"] = err.Error()
		s.logError(ctx, "failed to remove channel after onboarding failure", fields)
	}
}

func (s *Service) setWebhook(ctx context.Context, channel *Channel, provider Provider) error {
	callbackURL, err := s.callbackResolver.ResolveCallbackURL(ctx, *channel)
	if err != nil {
		return s.newError(err.Error(), goerrors.CategoryBadInput, ChannelErrorBadInput)
	}
	return s.apps.SetWebhook(ctx, channel, provider, callbackURL)
}

func (s *Service) logProviderStep(ctx context.Context, channel Channel, message string, err error) {
	s.noteProviderFailure(ctx, channel, err)
	fields := channelFields(channel)
	fields["error"] = err.Error()
	if errors.Is(err, ErrCapabilityNotSupported) {
		s.logInfo(ctx, message, fields)
		return
	}
	s.logWarn(ctx, message, fields)
}

// carryLifecycleFields keeps values managed by the lifecycle when an update
// omits them.
func carryLifecycleFields(before, after ProviderConfig) ProviderConfig {
	if strings.TrimSpace(after.WebhookVerifyToken) == "" {
		after.WebhookVerifyToken = before.WebhookVerifyToken
	}
	if strings.TrimSpace(after.AppID) == "" {
		after.AppID = before.AppID
	}
	if strings.TrimSpace(after.Pin) == "" {
		after.Pin = before.Pin
	}
	if after.TokenExpiry.IsZero() {
		after.TokenExpiry = before.TokenExpiry
	}
	if after.Registered == nil {
		after.Registered = cloneBool(before.Registered)
	}
	if after.WebhookVerified == nil {
		after.WebhookVerified = cloneBool(before.WebhookVerified)
	}
	return after
}
