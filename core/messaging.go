package core

import (
	"context"
	"crypto/subtle"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// SendMessage delivers a message through the channel's provider. Delivery
// failures are logged and reported through SendResult.Delivered; only lookup
// and input errors are returned.
func (s *Service) SendMessage(ctx context.Context, req SendMessageRequest) (result SendResult, err error) {
	startedAt := s.now()
	fields := map[string]any{"channel_id": req.ChannelID}
	defer func() {
		s.observeOperation(ctx, startedAt, "message.send", err, fields)
	}()

	channel, err := s.loadChannel(ctx, req.ChannelID)
	if err != nil {
		return SendResult{}, err
	}
	fields["provider"] = string(channel.Provider)
	return s.sendMessage(ctx, &channel, req)
}

// SendMessages delivers a batch. One undeliverable message never stops the
// rest; results keep the request order.
func (s *Service) SendMessages(ctx context.Context, reqs []SendMessageRequest) (results []SendResult, err error) {
	startedAt := s.now()
	fields := map[string]any{"count": len(reqs)}
	defer func() {
		s.observeOperation(ctx, startedAt, "message.send_batch", err, fields)
	}()

	channels := map[string]*Channel{}
	results = make([]SendResult, 0, len(reqs))
	delivered := 0
	for _, req := range reqs {
		key := strings.TrimSpace(req.ChannelID)
		channel, ok := channels[key]
		if !ok {
			loaded, loadErr := s.loadChannel(ctx, key)
			if loadErr != nil {
				s.logWarn(ctx, "batch message skipped, channel unavailable", map[string]any{
					"channel_id": key,
					"error":      loadErr.Error(),
				})
				results = append(results, SendResult{To: req.To})
				continue
			}
			channel = &loaded
			channels[key] = channel
		}
		result, sendErr := s.sendMessage(ctx, channel, req)
		if sendErr != nil {
			s.logWarn(ctx, "batch message rejected", map[string]any{
				"channel_id": key,
				"error":      sendErr.Error(),
			})
		}
		if result.Delivered {
			delivered++
		}
		results = append(results, result)
	}
	fields["delivered"] = delivered
	return results, nil
}

func (s *Service) sendMessage(ctx context.Context, channel *Channel, req SendMessageRequest) (SendResult, error) {
	to := strings.TrimSpace(req.To)
	if to == "" {
		return SendResult{}, s.newError("core: recipient is required", goerrors.CategoryBadInput, ChannelErrorBadInput)
	}
	provider, err := s.bind(channel)
	if err != nil {
		return SendResult{To: to}, err
	}
	messageID, sendErr := provider.SendMessage(ctx, to, req.Message)
	if sendErr != nil {
		s.logProviderStep(ctx, *channel, "message delivery failed", sendErr)
		return SendResult{To: to}, nil
	}
	return SendResult{To: to, MessageID: messageID, Delivered: messageID != ""}, nil
}

func (s *Service) SendTemplate(ctx context.Context, req SendTemplateRequest) (result SendResult, err error) {
	startedAt := s.now()
	fields := map[string]any{"channel_id": req.ChannelID, "template": req.Template.Name}
	defer func() {
		s.observeOperation(ctx, startedAt, "template.send", err, fields)
	}()

	to := strings.TrimSpace(req.To)
	if to == "" || strings.TrimSpace(req.Template.Name) == "" {
		return SendResult{}, s.newError("core: recipient and template name are required", goerrors.CategoryBadInput, ChannelErrorBadInput)
	}
	channel, err := s.loadChannel(ctx, req.ChannelID)
	if err != nil {
		return SendResult{}, err
	}
	fields["provider"] = string(channel.Provider)
	provider, err := s.bind(&channel)
	if err != nil {
		return SendResult{}, err
	}
	info := req.Template
	if strings.TrimSpace(info.Namespace) == "" {
		info.Namespace = channel.Config.Namespace
	}
	messageID, sendErr := provider.SendTemplate(ctx, to, info)
	if sendErr != nil {
		s.logProviderStep(ctx, channel, "template delivery failed", sendErr)
		return SendResult{To: to}, nil
	}
	return SendResult{To: to, MessageID: messageID, Delivered: messageID != ""}, nil
}

// SyncTemplates mirrors the provider template listing into the channel. Fetch
// failures are reported through the result outcome; storage failures are
// returned.
func (s *Service) SyncTemplates(ctx context.Context, channelID string) (result TemplateSyncResult, err error) {
	startedAt := s.now()
	fields := map[string]any{"channel_id": channelID}
	defer func() {
		fields["outcome"] = string(result.Outcome)
		s.observeOperation(ctx, startedAt, "templates.sync", err, fields)
	}()

	channel, err := s.loadChannel(ctx, channelID)
	if err != nil {
		return TemplateSyncResult{}, err
	}
	fields["provider"] = string(channel.Provider)
	provider, err := s.bind(&channel)
	if err != nil {
		return TemplateSyncResult{}, err
	}

	result, err = s.templates.Sync(ctx, &channel, provider)
	if err != nil {
		if result.Outcome == SyncOutcomeFailed {
			s.noteProviderFailure(ctx, channel, err)
			return result, nil
		}
		return result, s.mapError(err)
	}
	if result.Outcome == SyncOutcomeReplaced {
		s.publish(ctx, EventChannelTemplatesSynced, channel, map[string]any{
			"count": result.Count,
			"pages": result.Pages,
		})
	}
	return result, nil
}

// ValidateChannelConfig performs the provider health check with the stored
// credentials.
func (s *Service) ValidateChannelConfig(ctx context.Context, channelID string) (valid bool, err error) {
	startedAt := s.now()
	fields := map[string]any{"channel_id": channelID}
	defer func() {
		fields["valid"] = valid
		s.observeOperation(ctx, startedAt, "channel.validate", err, fields)
	}()

	channel, err := s.loadChannel(ctx, channelID)
	if err != nil {
		return false, err
	}
	provider, err := s.bind(&channel)
	if err != nil {
		return false, err
	}
	if validateErr := provider.ValidateConfig(ctx); validateErr != nil {
		s.logProviderStep(ctx, channel, "channel configuration check failed", validateErr)
		return false, nil
	}
	return true, nil
}

func (s *Service) TokenStatus(ctx context.Context, channelID string) (status TokenStatus, err error) {
	startedAt := s.now()
	fields := map[string]any{"channel_id": channelID}
	defer func() {
		s.observeOperation(ctx, startedAt, "token.status", err, fields)
	}()

	channel, provider, err := s.tokenChannel(ctx, channelID)
	if err != nil {
		return TokenStatus{}, err
	}
	status, err = s.tokens.Status(ctx, &channel, provider)
	if err != nil {
		s.noteProviderFailure(ctx, channel, err)
		return TokenStatus{}, s.mapError(err)
	}
	return status, nil
}

// RenewToken exchanges the channel token when it expires inside the renewal
// horizon, or unconditionally when force is set.
func (s *Service) RenewToken(ctx context.Context, channelID string, force bool) (result TokenRenewalResult, err error) {
	startedAt := s.now()
	fields := map[string]any{"channel_id": channelID, "force": force}
	defer func() {
		fields["renewed"] = result.Renewed
		s.observeOperation(ctx, startedAt, "token.renew", err, fields)
	}()

	channel, provider, err := s.tokenChannel(ctx, channelID)
	if err != nil {
		return TokenRenewalResult{}, err
	}
	result = TokenRenewalResult{ChannelID: channel.ID, TokenExpiry: channel.Config.TokenExpiry}

	status, err := s.tokens.Status(ctx, &channel, provider)
	if err != nil {
		s.noteProviderFailure(ctx, channel, err)
		return result, s.mapError(err)
	}
	result.Status = status
	if !force && !s.tokens.NeedsRenewal(status, s.now()) {
		return result, nil
	}
	if err = s.tokens.ExtendTokenLife(ctx, &channel, provider); err != nil {
		s.noteProviderFailure(ctx, channel, err)
		return result, s.mapError(err)
	}
	result.Renewed = true
	result.TokenExpiry = channel.Config.TokenExpiry
	s.publish(ctx, EventChannelTokenRenewed, channel, map[string]any{"token_expiry": channel.Config.TokenExpiry.String()})
	return result, nil
}

// RefreshToken probes the stored token against the provider.
func (s *Service) RefreshToken(ctx context.Context, channelID string) (err error) {
	startedAt := s.now()
	fields := map[string]any{"channel_id": channelID}
	defer func() {
		s.observeOperation(ctx, startedAt, "token.refresh", err, fields)
	}()

	channel, provider, err := s.tokenChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if err = provider.RefreshToken(ctx); err != nil {
		s.noteProviderFailure(ctx, channel, err)
		return s.mapError(err)
	}
	return nil
}

func (s *Service) MediaURL(ctx context.Context, channelID string, mediaID string) (string, error) {
	mediaID = strings.TrimSpace(mediaID)
	if mediaID == "" {
		return "", s.mapError(s.newError("core: media id is required", goerrors.CategoryBadInput, ChannelErrorBadInput))
	}
	channel, err := s.loadChannel(ctx, channelID)
	if err != nil {
		return "", err
	}
	provider, err := s.bind(&channel)
	if err != nil {
		return "", err
	}
	return provider.MediaURL(mediaID), nil
}

// APIHeaders returns the provider headers for the currently stored credentials.
func (s *Service) APIHeaders(ctx context.Context, channelID string) (map[string]string, error) {
	channel, err := s.loadChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	provider, err := s.bind(&channel)
	if err != nil {
		return nil, err
	}
	return provider.APIHeaders(), nil
}

// SetWebhook points the provider webhook at this service's callback route.
func (s *Service) SetWebhook(ctx context.Context, channelID string) (err error) {
	startedAt := s.now()
	fields := map[string]any{"channel_id": channelID}
	defer func() {
		s.observeOperation(ctx, startedAt, "webhook.set", err, fields)
	}()

	channel, err := s.loadChannel(ctx, channelID)
	if err != nil {
		return err
	}
	provider, err := s.bind(&channel)
	if err != nil {
		return err
	}
	if err = s.setWebhook(ctx, &channel, provider); err != nil {
		s.noteProviderFailure(ctx, channel, err)
		return s.mapError(err)
	}
	return nil
}

// ReconcileSubscribedApps runs the duplicate subscription cleanup on demand.
func (s *Service) ReconcileSubscribedApps(ctx context.Context, channelID string) (appID string, err error) {
	startedAt := s.now()
	fields := map[string]any{"channel_id": channelID}
	defer func() {
		s.observeOperation(ctx, startedAt, "apps.reconcile", err, fields)
	}()

	channel, provider, err := s.tokenChannel(ctx, channelID)
	if err != nil {
		return "", err
	}
	appID, err = s.apps.ReconcileSubscribedApps(ctx, &channel, provider)
	if err != nil {
		s.noteProviderFailure(ctx, channel, err)
		return "", s.mapError(err)
	}
	return appID, nil
}

// VerifyWebhook reports whether token matches the verify token stored for the
// channel bound to phoneNumber.
func (s *Service) VerifyWebhook(ctx context.Context, phoneNumber string, token string) (bool, error) {
	channel, err := s.GetChannelByPhoneNumber(ctx, phoneNumber)
	if err != nil {
		return false, err
	}
	stored := strings.TrimSpace(channel.Config.WebhookVerifyToken)
	if stored == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(token))) == 1, nil
}

func (s *Service) tokenChannel(ctx context.Context, channelID string) (Channel, Provider, error) {
	channel, err := s.loadChannel(ctx, channelID)
	if err != nil {
		return Channel{}, nil, err
	}
	if !channel.Provider.TokenBearing() {
		return Channel{}, nil, s.mapError(ErrCapabilityNotSupported)
	}
	provider, err := s.bind(&channel)
	if err != nil {
		return Channel{}, nil, err
	}
	return channel, provider, nil
}
