package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultBestEffortTimeout   = 10 * time.Second
	defaultMaxDuplicateDeletes = 10
)

// AppRegistrationCoordinator keeps exactly one subscribed app per business
// account and registers the channel phone number for sending.
type AppRegistrationCoordinator struct {
	store      ChannelStore
	pins       PinGenerator
	maxDeletes int
	timeout    time.Duration
	logger     Logger
}

type AppRegistrationConfig struct {
	Store               ChannelStore
	PinGenerator        PinGenerator
	MaxDuplicateDeletes int
	BestEffortTimeout   time.Duration
	Logger              Logger
}

func NewAppRegistrationCoordinator(cfg AppRegistrationConfig) *AppRegistrationCoordinator {
	pins := cfg.PinGenerator
	if pins == nil {
		pins = RandomPin
	}
	maxDeletes := cfg.MaxDuplicateDeletes
	if maxDeletes <= 0 {
		maxDeletes = defaultMaxDuplicateDeletes
	}
	timeout := cfg.BestEffortTimeout
	if timeout <= 0 {
		timeout = defaultBestEffortTimeout
	}
	return &AppRegistrationCoordinator{
		store:      cfg.Store,
		pins:       pins,
		maxDeletes: maxDeletes,
		timeout:    timeout,
		logger:     cfg.Logger,
	}
}

// ReconcileSubscribedApps removes duplicate app subscriptions and records the
// surviving app id. It issues len(apps)-1 deletes, capped at the configured
// maximum, and keeps the first listed app.
func (c *AppRegistrationCoordinator) ReconcileSubscribedApps(ctx context.Context, channel *Channel, provider Provider) (string, error) {
	if channel == nil || provider == nil {
		return "", fmt.Errorf("core: channel and provider are required for app reconciliation")
	}
	apps, err := provider.ListSubscribedApps(ctx)
	if err != nil {
		return "", err
	}
	if len(apps) == 0 {
		return "", newChannelError("core: no subscribed apps found for business account", goerrors.CategoryNotFound, ChannelErrorProviderError)
	}

	deletes := len(apps) - 1
	if deletes > c.maxDeletes {
		logWithLevel(ctx, c.logger, "warn", "duplicate app subscriptions exceed delete bound", map[string]any{
			"channel_id": channel.ID,
			"apps":       len(apps),
			"bound":      c.maxDeletes,
		})
		deletes = c.maxDeletes
	}
	for i := 0; i < deletes; i++ {
		if err := provider.DeleteSubscribedApp(ctx); err != nil {
			return "", fmt.Errorf("core: delete duplicate app subscription: %w", err)
		}
	}
	if deletes > 0 {
		logWithLevel(ctx, c.logger, "info", "removed duplicate app subscriptions", map[string]any{
			"channel_id": channel.ID,
			"deleted":    deletes,
		})
	}

	appID := strings.TrimSpace(apps[0].ID)
	updated := channel.Clone()
	updated.Config.AppID = appID
	if err := c.save(ctx, channel, updated); err != nil {
		return "", err
	}
	return appID, nil
}

// SubscribeApp subscribes the app to the business account. The provider treats
// repeated subscriptions as success.
func (c *AppRegistrationCoordinator) SubscribeApp(ctx context.Context, provider Provider) error {
	if provider == nil {
		return fmt.Errorf("core: provider is required to subscribe app")
	}
	return provider.SubscribeApp(ctx)
}

// RegisterAccount registers the phone number with a freshly drawn PIN and
// records the outcome on the channel.
func (c *AppRegistrationCoordinator) RegisterAccount(ctx context.Context, channel *Channel, provider Provider) (bool, error) {
	if channel == nil || provider == nil {
		return false, fmt.Errorf("core: channel and provider are required for registration")
	}
	pin := c.pins()
	channel.Config.Pin = pin

	registerErr := provider.RegisterPhone(ctx, pin)
	registered := registerErr == nil
	channel.Config.Registered = boolPtr(registered)

	var saveErr error
	if strings.TrimSpace(channel.ID) != "" {
		saveErr = c.save(ctx, channel, channel.Clone())
	}
	return registered, errors.Join(registerErr, saveErr)
}

// UnregisterAccount deregisters the phone number. It runs on its own deadline,
// detached from caller cancellation, and only reports failures to the log.
func (c *AppRegistrationCoordinator) UnregisterAccount(ctx context.Context, channel Channel, provider Provider) {
	if provider == nil {
		return
	}
	effectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	if err := provider.DeregisterPhone(effectCtx); err != nil {
		logWithLevel(ctx, c.logger, "warn", "phone number deregistration failed", map[string]any{
			"channel_id":      channel.ID,
			"phone_number_id": channel.Config.PhoneNumberID,
			"error":           err.Error(),
		})
		return
	}
	logWithLevel(ctx, c.logger, "info", "phone number deregistered", map[string]any{
		"channel_id":      channel.ID,
		"phone_number_id": channel.Config.PhoneNumberID,
	})
}

// SetWebhook points the business account webhook at callbackURL and records
// whether the provider accepted it.
func (c *AppRegistrationCoordinator) SetWebhook(ctx context.Context, channel *Channel, provider Provider, callbackURL string) error {
	if channel == nil || provider == nil {
		return fmt.Errorf("core: channel and provider are required to set webhook")
	}
	webhookErr := provider.SetWebhook(ctx, callbackURL, channel.Config.WebhookVerifyToken)
	if errors.Is(webhookErr, ErrCapabilityNotSupported) {
		return webhookErr
	}
	updated := channel.Clone()
	updated.Config.WebhookVerified = boolPtr(webhookErr == nil)
	var saveErr error
	if strings.TrimSpace(channel.ID) != "" {
		saveErr = c.save(ctx, channel, updated)
	} else {
		*channel = updated
	}
	return errors.Join(webhookErr, saveErr)
}

func (c *AppRegistrationCoordinator) save(ctx context.Context, target *Channel, updated Channel) error {
	if c.store == nil {
		return fmt.Errorf("core: channel store is required")
	}
	saved, err := c.store.Update(ctx, updated)
	if err != nil {
		return err
	}
	*target = saved
	return nil
}
