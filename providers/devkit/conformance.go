package devkit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-channels/core"
)

func ValidateTransportAdapterConformance(
	ctx context.Context,
	adapter core.TransportAdapter,
	request core.TransportRequest,
) error {
	if adapter == nil {
		return fmt.Errorf("devkit: transport adapter is required")
	}
	if strings.TrimSpace(adapter.Kind()) == "" {
		return fmt.Errorf("devkit: transport adapter kind is required")
	}
	_, err := adapter.Do(ctx, request)
	return err
}

// ValidateProviderConformance checks the contract every provider strategy
// must keep: it reports the bound channel's kind and derives headers from
// the channel's current credentials on each call.
func ValidateProviderConformance(provider core.Provider, channel *core.Channel) error {
	if provider == nil || channel == nil {
		return fmt.Errorf("devkit: provider and channel are required")
	}
	if provider.Kind() != channel.Provider {
		return fmt.Errorf("devkit: provider kind %q does not match channel %q", provider.Kind(), channel.Provider)
	}
	if !headersCarry(provider.APIHeaders(), channel.Config.APIKey) {
		return fmt.Errorf("devkit: api headers do not carry the channel credential")
	}

	original := channel.Config.APIKey
	channel.Config.APIKey = original + "-rotated"
	defer func() { channel.Config.APIKey = original }()
	if !headersCarry(provider.APIHeaders(), channel.Config.APIKey) {
		return fmt.Errorf("devkit: api headers are cached instead of derived from the channel")
	}
	if provider.APIHeaders()["Content-Type"] != "application/json" {
		return fmt.Errorf("devkit: api headers must declare json content")
	}
	return nil
}

// ValidateUnsupportedCapabilities checks that non token bearing providers
// refuse the Graph only operations with core.ErrCapabilityNotSupported.
func ValidateUnsupportedCapabilities(ctx context.Context, provider core.Provider) error {
	checks := map[string]error{}
	_, checks["token_status"] = provider.TokenStatus(ctx, "app-token")
	_, checks["exchange_token"] = provider.ExchangeToken(ctx, "app", "secret")
	checks["refresh_token"] = provider.RefreshToken(ctx)
	_, checks["list_subscribed_apps"] = provider.ListSubscribedApps(ctx)
	checks["delete_subscribed_app"] = provider.DeleteSubscribedApp(ctx)
	checks["subscribe_app"] = provider.SubscribeApp(ctx)
	checks["register_phone"] = provider.RegisterPhone(ctx, "123456")
	checks["deregister_phone"] = provider.DeregisterPhone(ctx)
	checks["set_webhook"] = provider.SetWebhook(ctx, "https://example.test", "verify")
	for name, err := range checks {
		if !errors.Is(err, core.ErrCapabilityNotSupported) {
			return fmt.Errorf("devkit: %s should be unsupported, got %v", name, err)
		}
	}
	return nil
}

func headersCarry(headers map[string]string, credential string) bool {
	for _, value := range headers {
		if strings.Contains(value, credential) {
			return true
		}
	}
	return false
}
