package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// CallbackURLResolver builds the webhook callback URL a provider should
// deliver inbound traffic to for a channel.
type CallbackURLResolver interface {
	ResolveCallbackURL(ctx context.Context, channel Channel) (string, error)
}

type CallbackURLResolverFunc func(ctx context.Context, channel Channel) (string, error)

func (fn CallbackURLResolverFunc) ResolveCallbackURL(ctx context.Context, channel Channel) (string, error) {
	if fn == nil {
		return "", nil
	}
	callback, err := fn(ctx, channel)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(callback), nil
}

// FrontendCallbackURLResolver resolves {frontend}/webhooks/whatsapp/{phone_number}.
type FrontendCallbackURLResolver struct {
	FrontendURL string
}

func (r FrontendCallbackURLResolver) ResolveCallbackURL(_ context.Context, channel Channel) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(r.FrontendURL), "/")
	if base == "" {
		return "", fmt.Errorf("core: frontend url is required to build webhook callback")
	}
	phone := strings.TrimSpace(channel.PhoneNumber)
	if phone == "" {
		return "", fmt.Errorf("core: phone number is required to build webhook callback")
	}
	return base + "/webhooks/whatsapp/" + url.PathEscape(phone), nil
}
