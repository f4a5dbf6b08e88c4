// Package dialog implements the legacy 360dialog strategy, the default for
// channels without a Graph provider.
package dialog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-channels/providers/payload"
	"github.com/goliatone/go-channels/transport"
)

const apiKeyHeader = "D360-API-KEY"

// Provider authenticates with a static partner API key. It has no token,
// app or webhook lifecycle.
type Provider struct {
	channel   *core.Channel
	client    *transport.Client
	baseURL   string
	callbacks core.CallbackURLResolver
}

func New(channel *core.Channel, client *transport.Client, cfg core.DialogConfig, callbacks core.CallbackURLResolver) *Provider {
	if client == nil {
		client = transport.NewClient(nil, 0)
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = core.DefaultDialogBaseURL
	}
	return &Provider{channel: channel, client: client, baseURL: base, callbacks: callbacks}
}

func (p *Provider) Kind() core.ProviderKind {
	return core.ProviderDefault
}

func (p *Provider) SendMessage(ctx context.Context, to string, msg core.OutgoingMessage) (string, error) {
	res, err := p.call(ctx, http.MethodPost, p.baseURL+"/messages", payload.Message(payload.DialectDialog, to, msg), "send message")
	if err != nil {
		return "", err
	}
	return payload.MessageID(res)
}

func (p *Provider) SendTemplate(ctx context.Context, to string, info core.TemplateInfo) (string, error) {
	res, err := p.call(ctx, http.MethodPost, p.baseURL+"/messages", payload.Template(payload.DialectDialog, to, info), "send template")
	if err != nil {
		return "", err
	}
	return payload.MessageID(res)
}

type templatesResponse struct {
	Templates []struct {
		Name       string          `json:"name"`
		Language   string          `json:"language"`
		Status     string          `json:"status"`
		Category   string          `json:"category"`
		Namespace  string          `json:"namespace"`
		Components json.RawMessage `json:"components"`
	} `json:"waba_templates"`
}

// FetchTemplates returns the whole listing in a single page; 360dialog does
// not paginate templates.
func (p *Provider) FetchTemplates(ctx context.Context, _ string) (core.TemplatePage, error) {
	res, err := p.call(ctx, http.MethodGet, p.baseURL+"/configs/templates", nil, "fetch templates")
	if err != nil {
		return core.TemplatePage{}, err
	}
	var decoded templatesResponse
	if err := transport.DecodeJSON(res, &decoded); err != nil {
		return core.TemplatePage{}, err
	}
	page := core.TemplatePage{Templates: make([]core.Template, 0, len(decoded.Templates))}
	for _, item := range decoded.Templates {
		page.Templates = append(page.Templates, core.Template{
			Name:       item.Name,
			Language:   item.Language,
			Status:     item.Status,
			Category:   item.Category,
			Namespace:  item.Namespace,
			Components: item.Components,
		})
	}
	return page, nil
}

func (p *Provider) MediaURL(mediaID string) string {
	return p.baseURL + "/media/" + url.PathEscape(mediaID)
}

func (p *Provider) APIHeaders() map[string]string {
	key := ""
	if p.channel != nil {
		key = strings.TrimSpace(p.channel.Config.APIKey)
	}
	return map[string]string{
		apiKeyHeader:   key,
		"Content-Type": "application/json",
	}
}

// ValidateConfig registers the channel webhook, which 360dialog only accepts
// for a valid API key.
func (p *Provider) ValidateConfig(ctx context.Context) error {
	if p.callbacks == nil || p.channel == nil {
		return core.ErrCapabilityNotSupported
	}
	callbackURL, err := p.callbacks.ResolveCallbackURL(ctx, *p.channel)
	if err != nil {
		return err
	}
	_, err = p.call(ctx, http.MethodPost, p.baseURL+"/configs/webhook", map[string]any{"url": callbackURL}, "validate config")
	return err
}

func (p *Provider) TokenStatus(context.Context, string) (core.TokenStatus, error) {
	return core.TokenStatus{}, core.ErrCapabilityNotSupported
}

func (p *Provider) ExchangeToken(context.Context, string, string) (core.TokenGrant, error) {
	return core.TokenGrant{}, core.ErrCapabilityNotSupported
}

func (p *Provider) RefreshToken(context.Context) error {
	return core.ErrCapabilityNotSupported
}

func (p *Provider) ListSubscribedApps(context.Context) ([]core.SubscribedApp, error) {
	return nil, core.ErrCapabilityNotSupported
}

func (p *Provider) DeleteSubscribedApp(context.Context) error {
	return core.ErrCapabilityNotSupported
}

func (p *Provider) SubscribeApp(context.Context) error {
	return core.ErrCapabilityNotSupported
}

func (p *Provider) RegisterPhone(context.Context, string) error {
	return core.ErrCapabilityNotSupported
}

func (p *Provider) DeregisterPhone(context.Context) error {
	return core.ErrCapabilityNotSupported
}

func (p *Provider) SetWebhook(context.Context, string, string) error {
	return core.ErrCapabilityNotSupported
}

func (p *Provider) call(ctx context.Context, method string, target string, body any, operation string) (core.TransportResponse, error) {
	res, err := p.client.Do(ctx, method, target, p.APIHeaders(), body)
	if err != nil {
		return res, err
	}
	if err := payload.ResponseError(res, operation); err != nil {
		return res, err
	}
	return res, nil
}

var _ core.Provider = (*Provider)(nil)
