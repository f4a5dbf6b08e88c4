package graph

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

// Provider talks to the Graph API on behalf of one channel. Credentials are
// read from the bound channel on every call.
type Provider struct {
	kind    core.ProviderKind
	channel *core.Channel
	client  *transport.Client
	cfg     core.GraphConfig
}

func NewCloud(channel *core.Channel, client *transport.Client, cfg core.GraphConfig) *Provider {
	return newProvider(core.ProviderWhatsAppCloud, channel, client, cfg)
}

func NewEmbedded(channel *core.Channel, client *transport.Client, cfg core.GraphConfig) *Provider {
	return newProvider(core.ProviderWhatsAppEmbedded, channel, client, cfg)
}

func newProvider(kind core.ProviderKind, channel *core.Channel, client *transport.Client, cfg core.GraphConfig) *Provider {
	if client == nil {
		client = transport.NewClient(nil, 0)
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = core.DefaultGraphBaseURL
	}
	return &Provider{kind: kind, channel: channel, client: client, cfg: cfg}
}

func (p *Provider) Kind() core.ProviderKind {
	return p.kind
}

func (p *Provider) SendMessage(ctx context.Context, to string, msg core.OutgoingMessage) (string, error) {
	res, err := p.call(ctx, http.MethodPost, p.phonePath("messages"), payload.Message(payload.DialectGraph, to, msg), "send message")
	if err != nil {
		return "", err
	}
	return payload.MessageID(res)
}

func (p *Provider) SendTemplate(ctx context.Context, to string, info core.TemplateInfo) (string, error) {
	res, err := p.call(ctx, http.MethodPost, p.phonePath("messages"), payload.Template(payload.DialectGraph, to, info), "send template")
	if err != nil {
		return "", err
	}
	return payload.MessageID(res)
}

type templatePage struct {
	Data []struct {
		ID         string          `json:"id"`
		Name       string          `json:"name"`
		Language   string          `json:"language"`
		Status     string          `json:"status"`
		Category   string          `json:"category"`
		Components json.RawMessage `json:"components"`
	} `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

func (p *Provider) FetchTemplates(ctx context.Context, pageURL string) (core.TemplatePage, error) {
	if strings.TrimSpace(pageURL) == "" {
		pageURL = p.templatesURL()
	}
	res, err := p.call(ctx, http.MethodGet, pageURL, nil, "fetch templates")
	if err != nil {
		return core.TemplatePage{}, err
	}
	var decoded templatePage
	if err := transport.DecodeJSON(res, &decoded); err != nil {
		return core.TemplatePage{}, err
	}
	page := core.TemplatePage{Next: decoded.Paging.Next, Templates: make([]core.Template, 0, len(decoded.Data))}
	for _, item := range decoded.Data {
		page.Templates = append(page.Templates, core.Template{
			ID:         item.ID,
			Name:       item.Name,
			Language:   item.Language,
			Status:     item.Status,
			Category:   item.Category,
			Components: item.Components,
		})
	}
	return page, nil
}

func (p *Provider) MediaURL(mediaID string) string {
	return p.versioned(p.cfg.PhoneVersion, url.PathEscape(mediaID))
}

func (p *Provider) APIHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + p.apiKey(),
		"Content-Type":  "application/json",
	}
}

// ValidateConfig lists templates, the cheapest call that exercises both the
// token and the business account id.
func (p *Provider) ValidateConfig(ctx context.Context) error {
	_, err := p.call(ctx, http.MethodGet, p.templatesURL(), nil, "validate config")
	return err
}

type debugTokenResponse struct {
	Data struct {
		ExpiresAt int64    `json:"expires_at"`
		IsValid   bool     `json:"is_valid"`
		Scopes    []string `json:"scopes"`
	} `json:"data"`
}

func (p *Provider) TokenStatus(ctx context.Context, appAccessToken string) (core.TokenStatus, error) {
	query := url.Values{}
	query.Set("input_token", p.apiKey())
	query.Set("access_token", appAccessToken)
	res, err := p.call(ctx, http.MethodGet, p.versioned(p.cfg.OAuthVersion, "debug_token")+"?"+query.Encode(), nil, "debug token")
	if err != nil {
		return core.TokenStatus{}, err
	}
	var decoded debugTokenResponse
	if err := transport.DecodeJSON(res, &decoded); err != nil {
		return core.TokenStatus{}, err
	}
	return core.TokenStatus{
		ExpiresAt: decoded.Data.ExpiresAt,
		IsValid:   decoded.Data.IsValid,
		Scopes:    decoded.Data.Scopes,
	}, nil
}

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   *int64 `json:"expires_in"`
}

func (p *Provider) ExchangeToken(ctx context.Context, appID string, appSecret string) (core.TokenGrant, error) {
	query := url.Values{}
	query.Set("grant_type", "fb_exchange_token")
	query.Set("client_id", appID)
	query.Set("client_secret", appSecret)
	query.Set("fb_exchange_token", p.apiKey())
	res, err := p.call(ctx, http.MethodGet, p.versioned(p.cfg.OAuthVersion, "oauth/access_token")+"?"+query.Encode(), nil, "exchange token")
	if err != nil {
		return core.TokenGrant{}, err
	}
	var decoded exchangeResponse
	if err := transport.DecodeJSON(res, &decoded); err != nil {
		return core.TokenGrant{}, err
	}
	return core.TokenGrant{AccessToken: decoded.AccessToken, ExpiresIn: decoded.ExpiresIn}, nil
}

func (p *Provider) RefreshToken(ctx context.Context) error {
	query := url.Values{}
	query.Set("access_token", p.apiKey())
	_, err := p.call(ctx, http.MethodGet, p.versioned(p.cfg.OAuthVersion, "me")+"?"+query.Encode(), nil, "refresh token")
	return err
}

type subscribedAppsResponse struct {
	Data []struct {
		App struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Link string `json:"link"`
		} `json:"whatsapp_business_api_data"`
	} `json:"data"`
}

func (p *Provider) ListSubscribedApps(ctx context.Context) ([]core.SubscribedApp, error) {
	res, err := p.call(ctx, http.MethodGet, p.subscribedAppsURL(p.cfg.OAuthVersion), nil, "list subscribed apps")
	if err != nil {
		return nil, err
	}
	var decoded subscribedAppsResponse
	if err := transport.DecodeJSON(res, &decoded); err != nil {
		return nil, err
	}
	apps := make([]core.SubscribedApp, 0, len(decoded.Data))
	for _, item := range decoded.Data {
		apps = append(apps, core.SubscribedApp{ID: item.App.ID, Name: item.App.Name, Link: item.App.Link})
	}
	return apps, nil
}

func (p *Provider) DeleteSubscribedApp(ctx context.Context) error {
	_, err := p.call(ctx, http.MethodDelete, p.subscribedAppsURL(p.cfg.OAuthVersion), nil, "delete subscribed app")
	return err
}

func (p *Provider) SubscribeApp(ctx context.Context) error {
	_, err := p.call(ctx, http.MethodPost, p.subscribedAppsURL(p.cfg.OAuthVersion), nil, "subscribe app")
	return err
}

func (p *Provider) RegisterPhone(ctx context.Context, pin string) error {
	body := map[string]any{"messaging_product": "whatsapp", "pin": pin}
	_, err := p.call(ctx, http.MethodPost, p.versioned(p.cfg.OAuthVersion, url.PathEscape(p.config().PhoneNumberID), "register"), body, "register phone")
	return err
}

func (p *Provider) DeregisterPhone(ctx context.Context) error {
	_, err := p.call(ctx, http.MethodPost, p.versioned(p.cfg.DeregisterVersion, url.PathEscape(p.config().PhoneNumberID), "deregister"), nil, "deregister phone")
	return err
}

// SetWebhook overrides the business account callback. Only embedded signup
// channels own their webhook; cloud channels share the app level one.
func (p *Provider) SetWebhook(ctx context.Context, callbackURL string, verifyToken string) error {
	if p.kind != core.ProviderWhatsAppEmbedded {
		return core.ErrCapabilityNotSupported
	}
	body := map[string]any{
		"override_callback_uri": callbackURL,
		"verify_token":          verifyToken,
	}
	_, err := p.call(ctx, http.MethodPost, p.subscribedAppsURL(p.cfg.WebhookVersion), body, "set webhook")
	return err
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

func (p *Provider) templatesURL() string {
	query := url.Values{}
	query.Set("access_token", p.apiKey())
	return p.versioned(p.cfg.BusinessVersion, url.PathEscape(p.config().BusinessAccountID), "message_templates") + "?" + query.Encode()
}

func (p *Provider) subscribedAppsURL(version string) string {
	return p.versioned(version, url.PathEscape(p.config().BusinessAccountID), "subscribed_apps")
}

func (p *Provider) phonePath(suffix string) string {
	return p.versioned(p.cfg.PhoneVersion, url.PathEscape(p.config().PhoneNumberID), suffix)
}

func (p *Provider) versioned(version string, segments ...string) string {
	parts := append([]string{p.cfg.BaseURL, strings.Trim(version, "/")}, segments...)
	return strings.Join(parts, "/")
}

func (p *Provider) config() core.ProviderConfig {
	if p.channel == nil {
		return core.ProviderConfig{}
	}
	return p.channel.Config
}

func (p *Provider) apiKey() string {
	return strings.TrimSpace(p.config().APIKey)
}

var _ core.Provider = (*Provider)(nil)
