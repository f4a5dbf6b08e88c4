package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrChannelNotFound        = errors.New("core: channel not found")
	ErrCapabilityNotSupported = errors.New("core: capability not supported")
	ErrTemplatePageLoop       = errors.New("core: template pagination repeated a page link")
	ErrTemplatePageLimit      = errors.New("core: template pagination exceeded page limit")
)

type ProviderKind string

const (
	ProviderDefault          ProviderKind = "default"
	ProviderWhatsAppCloud    ProviderKind = "whatsapp_cloud"
	ProviderWhatsAppEmbedded ProviderKind = "whatsapp_embedded"
)

// ParseProviderKind normalizes a stored discriminator. Unknown values fall
// back to the default provider.
func ParseProviderKind(raw string) ProviderKind {
	switch ProviderKind(strings.ToLower(strings.TrimSpace(raw))) {
	case ProviderWhatsAppCloud:
		return ProviderWhatsAppCloud
	case ProviderWhatsAppEmbedded:
		return ProviderWhatsAppEmbedded
	default:
		return ProviderDefault
	}
}

func (k ProviderKind) Recognized() bool {
	switch k {
	case ProviderDefault, ProviderWhatsAppCloud, ProviderWhatsAppEmbedded:
		return true
	default:
		return false
	}
}

// TokenBearing reports whether the provider authenticates with an exchangeable
// Graph access token and needs a webhook verify token.
func (k ProviderKind) TokenBearing() bool {
	return k == ProviderWhatsAppCloud || k == ProviderWhatsAppEmbedded
}

type Channel struct {
	ID                          string
	AccountID                   string
	PhoneNumber                 string
	Provider                    ProviderKind
	Config                      ProviderConfig
	MessageTemplates            []Template
	MessageTemplatesLastUpdated *time.Time
	CreatedAt                   time.Time
	UpdatedAt                   time.Time
}

func (c Channel) Clone() Channel {
	out := c
	out.Config = c.Config.Clone()
	out.MessageTemplates = cloneTemplates(c.MessageTemplates)
	if c.MessageTemplatesLastUpdated != nil {
		value := *c.MessageTemplatesLastUpdated
		out.MessageTemplatesLastUpdated = &value
	}
	return out
}

type Template struct {
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name"`
	Language   string          `json:"language"`
	Status     string          `json:"status,omitempty"`
	Category   string          `json:"category,omitempty"`
	Namespace  string          `json:"namespace,omitempty"`
	Components json.RawMessage `json:"components,omitempty"`
}

func cloneTemplates(in []Template) []Template {
	if in == nil {
		return nil
	}
	out := make([]Template, len(in))
	for i, tpl := range in {
		out[i] = tpl
		out[i].Components = append(json.RawMessage(nil), tpl.Components...)
	}
	return out
}

// TemplatePage is a single page of a provider template listing. Next is the
// absolute URL of the following page, empty on the last page.
type TemplatePage struct {
	Templates []Template
	Next      string
}

const ContentTypeInputSelect = "input_select"

type Attachment struct {
	FileType    string
	DownloadURL string
	FileName    string
}

type SelectItem struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

type OutgoingMessage struct {
	Content             string
	ContentType         string
	Attachments         []Attachment
	Items               []SelectItem
	InReplyToExternalID string
}

type TemplateParameter struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type TemplateInfo struct {
	Name       string
	Namespace  string
	LangCode   string
	Parameters []TemplateParameter
}

// TokenStatus mirrors the debug_token payload. ExpiresAt is unix seconds and
// zero means the token never expires.
type TokenStatus struct {
	ExpiresAt int64
	IsValid   bool
	Scopes    []string
}

func (s TokenStatus) NeverExpires() bool {
	return s.ExpiresAt == 0
}

func (s TokenStatus) ExpiresAtTime() time.Time {
	return time.Unix(s.ExpiresAt, 0).UTC()
}

// TokenGrant is the outcome of a long-lived token exchange. ExpiresIn is nil
// when the provider omitted a lifetime.
type TokenGrant struct {
	AccessToken string
	ExpiresIn   *int64
}

type SubscribedApp struct {
	ID   string
	Name string
	Link string
}

type SyncOutcome string

const (
	SyncOutcomeReplaced SyncOutcome = "replaced"
	SyncOutcomeEmpty    SyncOutcome = "empty"
	SyncOutcomeFailed   SyncOutcome = "failed"
)

type TemplateSyncResult struct {
	ChannelID     string
	Outcome       SyncOutcome
	Pages         int
	Count         int
	SyncedAt      time.Time
	FailureReason string
}

type TokenRenewalResult struct {
	ChannelID   string
	Renewed     bool
	Status      TokenStatus
	TokenExpiry TokenExpiry
}

type CreateChannelRequest struct {
	AccountID   string
	PhoneNumber string
	Provider    string
	Config      ProviderConfig
}

type UpdateChannelRequest struct {
	ChannelID   string
	PhoneNumber string
	Config      *ProviderConfig
}

type SendMessageRequest struct {
	ChannelID string
	To        string
	Message   OutgoingMessage
}

type SendTemplateRequest struct {
	ChannelID string
	To        string
	Template  TemplateInfo
}

type SendResult struct {
	To        string
	MessageID string
	Delivered bool
}

const (
	EventChannelCreated                 = "channel.created"
	EventChannelUpdated                 = "channel.updated"
	EventChannelDestroyed               = "channel.destroyed"
	EventChannelTemplatesSynced         = "channel.templates_synced"
	EventChannelReauthorizationRequired = "channel.reauthorization_required"
	EventChannelTokenRenewed            = "channel.token_renewed"
)

type ChannelEvent struct {
	ID         string
	Type       string
	ChannelID  string
	AccountID  string
	Provider   ProviderKind
	OccurredAt time.Time
	Metadata   map[string]any
}
