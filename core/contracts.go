package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

// Success reports a 2xx status.
func (r TransportResponse) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// Provider is the per channel strategy bound to one backend. Implementations
// read credentials from the channel they were built for on every call, so a
// token rotated by the lifecycle manager is visible immediately.
type Provider interface {
	Kind() ProviderKind

	SendMessage(ctx context.Context, to string, msg OutgoingMessage) (string, error)
	SendTemplate(ctx context.Context, to string, info TemplateInfo) (string, error)
	// FetchTemplates loads one template page. An empty pageURL requests the first page.
	FetchTemplates(ctx context.Context, pageURL string) (TemplatePage, error)
	MediaURL(mediaID string) string
	APIHeaders() map[string]string
	ValidateConfig(ctx context.Context) error

	TokenStatus(ctx context.Context, appAccessToken string) (TokenStatus, error)
	ExchangeToken(ctx context.Context, appID string, appSecret string) (TokenGrant, error)
	RefreshToken(ctx context.Context) error

	ListSubscribedApps(ctx context.Context) ([]SubscribedApp, error)
	DeleteSubscribedApp(ctx context.Context) error
	SubscribeApp(ctx context.Context) error
	RegisterPhone(ctx context.Context, pin string) error
	DeregisterPhone(ctx context.Context) error
	SetWebhook(ctx context.Context, callbackURL string, verifyToken string) error
}

// ProviderFactory binds a provider strategy to a channel. The channel pointer
// is retained so later credential updates are observed.
type ProviderFactory interface {
	Build(channel *Channel) (Provider, error)
}

type ChannelStore interface {
	Create(ctx context.Context, channel Channel) (Channel, error)
	Get(ctx context.Context, id string) (Channel, error)
	GetByPhoneNumber(ctx context.Context, phoneNumber string) (Channel, error)
	Update(ctx context.Context, channel Channel) (Channel, error)
	// TouchTemplatesUpdated writes only message_templates_last_updated.
	TouchTemplatesUpdated(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	ListTemplateSyncDue(ctx context.Context, before time.Time, limit int) ([]Channel, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// AppTokenSource supplies the app access token used to introspect channel tokens.
type AppTokenSource interface {
	AppAccessToken(ctx context.Context) (string, error)
}

type ReauthorizationState struct {
	ErrorCount int
	Required   bool
}

type ReauthorizationTracker interface {
	Increment(ctx context.Context, channelID string) (int, error)
	MarkRequired(ctx context.Context, channelID string) error
	State(ctx context.Context, channelID string) (ReauthorizationState, error)
	Reset(ctx context.Context, channelID string) error
}

type ReauthorizationNotifier interface {
	NotifyReauthorizationRequired(ctx context.Context, channel Channel) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event ChannelEvent) error
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

// PinGenerator draws registration PINs. It must return a fresh value per call.
type PinGenerator func() string

// VerifyTokenGenerator draws webhook verify tokens.
type VerifyTokenGenerator func() (string, error)

type Clock func() time.Time
