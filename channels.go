package channels

import "github.com/goliatone/go-channels/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Channel = core.Channel
type ProviderKind = core.ProviderKind
type ProviderConfig = core.ProviderConfig
type Template = core.Template
type ChannelEvent = core.ChannelEvent
type LifecycleHook = core.LifecycleHook

type CreateChannelRequest = core.CreateChannelRequest
type UpdateChannelRequest = core.UpdateChannelRequest
type SendMessageRequest = core.SendMessageRequest
type SendTemplateRequest = core.SendTemplateRequest

const (
	ProviderDefault          = core.ProviderDefault
	ProviderWhatsAppCloud    = core.ProviderWhatsAppCloud
	ProviderWhatsAppEmbedded = core.ProviderWhatsAppEmbedded
)

var (
	WithLogger                  = core.WithLogger
	WithLoggerProvider          = core.WithLoggerProvider
	WithMetricsRecorder         = core.WithMetricsRecorder
	WithErrorFactory            = core.WithErrorFactory
	WithErrorMapper             = core.WithErrorMapper
	WithPersistenceClient       = core.WithPersistenceClient
	WithRepositoryFactory       = core.WithRepositoryFactory
	WithConfigProvider          = core.WithConfigProvider
	WithOptionsResolver         = core.WithOptionsResolver
	WithChannelStore            = core.WithChannelStore
	WithProviderFactory         = core.WithProviderFactory
	WithAppTokenSource          = core.WithAppTokenSource
	WithReauthorizationTracker  = core.WithReauthorizationTracker
	WithReauthorizationNotifier = core.WithReauthorizationNotifier
	WithEventPublisher          = core.WithEventPublisher
	WithClock                   = core.WithClock
	WithCallbackURLResolver     = core.WithCallbackURLResolver
	WithPreCommitHook           = core.WithPreCommitHook
	WithPostCommitHook          = core.WithPostCommitHook
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
