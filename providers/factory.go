package providers

import (
	"fmt"

	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-channels/providers/dialog"
	"github.com/goliatone/go-channels/providers/graph"
	"github.com/goliatone/go-channels/transport"
	glog "github.com/goliatone/go-logger/glog"
)

type FactoryOption func(*Factory)

// WithCallbackURLResolver overrides the webhook callback used by 360dialog
// config validation.
func WithCallbackURLResolver(resolver core.CallbackURLResolver) FactoryOption {
	return func(f *Factory) {
		if resolver != nil {
			f.callbacks = resolver
		}
	}
}

func WithLogger(logger core.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// Factory implements core.ProviderFactory over a shared transport client.
type Factory struct {
	config    core.Config
	client    *transport.Client
	callbacks core.CallbackURLResolver
	logger    core.Logger
}

func NewFactory(cfg core.Config, adapter core.TransportAdapter, opts ...FactoryOption) *Factory {
	factory := &Factory{
		config:    cfg,
		client:    transport.NewClient(adapter, cfg.RequestTimeout),
		callbacks: core.FrontendCallbackURLResolver{FrontendURL: cfg.FrontendURL},
		logger:    glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

// Build selects the strategy for channel. Unknown discriminators fail
// closed to the 360dialog strategy, which holds no Graph privileges.
func (f *Factory) Build(channel *core.Channel) (core.Provider, error) {
	if channel == nil {
		return nil, fmt.Errorf("providers: channel is required")
	}
	switch channel.Provider {
	case core.ProviderWhatsAppCloud:
		return graph.NewCloud(channel, f.client, f.config.Graph), nil
	case core.ProviderWhatsAppEmbedded:
		return graph.NewEmbedded(channel, f.client, f.config.Graph), nil
	case core.ProviderDefault:
		return dialog.New(channel, f.client, f.config.Dialog, f.callbacks), nil
	default:
		f.logger.Warn("unknown channel provider, using default", "channel_id", channel.ID, "provider", string(channel.Provider))
		return dialog.New(channel, f.client, f.config.Dialog, f.callbacks), nil
	}
}

var _ core.ProviderFactory = (*Factory)(nil)
