package core

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StoreProvider is implemented by repository factories that expose a channel store.
type StoreProvider interface {
	ChannelStore() ChannelStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type serviceBuilder struct {
	runtimeConfig        Config
	logger               Logger
	loggerProvider       LoggerProvider
	metricsRecorder      MetricsRecorder
	errorFactory         ErrorFactory
	errorMapper          ErrorMapper
	persistenceClient    any
	repositoryFactory    any
	configProvider       ConfigProvider
	optionsResolver      OptionsResolver
	channelStore         ChannelStore
	providerFactory      ProviderFactory
	appTokenSource       AppTokenSource
	reauthTracker        ReauthorizationTracker
	reauthNotifier       ReauthorizationNotifier
	eventPublisher       EventPublisher
	clock                Clock
	pinGenerator         PinGenerator
	verifyTokenGenerator VerifyTokenGenerator
	callbackResolver     CallbackURLResolver
	preCommitHooks       []LifecycleHook
	postCommitHooks      []LifecycleHook
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithChannelStore(store ChannelStore) Option {
	return func(b *serviceBuilder) {
		b.channelStore = store
	}
}

func WithProviderFactory(factory ProviderFactory) Option {
	return func(b *serviceBuilder) {
		b.providerFactory = factory
	}
}

func WithAppTokenSource(source AppTokenSource) Option {
	return func(b *serviceBuilder) {
		b.appTokenSource = source
	}
}

func WithReauthorizationTracker(tracker ReauthorizationTracker) Option {
	return func(b *serviceBuilder) {
		b.reauthTracker = tracker
	}
}

func WithReauthorizationNotifier(notifier ReauthorizationNotifier) Option {
	return func(b *serviceBuilder) {
		b.reauthNotifier = notifier
	}
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(b *serviceBuilder) {
		b.eventPublisher = publisher
	}
}

func WithClock(clock Clock) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func WithPinGenerator(generator PinGenerator) Option {
	return func(b *serviceBuilder) {
		b.pinGenerator = generator
	}
}

func WithVerifyTokenGenerator(generator VerifyTokenGenerator) Option {
	return func(b *serviceBuilder) {
		b.verifyTokenGenerator = generator
	}
}

func WithCallbackURLResolver(resolver CallbackURLResolver) Option {
	return func(b *serviceBuilder) {
		b.callbackResolver = resolver
	}
}

// WithPreCommitHook registers a hook that can veto channel changes before
// they are stored.
func WithPreCommitHook(hook LifecycleHook) Option {
	return func(b *serviceBuilder) {
		if hook != nil {
			b.preCommitHooks = append(b.preCommitHooks, hook)
		}
	}
}

func WithPostCommitHook(hook LifecycleHook) Option {
	return func(b *serviceBuilder) {
		if hook != nil {
			b.postCommitHooks = append(b.postCommitHooks, hook)
		}
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("channels", nil, nil)
	return serviceBuilder{
		runtimeConfig:        runtime,
		loggerProvider:       loggerProvider,
		logger:               logger,
		metricsRecorder:      NopMetricsRecorder{},
		errorFactory:         goerrors.New,
		errorMapper:          defaultErrorMapper,
		configProvider:       NewCfgxConfigProvider(nil),
		optionsResolver:      GoOptionsResolver{},
		reauthTracker:        NewMemoryReauthorizationTracker(),
		clock:                func() time.Time { return time.Now().UTC() },
		pinGenerator:         RandomPin,
		verifyTokenGenerator: RandomVerifyToken,
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return channelErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// EnvConfigLoader reads the deployment environment variables that configure
// the Graph and 360dialog integrations.
type EnvConfigLoader struct {
	Lookup func(key string) (string, bool)
}

var envConfigKeys = map[string][]string{
	"WHATSAPP_CLOUD_BASE_URL": {"graph", "base_url"},
	"WHATSAPP_360_BASE_URL":   {"dialog", "base_url"},
	"FB_APP_ID":               {"app", "id"},
	"FB_APP_SECRET":           {"app", "secret"},
	"FB_APP_ACCESS_ID":        {"app", "access_token"},
	"FRONTEND_URL":            {"frontend_url"},
}

func (l EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	out := map[string]any{}
	for key, path := range envConfigKeys {
		value, ok := lookup(key)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		setNested(out, path, strings.TrimSpace(value))
	}
	return out, nil
}

func setNested(target map[string]any, path []string, value any) {
	current := target
	for _, segment := range path[:len(path)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[segment] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

type layerBuilder struct {
	includeZero bool
	values      map[string]any
}

func (b layerBuilder) str(path []string, value string) {
	if b.includeZero || strings.TrimSpace(value) != "" {
		setNested(b.values, path, strings.TrimSpace(value))
	}
}

func (b layerBuilder) integer(path []string, value int) {
	if b.includeZero || value != 0 {
		setNested(b.values, path, value)
	}
}

func (b layerBuilder) duration(path []string, value time.Duration) {
	if b.includeZero || value != 0 {
		setNested(b.values, path, value)
	}
}

func (b layerBuilder) boolean(path []string, value bool) {
	if b.includeZero || value {
		setNested(b.values, path, value)
	}
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	b := layerBuilder{includeZero: includeZero, values: map[string]any{}}
	b.str([]string{"service_name"}, cfg.ServiceName)
	b.str([]string{"frontend_url"}, cfg.FrontendURL)
	b.duration([]string{"request_timeout"}, cfg.RequestTimeout)

	b.str([]string{"graph", "base_url"}, cfg.Graph.BaseURL)
	b.str([]string{"graph", "phone_version"}, cfg.Graph.PhoneVersion)
	b.str([]string{"graph", "business_version"}, cfg.Graph.BusinessVersion)
	b.str([]string{"graph", "oauth_version"}, cfg.Graph.OAuthVersion)
	b.str([]string{"graph", "deregister_version"}, cfg.Graph.DeregisterVersion)
	b.str([]string{"graph", "webhook_version"}, cfg.Graph.WebhookVersion)
	b.str([]string{"dialog", "base_url"}, cfg.Dialog.BaseURL)

	b.str([]string{"app", "id"}, cfg.App.ID)
	b.str([]string{"app", "secret"}, cfg.App.Secret)
	b.str([]string{"app", "access_token"}, cfg.App.AccessToken)

	b.duration([]string{"token", "renewal_horizon"}, cfg.Token.RenewalHorizon)
	b.integer([]string{"templates", "max_pages"}, cfg.Templates.MaxPages)
	b.duration([]string{"templates", "stale_after"}, cfg.Templates.StaleAfter)
	b.integer([]string{"registration", "max_duplicate_deletes"}, cfg.Registration.MaxDuplicateDeletes)
	b.boolean([]string{"registration", "embedded_set_webhook"}, cfg.Registration.EmbeddedSetWebhook)
	b.integer([]string{"reauthorization", "threshold"}, cfg.Reauthorization.Threshold)
	return b.values
}
