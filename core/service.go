package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

type Service struct {
	config               Config
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
	reauthTracker        ReauthorizationTracker
	reauthNotifier       ReauthorizationNotifier
	eventPublisher       EventPublisher
	clock                Clock
	verifyTokenGenerator VerifyTokenGenerator
	callbackResolver     CallbackURLResolver
	hooks                *LifecycleHookCoordinator

	tokens    *TokenLifecycleManager
	apps      *AppRegistrationCoordinator
	templates *TemplateSyncEngine
}

type ServiceDependencies struct {
	Logger                  Logger
	LoggerProvider          LoggerProvider
	MetricsRecorder         MetricsRecorder
	ErrorFactory            ErrorFactory
	ErrorMapper             ErrorMapper
	PersistenceClient       any
	RepositoryFactory       any
	ConfigProvider          ConfigProvider
	OptionsResolver         OptionsResolver
	ChannelStore            ChannelStore
	ProviderFactory         ProviderFactory
	ReauthorizationTracker  ReauthorizationTracker
	ReauthorizationNotifier ReauthorizationNotifier
	EventPublisher          EventPublisher
	CallbackURLResolver     CallbackURLResolver
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("channels", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("channels"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.reauthTracker == nil {
		builder.reauthTracker = NewMemoryReauthorizationTracker()
	}
	if builder.clock == nil {
		builder.clock = func() time.Time { return time.Now().UTC() }
	}
	if builder.pinGenerator == nil {
		builder.pinGenerator = RandomPin
	}
	if builder.verifyTokenGenerator == nil {
		builder.verifyTokenGenerator = RandomVerifyToken
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.callbackResolver == nil {
		builder.callbackResolver = FrontendCallbackURLResolver{FrontendURL: finalConfig.FrontendURL}
	}
	hooks := NewLifecycleHookCoordinator()
	for _, hook := range builder.preCommitHooks {
		hooks.RegisterPreCommit(hook)
	}
	if builder.eventPublisher != nil {
		hooks.RegisterPostCommit(PublisherHook(builder.eventPublisher))
	}
	for _, hook := range builder.postCommitHooks {
		hooks.RegisterPostCommit(hook)
	}

	if builder.channelStore == nil && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			stores, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if stores != nil {
				builder.channelStore = stores.ChannelStore()
			}
		} else if stores, ok := builder.repositoryFactory.(StoreProvider); ok {
			builder.channelStore = stores.ChannelStore()
		}
	}
	if builder.channelStore == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: channel store is required"))
	}
	if builder.providerFactory == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: provider factory is required"))
	}

	return &Service{
		config:               finalConfig,
		logger:               logger,
		loggerProvider:       provider,
		metricsRecorder:      builder.metricsRecorder,
		errorFactory:         builder.errorFactory,
		errorMapper:          builder.errorMapper,
		persistenceClient:    builder.persistenceClient,
		repositoryFactory:    builder.repositoryFactory,
		configProvider:       builder.configProvider,
		optionsResolver:      builder.optionsResolver,
		channelStore:         builder.channelStore,
		providerFactory:      builder.providerFactory,
		reauthTracker:        builder.reauthTracker,
		reauthNotifier:       builder.reauthNotifier,
		eventPublisher:       builder.eventPublisher,
		clock:                builder.clock,
		verifyTokenGenerator: builder.verifyTokenGenerator,
		callbackResolver:     builder.callbackResolver,
		hooks:                hooks,
		tokens: NewTokenLifecycleManager(TokenLifecycleConfig{
			Store:          builder.channelStore,
			AppTokenSource: builder.appTokenSource,
			App:            finalConfig.App,
			RenewalHorizon: finalConfig.Token.RenewalHorizon,
			Clock:          builder.clock,
			Logger:         logger,
		}),
		apps: NewAppRegistrationCoordinator(AppRegistrationConfig{
			Store:               builder.channelStore,
			PinGenerator:        builder.pinGenerator,
			MaxDuplicateDeletes: finalConfig.Registration.MaxDuplicateDeletes,
			BestEffortTimeout:   finalConfig.RequestTimeout,
			Logger:              logger,
		}),
		templates: NewTemplateSyncEngine(TemplateSyncConfig{
			Store:    builder.channelStore,
			MaxPages: finalConfig.Templates.MaxPages,
			Clock:    builder.clock,
			Logger:   logger,
		}),
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:                  s.logger,
		LoggerProvider:          s.loggerProvider,
		MetricsRecorder:         s.metricsRecorder,
		ErrorFactory:            s.errorFactory,
		ErrorMapper:             s.errorMapper,
		PersistenceClient:       s.persistenceClient,
		RepositoryFactory:       s.repositoryFactory,
		ConfigProvider:          s.configProvider,
		OptionsResolver:         s.optionsResolver,
		ChannelStore:            s.channelStore,
		ProviderFactory:         s.providerFactory,
		ReauthorizationTracker:  s.reauthTracker,
		ReauthorizationNotifier: s.reauthNotifier,
		EventPublisher:          s.eventPublisher,
		CallbackURLResolver:     s.callbackResolver,
	}
}

func (s *Service) TokenLifecycle() *TokenLifecycleManager {
	return s.tokens
}

func (s *Service) AppRegistration() *AppRegistrationCoordinator {
	return s.apps
}

func (s *Service) TemplateSync() *TemplateSyncEngine {
	return s.templates
}

func (s *Service) GetChannel(ctx context.Context, channelID string) (Channel, error) {
	return s.loadChannel(ctx, channelID)
}

// GetChannelByPhoneNumber resolves the channel bound to a phone number.
func (s *Service) GetChannelByPhoneNumber(ctx context.Context, phoneNumber string) (Channel, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)
	if phoneNumber == "" {
		return Channel{}, s.mapError(fmt.Errorf("core: phone number is required"))
	}
	channel, err := s.channelStore.GetByPhoneNumber(ctx, phoneNumber)
	if err != nil {
		return Channel{}, s.mapError(err)
	}
	return channel, nil
}

// TemplateSyncDue lists channels whose templates were last synced before the
// configured staleness window, or never.
func (s *Service) TemplateSyncDue(ctx context.Context, limit int) ([]Channel, error) {
	before := s.now().Add(-s.config.Templates.StaleAfter)
	channels, err := s.channelStore.ListTemplateSyncDue(ctx, before, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	return channels, nil
}

func (s *Service) loadChannel(ctx context.Context, channelID string) (Channel, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return Channel{}, s.mapError(fmt.Errorf("core: channel id is required"))
	}
	channel, err := s.channelStore.Get(ctx, channelID)
	if err != nil {
		return Channel{}, s.mapError(err)
	}
	return channel, nil
}

// bind builds the provider strategy for channel. The returned provider reads
// credentials through the same pointer.
func (s *Service) bind(channel *Channel) (Provider, error) {
	provider, err := s.providerFactory.Build(channel)
	if err != nil {
		return nil, s.mapError(err)
	}
	return provider, nil
}

func (s *Service) newEvent(eventType string, channel Channel, metadata map[string]any) ChannelEvent {
	return ChannelEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		ChannelID:  channel.ID,
		AccountID:  channel.AccountID,
		Provider:   channel.Provider,
		OccurredAt: s.now(),
		Metadata:   cloneAnyMap(metadata),
	}
}

// precommit lets registered hooks veto a change before it is stored.
func (s *Service) precommit(ctx context.Context, eventType string, channel Channel) error {
	if err := s.hooks.ExecutePreCommit(ctx, s.newEvent(eventType, channel, nil)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryConflict, "core: channel change rejected").
			WithTextCode(ChannelErrorConflict)
	}
	return nil
}

// publish runs post-commit hooks. Failures are logged only.
func (s *Service) publish(ctx context.Context, eventType string, channel Channel, metadata map[string]any) {
	event := s.newEvent(eventType, channel, metadata)
	if err := s.hooks.ExecutePostCommit(ctx, event); err != nil {
		fields := channelFields(channel)
		fields["event_type"] = eventType
		fields["error"] = err.Error()
		s.logError(ctx, "channel lifecycle hooks failed", fields)
	}
}

func (s *Service) now() time.Time {
	if s == nil || s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock()
}

// newError builds a service error through the configured error factory and
// fills in the channel envelope.
func (s *Service) newError(message string, category goerrors.Category, textCode string) error {
	if s == nil || s.errorFactory == nil {
		return newChannelError(message, category, textCode)
	}
	built := s.errorFactory(message, category)
	if built == nil {
		return newChannelError(message, category, textCode)
	}
	return ensureChannelErrorEnvelope(built.WithTextCode(textCode))
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
