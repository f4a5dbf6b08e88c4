package core

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

type staticStoreProvider struct {
	store ChannelStore
}

func (p staticStoreProvider) ChannelStore() ChannelStore {
	return p.store
}

type staticStoreFactory struct {
	store  ChannelStore
	client any
	err    error
}

func (f *staticStoreFactory) BuildStores(client any) (StoreProvider, error) {
	f.client = client
	if f.err != nil {
		return nil, f.err
	}
	return staticStoreProvider{store: f.store}, nil
}

func requiredOptions() []Option {
	return []Option{
		WithChannelStore(newMemoryChannelStore()),
		WithProviderFactory(&scriptedFactory{provider: newScriptedProvider()}),
	}
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(Config{}, requiredOptions()...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deps := svc.Dependencies()
	if deps.Logger == nil {
		t.Fatalf("expected default logger")
	}
	if deps.LoggerProvider == nil {
		t.Fatalf("expected default logger provider")
	}
	if deps.ErrorFactory == nil || deps.ErrorMapper == nil {
		t.Fatalf("expected default error factory and mapper")
	}
	if deps.ConfigProvider == nil || deps.OptionsResolver == nil {
		t.Fatalf("expected default config provider and options resolver")
	}
	if deps.ReauthorizationTracker == nil {
		t.Fatalf("expected in-memory reauthorization tracker")
	}
	if _, ok := deps.CallbackURLResolver.(FrontendCallbackURLResolver); !ok {
		t.Fatalf("expected frontend callback resolver, got %T", deps.CallbackURLResolver)
	}
	cfg := svc.Config()
	if cfg.ServiceName != "channels" {
		t.Fatalf("expected default service_name=channels, got %q", cfg.ServiceName)
	}
	if cfg.Graph.BaseURL != DefaultGraphBaseURL || cfg.Token.RenewalHorizon != DefaultRenewalHorizon {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestNewService_RequiresStoreAndProviderFactory(t *testing.T) {
	if _, err := NewService(Config{}); err == nil {
		t.Fatalf("expected missing store error")
	}
	if _, err := NewService(Config{}, WithChannelStore(newMemoryChannelStore())); err == nil {
		t.Fatalf("expected missing provider factory error")
	}
}

func TestNewService_WithXOverrides(t *testing.T) {
	customLogger := stubLogger{}
	customProvider := stubLoggerProvider{logger: customLogger}
	customFactory := func(message string, category ...goerrors.Category) *goerrors.Error {
		return goerrors.New("custom:"+message, category...)
	}
	sentinel := errors.New("sentinel")
	customMapper := func(error) *goerrors.Error {
		return goerrors.Wrap(sentinel, goerrors.CategoryOperation, "mapped")
	}
	persistenceClient := &struct{ Name string }{Name: "persistence"}
	store := newMemoryChannelStore()
	repositoryFactory := &staticStoreFactory{store: store}
	configProvider := &fixedConfigProvider{cfg: Config{ServiceName: "from-provider"}}
	resolved := DefaultConfig()
	resolved.ServiceName = "resolved"
	optionsResolver := &fixedOptionsResolver{cfg: resolved}

	svc, err := NewService(Config{ServiceName: "runtime"},
		WithLogger(customLogger),
		WithLoggerProvider(customProvider),
		WithErrorFactory(customFactory),
		WithErrorMapper(customMapper),
		WithPersistenceClient(persistenceClient),
		WithRepositoryFactory(repositoryFactory),
		WithConfigProvider(configProvider),
		WithOptionsResolver(optionsResolver),
		WithProviderFactory(&scriptedFactory{provider: newScriptedProvider()}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := svc.Dependencies()
	if deps.Logger != customLogger {
		t.Fatalf("expected custom logger override")
	}
	if resolved := deps.LoggerProvider.GetLogger("channels.override"); resolved != customLogger {
		t.Fatalf("expected logger provider to resolve custom logger")
	}
	if deps.PersistenceClient != persistenceClient {
		t.Fatalf("expected custom persistence client override")
	}
	if repositoryFactory.client != persistenceClient {
		t.Fatalf("expected repository factory to receive the persistence client")
	}
	if deps.ChannelStore != store {
		t.Fatalf("expected store built by repository factory")
	}
	if deps.ConfigProvider != configProvider || deps.OptionsResolver != optionsResolver {
		t.Fatalf("expected custom config provider and options resolver")
	}
	if got := svc.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected options resolver output config, got %q", got)
	}
	if mapped := svc.mapError(errors.New("boom")); !errors.Is(mapped, sentinel) {
		t.Fatalf("expected custom mapper to be used, got %v", mapped)
	}
}

func TestNewService_RepositoryFactoryErrorIsMapped(t *testing.T) {
	_, err := NewService(Config{},
		WithRepositoryFactory(&staticStoreFactory{err: errors.New("database is required")}),
		WithProviderFactory(&scriptedFactory{provider: newScriptedProvider()}),
	)
	var richErr *goerrors.Error
	if !errors.As(err, &richErr) || richErr.TextCode != ChannelErrorBadInput {
		t.Fatalf("expected mapped build error, got %v", err)
	}
}

func TestNewService_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name": "from-config",
		"frontend_url": "https://frontend.example",
		"templates": map[string]any{
			"max_pages": 5,
		},
	}})

	svc, err := NewService(Config{ServiceName: "from-runtime"}, append(requiredOptions(), WithConfigProvider(provider))...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cfg := svc.Config()
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime value to override config/default, got %q", cfg.ServiceName)
	}
	if cfg.FrontendURL != "https://frontend.example" {
		t.Fatalf("expected config layer frontend url, got %q", cfg.FrontendURL)
	}
	if cfg.Templates.MaxPages != 5 {
		t.Fatalf("expected config layer max pages, got %d", cfg.Templates.MaxPages)
	}
	if cfg.Templates.StaleAfter != 3*time.Hour {
		t.Fatalf("expected default stale window, got %s", cfg.Templates.StaleAfter)
	}
}

func TestEnvConfigLoader_MapsLegacyVariables(t *testing.T) {
	env := map[string]string{
		"WHATSAPP_CLOUD_BASE_URL": "https://graph.test",
		"WHATSAPP_360_BASE_URL":   "https://d360.test/v1",
		"FB_APP_ID":               "app_9",
		"FB_APP_SECRET":           "secret_9",
		"FB_APP_ACCESS_ID":        "app-token-9",
		"FRONTEND_URL":            "https://frontend.test",
	}
	loader := EnvConfigLoader{Lookup: func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}}

	svc, err := NewService(Config{}, append(requiredOptions(), WithConfigProvider(NewCfgxConfigProvider(loader)))...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cfg := svc.Config()
	if cfg.Graph.BaseURL != "https://graph.test" || cfg.Dialog.BaseURL != "https://d360.test/v1" {
		t.Fatalf("unexpected base urls %+v %+v", cfg.Graph, cfg.Dialog)
	}
	if cfg.App.ID != "app_9" || cfg.App.Secret != "secret_9" || cfg.App.AccessToken != "app-token-9" {
		t.Fatalf("unexpected app config %+v", cfg.App)
	}
	if cfg.FrontendURL != "https://frontend.test" {
		t.Fatalf("unexpected frontend url %q", cfg.FrontendURL)
	}
}

func TestConfigValidate_RejectsInvalidBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Registration.MaxDuplicateDeletes = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected max_duplicate_deletes validation error")
	}
	cfg = DefaultConfig()
	cfg.Templates.MaxPages = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected max_pages validation error")
	}
}

func TestService_ErrorFactoryBuildsServiceErrors(t *testing.T) {
	factory := func(message string, category ...goerrors.Category) *goerrors.Error {
		return goerrors.New("custom:"+message, category...)
	}
	h, err := newTestHarness(WithErrorFactory(factory))
	if err != nil {
		t.Fatalf("harness: %v", err)
	}

	_, err = h.svc.CreateChannel(context.Background(), CreateChannelRequest{PhoneNumber: "+100"})
	var rich *goerrors.Error
	if !errors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if !strings.HasPrefix(rich.Message, "custom:") {
		t.Fatalf("expected factory built error, got %q", rich.Message)
	}
	if rich.TextCode != ChannelErrorBadInput || rich.Code != http.StatusBadRequest {
		t.Fatalf("expected bad input envelope, got %s/%d", rich.TextCode, rich.Code)
	}
}
