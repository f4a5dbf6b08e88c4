package channels

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-channels/adapters/gocommand"
	"github.com/goliatone/go-channels/adapters/gojob"
	"github.com/goliatone/go-channels/adapters/gologger"
	"github.com/goliatone/go-channels/adapters/goprometheus"
	"github.com/goliatone/go-channels/adapters/goredis"
	"github.com/goliatone/go-channels/adapters/goslack"
	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-channels/inbound"
	"github.com/goliatone/go-channels/providers"
	"github.com/goliatone/go-channels/providers/graph"
	sqlstore "github.com/goliatone/go-channels/store/sql"
	"github.com/goliatone/go-channels/transport"
	"github.com/goliatone/go-command"
	"github.com/goliatone/go-job/queue"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/slack-go/slack"
)

// Dependencies is the infrastructure a Runtime composes. Only Persistence is
// required; every other field switches on one adapter.
type Dependencies struct {
	Persistence *persistence.Client
	// Cache fronts phone number lookups used by webhook verification.
	Cache      repositorycache.CacheService
	HTTPClient *http.Client

	// Redis shares reauthorization counters across processes.
	Redis redis.UniversalClient

	SlackBotToken string
	SlackChannel  string
	SlackOptions  []slack.Option

	// Events receives lifecycle events, usually a *goamqp.Publisher.
	Events core.EventPublisher

	Registerer prometheus.Registerer

	Enqueuer    queue.Enqueuer
	Dequeuer    queue.Dequeuer
	RetryPolicy *gojob.RetryPolicy

	// Commands registers the channel commands and queries when set. The host
	// initializes the registry once all of its handlers are in.
	Commands *command.Registry

	Logger         glog.Logger
	LoggerProvider glog.LoggerProvider
}

// Runtime is a fully wired channel connector.
type Runtime struct {
	Service       *Service
	Stores        *sqlstore.RepositoryFactory
	Webhooks      *inbound.WebhookHandler
	Scheduler     *gojob.TemplateSyncScheduler
	Worker        *gojob.TemplateSyncWorker
	JobHook       *gojob.MetricsHook
	JobLoggers    gologger.JobLoggers
	Metrics       *goprometheus.Recorder
	Subscriptions gocommand.Subscriptions

	events core.EventPublisher
}

// NewRuntime builds the service and its adapters. Schema migrations are not
// applied here; run migrations.Apply against the same client first.
func NewRuntime(cfg Config, deps Dependencies, opts ...Option) (*Runtime, error) {
	if deps.Persistence == nil {
		return nil, fmt.Errorf("channels: persistence client is required")
	}
	resolved, err := core.GoOptionsResolver{}.Resolve(core.DefaultConfig(), core.Config{}, cfg)
	if err != nil {
		return nil, err
	}

	provider, logger := gologger.Resolve("channels", deps.LoggerProvider, deps.Logger)
	logger = glog.Ensure(logger)

	var factoryOpts []sqlstore.FactoryOption
	if deps.Cache != nil {
		factoryOpts = append(factoryOpts, sqlstore.WithChannelCache(deps.Cache))
	}
	stores, err := sqlstore.NewRepositoryFactoryFromPersistence(deps.Persistence, factoryOpts...)
	if err != nil {
		return nil, err
	}

	var httpDoer transport.HTTPDoer
	if deps.HTTPClient != nil {
		httpDoer = deps.HTTPClient
	}
	providerFactory := providers.NewFactory(resolved, transport.NewRESTAdapter(httpDoer), providers.WithLogger(logger))

	rt := &Runtime{Stores: stores, events: deps.Events}
	serviceOpts := []Option{
		core.WithLogger(logger),
		core.WithPersistenceClient(deps.Persistence),
		core.WithRepositoryFactory(stores),
		core.WithProviderFactory(providerFactory),
		core.WithReauthorizationNotifier(goslack.NewNotifier(
			deps.SlackBotToken,
			deps.SlackChannel,
			goslack.WithLogger(logger),
			goslack.WithFrontendURL(resolved.FrontendURL),
			goslack.WithClientOptions(deps.SlackOptions...),
		)),
	}
	if provider != nil {
		serviceOpts = append(serviceOpts, core.WithLoggerProvider(provider))
	}
	if strings.TrimSpace(resolved.App.AccessToken) == "" {
		serviceOpts = append(serviceOpts, core.WithAppTokenSource(graph.NewAppTokenSource(resolved, deps.HTTPClient)))
	}
	var metrics core.MetricsRecorder = core.NopMetricsRecorder{}
	if deps.Registerer != nil {
		rt.Metrics = goprometheus.NewRecorder(deps.Registerer)
		metrics = rt.Metrics
		serviceOpts = append(serviceOpts, core.WithMetricsRecorder(rt.Metrics))
	}
	if deps.Redis != nil {
		serviceOpts = append(serviceOpts, core.WithReauthorizationTracker(goredis.NewTracker(deps.Redis)))
	}
	if deps.Events != nil {
		serviceOpts = append(serviceOpts, core.WithEventPublisher(deps.Events))
	}
	serviceOpts = append(serviceOpts, opts...)

	service, err := core.NewService(resolved, serviceOpts...)
	if err != nil {
		return nil, err
	}
	rt.Service = service

	if rt.Webhooks, err = inbound.NewWebhookHandler(service, inbound.WithLogger(logger)); err != nil {
		return nil, err
	}

	rt.JobLoggers = gologger.ResolveJobLoggers(provider, logger)
	rt.JobHook = gojob.NewMetricsHook(metrics)
	policy := gojob.DefaultRetryPolicy()
	if deps.RetryPolicy != nil {
		policy = *deps.RetryPolicy
	}
	if deps.Enqueuer != nil {
		rt.Scheduler = gojob.NewTemplateSyncScheduler(
			service,
			gojob.NewEnqueuerAdapter(deps.Enqueuer),
			gojob.WithSchedulerLogger(rt.JobLoggers.Logger),
		)
	}
	if deps.Dequeuer != nil {
		rt.Worker = gojob.NewTemplateSyncWorker(
			service,
			gojob.NewDequeuerAdapter(deps.Dequeuer, policy),
			policy,
			rt.JobLoggers.Logger,
		)
	}

	if deps.Commands != nil {
		subs, err := gocommand.RegisterChannelHandlers(gocommand.NewRegistryAdapter(deps.Commands), service)
		if err != nil {
			return nil, err
		}
		rt.Subscriptions = subs
	}
	return rt, nil
}

// Mount attaches the webhook verification routes.
func (r *Runtime) Mount(router chi.Router) {
	if r == nil || r.Webhooks == nil || router == nil {
		return
	}
	r.Webhooks.Mount(router)
}

// Close releases dispatcher subscriptions and closes the event publisher when
// it owns a connection.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	r.Subscriptions.Unsubscribe()
	r.Subscriptions = nil
	if closer, ok := r.events.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
