package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryChannelStore struct {
	mu        sync.Mutex
	byID      map[string]Channel
	touches   []time.Time
	updates   int
	deletes   []string
	updateErr error
	touchErr  error
}

func newMemoryChannelStore() *memoryChannelStore {
	return &memoryChannelStore{byID: map[string]Channel{}}
}

func (s *memoryChannelStore) Create(_ context.Context, channel Channel) (Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(channel.ID) == "" {
		channel.ID = fmt.Sprintf("ch_%d", len(s.byID)+1)
	}
	for _, existing := range s.byID {
		if existing.PhoneNumber == channel.PhoneNumber {
			return Channel{}, fmt.Errorf("duplicate key value violates unique constraint")
		}
	}
	now := time.Now().UTC()
	channel.CreatedAt = now
	channel.UpdatedAt = now
	s.byID[channel.ID] = channel.Clone()
	return channel.Clone(), nil
}

func (s *memoryChannelStore) Get(_ context.Context, id string) (Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	channel, ok := s.byID[id]
	if !ok {
		return Channel{}, ErrChannelNotFound
	}
	return channel.Clone(), nil
}

func (s *memoryChannelStore) GetByPhoneNumber(_ context.Context, phoneNumber string) (Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, channel := range s.byID {
		if channel.PhoneNumber == phoneNumber {
			return channel.Clone(), nil
		}
	}
	return Channel{}, ErrChannelNotFound
}

func (s *memoryChannelStore) Update(_ context.Context, channel Channel) (Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return Channel{}, s.updateErr
	}
	if _, ok := s.byID[channel.ID]; !ok {
		return Channel{}, ErrChannelNotFound
	}
	channel.UpdatedAt = time.Now().UTC()
	s.byID[channel.ID] = channel.Clone()
	s.updates++
	return channel.Clone(), nil
}

func (s *memoryChannelStore) TouchTemplatesUpdated(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.touchErr != nil {
		return s.touchErr
	}
	channel, ok := s.byID[id]
	if !ok {
		return ErrChannelNotFound
	}
	channel.MessageTemplatesLastUpdated = &at
	s.byID[id] = channel
	s.touches = append(s.touches, at)
	return nil
}

func (s *memoryChannelStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrChannelNotFound
	}
	delete(s.byID, id)
	s.deletes = append(s.deletes, id)
	return nil
}

func (s *memoryChannelStore) ListTemplateSyncDue(_ context.Context, before time.Time, limit int) ([]Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Channel, 0)
	for _, channel := range s.byID {
		if channel.MessageTemplatesLastUpdated == nil || channel.MessageTemplatesLastUpdated.Before(before) {
			out = append(out, channel.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryChannelStore) stored(id string) Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id].Clone()
}

// scriptedProvider records calls and answers from per-method hooks. It reads
// credentials from the bound channel like the real providers do.
type scriptedProvider struct {
	mu      sync.Mutex
	kind    ProviderKind
	channel *Channel
	calls   map[string]int
	pins    []string
	tokens  []string

	validateErr   error
	sendID        string
	sendErr       error
	statusFn      func(appToken string) (TokenStatus, error)
	exchangeFn    func() (TokenGrant, error)
	refreshErr    error
	apps          []SubscribedApp
	listAppsErr   error
	subscribeErr  error
	registerErr   error
	deregisterErr func(ctx context.Context) error
	webhookErr    error
	pages         map[string]TemplatePage
	pageErr       map[string]error
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		calls:   map[string]int{},
		pages:   map[string]TemplatePage{},
		pageErr: map[string]error{},
		sendID:  "wamid.1",
	}
}

func (p *scriptedProvider) record(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[name]++
}

func (p *scriptedProvider) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}

func (p *scriptedProvider) Kind() ProviderKind {
	if p.channel != nil {
		return p.channel.Provider
	}
	return p.kind
}

func (p *scriptedProvider) SendMessage(context.Context, string, OutgoingMessage) (string, error) {
	p.record("send_message")
	if p.sendErr != nil {
		return "", p.sendErr
	}
	return p.sendID, nil
}

func (p *scriptedProvider) SendTemplate(context.Context, string, TemplateInfo) (string, error) {
	p.record("send_template")
	if p.sendErr != nil {
		return "", p.sendErr
	}
	return p.sendID, nil
}

func (p *scriptedProvider) FetchTemplates(_ context.Context, pageURL string) (TemplatePage, error) {
	p.record("fetch_templates")
	if err := p.pageErr[pageURL]; err != nil {
		return TemplatePage{}, err
	}
	return p.pages[pageURL], nil
}

func (p *scriptedProvider) MediaURL(mediaID string) string {
	return "https://media.test/" + mediaID
}

func (p *scriptedProvider) APIHeaders() map[string]string {
	key := ""
	if p.channel != nil {
		key = p.channel.Config.APIKey
	}
	return map[string]string{"Authorization": "Bearer " + key}
}

func (p *scriptedProvider) ValidateConfig(context.Context) error {
	p.record("validate_config")
	return p.validateErr
}

func (p *scriptedProvider) TokenStatus(_ context.Context, appToken string) (TokenStatus, error) {
	p.record("token_status")
	p.mu.Lock()
	p.tokens = append(p.tokens, appToken)
	p.mu.Unlock()
	if p.statusFn == nil {
		return TokenStatus{IsValid: true}, nil
	}
	return p.statusFn(appToken)
}

func (p *scriptedProvider) ExchangeToken(context.Context, string, string) (TokenGrant, error) {
	p.record("exchange_token")
	if p.exchangeFn == nil {
		return TokenGrant{}, fmt.Errorf("exchange not scripted")
	}
	return p.exchangeFn()
}

func (p *scriptedProvider) RefreshToken(context.Context) error {
	p.record("refresh_token")
	return p.refreshErr
}

func (p *scriptedProvider) ListSubscribedApps(context.Context) ([]SubscribedApp, error) {
	p.record("list_apps")
	if p.listAppsErr != nil {
		return nil, p.listAppsErr
	}
	return append([]SubscribedApp(nil), p.apps...), nil
}

func (p *scriptedProvider) DeleteSubscribedApp(context.Context) error {
	p.record("delete_app")
	return nil
}

func (p *scriptedProvider) SubscribeApp(context.Context) error {
	p.record("subscribe_app")
	return p.subscribeErr
}

func (p *scriptedProvider) RegisterPhone(_ context.Context, pin string) error {
	p.record("register_phone")
	p.mu.Lock()
	p.pins = append(p.pins, pin)
	p.mu.Unlock()
	return p.registerErr
}

func (p *scriptedProvider) DeregisterPhone(ctx context.Context) error {
	p.record("deregister_phone")
	if p.deregisterErr != nil {
		return p.deregisterErr(ctx)
	}
	return nil
}

func (p *scriptedProvider) SetWebhook(context.Context, string, string) error {
	p.record("set_webhook")
	return p.webhookErr
}

type scriptedFactory struct {
	provider *scriptedProvider
	err      error
}

func (f *scriptedFactory) Build(channel *Channel) (Provider, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.provider.channel = channel
	return f.provider, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ChannelEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event ChannelEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

type recordingNotifier struct {
	mu       sync.Mutex
	channels []string
}

func (n *recordingNotifier) NotifyReauthorizationRequired(_ context.Context, channel Channel) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channels = append(n.channels, channel.ID)
	return nil
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(now time.Time) *fixedClock {
	return &fixedClock{now: now}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func int64Ptr(value int64) *int64 {
	return &value
}

func cloudConfig() ProviderConfig {
	return ProviderConfig{
		APIKey:            "token-1",
		BusinessAccountID: "waba_1",
		PhoneNumberID:     "pn_1",
	}
}

type testHarness struct {
	svc       *Service
	store     *memoryChannelStore
	provider  *scriptedProvider
	publisher *recordingPublisher
	notifier  *recordingNotifier
	clock     *fixedClock
	logger    *captureLogger
}

func newTestHarness(opts ...Option) (*testHarness, error) {
	return newTestHarnessWithConfig(nil, opts...)
}

func newTestHarnessWithConfig(mutate func(*Config), opts ...Option) (*testHarness, error) {
	h := &testHarness{
		store:     newMemoryChannelStore(),
		provider:  newScriptedProvider(),
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
		clock:     newFixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		logger:    newCaptureLogger(),
	}
	cfg := DefaultConfig()
	cfg.FrontendURL = "https://app.example"
	cfg.App.ID = "app_1"
	cfg.App.Secret = "secret_1"
	cfg.App.AccessToken = "app-token"
	if mutate != nil {
		mutate(&cfg)
	}
	base := []Option{
		WithChannelStore(h.store),
		WithProviderFactory(&scriptedFactory{provider: h.provider}),
		WithEventPublisher(h.publisher),
		WithReauthorizationNotifier(h.notifier),
		WithClock(h.clock.Now),
		WithLoggerProvider(stubLoggerProvider{logger: h.logger}),
		WithLogger(h.logger),
		WithVerifyTokenGenerator(func() (string, error) { return "verify-1", nil }),
	}
	svc, err := NewService(cfg, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	h.svc = svc
	return h, nil
}

// seed stores a channel directly, bypassing onboarding.
func (h *testHarness) seed(channel Channel) Channel {
	created, err := h.store.Create(context.Background(), channel)
	if err != nil {
		panic(err)
	}
	return created
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}
