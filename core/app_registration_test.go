package core

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

func TestAppRegistration_ReconcileDeletesDuplicates(t *testing.T) {
	store := newMemoryChannelStore()
	channel, _ := store.Create(context.Background(), Channel{ID: "ch_1", PhoneNumber: "+100", Provider: ProviderWhatsAppCloud, Config: cloudConfig()})
	coordinator := NewAppRegistrationCoordinator(AppRegistrationConfig{Store: store})
	provider := newScriptedProvider()
	provider.apps = []SubscribedApp{{ID: "app_first"}, {ID: "app_second"}, {ID: "app_third"}}

	appID, err := coordinator.ReconcileSubscribedApps(context.Background(), &channel, provider)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if provider.count("delete_app") != 2 {
		t.Fatalf("expected 2 deletes, got %d", provider.count("delete_app"))
	}
	if appID != "app_first" || store.stored("ch_1").Config.AppID != "app_first" {
		t.Fatalf("expected first listed app to be stored, got %q", store.stored("ch_1").Config.AppID)
	}
}

func TestAppRegistration_ReconcileDeleteBound(t *testing.T) {
	store := newMemoryChannelStore()
	channel, _ := store.Create(context.Background(), Channel{ID: "ch_1", PhoneNumber: "+100", Provider: ProviderWhatsAppCloud, Config: cloudConfig()})
	coordinator := NewAppRegistrationCoordinator(AppRegistrationConfig{Store: store, MaxDuplicateDeletes: 3})
	provider := newScriptedProvider()
	for i := 0; i < 20; i++ {
		provider.apps = append(provider.apps, SubscribedApp{ID: "app_" + strconv.Itoa(i)})
	}

	if _, err := coordinator.ReconcileSubscribedApps(context.Background(), &channel, provider); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if provider.count("delete_app") != 3 {
		t.Fatalf("expected deletes capped at 3, got %d", provider.count("delete_app"))
	}
}

func TestAppRegistration_ReconcileSingleAppIssuesNoDeletes(t *testing.T) {
	store := newMemoryChannelStore()
	channel, _ := store.Create(context.Background(), Channel{ID: "ch_1", PhoneNumber: "+100", Provider: ProviderWhatsAppCloud, Config: cloudConfig()})
	coordinator := NewAppRegistrationCoordinator(AppRegistrationConfig{Store: store})
	provider := newScriptedProvider()
	provider.apps = []SubscribedApp{{ID: "app_only"}}

	if _, err := coordinator.ReconcileSubscribedApps(context.Background(), &channel, provider); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if provider.count("delete_app") != 0 {
		t.Fatalf("expected no deletes, got %d", provider.count("delete_app"))
	}
}

func TestAppRegistration_RegisterDrawsFreshPin(t *testing.T) {
	store := newMemoryChannelStore()
	channel, _ := store.Create(context.Background(), Channel{ID: "ch_1", PhoneNumber: "+100", Provider: ProviderWhatsAppCloud, Config: cloudConfig()})
	next := 100000
	coordinator := NewAppRegistrationCoordinator(AppRegistrationConfig{
		Store: store,
		PinGenerator: func() string {
			next++
			return strconv.Itoa(next)
		},
	})
	provider := newScriptedProvider()

	for i := 0; i < 2; i++ {
		registered, err := coordinator.RegisterAccount(context.Background(), &channel, provider)
		if err != nil || !registered {
			t.Fatalf("register attempt %d: registered=%v err=%v", i, registered, err)
		}
	}
	if len(provider.pins) != 2 || provider.pins[0] == provider.pins[1] {
		t.Fatalf("expected two distinct pins, got %v", provider.pins)
	}
	stored := store.stored("ch_1")
	if stored.Config.Pin != provider.pins[1] {
		t.Fatalf("expected latest pin stored, got %q", stored.Config.Pin)
	}
	if stored.Config.Registered == nil || !*stored.Config.Registered {
		t.Fatalf("expected registered flag to be stored")
	}
}

func TestAppRegistration_RegisterFailureStoresFlag(t *testing.T) {
	store := newMemoryChannelStore()
	channel, _ := store.Create(context.Background(), Channel{ID: "ch_1", PhoneNumber: "+100", Provider: ProviderWhatsAppCloud, Config: cloudConfig()})
	coordinator := NewAppRegistrationCoordinator(AppRegistrationConfig{Store: store})
	provider := newScriptedProvider()
	provider.registerErr = errors.New("register rejected")

	registered, err := coordinator.RegisterAccount(context.Background(), &channel, provider)
	if registered || err == nil {
		t.Fatalf("expected failed registration, got registered=%v err=%v", registered, err)
	}
	stored := store.stored("ch_1")
	if stored.Config.Registered == nil || *stored.Config.Registered {
		t.Fatalf("expected registered=false to be stored")
	}
	if len(stored.Config.Pin) != 6 {
		t.Fatalf("expected a 6 digit pin, got %q", stored.Config.Pin)
	}
}

func TestAppRegistration_UnregisterIsBoundedAndSilent(t *testing.T) {
	coordinator := NewAppRegistrationCoordinator(AppRegistrationConfig{BestEffortTimeout: 20 * time.Millisecond})
	provider := newScriptedProvider()
	provider.deregisterErr = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		coordinator.UnregisterAccount(ctx, Channel{ID: "ch_1"}, provider)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected deregistration to give up after its own deadline")
	}
	if provider.count("deregister_phone") != 1 {
		t.Fatalf("expected one deregistration attempt even with a cancelled caller")
	}
}

func TestAppRegistration_SetWebhookRecordsVerification(t *testing.T) {
	store := newMemoryChannelStore()
	cfg := cloudConfig()
	cfg.WebhookVerifyToken = "verify-1"
	channel, _ := store.Create(context.Background(), Channel{ID: "ch_1", PhoneNumber: "+100", Provider: ProviderWhatsAppEmbedded, Config: cfg})
	coordinator := NewAppRegistrationCoordinator(AppRegistrationConfig{Store: store})
	provider := newScriptedProvider()

	if err := coordinator.SetWebhook(context.Background(), &channel, provider, "https://app.example/webhooks/whatsapp/+100"); err != nil {
		t.Fatalf("set webhook: %v", err)
	}
	stored := store.stored("ch_1")
	if stored.Config.WebhookVerified == nil || !*stored.Config.WebhookVerified {
		t.Fatalf("expected webhook_verified=true")
	}

	provider.webhookErr = ErrCapabilityNotSupported
	if err := coordinator.SetWebhook(context.Background(), &channel, provider, "https://app.example"); !errors.Is(err, ErrCapabilityNotSupported) {
		t.Fatalf("expected unsupported capability, got %v", err)
	}
	if stored := store.stored("ch_1"); stored.Config.WebhookVerified == nil || !*stored.Config.WebhookVerified {
		t.Fatalf("expected unsupported provider to leave flag untouched")
	}
}
