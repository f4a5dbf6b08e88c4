package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseProviderKind_FailsClosedToDefault(t *testing.T) {
	tests := map[string]ProviderKind{
		"whatsapp_cloud":     ProviderWhatsAppCloud,
		" WhatsApp_Embedded": ProviderWhatsAppEmbedded,
		"default":            ProviderDefault,
		"":                   ProviderDefault,
		"telegram":           ProviderDefault,
	}
	for raw, want := range tests {
		if got := ParseProviderKind(raw); got != want {
			t.Fatalf("ParseProviderKind(%q) = %q, want %q", raw, got, want)
		}
	}
	if ProviderDefault.TokenBearing() || !ProviderWhatsAppCloud.TokenBearing() || !ProviderWhatsAppEmbedded.TokenBearing() {
		t.Fatalf("unexpected token-bearing classification")
	}
}

func TestChannelClone_IsDeep(t *testing.T) {
	synced := time.Now().UTC()
	registered := true
	original := Channel{
		ID:                          "ch_1",
		Config:                      ProviderConfig{APIKey: "key", Registered: &registered, Extra: map[string]any{"x": 1}},
		MessageTemplates:            []Template{{Name: "a", Components: json.RawMessage(`[{"type":"BODY"}]`)}},
		MessageTemplatesLastUpdated: &synced,
	}
	clone := original.Clone()
	clone.Config.Extra["x"] = 2
	*clone.Config.Registered = false
	clone.MessageTemplates[0].Name = "b"
	clone.MessageTemplates[0].Components[0] = 'X'
	*clone.MessageTemplatesLastUpdated = synced.Add(time.Hour)

	if original.Config.Extra["x"] != 1 || !*original.Config.Registered {
		t.Fatalf("expected config to be copied")
	}
	if original.MessageTemplates[0].Name != "a" || original.MessageTemplates[0].Components[0] != '[' {
		t.Fatalf("expected templates to be copied")
	}
	if !original.MessageTemplatesLastUpdated.Equal(synced) {
		t.Fatalf("expected timestamp to be copied")
	}
}

func TestTokenStatus_NeverExpires(t *testing.T) {
	if !(TokenStatus{}).NeverExpires() {
		t.Fatalf("expected expires_at=0 to mean never")
	}
	status := TokenStatus{ExpiresAt: 1_700_000_000}
	if status.NeverExpires() || status.ExpiresAtTime().Unix() != 1_700_000_000 {
		t.Fatalf("unexpected status %+v", status)
	}
}
