package devkit

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/goliatone/go-channels/core"
)

// JSON scripts a response with the given status and a JSON encoded body.
func JSON(status int, body any) TransportScript {
	raw, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("devkit: encode fixture body: %v", err))
	}
	return TransportScript{Response: core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       raw,
	}}
}

func OK(body any) TransportScript {
	return JSON(http.StatusOK, body)
}

// GraphError scripts a Graph style error envelope.
func GraphError(status int, message string) TransportScript {
	return JSON(status, map[string]any{
		"error": map[string]any{"message": message, "type": "OAuthException", "code": status},
	})
}

func MessageAccepted(id string) TransportScript {
	return OK(map[string]any{"messages": []map[string]any{{"id": id}}})
}

// TemplatePage scripts one Graph message_templates page. An empty next ends
// pagination.
func TemplatePage(next string, names ...string) TransportScript {
	data := make([]map[string]any, 0, len(names))
	for _, name := range names {
		data = append(data, map[string]any{
			"id":       "tpl_" + name,
			"name":     name,
			"language": "en",
			"status":   "APPROVED",
			"category": "UTILITY",
			"components": []map[string]any{
				{"type": "BODY", "text": "Hello {{1}}"},
			},
		})
	}
	body := map[string]any{"data": data}
	if next != "" {
		body["paging"] = map[string]any{"next": next}
	}
	return OK(body)
}

func SubscribedApps(ids ...string) TransportScript {
	data := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		data = append(data, map[string]any{
			"whatsapp_business_api_data": map[string]any{"id": id, "name": "app " + id, "link": "https://example.test/" + id},
		})
	}
	return OK(map[string]any{"data": data})
}

func DebugToken(expiresAt int64, valid bool) TransportScript {
	return OK(map[string]any{"data": map[string]any{
		"expires_at": expiresAt,
		"is_valid":   valid,
		"scopes":     []string{"whatsapp_business_messaging"},
	}})
}

// TokenExchange scripts an oauth/access_token response. A nil expiresIn
// omits the lifetime.
func TokenExchange(token string, expiresIn *int64) TransportScript {
	body := map[string]any{"access_token": token, "token_type": "bearer"}
	if expiresIn != nil {
		body["expires_in"] = *expiresIn
	}
	return OK(body)
}

func Success() TransportScript {
	return OK(map[string]any{"success": true})
}

func CloudChannel() *core.Channel {
	return &core.Channel{
		ID:          "ch_cloud",
		AccountID:   "acct_1",
		PhoneNumber: "+15550001",
		Provider:    core.ProviderWhatsAppCloud,
		Config: core.ProviderConfig{
			APIKey:             "cloud-token",
			BusinessAccountID:  "waba_1",
			PhoneNumberID:      "pn_1",
			WebhookVerifyToken: "verify-1",
		},
	}
}

func EmbeddedChannel() *core.Channel {
	channel := CloudChannel()
	channel.ID = "ch_embedded"
	channel.PhoneNumber = "+15550002"
	channel.Provider = core.ProviderWhatsAppEmbedded
	channel.Config.APIKey = "embedded-token"
	return channel
}

func DialogChannel() *core.Channel {
	return &core.Channel{
		ID:          "ch_dialog",
		AccountID:   "acct_1",
		PhoneNumber: "+15550003",
		Provider:    core.ProviderDefault,
		Config: core.ProviderConfig{
			APIKey:    "dialog-key",
			Namespace: "ns_1",
		},
	}
}
