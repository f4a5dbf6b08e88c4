package payload

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/goliatone/go-channels/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestMessage_RoutesOnShape(t *testing.T) {
	tests := []struct {
		name string
		msg  core.OutgoingMessage
		want string
	}{
		{name: "text", msg: core.OutgoingMessage{Content: "hi"}, want: "text"},
		{name: "attachment wins", msg: core.OutgoingMessage{
			Content:     "look",
			ContentType: core.ContentTypeInputSelect,
			Items:       []core.SelectItem{{Title: "a", Value: "a"}},
			Attachments: []core.Attachment{{FileType: "image", DownloadURL: "https://cdn.test/a.png"}},
		}, want: "image"},
		{name: "interactive", msg: core.OutgoingMessage{
			Content:     "pick",
			ContentType: core.ContentTypeInputSelect,
			Items:       []core.SelectItem{{Title: "a", Value: "a"}},
		}, want: "interactive"},
		{name: "select without items is text", msg: core.OutgoingMessage{Content: "pick", ContentType: core.ContentTypeInputSelect}, want: "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := Message(DialectGraph, "+1", tt.msg)
			if body["type"] != tt.want {
				t.Fatalf("expected %q, got %v", tt.want, body["type"])
			}
			if body["messaging_product"] != "whatsapp" {
				t.Fatalf("expected graph envelope")
			}
		})
	}
}

func TestText_ReplyContextOnlyWhenPresent(t *testing.T) {
	body := Text(DialectDialog, "+1", core.OutgoingMessage{Content: "hi"})
	if _, ok := body["context"]; ok {
		t.Fatalf("expected no context without a reply target")
	}
	if _, ok := body["messaging_product"]; ok {
		t.Fatalf("expected dialog envelope without messaging_product")
	}
	body = Text(DialectGraph, "+1", core.OutgoingMessage{Content: "hi", InReplyToExternalID: "wamid.0"})
	ctx, ok := body["context"].(map[string]any)
	if !ok || ctx["message_id"] != "wamid.0" {
		t.Fatalf("expected reply context, got %#v", body["context"])
	}
}

func TestAttachment_DocumentCarriesFilenameAudioHasNoCaption(t *testing.T) {
	doc := Attachment(DialectGraph, "+1", core.OutgoingMessage{
		Content:     "invoice",
		Attachments: []core.Attachment{{FileType: "file", DownloadURL: "https://cdn.test/a.pdf", FileName: "a.pdf"}},
	})
	content := doc["document"].(map[string]any)
	if content["filename"] != "a.pdf" || content["caption"] != "invoice" {
		t.Fatalf("unexpected document content %#v", content)
	}

	audio := Attachment(DialectGraph, "+1", core.OutgoingMessage{
		Content:     "ignored",
		Attachments: []core.Attachment{{FileType: "audio", DownloadURL: "https://cdn.test/a.ogg"}},
	})
	if _, ok := audio["audio"].(map[string]any)["caption"]; ok {
		t.Fatalf("expected audio without caption")
	}
}

func TestInteractive_ButtonsUpToThreeThenList(t *testing.T) {
	items := []core.SelectItem{{Title: "One", Value: "1"}, {Title: "Two", Value: "2"}, {Title: "Three", Value: "3"}}
	body := Interactive(DialectGraph, "+1", core.OutgoingMessage{Content: "pick", Items: items})
	interactive := body["interactive"].(map[string]any)
	if interactive["type"] != "button" {
		t.Fatalf("expected button payload, got %v", interactive["type"])
	}
	buttons := interactive["action"].(map[string]any)["buttons"].([]map[string]any)
	if len(buttons) != 3 || buttons[0]["reply"].(map[string]any)["id"] != "1" {
		t.Fatalf("unexpected buttons %#v", buttons)
	}

	items = append(items, core.SelectItem{Title: strings.Repeat("x", 40), Value: "4"})
	body = Interactive(DialectGraph, "+1", core.OutgoingMessage{Content: "pick", Items: items})
	interactive = body["interactive"].(map[string]any)
	action := interactive["action"].(map[string]any)
	if interactive["type"] != "list" || action["button"] != "Choose an item" {
		t.Fatalf("expected list payload, got %#v", interactive)
	}
	rows := action["sections"].([]map[string]any)[0]["rows"].([]map[string]any)
	if len(rows) != 4 || len([]rune(rows[3]["title"].(string))) != 24 {
		t.Fatalf("expected truncated row titles, got %#v", rows)
	}
}

func TestTemplate_NamespaceOnlyForDialog(t *testing.T) {
	info := core.TemplateInfo{Name: "welcome", Namespace: "ns_1", LangCode: "en"}
	graph := Template(DialectGraph, "+1", info)["template"].(map[string]any)
	if _, ok := graph["namespace"]; ok {
		t.Fatalf("expected graph template without namespace")
	}
	dialog := Template(DialectDialog, "+1", info)["template"].(map[string]any)
	if dialog["namespace"] != "ns_1" {
		t.Fatalf("expected dialog namespace")
	}
	language := dialog["language"].(map[string]any)
	if language["policy"] != "deterministic" || language["code"] != "en" {
		t.Fatalf("unexpected language %#v", language)
	}
}

func TestResponseError_CarriesStatusCategory(t *testing.T) {
	err := ResponseError(core.TransportResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       []byte(`{"error":{"message":"Session has expired","type":"OAuthException","code":190,"fbtrace_id":"trace-1"}}`),
	}, "send message")
	if !core.IsAuthorizationFailure(err) {
		t.Fatalf("expected authorization failure, got %v", err)
	}
	var rich *goerrors.Error
	if !errors.As(err, &rich) || rich.Metadata["request_id"] != "trace-1" {
		t.Fatalf("expected trace id in metadata, got %#v", rich)
	}
	if !strings.Contains(rich.Message, "Session has expired") {
		t.Fatalf("expected provider message, got %q", rich.Message)
	}

	if ResponseError(core.TransportResponse{StatusCode: http.StatusOK}, "send") != nil {
		t.Fatalf("expected nil for success")
	}
}

func TestMessageID_RequiresID(t *testing.T) {
	id, err := MessageID(core.TransportResponse{StatusCode: 200, Body: []byte(`{"messages":[{"id":"wamid.9"}]}`)})
	if err != nil || id != "wamid.9" {
		t.Fatalf("unexpected id %q err=%v", id, err)
	}
	if _, err := MessageID(core.TransportResponse{StatusCode: 200, Body: []byte(`{"messages":[]}`)}); err == nil {
		t.Fatalf("expected missing id error")
	}
}

func TestResponseError_FallsBackToTransportRequestID(t *testing.T) {
	err := ResponseError(core.TransportResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       []byte(`{"meta":{"developer_message":"upstream failure"}}`),
		Metadata:   map[string]any{"request_id": "req-9"},
	}, "fetch templates")
	var rich *goerrors.Error
	if !errors.As(err, &rich) || rich.Metadata["request_id"] != "req-9" {
		t.Fatalf("expected transport request id in metadata, got %#v", rich)
	}
}
