package payload

import (
	"strings"

	"github.com/goliatone/go-channels/core"
)

// Dialect selects the envelope flavour. Graph requires messaging_product on
// every message; 360dialog v1 rejects it.
type Dialect int

const (
	DialectGraph Dialect = iota
	DialectDialog
)

const (
	maxButtons        = 3
	maxButtonTitle    = 20
	maxRowTitle       = 24
	maxRowID          = 200
	listButtonLabel   = "Choose an item"
	templatePolicy    = "deterministic"
	templateComponent = "body"
)

// Message routes on the message shape: attachments win over interactive
// selects, which win over plain text.
func Message(dialect Dialect, to string, msg core.OutgoingMessage) map[string]any {
	switch {
	case len(msg.Attachments) > 0:
		return Attachment(dialect, to, msg)
	case msg.ContentType == core.ContentTypeInputSelect && len(msg.Items) > 0:
		return Interactive(dialect, to, msg)
	default:
		return Text(dialect, to, msg)
	}
}

func Text(dialect Dialect, to string, msg core.OutgoingMessage) map[string]any {
	body := envelope(dialect, to, "text")
	body["text"] = map[string]any{"body": msg.Content}
	withReplyContext(body, msg)
	return body
}

// Attachment sends the first attachment. Unknown file types go out as
// documents, which carry the file name.
func Attachment(dialect Dialect, to string, msg core.OutgoingMessage) map[string]any {
	attachment := msg.Attachments[0]
	kind := attachmentType(attachment.FileType)
	content := map[string]any{"link": attachment.DownloadURL}
	if kind != "audio" && kind != "sticker" && msg.Content != "" {
		content["caption"] = msg.Content
	}
	if kind == "document" && strings.TrimSpace(attachment.FileName) != "" {
		content["filename"] = attachment.FileName
	}
	body := envelope(dialect, to, kind)
	body[kind] = content
	withReplyContext(body, msg)
	return body
}

// Interactive renders reply buttons for up to three items and a single
// section list beyond that.
func Interactive(dialect Dialect, to string, msg core.OutgoingMessage) map[string]any {
	var interactive map[string]any
	if len(msg.Items) <= maxButtons {
		buttons := make([]map[string]any, 0, len(msg.Items))
		for _, item := range msg.Items {
			buttons = append(buttons, map[string]any{
				"type":  "reply",
				"reply": map[string]any{"id": truncate(item.Value, maxRowID), "title": truncate(item.Title, maxButtonTitle)},
			})
		}
		interactive = map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": msg.Content},
			"action": map[string]any{"buttons": buttons},
		}
	} else {
		rows := make([]map[string]any, 0, len(msg.Items))
		for _, item := range msg.Items {
			rows = append(rows, map[string]any{"id": truncate(item.Value, maxRowID), "title": truncate(item.Title, maxRowTitle)})
		}
		interactive = map[string]any{
			"type": "list",
			"body": map[string]any{"text": msg.Content},
			"action": map[string]any{
				"button":   listButtonLabel,
				"sections": []map[string]any{{"rows": rows}},
			},
		}
	}
	body := envelope(dialect, to, "interactive")
	body["interactive"] = interactive
	return body
}

// Template renders a template send. 360dialog addresses templates through
// the business namespace.
func Template(dialect Dialect, to string, info core.TemplateInfo) map[string]any {
	parameters := info.Parameters
	if parameters == nil {
		parameters = []core.TemplateParameter{}
	}
	template := map[string]any{
		"name": info.Name,
		"language": map[string]any{
			"policy": templatePolicy,
			"code":   info.LangCode,
		},
		"components": []map[string]any{{
			"type":       templateComponent,
			"parameters": parameters,
		}},
	}
	if dialect == DialectDialog && strings.TrimSpace(info.Namespace) != "" {
		template["namespace"] = info.Namespace
	}
	body := envelope(dialect, to, "template")
	body["template"] = template
	return body
}

func envelope(dialect Dialect, to string, kind string) map[string]any {
	body := map[string]any{"to": to, "type": kind}
	if dialect == DialectGraph {
		body["messaging_product"] = "whatsapp"
	}
	return body
}

func withReplyContext(body map[string]any, msg core.OutgoingMessage) {
	if replyTo := strings.TrimSpace(msg.InReplyToExternalID); replyTo != "" {
		body["context"] = map[string]any{"message_id": replyTo}
	}
}

func attachmentType(fileType string) string {
	switch strings.ToLower(strings.TrimSpace(fileType)) {
	case "image", "audio", "video":
		return strings.ToLower(strings.TrimSpace(fileType))
	default:
		return "document"
	}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
