package payload

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-channels/transport"
)

type messageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// MessageID extracts messages[0].id from a send response.
func MessageID(res core.TransportResponse) (string, error) {
	var decoded messageResponse
	if err := transport.DecodeJSON(res, &decoded); err != nil {
		return "", err
	}
	if len(decoded.Messages) == 0 || strings.TrimSpace(decoded.Messages[0].ID) == "" {
		return "", core.NewProviderError("provider accepted the message without an id", res.StatusCode, nil)
	}
	return decoded.Messages[0].ID, nil
}

type errorEnvelope struct {
	Error *struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		TraceID      string `json:"fbtrace_id"`
	} `json:"error"`
	Meta *struct {
		DeveloperMessage string `json:"developer_message"`
	} `json:"meta"`
	Errors []struct {
		Title   string `json:"title"`
		Details string `json:"details"`
	} `json:"errors"`
}

// ResponseError converts a non-2xx response into a provider error carrying
// the status code, so 401 and 403 can be told apart from other failures.
func ResponseError(res core.TransportResponse, operation string) error {
	if res.Success() {
		return nil
	}
	metadata := map[string]any{"operation": operation, "status_code": res.StatusCode}
	message := fmt.Sprintf("%s failed with status %d", operation, res.StatusCode)

	var decoded errorEnvelope
	if err := json.Unmarshal(res.Body, &decoded); err == nil {
		switch {
		case decoded.Error != nil:
			message = fmt.Sprintf("%s: %s", message, decoded.Error.Message)
			metadata["provider_error_type"] = decoded.Error.Type
			metadata["provider_error_code"] = decoded.Error.Code
			if decoded.Error.TraceID != "" {
				metadata["request_id"] = decoded.Error.TraceID
			}
		case decoded.Meta != nil && decoded.Meta.DeveloperMessage != "":
			message = fmt.Sprintf("%s: %s", message, decoded.Meta.DeveloperMessage)
		case len(decoded.Errors) > 0:
			message = fmt.Sprintf("%s: %s", message, firstNonEmpty(decoded.Errors[0].Details, decoded.Errors[0].Title))
		}
	}
	if _, ok := metadata["request_id"]; !ok {
		if requestID, ok := res.Metadata["request_id"]; ok {
			metadata["request_id"] = requestID
		}
	}
	status := res.StatusCode
	if status == 0 {
		status = http.StatusBadGateway
	}
	return core.NewProviderError(message, status, metadata)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
