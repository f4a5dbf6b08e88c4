package inbound

import (
	"encoding/json"
	"net/http"

	"github.com/goliatone/go-channels/core"
	goerrors "github.com/goliatone/go-errors"
)

func inboundError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundBadInput(message string, metadata map[string]any) *goerrors.Error {
	return inboundError(
		message,
		goerrors.CategoryBadInput,
		http.StatusBadRequest,
		core.ChannelErrorBadInput,
		metadata,
	)
}

func inboundUnauthorized(message string, metadata map[string]any) *goerrors.Error {
	return inboundError(
		message,
		goerrors.CategoryAuth,
		http.StatusUnauthorized,
		core.ChannelErrorUnauthorized,
		metadata,
	)
}

type errorBody struct {
	Error *goerrors.Error `json:"error"`
}

func writeError(w http.ResponseWriter, err *goerrors.Error) {
	status := err.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: err})
}
