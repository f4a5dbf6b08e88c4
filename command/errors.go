package command

import (
	"net/http"

	"github.com/goliatone/go-channels/core"
	goerrors "github.com/goliatone/go-errors"
)

func commandDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ChannelErrorInternal)
}

func commandValidationError(field string, message string) error {
	return goerrors.NewValidation("command: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ChannelErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func commandOzzoValidation(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.FromOzzoValidation(err, "command: validation failed").
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ChannelErrorBadInput)
}
