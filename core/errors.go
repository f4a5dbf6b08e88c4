package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ChannelErrorBadInput              = "CHANNEL_BAD_INPUT"
	ChannelErrorNotFound              = "CHANNEL_NOT_FOUND"
	ChannelErrorConfigInvalid         = "CHANNEL_CONFIG_INVALID"
	ChannelErrorProviderError         = "CHANNEL_PROVIDER_ERROR"
	ChannelErrorProviderUnreachable   = "CHANNEL_PROVIDER_UNREACHABLE"
	ChannelErrorTokenExpired          = "CHANNEL_TOKEN_EXPIRED"
	ChannelErrorTokenRenewalFailed    = "CHANNEL_TOKEN_RENEWAL_FAILED"
	ChannelErrorCapabilityUnsupported = "CHANNEL_CAPABILITY_UNSUPPORTED"
	ChannelErrorConflict              = "CHANNEL_CONFLICT"
	ChannelErrorUnauthorized          = "CHANNEL_UNAUTHORIZED"
	ChannelErrorInternal              = "CHANNEL_INTERNAL_ERROR"
)

// NewProviderError reports a non-2xx provider response.
func NewProviderError(message string, statusCode int, metadata map[string]any) *goerrors.Error {
	category := goerrors.CategoryExternal
	textCode := ChannelErrorProviderError
	switch statusCode {
	case http.StatusUnauthorized:
		category = goerrors.CategoryAuth
		textCode = ChannelErrorUnauthorized
	case http.StatusForbidden:
		category = goerrors.CategoryAuthz
		textCode = ChannelErrorUnauthorized
	case http.StatusTooManyRequests:
		category = goerrors.CategoryRateLimit
	}
	err := goerrors.New(message, category).
		WithCode(statusCode).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// IsAuthorizationFailure reports whether err came from a provider rejecting
// the stored credentials.
func IsAuthorizationFailure(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Category == goerrors.CategoryAuth ||
		richErr.Category == goerrors.CategoryAuthz ||
		richErr.TextCode == ChannelErrorUnauthorized
}

func newChannelError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureChannelErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func wrapChannelError(source error, category goerrors.Category, message string, textCode string) *goerrors.Error {
	if source == nil {
		return newChannelError(message, category, textCode)
	}
	wrapped := goerrors.Wrap(source, category, message)
	wrapped.Category = category
	wrapped.Code = 0
	wrapped.TextCode = textCode
	return ensureChannelErrorEnvelope(wrapped)
}

// MapError converts any error into the channel error envelope used by the
// service, so adapters can report store and transport failures the same way.
func MapError(err error) *goerrors.Error {
	return channelErrorMapper(err)
}

func channelErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureChannelErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrChannelNotFound):
		return wrapChannelError(err, goerrors.CategoryNotFound, err.Error(), ChannelErrorNotFound)
	case errors.Is(err, ErrCapabilityNotSupported):
		return wrapChannelError(err, goerrors.CategoryOperation, err.Error(), ChannelErrorCapabilityUnsupported)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "unique constraint"), strings.Contains(msg, "duplicate key"):
		return newChannelError(err.Error(), goerrors.CategoryConflict, ChannelErrorConflict)
	case strings.Contains(msg, "not found"):
		return newChannelError(err.Error(), goerrors.CategoryNotFound, ChannelErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newChannelError(err.Error(), goerrors.CategoryBadInput, ChannelErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureChannelErrorEnvelope(mapped)
}

func ensureChannelErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = channelHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultChannelTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultChannelTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return ChannelErrorBadInput
	case goerrors.CategoryValidation:
		return ChannelErrorConfigInvalid
	case goerrors.CategoryNotFound:
		return ChannelErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ChannelErrorUnauthorized
	case goerrors.CategoryConflict:
		return ChannelErrorConflict
	case goerrors.CategoryExternal:
		return ChannelErrorProviderUnreachable
	case goerrors.CategoryOperation:
		return ChannelErrorCapabilityUnsupported
	default:
		return ChannelErrorInternal
	}
}

func channelHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	case goerrors.CategoryOperation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
