package inbound

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-channels/core"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	// WebhookPath is where the webhook router is mounted by default.
	WebhookPath = "/webhooks/whatsapp"

	modeSubscribe = "subscribe"
)

type WebhookVerifier interface {
	VerifyWebhook(ctx context.Context, phoneNumber string, token string) (bool, error)
}

type Option func(*WebhookHandler)

func WithLogger(logger core.Logger) Option {
	return func(h *WebhookHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

type WebhookHandler struct {
	verifier WebhookVerifier
	logger   core.Logger
}

func NewWebhookHandler(verifier WebhookVerifier, opts ...Option) (*WebhookHandler, error) {
	if verifier == nil {
		return nil, errors.New("inbound: webhook verifier is required")
	}
	h := &WebhookHandler{verifier: verifier, logger: glog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Routes returns a router serving the verification handshake per phone number.
func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{phone_number}", h.handleVerify)
	return r
}

// Mount attaches the webhook routes under WebhookPath.
func (h *WebhookHandler) Mount(r chi.Router) {
	r.Mount(WebhookPath, h.Routes())
}

func (h *WebhookHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	phoneNumber := strings.TrimSpace(chi.URLParam(r, "phone_number"))
	query := r.URL.Query()
	mode := strings.TrimSpace(query.Get("hub.mode"))
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")
	metadata := map[string]any{"phone_number": phoneNumber}

	if phoneNumber == "" {
		writeError(w, inboundBadInput("inbound: phone number is required", nil))
		return
	}
	if mode != modeSubscribe {
		writeError(w, inboundBadInput("inbound: hub.mode must be subscribe", metadata))
		return
	}
	if challenge == "" {
		writeError(w, inboundBadInput("inbound: hub.challenge is required", metadata))
		return
	}

	ctx := r.Context()
	ok, err := h.verifier.VerifyWebhook(ctx, phoneNumber, token)
	if err != nil {
		mapped := core.MapError(err)
		if mapped.Category != goerrors.CategoryNotFound {
			h.logger.WithContext(ctx).Error("webhook verification failed", "phone_number", phoneNumber, "error", err)
			writeError(w, mapped)
			return
		}
		// Unknown numbers are rejected like bad tokens so callers cannot probe for channels.
		ok = false
	}
	if !ok {
		h.logger.WithContext(ctx).Warn("webhook verify token rejected", "phone_number", phoneNumber)
		writeError(w, inboundUnauthorized("inbound: webhook verify token mismatch", metadata))
		return
	}

	h.logger.WithContext(ctx).Info("webhook verified", "phone_number", phoneNumber)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}
