package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-channels/core"
	goerrors "github.com/goliatone/go-errors"
)

const KindREST = "rest"

const defaultRESTClientTimeout = 30 * time.Second
const defaultRESTResponseBodyLimit int64 = 10 << 20
const defaultUserAgent = "go-channels"

// traceHeaders are the response headers Graph and 360dialog use to identify a
// request in their support tooling, in lookup order.
var traceHeaders = []string{"X-Fb-Trace-Id", "X-Fb-Request-Id", "X-Request-Id"}

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTAdapter executes provider calls over HTTP. Non-2xx responses are
// returned as responses; only failures to reach the provider are errors.
type RESTAdapter struct {
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
}

func NewRESTAdapter(client HTTPDoer) *RESTAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultRESTClientTimeout}
	}
	return &RESTAdapter{
		Client:               client,
		DefaultHeaders:       map[string]string{"User-Agent": defaultUserAgent},
		MaxResponseBodyBytes: defaultRESTResponseBodyLimit,
	}
}

func (*RESTAdapter) Kind() string {
	return KindREST
}

func (a *RESTAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Client == nil {
		return core.TransportResponse{}, transportError(
			"transport: rest adapter requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": KindREST},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, target, err := a.newRequest(ctx, req)
	if err != nil {
		return core.TransportResponse{}, err
	}
	// Access tokens travel in Graph query strings; keep them out of errors.
	safeURL := redactedURL(target)

	startedAt := time.Now()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = safeURL
		}
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: provider unreachable",
			http.StatusBadGateway,
			map[string]any{"adapter": KindREST, "method": httpReq.Method, "url": safeURL},
		)
	}
	defer httpRes.Body.Close()

	body, err := a.readBody(httpRes, req.MaxResponseBodyBytes, safeURL)
	if err != nil {
		return core.TransportResponse{}, err
	}

	metadata := map[string]any{
		"kind":        KindREST,
		"method":      httpReq.Method,
		"duration_ms": time.Since(startedAt).Milliseconds(),
	}
	if requestID := providerRequestID(httpRes.Header); requestID != "" {
		metadata["request_id"] = requestID
	}
	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       body,
		Metadata:   metadata,
	}, nil
}

// newRequest resolves the method and URL, merges extra query values and
// applies default headers before per-request ones.
func (a *RESTAdapter) newRequest(ctx context.Context, req core.TransportRequest) (*http.Request, *url.URL, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	raw := strings.TrimSpace(req.URL)
	if raw == "" {
		return nil, nil, transportError(
			"transport: request url is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"adapter": KindREST},
		)
	}
	target, err := url.Parse(raw)
	if err != nil {
		return nil, nil, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: invalid request url",
			http.StatusBadRequest,
			map[string]any{"adapter": KindREST},
		)
	}
	if len(req.Query) > 0 {
		values := target.Query()
		for key, value := range req.Query {
			if key = strings.TrimSpace(key); key != "" {
				values.Set(key, strings.TrimSpace(value))
			}
		}
		target.RawQuery = values.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, nil, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: build http request",
			http.StatusBadRequest,
			map[string]any{"adapter": KindREST, "method": method, "url": redactedURL(target)},
		)
	}
	setHeaders(httpReq.Header, a.DefaultHeaders)
	setHeaders(httpReq.Header, req.Headers)
	return httpReq, target, nil
}

// readBody reads at most the configured limit. Template listings are the
// largest responses and stay well below the default.
func (a *RESTAdapter) readBody(res *http.Response, requestLimit int64, safeURL string) ([]byte, error) {
	limit := requestLimit
	if limit <= 0 {
		limit = a.MaxResponseBodyBytes
	}
	if limit <= 0 {
		limit = defaultRESTResponseBodyLimit
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return nil, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: read response body",
			http.StatusBadGateway,
			map[string]any{"adapter": KindREST, "status_code": res.StatusCode, "url": safeURL},
		)
	}
	if int64(len(body)) > limit {
		return nil, transportError(
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", limit),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{"adapter": KindREST, "status_code": res.StatusCode, "url": safeURL, "limit_bytes": limit},
		)
	}
	return body, nil
}

func setHeaders(dst http.Header, src map[string]string) {
	for key, value := range src {
		if key = strings.TrimSpace(key); key != "" {
			dst.Set(key, strings.TrimSpace(value))
		}
	}
}

func providerRequestID(headers http.Header) string {
	for _, name := range traceHeaders {
		if value := strings.TrimSpace(headers.Get(name)); value != "" {
			return value
		}
	}
	return ""
}

func redactedURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	clean := *u
	clean.RawQuery = ""
	clean.User = nil
	return clean.String()
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

var _ core.TransportAdapter = (*RESTAdapter)(nil)
