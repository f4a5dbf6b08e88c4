package devkit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/goliatone/go-channels/core"
)

type TransportScript struct {
	Response core.TransportResponse
	Err      error
}

// Route answers requests whose method matches and whose URL contains
// Contains. An empty Method matches any verb.
type Route struct {
	Method   string
	Contains string
	Script   TransportScript
}

// FakeTransportAdapter answers from routes first, then from the sequential
// scripts, and records every request it sees.
type FakeTransportAdapter struct {
	mu       sync.Mutex
	kind     string
	routes   []Route
	scripts  []TransportScript
	cursor   int
	requests []core.TransportRequest
}

func NewFakeTransportAdapter(kind string, scripts ...TransportScript) *FakeTransportAdapter {
	return &FakeTransportAdapter{
		kind:    strings.TrimSpace(strings.ToLower(kind)),
		scripts: append([]TransportScript(nil), scripts...),
	}
}

// On registers a route. Later registrations win over earlier ones.
func (a *FakeTransportAdapter) On(method string, contains string, script TransportScript) *FakeTransportAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.routes = append([]Route{{
		Method:   strings.ToUpper(strings.TrimSpace(method)),
		Contains: contains,
		Script:   script,
	}}, a.routes...)
	return a
}

func (a *FakeTransportAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

func (a *FakeTransportAdapter) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("devkit: fake transport adapter is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, cloneTransportRequest(req))
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	for _, route := range a.routes {
		if route.Method != "" && route.Method != method {
			continue
		}
		if strings.Contains(req.URL, route.Contains) {
			return cloneTransportResponse(route.Script.Response), route.Script.Err
		}
	}
	if a.cursor < len(a.scripts) {
		script := a.scripts[a.cursor]
		a.cursor++
		return cloneTransportResponse(script.Response), script.Err
	}
	if len(a.scripts) > 0 {
		last := a.scripts[len(a.scripts)-1]
		return cloneTransportResponse(last.Response), last.Err
	}
	return core.TransportResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{},
		Metadata:   map[string]any{"kind": a.kind},
	}, nil
}

func (a *FakeTransportAdapter) Requests() []core.TransportRequest {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]core.TransportRequest, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneTransportRequest(item))
	}
	return out
}

// RequestsTo filters recorded requests by method and URL fragment.
func (a *FakeTransportAdapter) RequestsTo(method string, contains string) []core.TransportRequest {
	method = strings.ToUpper(strings.TrimSpace(method))
	out := []core.TransportRequest{}
	for _, req := range a.Requests() {
		if method != "" && strings.ToUpper(req.Method) != method {
			continue
		}
		if strings.Contains(req.URL, contains) {
			out = append(out, req)
		}
	}
	return out
}

func cloneTransportRequest(in core.TransportRequest) core.TransportRequest {
	out := core.TransportRequest{
		Method:               in.Method,
		URL:                  in.URL,
		Headers:              map[string]string{},
		Query:                map[string]string{},
		Body:                 append([]byte(nil), in.Body...),
		Metadata:             map[string]any{},
		Timeout:              in.Timeout,
		MaxResponseBodyBytes: in.MaxResponseBodyBytes,
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Query {
		out.Query[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

func cloneTransportResponse(in core.TransportResponse) core.TransportResponse {
	out := core.TransportResponse{
		StatusCode: in.StatusCode,
		Headers:    map[string]string{},
		Body:       append([]byte(nil), in.Body...),
		Metadata:   map[string]any{},
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

var _ core.TransportAdapter = (*FakeTransportAdapter)(nil)
