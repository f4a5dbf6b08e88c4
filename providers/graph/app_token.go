package graph

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-channels/core"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AppTokenSource mints the app access token with the client credentials
// grant when none is configured. App tokens do not expire, so the first
// minted token is reused for the life of the process.
type AppTokenSource struct {
	config     clientcredentials.Config
	httpClient *http.Client
	timeout    time.Duration

	mu    sync.Mutex
	token *oauth2.Token
}

func NewAppTokenSource(cfg core.Config, httpClient *http.Client) *AppTokenSource {
	base := strings.TrimRight(strings.TrimSpace(cfg.Graph.BaseURL), "/")
	if base == "" {
		base = core.DefaultGraphBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &AppTokenSource{
		config: clientcredentials.Config{
			ClientID:     cfg.App.ID,
			ClientSecret: cfg.App.Secret,
			TokenURL:     base + "/" + strings.Trim(cfg.Graph.OAuthVersion, "/") + "/oauth/access_token",
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
		timeout:    cfg.RequestTimeout,
	}
}

// AppAccessToken returns the cached token or mints one bounded by the
// caller's context and the request timeout.
func (s *AppTokenSource) AppAccessToken(ctx context.Context) (string, error) {
	if strings.TrimSpace(s.config.ClientID) == "" || strings.TrimSpace(s.config.ClientSecret) == "" {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token.Valid() {
		return s.token.AccessToken, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	token, err := s.config.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("graph: mint app access token: %w", err)
	}
	s.token = token
	return token.AccessToken, nil
}

var _ core.AppTokenSource = (*AppTokenSource)(nil)
