package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// refreshMargin is how much remaining lifetime a cached token must have
// to be served without a refresh. Tokens closer to expiry than this are
// replaced synchronously.
const refreshMargin = 60 * time.Second

// tokenFetchTimeout bounds a single token exchange with the identity service.
const tokenFetchTimeout = 15 * time.Second

// AppTokenSource acquires app-only (client_credentials) tokens and caches
// them in memory. The cached token is replaced wholesale on refresh —
// concurrent callers serialize on the mutex, so a duplicate in-flight
// refresh cannot corrupt the cache.
type AppTokenSource struct {
	cfg    *clientcredentials.Config
	ctx    context.Context
	logger *slog.Logger

	// now is the clock; tests substitute a fake.
	now func() time.Time

	mu  sync.Mutex
	tok *oauth2.Token
}

// NewAppTokenSource creates a token source for the given Azure AD authority
// (e.g. "https://login.microsoftonline.com/<tenant>"). scope must be the
// ".default" Graph scope for app-only permissions.
// ctx must outlive the source — it is bound to every token exchange.
func NewAppTokenSource(ctx context.Context, authority, clientID, clientSecret, scope string, logger *slog.Logger) *AppTokenSource {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     authority + "/oauth2/v2.0/token",
		Scopes:       []string{scope},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: tokenFetchTimeout})

	return &AppTokenSource{
		cfg:    cfg,
		ctx:    ctx,
		logger: logger,
		now:    time.Now,
	}
}

// Token returns a cached bearer token while its remaining lifetime exceeds
// refreshMargin, otherwise exchanges client credentials for a new one.
// Identity-service failures are returned as *AuthError with the upstream
// status and body.
func (s *AppTokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tok != nil && s.now().Add(refreshMargin).Before(s.tok.Expiry) {
		return s.tok.AccessToken, nil
	}

	tok, err := s.cfg.Token(s.ctx)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return "", &AuthError{
				StatusCode: re.Response.StatusCode,
				Body:       string(re.Body),
			}
		}

		return "", fmt.Errorf("graph: token exchange failed: %w", err)
	}

	s.logger.Debug("acquired app token",
		slog.Time("expiry", tok.Expiry),
	)

	s.tok = tok

	return tok.AccessToken, nil
}
