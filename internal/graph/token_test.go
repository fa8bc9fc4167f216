package graph

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestTokenSource points an AppTokenSource at a fake identity service.
func newTestTokenSource(t *testing.T, authority string) *AppTokenSource {
	t.Helper()

	return NewAppTokenSource(
		context.Background(),
		authority,
		"client-id",
		"client-secret",
		"https://graph.microsoft.com/.default",
		slog.Default(),
	)
}

func TestAppTokenSource_FetchAndCache(t *testing.T) {
	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "https://graph.microsoft.com/.default", r.Form.Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	src := newTestTokenSource(t, srv.URL)

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	// Second call is served from cache.
	tok, err = src.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, 1, calls)
}

func TestAppTokenSource_RefreshNearExpiry(t *testing.T) {
	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":3600}`, calls)
	}))
	defer srv.Close()

	src := newTestTokenSource(t, srv.URL)

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	// Advance the clock to within the refresh margin of expiry.
	src.now = func() time.Time {
		return time.Now().Add(3600*time.Second - 30*time.Second)
	}

	tok, err = src.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, 2, calls)
}

func TestAppTokenSource_AuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_client","error_description":"AADSTS7000215"}`)
	}))
	defer srv.Close()

	src := newTestTokenSource(t, srv.URL)

	_, err := src.Token()
	require.Error(t, err)

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.StatusCode)
	assert.Contains(t, ae.Body, "AADSTS7000215")
}
