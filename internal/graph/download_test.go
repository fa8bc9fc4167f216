package graph

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_RangePassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drives/d1/items/item-1/content", r.URL.Path)
		assert.Equal(t, "bytes=1000-1999", r.Header.Get("Range"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Range", "bytes 1000-1999/5000")
		w.WriteHeader(http.StatusPartialContent)
		fmt.Fprint(w, "partial-bytes")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	resp, err := client.Content(context.Background(), "d1", "item-1", "bytes=1000-1999")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "bytes 1000-1999/5000", resp.Header.Get("Content-Range"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "partial-bytes", string(body))
}

func TestContent_NoRangeHeaderWhenUnranged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["Range"]
		assert.False(t, present)

		fmt.Fprint(w, "full-body")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	resp, err := client.Content(context.Background(), "d1", "item-1", "")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestContent_UpstreamErrorReturnedRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	// Error statuses come back as responses, not errors — the proxy
	// decides how to surface them.
	resp, err := client.Content(context.Background(), "d1", "gone", "")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
