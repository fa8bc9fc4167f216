package graph

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, srvURL, driveName string) *SiteResolver {
	t.Helper()

	client := newTestClient(t, srvURL)

	return NewSiteResolver(client, "contoso.sharepoint.com", "LMS-Storage", driveName, slog.Default())
}

func TestSiteResolver_ResolvesAndCaches(t *testing.T) {
	var siteCalls, driveCalls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasPrefix(r.URL.Path, "/sites/contoso.sharepoint.com:"):
			siteCalls++
			fmt.Fprint(w, `{"id":"site-1"}`)
		case r.URL.Path == "/sites/site-1/drives":
			driveCalls++
			fmt.Fprint(w, `{"value":[{"id":"drive-a","name":"Documents"},{"id":"drive-b","name":"Course Media"}]}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	resolver := newTestResolver(t, srv.URL, "Course Media")

	siteID, err := resolver.SiteID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "site-1", siteID)

	driveID, err := resolver.DriveID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "drive-b", driveID)

	// Repeat lookups hit the cache, not the server.
	for i := 0; i < 3; i++ {
		_, err = resolver.SiteID(context.Background())
		require.NoError(t, err)
		_, err = resolver.DriveID(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, 1, siteCalls)
	assert.Equal(t, 1, driveCalls)
}

func TestSiteResolver_DriveNameFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if strings.Contains(r.URL.Path, "/drives") {
			fmt.Fprint(w, `{"value":[{"id":"drive-first","name":"Documents"}]}`)
			return
		}

		fmt.Fprint(w, `{"id":"site-1"}`)
	}))
	defer srv.Close()

	resolver := newTestResolver(t, srv.URL, "No Such Library")

	driveID, err := resolver.DriveID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "drive-first", driveID)
}

func TestSiteResolver_NoSiteID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	resolver := newTestResolver(t, srv.URL, "x")

	_, err := resolver.SiteID(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSiteNotResolved)
}

func TestSiteResolver_NoDrives(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if strings.Contains(r.URL.Path, "/drives") {
			fmt.Fprint(w, `{"value":[]}`)
			return
		}

		fmt.Fprint(w, `{"id":"site-1"}`)
	}))
	defer srv.Close()

	resolver := newTestResolver(t, srv.URL, "x")

	_, err := resolver.DriveID(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDriveNotResolved)
}

func TestSiteResolver_LookupFailureSurfacesUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":"accessDenied"}}`)
	}))
	defer srv.Close()

	resolver := newTestResolver(t, srv.URL, "x")

	_, err := resolver.SiteID(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)

	var ge *GraphError
	require.ErrorAs(t, err, &ge)
	assert.Contains(t, ge.Message, "accessDenied")
}

func TestSiteResolver_WebBase(t *testing.T) {
	client := newTestClient(t, "http://unused")

	plain := NewSiteResolver(client, "contoso.sharepoint.com", "LMS-Storage", "x", slog.Default())
	assert.Equal(t, "https://contoso.sharepoint.com/sites/LMS-Storage", plain.WebBase())

	// A "sites/" prefix in the configured path is normalized away.
	prefixed := NewSiteResolver(client, "contoso.sharepoint.com", "sites/LMS-Storage", "x", slog.Default())
	assert.Equal(t, "https://contoso.sharepoint.com/sites/LMS-Storage", prefixed.WebBase())
}
