package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// SiteResolver maps a human-configured SharePoint site path to the
// store's internal site and drive identifiers. Both are resolved at most
// once per process — they are not expected to change during a run.
// Concurrent cold lookups are collapsed with singleflight so a burst of
// first requests issues a single upstream call.
type SiteResolver struct {
	client    *Client
	host      string // tenant host, e.g. "contoso.sharepoint.com"
	sitePath  string // site path under /sites/, e.g. "LMS-Storage"
	driveName string // document library name to prefer
	logger    *slog.Logger

	group singleflight.Group

	mu      sync.RWMutex
	siteID  string
	driveID string
}

// NewSiteResolver creates a resolver for the given site. driveName is
// matched case-insensitively against the site's drives; when no drive
// matches, the first available drive is used.
func NewSiteResolver(client *Client, host, sitePath, driveName string, logger *slog.Logger) *SiteResolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &SiteResolver{
		client:    client,
		host:      host,
		sitePath:  sitePath,
		driveName: driveName,
		logger:    logger,
	}
}

type siteResponse struct {
	ID string `json:"id"`
}

type driveResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type drivesListResponse struct {
	Value []driveResponse `json:"value"`
}

// SiteID resolves and caches the site identifier.
func (r *SiteResolver) SiteID(ctx context.Context) (string, error) {
	r.mu.RLock()
	cached := r.siteID
	r.mu.RUnlock()

	if cached != "" {
		return cached, nil
	}

	id, err, _ := r.group.Do("site", func() (any, error) {
		return r.lookupSiteID(ctx)
	})
	if err != nil {
		return "", err
	}

	return id.(string), nil
}

func (r *SiteResolver) lookupSiteID(ctx context.Context) (string, error) {
	path := fmt.Sprintf("/sites/%s:/sites/%s", r.host, url.PathEscape(r.sitePath))

	resp, err := r.client.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", fmt.Errorf("graph: site lookup: %w", err)
	}
	defer resp.Body.Close()

	var sr siteResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("graph: decoding site response: %w", err)
	}

	if sr.ID == "" {
		return "", ErrSiteNotResolved
	}

	r.mu.Lock()
	r.siteID = sr.ID
	r.mu.Unlock()

	r.logger.Info("resolved storage site",
		slog.String("site_path", r.sitePath),
		slog.String("site_id", sr.ID),
	)

	return sr.ID, nil
}

// DriveID resolves and caches the drive identifier for the configured
// document library, falling back to the site's first drive when the
// configured name is not found.
func (r *SiteResolver) DriveID(ctx context.Context) (string, error) {
	r.mu.RLock()
	cached := r.driveID
	r.mu.RUnlock()

	if cached != "" {
		return cached, nil
	}

	id, err, _ := r.group.Do("drive", func() (any, error) {
		return r.lookupDriveID(ctx)
	})
	if err != nil {
		return "", err
	}

	return id.(string), nil
}

func (r *SiteResolver) lookupDriveID(ctx context.Context) (string, error) {
	siteID, err := r.SiteID(ctx)
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf("/sites/%s/drives", siteID)

	resp, err := r.client.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", fmt.Errorf("graph: drives lookup: %w", err)
	}
	defer resp.Body.Close()

	var dlr drivesListResponse
	if err := json.NewDecoder(resp.Body).Decode(&dlr); err != nil {
		return "", fmt.Errorf("graph: decoding drives response: %w", err)
	}

	wanted := strings.ToLower(strings.TrimSpace(r.driveName))

	var found *driveResponse
	for i := range dlr.Value {
		if strings.ToLower(strings.TrimSpace(dlr.Value[i].Name)) == wanted {
			found = &dlr.Value[i]
			break
		}
	}

	if found == nil && len(dlr.Value) > 0 {
		found = &dlr.Value[0]

		r.logger.Warn("configured drive not found, falling back to first drive",
			slog.String("wanted", r.driveName),
			slog.String("using", found.Name),
		)
	}

	if found == nil || found.ID == "" {
		return "", ErrDriveNotResolved
	}

	r.mu.Lock()
	r.driveID = found.ID
	r.mu.Unlock()

	r.logger.Info("resolved storage drive",
		slog.String("drive_name", found.Name),
		slog.String("drive_id", found.ID),
	)

	return found.ID, nil
}

// WebBase returns the browser-facing site URL,
// https://<host>/sites/<sitePath>. Used by the embed-link builder.
// A "sites/" prefix in the configured path is normalized away.
func (r *SiteResolver) WebBase() string {
	sp := strings.Trim(strings.TrimSpace(r.sitePath), "/")
	if len(sp) > 6 && strings.EqualFold(sp[:6], "sites/") {
		sp = sp[6:]
	}

	return fmt.Sprintf("https://%s/sites/%s", r.host, sp)
}
