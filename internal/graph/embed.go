package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
)

// uniqueIDPattern extracts a list-item GUID from a SharePoint web URL.
// Fallback for tenants where the sharepointIds facet is absent.
var uniqueIDPattern = regexp.MustCompile(`(?i)uniqueid=([0-9a-fA-F-]{36})`)

// getItemMeta fetches a drive item's metadata, including the sharepointIds
// facet needed for embed links.
func (c *Client) getItemMeta(ctx context.Context, driveID, itemID string) (*driveItemResponse, error) {
	path := fmt.Sprintf("/drives/%s/items/%s?$select=id,name,webUrl,sharepointIds",
		url.PathEscape(driveID), url.PathEscape(itemID))

	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var dir driveItemResponse
	if err := json.NewDecoder(resp.Body).Decode(&dir); err != nil {
		return nil, fmt.Errorf("graph: decoding item response: %w", err)
	}

	return &dir, nil
}

// EmbedLink builds a viewer-embeddable _layouts/15/embed.aspx URL for a
// stored file. siteWebBase is the browser-facing site URL from
// SiteResolver.WebBase. Best-effort: returns "" when no unique identifier
// can be obtained — callers treat that as "no embeddable preview", not an
// error.
func (c *Client) EmbedLink(ctx context.Context, driveID, itemID, siteWebBase string) string {
	meta, err := c.getItemMeta(ctx, driveID, itemID)
	if err != nil {
		c.logger.Warn("embed link lookup failed",
			slog.String("item_id", itemID),
			slog.String("error", err.Error()),
		)

		return ""
	}

	uniqueID := ""
	if meta.SharepointIDs != nil {
		uniqueID = meta.SharepointIDs.ListItemUniqueID
	}

	if uniqueID == "" {
		if m := uniqueIDPattern.FindStringSubmatch(meta.WebURL); m != nil {
			uniqueID = m[1]
		}
	}

	if uniqueID == "" {
		return ""
	}

	return siteWebBase + "/_layouts/15/embed.aspx" +
		"?UniqueId=" + url.QueryEscape(uniqueID) +
		"&embed=%7B%22ust%22%3Atrue%2C%22hv%22%3A%22CopyEmbedCode%22%7D" +
		"&referrer=StreamWebApp" +
		"&referrerScenario=EmbedDialog.Create"
}
