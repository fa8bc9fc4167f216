package graph

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Content issues a GET against the item's content endpoint, forwarding the
// caller's Range header unmodified when non-empty. The response is returned
// as-is — including 4xx/5xx — so the streaming gateway can relay status,
// headers, and body without buffering. The caller owns resp.Body.
// The request is bound to ctx: when the viewing client disconnects, the
// upstream read is released promptly.
func (c *Client) Content(ctx context.Context, driveID, itemID, rangeHeader string) (*http.Response, error) {
	c.logger.Debug("fetching item content",
		slog.String("drive_id", driveID),
		slog.String("item_id", itemID),
		slog.Bool("ranged", rangeHeader != ""),
	)

	url := fmt.Sprintf("%s/drives/%s/items/%s/content", c.baseURL, driveID, itemID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("graph: creating content request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return nil, fmt.Errorf("graph: obtaining token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)

	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph: content request failed: %w", err)
	}

	return resp, nil
}
