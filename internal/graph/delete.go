package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// DeleteByPath removes a file or folder addressed by its path under the
// drive root. An already-absent item (404) is success — deletion is
// idempotent from the caller's perspective.
func (c *Client) DeleteByPath(ctx context.Context, driveID, path string) error {
	c.logger.Info("deleting item by path",
		slog.String("drive_id", driveID),
		slog.String("path", path),
	)

	reqPath := fmt.Sprintf("/drives/%s/root:/%s", driveID, encodePathSegments(path))

	resp, err := c.Do(ctx, http.MethodDelete, reqPath, nil)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}

		return fmt.Errorf("graph: deleting %q: %w", path, err)
	}
	defer resp.Body.Close()

	if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
		return fmt.Errorf("graph: draining delete response body: %w", drainErr)
	}

	return nil
}
