package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// encodePathSegments URL-encodes each segment of a slash-separated path.
// Characters like #, ?, %, and spaces are encoded per-segment so the
// resulting path is safe for interpolation into Graph API URLs.
func encodePathSegments(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}

type folderFacet struct{}

type createFolderRequest struct {
	Name             string      `json:"name"`
	Folder           folderFacet `json:"folder"`
	ConflictBehavior string      `json:"@microsoft.graph.conflictBehavior"` //nolint:tagliatelle // Graph API annotation key
}

// ItemExists checks whether a path-addressed item exists in the drive.
// 200 means yes, 404 means no; any other status is an error.
func (c *Client) ItemExists(ctx context.Context, driveID, path string) (bool, error) {
	reqPath := fmt.Sprintf("/drives/%s/root:/%s", driveID, encodePathSegments(path))

	resp, err := c.Do(ctx, http.MethodGet, reqPath, nil)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}

		return false, err
	}

	// Drain body to reuse connection.
	if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
		resp.Body.Close()
		return true, fmt.Errorf("graph: draining existence check body: %w", drainErr)
	}
	resp.Body.Close()

	return true, nil
}

// CreateFolder creates a folder named name under parentPath (drive root
// when parentPath is empty). Uses conflictBehavior "fail" — a 409 surfaces
// as ErrConflict for the caller to classify.
func (c *Client) CreateFolder(ctx context.Context, driveID, parentPath, name string) (*Item, error) {
	c.logger.Info("creating folder",
		slog.String("drive_id", driveID),
		slog.String("parent_path", parentPath),
		slog.String("name", name),
	)

	reqPath := fmt.Sprintf("/drives/%s/root", driveID)
	if parentPath != "" {
		reqPath += ":/" + encodePathSegments(parentPath) + ":"
	}
	reqPath += "/children"

	reqBody := createFolderRequest{
		Name:             name,
		Folder:           folderFacet{},
		ConflictBehavior: "fail",
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("graph: marshaling create folder request: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, reqPath, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var dir driveItemResponse
	if err := json.NewDecoder(resp.Body).Decode(&dir); err != nil {
		return nil, fmt.Errorf("graph: decoding create folder response: %w", err)
	}

	item := dir.toItem()

	return &item, nil
}

// EnsureFolder makes every prefix of the given path exist under the drive
// root, creating missing segments in order. A concurrent-creation race
// (another actor created the segment between our check and create) is
// treated as success: callers depend on this idempotency when multiple
// uploads race to provision the same course folder.
// Segments must already be sanitized; the provisioner does not sanitize.
func (c *Client) EnsureFolder(ctx context.Context, driveID string, segments []string) error {
	running := ""

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		parent := running
		if running == "" {
			running = segment
		} else {
			running = running + "/" + segment
		}

		exists, err := c.ItemExists(ctx, driveID, running)
		if err != nil {
			return fmt.Errorf("graph: checking folder %q: %w", running, err)
		}

		if exists {
			continue
		}

		if _, err := c.CreateFolder(ctx, driveID, parent, segment); err != nil {
			if errors.Is(err, ErrConflict) {
				// Someone else created it concurrently; ok.
				c.logger.Debug("folder created concurrently",
					slog.String("path", running),
				)

				continue
			}

			return fmt.Errorf("graph: creating folder %q: %w", running, err)
		}
	}

	return nil
}
