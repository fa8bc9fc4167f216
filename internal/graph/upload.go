package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultChunkSize is the chunk size for upload sessions when the caller
// does not configure one (10 MiB).
const DefaultChunkSize = 10 * 1024 * 1024

// chunkPutTimeout bounds a single chunk PUT. Chunks are large, so this is
// much longer than the metadata timeout.
const chunkPutTimeout = 2 * time.Minute

// UploadSession is a server-side resumable-upload context addressed by a
// one-time pre-authenticated URL. The URL embeds auth and is never logged.
type UploadSession struct {
	UploadURL string
}

type createUploadSessionRequest struct {
	Item uploadSessionItem `json:"item"`
}

type uploadSessionItem struct {
	ConflictBehavior string `json:"@microsoft.graph.conflictBehavior"` //nolint:tagliatelle // Graph API annotation key
}

type uploadSessionResponse struct {
	UploadURL string `json:"uploadUrl"`
}

// CreateUploadSession opens a chunked upload session for the exact target
// path, with conflictBehavior "replace" (re-uploads supersede the prior
// file). Failure here is fatal for the upload.
func (c *Client) CreateUploadSession(ctx context.Context, driveID, filePath string) (*UploadSession, error) {
	c.logger.Info("creating upload session",
		slog.String("drive_id", driveID),
		slog.String("path", filePath),
	)

	reqPath := fmt.Sprintf("/drives/%s/root:/%s:/createUploadSession", driveID, encodePathSegments(filePath))

	reqBody := createUploadSessionRequest{
		Item: uploadSessionItem{ConflictBehavior: "replace"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("graph: marshaling upload session request: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, reqPath, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var usr uploadSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&usr); err != nil {
		return nil, fmt.Errorf("graph: decoding upload session response: %w", err)
	}

	if usr.UploadURL == "" {
		return nil, fmt.Errorf("graph: createUploadSession returned no uploadUrl")
	}

	return &UploadSession{UploadURL: usr.UploadURL}, nil
}

// transferState tracks where a chunked upload is in its lifecycle.
// The cursor only advances while sending; a failure at any point abandons
// the session — there is no resume-from-cursor recovery.
type transferState int

const (
	transferOpening transferState = iota
	transferSending
	transferCompleted
	transferFailed
)

// sessionTransfer drives one chunked upload to completion.
type sessionTransfer struct {
	client    *Client
	src       io.Reader
	total     int64
	chunkSize int64

	state   transferState
	session *UploadSession
	cursor  int64
}

// Upload transfers src to the given drive path through a chunked upload
// session and returns the durable file reference. total must be the exact
// source length; chunkSize <= 0 selects DefaultChunkSize. fallbackName is
// used when the final item metadata omits a name.
// A zero-length source is rejected before any network call.
func (c *Client) Upload(
	ctx context.Context, driveID, filePath, fallbackName string,
	src io.Reader, total, chunkSize int64,
) (*FileRef, error) {
	if total <= 0 {
		return nil, ErrEmptyUpload
	}

	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	t := &sessionTransfer{
		client:    c,
		src:       src,
		total:     total,
		chunkSize: chunkSize,
		state:     transferOpening,
	}

	item, err := t.run(ctx, driveID, filePath)
	if err != nil {
		return nil, err
	}

	if item.ID == "" {
		return nil, ErrMissingItemID
	}

	name := item.Name
	if name == "" {
		name = fallbackName
	}

	return &FileRef{
		DriveID: driveID,
		ItemID:  item.ID,
		WebURL:  item.WebURL,
		Name:    name,
		Mime:    item.MimeType,
		Size:    item.Size,
	}, nil
}

func (t *sessionTransfer) run(ctx context.Context, driveID, filePath string) (*Item, error) {
	session, err := t.client.CreateUploadSession(ctx, driveID, filePath)
	if err != nil {
		t.state = transferFailed
		return nil, err
	}

	t.session = session
	t.state = transferSending

	buf := make([]byte, t.chunkSize)

	for t.cursor < t.total {
		length := t.chunkSize
		if remaining := t.total - t.cursor; remaining < length {
			length = remaining
		}

		if _, err := io.ReadFull(t.src, buf[:length]); err != nil {
			t.state = transferFailed
			return nil, fmt.Errorf("graph: reading upload source at offset %d: %w", t.cursor, err)
		}

		item, err := t.putChunk(ctx, buf[:length])
		if err != nil {
			t.state = transferFailed
			return nil, err
		}

		if item != nil {
			t.state = transferCompleted
			return item, nil
		}

		// 202: more chunks expected.
		t.cursor += length
	}

	// Source exhausted without the server signaling completion.
	t.state = transferFailed

	return nil, ErrIncompleteSession
}

// putChunk sends one range-addressed PUT to the session URL. Returns the
// final item on 200/201, nil on 202 (more chunks expected). Any other
// status fails the transfer with the upstream detail; the caller must not
// retry — the session is abandoned.
// The session URL is pre-authenticated, so no Authorization header is sent.
func (t *sessionTransfer) putChunk(ctx context.Context, chunk []byte) (*Item, error) {
	start := t.cursor
	end := start + int64(len(chunk)) - 1
	contentRange := fmt.Sprintf("bytes %d-%d/%d", start, end, t.total)

	t.client.logger.Debug("uploading chunk",
		slog.Int64("offset", start),
		slog.Int("length", len(chunk)),
		slog.Int64("total", t.total),
	)

	ctx, cancel := context.WithTimeout(ctx, chunkPutTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.session.UploadURL, bytes.NewReader(chunk))
	if err != nil {
		return nil, fmt.Errorf("graph: creating chunk upload request: %w", err)
	}

	req.Header.Set("Content-Range", contentRange)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("User-Agent", userAgent)
	req.ContentLength = int64(len(chunk))

	resp, err := t.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph: chunk upload request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		// Intermediate chunk accepted. Drain body to reuse connection.
		if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
			return nil, fmt.Errorf("graph: draining chunk response body: %w", drainErr)
		}

		return nil, nil

	case http.StatusOK, http.StatusCreated:
		// Upload complete — response contains the created/updated item.
		var dir driveItemResponse
		if decErr := json.NewDecoder(resp.Body).Decode(&dir); decErr != nil {
			return nil, fmt.Errorf("graph: decoding final chunk response: %w", decErr)
		}

		item := dir.toItem()

		t.client.logger.Debug("upload complete",
			slog.String("item_id", item.ID),
			slog.String("item_name", item.Name),
		)

		return &item, nil

	default:
		body, _ := io.ReadAll(resp.Body) //nolint:errcheck // best-effort read for error message

		return nil, &GraphError{
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get("request-id"),
			Message:    string(body),
			Err:        classifyStatus(resp.StatusCode),
		}
	}
}
