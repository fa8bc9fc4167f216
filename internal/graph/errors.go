// Package graph provides an HTTP client for the Microsoft Graph API
// scoped to a single SharePoint storage site: folder provisioning,
// chunked upload sessions, and content streaming.
package graph

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, graph.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("graph: bad request")
	ErrUnauthorized = errors.New("graph: unauthorized")
	ErrForbidden    = errors.New("graph: forbidden")
	ErrNotFound     = errors.New("graph: not found")
	ErrConflict     = errors.New("graph: conflict")
	ErrThrottled    = errors.New("graph: throttled")
	ErrServerError  = errors.New("graph: server error")
)

// Upload protocol sentinels.
var (
	// ErrEmptyUpload is returned before any network call when the source
	// has no bytes — the session protocol requires at least one chunk.
	ErrEmptyUpload = errors.New("graph: empty upload")

	// ErrIncompleteSession is returned when the source is exhausted but the
	// server never signaled completion with a final 200/201.
	ErrIncompleteSession = errors.New("graph: upload session did not complete")

	// ErrMissingItemID is returned when the final item JSON carries no id.
	// A reference without an id is unusable.
	ErrMissingItemID = errors.New("graph: upload succeeded but item id missing")
)

// Resolution sentinels. Both indicate a configuration fault — retrying
// without a config change cannot succeed.
var (
	ErrSiteNotResolved  = errors.New("graph: site lookup returned no id")
	ErrDriveNotResolved = errors.New("graph: could not resolve drive id")
)

// GraphError wraps a sentinel error with HTTP status code, request ID,
// and the API error message body for debugging.
type GraphError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *GraphError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("graph: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("graph: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

// AuthError is returned when the client-credentials token exchange fails.
// It carries the identity service's status and body for diagnosis.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("graph: token request failed with status %d: %s", e.StatusCode, e.Body)
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}
