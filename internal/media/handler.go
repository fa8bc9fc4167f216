package media

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/clearledge/coursedrive/internal/graph"
	"github.com/clearledge/coursedrive/internal/response"
	"github.com/clearledge/coursedrive/internal/storage"
)

// maxThumbnailBytes caps thumbnail uploads (5 MiB).
const maxThumbnailBytes = 5 * 1024 * 1024

// multipartMemory is the in-memory threshold for parsing upload forms;
// larger files spill to temporary storage.
const multipartMemory = 32 << 20

// streamCopyBufferSize is the per-read buffer for the streaming proxy.
// The asset is never buffered whole.
const streamCopyBufferSize = 256 * 1024

var allowedThumbnailTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/webp": ".webp",
}

// Handler exposes the gateway's HTTP surface: creator uploads, playback
// capability issuance, and the signature-gated streaming proxy.
type Handler struct {
	svc    *Service
	signer *Signer
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc *Service, signer *Signer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{svc: svc, signer: signer, logger: logger}
}

// CreatorRoutes registers the authenticated creator endpoints.
func (h *Handler) CreatorRoutes(r chi.Router) {
	r.Post("/courses/{courseID}/thumbnail", h.UploadThumbnail)
	r.Post("/sections/{sectionID}/videos", h.UploadVideo)
	r.Delete("/courses/{courseID}/storage", h.DeleteCourseStorage)
}

// VideoRoutes registers playback endpoints. Issue requires auth at the
// router level; Stream must stay unauthenticated — playback clients issue
// range-seeking requests that cannot carry bearer credentials reliably,
// so a signed capability substitutes for the normal auth layer.
func (h *Handler) VideoRoutes(authed, public chi.Router) {
	authed.Get("/videos/{videoID}/playback-url", h.IssuePlaybackURL)
	public.Get("/videos/{videoID}/stream", h.Stream)
}

// UploadVideo handles POST /creator/sections/{sectionID}/videos.
func (h *Handler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	sectionID := chi.URLParam(r, "sectionID")

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		response.BadRequest(w, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "file is required")
		return
	}
	defer file.Close()

	title := strings.TrimSpace(r.FormValue("video_title"))
	filename := header.Filename
	if filename == "" {
		filename = "uploaded.mp4"
	}

	video, err := h.svc.UploadSectionVideo(r.Context(), sectionID, filename, title, file, header.Size)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}

	response.Created(w, video)
}

// UploadThumbnail handles POST /creator/courses/{courseID}/thumbnail.
// Only PNG/JPEG/WEBP images up to 5 MiB are accepted.
func (h *Handler) UploadThumbnail(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		response.BadRequest(w, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "file is required")
		return
	}
	defer file.Close()

	contentType := strings.ToLower(header.Header.Get("Content-Type"))

	ext, allowed := allowedThumbnailTypes[contentType]
	if contentType != "" && !allowed {
		response.BadRequest(w, "only PNG/JPG/WEBP images are allowed")
		return
	}

	if header.Size > maxThumbnailBytes {
		response.BadRequest(w, "max file size is 5MB")
		return
	}

	filename := header.Filename
	if filename == "" {
		filename = "thumbnail"
	}

	if !strings.Contains(filename, ".") {
		if ext == "" {
			ext = ".png"
		}

		filename += ext
	}

	course, err := h.svc.UploadThumbnail(r.Context(), courseID, filename, file, header.Size)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}

	response.OK(w, course)
}

// DeleteCourseStorage handles DELETE /creator/courses/{courseID}/storage.
func (h *Handler) DeleteCourseStorage(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")

	if err := h.svc.DeleteCourseStorage(r.Context(), courseID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.NotFound(w, "course not found")
			return
		}

		h.logger.Error("course storage delete failed",
			slog.String("course_id", courseID),
			slog.String("error", err.Error()),
		)
		response.Error(w, http.StatusBadGateway, "storage delete failed")
		return
	}

	response.OK(w, map[string]string{"detail": "deleted"})
}

// IssuePlaybackURL handles GET /videos/{videoID}/playback-url.
// The returned URL is a self-describing capability: exp and sig prove
// authorization offline, so the stream endpoint needs no session state.
func (h *Handler) IssuePlaybackURL(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")

	video, err := h.svc.Video(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.NotFound(w, "video not found")
			return
		}

		response.InternalError(w)
		return
	}

	if !video.File.Valid() {
		response.BadRequest(w, "video is not an uploaded file")
		return
	}

	exp, sig := h.signer.Issue(video.ID)

	streamURL := fmt.Sprintf("%s/api/v1/videos/%s/stream?exp=%d&sig=%s",
		requestBaseURL(r), url.PathEscape(video.ID), exp, sig)

	response.OK(w, map[string]string{"url": streamURL})
}

// Stream handles GET /videos/{videoID}/stream. Unauthenticated;
// gated entirely by the exp/sig capability parameters.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")

	query := r.URL.Query()
	if err := h.signer.Verify(videoID, query.Get("exp"), strings.TrimSpace(query.Get("sig"))); err != nil {
		// Generic messages only — detail here would be a signing oracle.
		if errors.Is(err, ErrExpired) {
			http.Error(w, "Expired", http.StatusForbidden)
			return
		}

		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	video, err := h.svc.Video(r.Context(), videoID)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	if !video.File.Valid() {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	rangeHeader := r.Header.Get("Range")

	upstream, err := h.svc.OpenStream(r.Context(), video.File, rangeHeader)
	if err != nil {
		h.logger.Error("stream upstream request failed",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Upstream error", http.StatusBadGateway)
		return
	}
	defer upstream.Body.Close()

	if upstream.StatusCode >= http.StatusBadRequest {
		http.Error(w, fmt.Sprintf("Upstream error: %d", upstream.StatusCode), http.StatusBadGateway)
		return
	}

	contentType := strings.TrimSpace(video.File.Mime)
	if contentType == "" {
		contentType = upstream.Header.Get("Content-Type")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")

	if cr := upstream.Header.Get("Content-Range"); cr != "" {
		w.Header().Set("Content-Range", cr)
	}

	if cl := upstream.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}

	status := http.StatusOK
	if rangeHeader != "" {
		status = http.StatusPartialContent
	}

	w.WriteHeader(status)

	buf := make([]byte, streamCopyBufferSize)

	if _, err := io.CopyBuffer(w, upstream.Body, buf); err != nil {
		// Client disconnects land here; the deferred close releases the
		// upstream read.
		h.logger.Debug("stream copy ended early",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
	}
}

// writeUploadError maps upload failures onto caller-facing statuses:
// credential/resolution faults are gateway-side (502), everything else
// surfaces as 400 with the upstream detail embedded for operability.
func (h *Handler) writeUploadError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		response.NotFound(w, "not found")
		return
	}

	var authErr *graph.AuthError
	if errors.As(err, &authErr) ||
		errors.Is(err, graph.ErrSiteNotResolved) ||
		errors.Is(err, graph.ErrDriveNotResolved) {
		h.logger.Error("upload failed on gateway configuration",
			slog.String("error", err.Error()),
		)
		response.Error(w, http.StatusBadGateway, "storage gateway unavailable")
		return
	}

	response.BadRequest(w, fmt.Sprintf("upload failed: %v", err))
}

// requestBaseURL reconstructs the externally visible scheme://host for
// the request, honoring X-Forwarded-Proto from the fronting proxy.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host
}
