package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/clearledge/coursedrive/internal/graph"
	"github.com/clearledge/coursedrive/internal/storage"
)

// Store is the persistence surface the service needs. Defined at the
// consumer so tests can substitute a fake.
type Store interface {
	Course(ctx context.Context, id string) (*storage.Course, error)
	Section(ctx context.Context, id string) (*storage.Section, error)
	Video(ctx context.Context, id string) (*storage.Video, error)
	AssignCourseFolder(ctx context.Context, courseID, name string) (string, error)
	SetCourseThumbnail(ctx context.Context, courseID string, ref graph.FileRef) error
	CreateVideo(ctx context.Context, v *storage.Video) error
}

// Service orchestrates uploads into the storage drive and hands the
// streaming gateway its upstream reads. It carries two graph clients:
// meta for short metadata calls (provisioning, embed lookup, delete) and
// transfer for chunk PUTs and content GETs, which run without a
// client-level timeout.
type Service struct {
	meta     *graph.Client
	transfer *graph.Client
	resolver *graph.SiteResolver
	store    Store
	logger   *slog.Logger

	officeRoot string
	fieldRoot  string
	chunkSize  int64
}

// NewService wires a Service. chunkSize <= 0 selects the default.
func NewService(
	meta, transfer *graph.Client, resolver *graph.SiteResolver, store Store,
	officeRoot, fieldRoot string, chunkSize int64, logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		meta:       meta,
		transfer:   transfer,
		resolver:   resolver,
		store:      store,
		logger:     logger,
		officeRoot: officeRoot,
		fieldRoot:  fieldRoot,
		chunkSize:  chunkSize,
	}
}

// rootForTrack maps a course track to its fixed top-level storage folder.
func (s *Service) rootForTrack(track string) string {
	if strings.EqualFold(strings.TrimSpace(track), storage.TrackOffice) {
		return s.officeRoot
	}

	return s.fieldRoot
}

// courseFolder returns the course's assigned storage folder name,
// deriving and persisting one from the title on first use. The name is
// stable for the life of the course regardless of later title edits.
func (s *Service) courseFolder(ctx context.Context, course *storage.Course) (string, error) {
	if name := strings.TrimSpace(course.StorageFolderName); name != "" {
		return name, nil
	}

	assigned, err := s.store.AssignCourseFolder(ctx, course.ID, SafeFolderName(course.Title))
	if err != nil {
		return "", err
	}

	course.StorageFolderName = assigned

	return assigned, nil
}

// UploadSectionVideo transfers a video into
// <root>/<courseFolder>/Sections/<sectionOrder>/Videos/<filename>,
// builds a best-effort embed link, and persists the video record with its
// file reference. Nothing is persisted when the upload fails.
func (s *Service) UploadSectionVideo(
	ctx context.Context, sectionID, filename, title string, src io.Reader, size int64,
) (*storage.Video, error) {
	// The name is client-supplied; reduce it to a safe base name so it
	// cannot address anything outside the Videos folder.
	if filename = SafeFileName(filename); filename == "" {
		filename = "uploaded.mp4"
	}

	section, err := s.store.Section(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	course, err := s.store.Course(ctx, section.CourseID)
	if err != nil {
		return nil, err
	}

	driveID, err := s.resolver.DriveID(ctx)
	if err != nil {
		return nil, err
	}

	folder, err := s.courseFolder(ctx, course)
	if err != nil {
		return nil, err
	}

	segments := []string{
		s.rootForTrack(course.Track), folder,
		"Sections", strconv.Itoa(section.Order), "Videos",
	}

	if err := s.meta.EnsureFolder(ctx, driveID, segments); err != nil {
		return nil, err
	}

	filePath := strings.Join(segments, "/") + "/" + filename

	ref, err := s.transfer.Upload(ctx, driveID, filePath, filename, src, size, s.chunkSize)
	if err != nil {
		return nil, err
	}

	s.logger.Info("video uploaded",
		slog.String("course_id", course.ID),
		slog.String("section_id", section.ID),
		slog.String("item_id", ref.ItemID),
		slog.Int64("size", ref.Size),
	)

	// Best-effort: absence of an embeddable preview is a normal case.
	embedURL := s.meta.EmbedLink(ctx, ref.DriveID, ref.ItemID, s.resolver.WebBase())

	if title = strings.TrimSpace(title); title == "" {
		title = filename
	}

	video := &storage.Video{
		CourseID:  course.ID,
		SectionID: section.ID,
		Title:     title,
		EmbedURL:  embedURL,
		File:      *ref,
	}

	if err := s.store.CreateVideo(ctx, video); err != nil {
		return nil, err
	}

	return video, nil
}

// UploadThumbnail transfers a course thumbnail into
// <root>/<courseFolder>/Thumbnail/<filename> and replaces the course's
// thumbnail reference.
func (s *Service) UploadThumbnail(
	ctx context.Context, courseID, filename string, src io.Reader, size int64,
) (*storage.Course, error) {
	if filename = SafeFileName(filename); filename == "" {
		filename = "thumbnail.png"
	}

	course, err := s.store.Course(ctx, courseID)
	if err != nil {
		return nil, err
	}

	driveID, err := s.resolver.DriveID(ctx)
	if err != nil {
		return nil, err
	}

	folder, err := s.courseFolder(ctx, course)
	if err != nil {
		return nil, err
	}

	segments := []string{s.rootForTrack(course.Track), folder, "Thumbnail"}

	if err := s.meta.EnsureFolder(ctx, driveID, segments); err != nil {
		return nil, err
	}

	filePath := strings.Join(segments, "/") + "/" + filename

	ref, err := s.transfer.Upload(ctx, driveID, filePath, filename, src, size, s.chunkSize)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetCourseThumbnail(ctx, course.ID, *ref); err != nil {
		return nil, err
	}

	course.Thumbnail = *ref
	course.ThumbnailURL = ref.WebURL

	s.logger.Info("thumbnail uploaded",
		slog.String("course_id", course.ID),
		slog.String("item_id", ref.ItemID),
	)

	return course, nil
}

// Video fetches a video record.
func (s *Service) Video(ctx context.Context, id string) (*storage.Video, error) {
	return s.store.Video(ctx, id)
}

// OpenStream starts the upstream content read for a stored file,
// forwarding the caller's Range header. The response — success or
// upstream error — is returned raw for the handler to relay; the caller
// owns the body.
func (s *Service) OpenStream(ctx context.Context, ref graph.FileRef, rangeHeader string) (*http.Response, error) {
	return s.transfer.Content(ctx, ref.DriveID, ref.ItemID, rangeHeader)
}

// DeleteCourseStorage removes the course's entire storage folder,
// <root>/<courseFolder>. Courses that never assigned a folder get one
// derived from the current title first so the delete targets the same
// path an upload would have used.
func (s *Service) DeleteCourseStorage(ctx context.Context, courseID string) error {
	course, err := s.store.Course(ctx, courseID)
	if err != nil {
		return err
	}

	driveID, err := s.resolver.DriveID(ctx)
	if err != nil {
		return err
	}

	folder, err := s.courseFolder(ctx, course)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("%s/%s", s.rootForTrack(course.Track), folder)

	return s.meta.DeleteByPath(ctx, driveID, path)
}
