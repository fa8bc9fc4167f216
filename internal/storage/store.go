package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clearledge/coursedrive/internal/graph"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Store handles all course/video database operations.
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a Store with the given connection pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Course fetches a course by id.
func (s *Store) Course(ctx context.Context, id string) (*Course, error) {
	c := &Course{}
	err := s.db.QueryRow(ctx,
		`SELECT id, title, track, storage_folder_name, thumbnail_url,
		        thumb_drive_id, thumb_item_id, thumb_web_url, thumb_name, thumb_mime, thumb_size,
		        created_at, updated_at
		 FROM courses WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Title, &c.Track, &c.StorageFolderName, &c.ThumbnailURL,
		&c.Thumbnail.DriveID, &c.Thumbnail.ItemID, &c.Thumbnail.WebURL,
		&c.Thumbnail.Name, &c.Thumbnail.Mime, &c.Thumbnail.Size,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get course: %w", err)
	}
	return c, nil
}

// Section fetches a section by id.
func (s *Store) Section(ctx context.Context, id string) (*Section, error) {
	sec := &Section{}
	err := s.db.QueryRow(ctx,
		`SELECT id, course_id, title, "order" FROM course_sections WHERE id = $1`,
		id,
	).Scan(&sec.ID, &sec.CourseID, &sec.Title, &sec.Order)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get section: %w", err)
	}
	return sec, nil
}

// Video fetches a video by id, including its file reference.
func (s *Store) Video(ctx context.Context, id string) (*Video, error) {
	v := &Video{}
	err := s.db.QueryRow(ctx,
		`SELECT id, course_id, section_id, "order", title, embed_url,
		        drive_id, item_id, web_url, file_name, mime, size, created_at
		 FROM course_videos WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.CourseID, &v.SectionID, &v.Order, &v.Title, &v.EmbedURL,
		&v.File.DriveID, &v.File.ItemID, &v.File.WebURL,
		&v.File.Name, &v.File.Mime, &v.File.Size, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get video: %w", err)
	}
	return v, nil
}

// AssignCourseFolder sets the course's storage folder name if none is
// assigned yet and returns the effective name. The update is a
// compare-and-set on the empty value, so concurrent assignments keep the
// first writer's name — storage identity must outlive display-name churn.
func (s *Store) AssignCourseFolder(ctx context.Context, courseID, name string) (string, error) {
	_, err := s.db.Exec(ctx,
		`UPDATE courses SET storage_folder_name = $2, updated_at = now()
		 WHERE id = $1 AND storage_folder_name = ''`,
		courseID, name,
	)
	if err != nil {
		return "", fmt.Errorf("storage: assign course folder: %w", err)
	}

	var assigned string
	err = s.db.QueryRow(ctx,
		`SELECT storage_folder_name FROM courses WHERE id = $1`, courseID,
	).Scan(&assigned)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("storage: read course folder: %w", err)
	}
	return assigned, nil
}

// SetCourseThumbnail replaces the course's thumbnail reference.
func (s *Store) SetCourseThumbnail(ctx context.Context, courseID string, ref graph.FileRef) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE courses SET thumbnail_url = $2,
		        thumb_drive_id = $3, thumb_item_id = $4, thumb_web_url = $5,
		        thumb_name = $6, thumb_mime = $7, thumb_size = $8,
		        updated_at = now()
		 WHERE id = $1`,
		courseID, ref.WebURL, ref.DriveID, ref.ItemID, ref.WebURL, ref.Name, ref.Mime, ref.Size,
	)
	if err != nil {
		return fmt.Errorf("storage: set course thumbnail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateVideo inserts a video at the end of its section's order and fills
// in the generated id, order, and timestamp.
func (s *Store) CreateVideo(ctx context.Context, v *Video) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO course_videos
		        (course_id, section_id, "order", title, embed_url,
		         drive_id, item_id, web_url, file_name, mime, size)
		 VALUES ($1, $2,
		         (SELECT COALESCE(MAX("order"), 0) + 1 FROM course_videos WHERE section_id = $2),
		         $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, "order", created_at`,
		v.CourseID, v.SectionID, v.Title, v.EmbedURL,
		v.File.DriveID, v.File.ItemID, v.File.WebURL, v.File.Name, v.File.Mime, v.File.Size,
	).Scan(&v.ID, &v.Order, &v.CreatedAt)
	if err != nil {
		return fmt.Errorf("storage: create video: %w", err)
	}
	return nil
}
