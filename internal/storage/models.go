// Package storage persists courses, sections, and videos along with the
// remote-store file references attached to them.
package storage

import (
	"time"

	"github.com/clearledge/coursedrive/internal/graph"
)

// Course tracks. A course's track selects the top-level storage folder
// its assets live under.
const (
	TrackOffice = "office"
	TrackField  = "field"
)

// Course is the course record as the gateway sees it: display fields plus
// the assigned storage folder name and the thumbnail file reference.
// StorageFolderName is assigned once and never changes afterwards — later
// title edits must not rename or move the folder.
type Course struct {
	ID                string        `json:"id"`
	Title             string        `json:"title"`
	Track             string        `json:"track"`
	StorageFolderName string        `json:"-"`
	ThumbnailURL      string        `json:"thumbnailUrl,omitempty"`
	Thumbnail         graph.FileRef `json:"thumbnail,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Section is an ordered grouping of videos within a course.
type Section struct {
	ID       string `json:"id"`
	CourseID string `json:"courseId"`
	Title    string `json:"title"`
	Order    int    `json:"order"`
}

// Video is a course video record. File holds the remote-store reference;
// when it is not Valid the video is an external embed, not an uploaded
// asset, and cannot be streamed through the gateway.
type Video struct {
	ID        string        `json:"id"`
	CourseID  string        `json:"courseId"`
	SectionID string        `json:"sectionId"`
	Order     int           `json:"order"`
	Title     string        `json:"title"`
	EmbedURL  string        `json:"embedUrl,omitempty"`
	File      graph.FileRef `json:"file"`
	CreatedAt time.Time     `json:"createdAt"`
}
