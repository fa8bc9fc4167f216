package graph

import "encoding/json"

// Item represents a drive item (file or folder).
// Fields are normalized from the Graph API response — callers never see
// raw API data.
type Item struct {
	ID       string
	Name     string
	WebURL   string
	Size     int64
	IsFolder bool
	MimeType string // empty when the file facet is absent
}

// FileRef is the durable record of an uploaded asset, persisted against
// the owning course or video. It is valid only when both DriveID and
// ItemID are non-empty; absence of either means the asset is not a
// remote-store-backed file.
type FileRef struct {
	DriveID string `json:"driveId"`
	ItemID  string `json:"itemId"`
	WebURL  string `json:"webUrl"`
	Name    string `json:"name"`
	Mime    string `json:"mime"`
	Size    int64  `json:"size"`
}

// Valid reports whether the reference points at a remote-store-backed asset.
func (r FileRef) Valid() bool {
	return r.DriveID != "" && r.ItemID != ""
}

// driveItemResponse mirrors the Graph API driveItem JSON.
// Unexported — callers use Item via toItem() normalization.
type driveItemResponse struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	WebURL        string           `json:"webUrl"`
	Size          int64            `json:"size"`
	File          *fileFacet       `json:"file"`
	Folder        *json.RawMessage `json:"folder"`
	SharepointIDs *sharepointIDs   `json:"sharepointIds"`
}

type fileFacet struct {
	MimeType string `json:"mimeType"`
}

type sharepointIDs struct {
	ListItemUniqueID string `json:"listItemUniqueId"`
}

// toItem normalizes a Graph API driveItem response into our Item type.
func (d *driveItemResponse) toItem() Item {
	item := Item{
		ID:       d.ID,
		Name:     d.Name,
		WebURL:   d.WebURL,
		Size:     d.Size,
		IsFolder: d.Folder != nil,
	}

	if d.File != nil {
		item.MimeType = d.File.MimeType
	}

	return item
}
