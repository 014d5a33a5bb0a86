package model

// MediaKind classifies an uploaded asset.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// MediaAsset references an uploaded file on local disk. It is owned by a single
// publish request and removed by the upload handler once every targeted platform
// has reported an outcome.
type MediaAsset struct {
	Path     string    `json:"path"`
	FileName string    `json:"file_name"`
	Kind     MediaKind `json:"kind"`
	Size     int64     `json:"size"`
	MimeType string    `json:"mime_type"`
}

// IsVideo reports whether the asset was declared as video content.
func (a *MediaAsset) IsVideo() bool {
	return a.Kind == MediaKindVideo
}
