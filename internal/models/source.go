package models

import "io"

type SourceKind string

const (
	SourceUpload       SourceKind = "upload"
	SourceDirectURL    SourceKind = "direct-url"
	SourceYouTube      SourceKind = "youtube"
	SourceGoogleDrive  SourceKind = "google-drive"
	SourceUnrecognized SourceKind = "unrecognized"
)

type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// VideoSource is a user reference before it becomes a local file.
// Content is set only for uploads.
type VideoSource struct {
	Kind      SourceKind `json:"kind"`
	Reference string     `json:"reference"`
	FileName  string     `json:"file_name,omitempty"`
	SizeBytes int64      `json:"size_bytes,omitempty"`
	Content   io.Reader  `json:"-"`
}
