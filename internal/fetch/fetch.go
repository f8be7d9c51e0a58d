// Package fetch defines the contract this service consumes from the
// remote-platform content provider. The actual wire protocol lives in an
// external client; this core only depends on the shapes below.
package fetch

import (
	"context"
)

// MediaKind identifies the media payload of a post
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
	MediaNone     MediaKind = ""
)

// Descriptor describes one post as reported by the provider
type Descriptor struct {
	ChannelID   string    `json:"channel_id"`
	ItemID      int64     `json:"item_id"`
	HasMedia    bool      `json:"has_media"`
	HasText     bool      `json:"has_text"`
	MediaGroup  bool      `json:"media_group"` // album post; counts as one download
	MediaKind   MediaKind `json:"media_kind"`
	SizeBytes   int64     `json:"size_bytes"`
	TextContent string    `json:"text_content"`
}

// Downloadable reports whether the post carries anything worth saving
func (d *Descriptor) Downloadable() bool {
	return d.HasMedia || d.HasText
}

// Artifact is the local result of materializing a descriptor
type Artifact struct {
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	MediaKind MediaKind `json:"media_kind"`
}

// Service is the content provider contract. Describe reports what exists
// at (channel, item); Materialize retrieves it to local storage and must
// honor ctx cancellation down to its I/O waits.
type Service interface {
	Describe(ctx context.Context, channelID string, itemID int64) (*Descriptor, error)
	Materialize(ctx context.Context, desc *Descriptor) (*Artifact, error)
}
