package model

import "time"

const (
	MinBundleVideos = 1
	MaxBundleVideos = 10
)

// MediaRef is a Telegram file_id. It is opaque to everything except the transport.
type MediaRef string

type Bundle struct {
	ID        int64
	CoverRef  MediaRef
	VideoRefs []MediaRef
	CreatedAt time.Time
}

// NewBundle is the payload handed to a store; the store assigns ID and CreatedAt.
type NewBundle struct {
	CoverRef  MediaRef
	VideoRefs []MediaRef
}

func (b NewBundle) Valid() bool {
	if b.CoverRef == "" {
		return false
	}
	if len(b.VideoRefs) < MinBundleVideos || len(b.VideoRefs) > MaxBundleVideos {
		return false
	}
	for _, ref := range b.VideoRefs {
		if ref == "" {
			return false
		}
	}
	return true
}
