package core

import (
	"context"

	"github.com/peerline/peerline/internal/domain"
)

// Track is an opaque live media track handle. The session that
// acquired it owns it and must Stop() it on every teardown path.
type Track interface {
	ID() string
	Kind() domain.MediaKind
	Stop()
	// OnEnded fires when the platform ends the track on its own,
	// e.g. the user revokes screen sharing at the OS level.
	OnEnded(func())
}

// TrackSet groups tracks acquired together: mic+camera, or a display
// capture.
type TrackSet interface {
	Tracks() []Track
	StopAll()
}

// MediaDevices is the platform capture collaborator.
type MediaDevices interface {
	// AcquireUserMedia always captures audio; video is optional.
	AcquireUserMedia(ctx context.Context, video bool) (TrackSet, error)
	AcquireDisplayMedia(ctx context.Context) (TrackSet, error)
}
