package core

import (
	"context"

	"github.com/peerline/peerline/internal/domain"
)

// ICEState is the subset of the peer link's ICE connection states the
// engine reacts to.
type ICEState string

const (
	ICEConnected    ICEState = "connected"
	ICEDisconnected ICEState = "disconnected"
	ICEFailed       ICEState = "failed"
)

// TrackSender is an outgoing track slot on a peer link.
type TrackSender interface {
	Track() Track
	ReplaceTrack(Track) error
}

// PeerLink is the ICE/SDP-negotiated direct transport toward the
// remote participant. Once connected, media bypasses the relay.
type PeerLink interface {
	CreateOffer(ctx context.Context) (domain.SessionDescription, error)
	CreateAnswer(ctx context.Context) (domain.SessionDescription, error)
	SetRemoteDescription(sd domain.SessionDescription) error
	AddIceCandidate(c domain.Candidate) error

	AddTrack(t Track) (TrackSender, error)
	RemoveTrack(s TrackSender) error
	Senders() []TrackSender

	OnIceCandidate(func(domain.Candidate))
	OnIceStateChange(func(ICEState))
	OnRemoteTrack(func(Track))

	Close()
}

// PeerLinkFactory builds a fresh peer link per call attempt or
// reconnection attempt.
type PeerLinkFactory interface {
	NewPeerLink(ctx context.Context) (PeerLink, error)
}
