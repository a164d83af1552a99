package call

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/peerline/peerline/internal/core"
	"github.com/peerline/peerline/internal/domain"
)

// acquireLocalMediaLocked replaces the local track set. A camera
// failure falls back to audio-only; a microphone failure is fatal to
// call setup.
func (s *Session) acquireLocalMediaLocked(ctx context.Context, video bool) error {
	ts, err := s.devices.AcquireUserMedia(ctx, video)
	if err != nil && video {
		s.notifyError("Video Unavailable", "Could not access camera. Falling back to audio only.")
		s.mediaKind = domain.MediaAudio
		ts, err = s.devices.AcquireUserMedia(ctx, false)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}
	if s.local != nil {
		s.local.StopAll()
	}
	s.local = ts
	return nil
}

// buildLinkLocked creates a fresh peer link and wires its callbacks.
// Callbacks fire from the adapter's goroutines and must not be invoked
// while the session mutex is held by the adapter contract.
func (s *Session) buildLinkLocked(ctx context.Context) error {
	link, err := s.links.NewPeerLink(ctx)
	if err != nil {
		return fmt.Errorf("create peer link: %w", err)
	}

	peer := s.remoteID
	link.OnIceCandidate(func(c domain.Candidate) {
		if err := s.signaler.Send(domain.NewIceCandidate(peer, s.username, c)); err != nil {
			log.Warn().Err(err).Str("module", "call").Str("peer", string(peer)).Msg("send ice candidate")
		}
	})
	link.OnIceStateChange(func(st core.ICEState) {
		s.observeIceState(st)
	})
	link.OnRemoteTrack(func(t core.Track) {
		s.mu.Lock()
		s.remoteTracks = append(s.remoteTracks, t)
		s.mu.Unlock()
	})

	s.link = link
	return nil
}

func (s *Session) attachLocalTracksLocked() {
	if s.link == nil || s.local == nil {
		return
	}
	for _, t := range s.local.Tracks() {
		if _, err := s.link.AddTrack(t); err != nil {
			log.Warn().Err(err).Str("module", "call").Str("track", t.ID()).Msg("add local track")
		}
	}
}

// RemoteTracks snapshots the tracks received from the peer.
func (s *Session) RemoteTracks() []core.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Track, len(s.remoteTracks))
	copy(out, s.remoteTracks)
	return out
}

// ToggleVideo flips the call between audio-only and video. The
// outgoing video track is replaced, added or removed on the existing
// link; audio keeps flowing without renegotiation.
func (s *Session) ToggleVideo(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusConnecting && s.status != domain.StatusConnected {
		return fmt.Errorf("%w: status %s", ErrInvalidState, s.status)
	}

	wantVideo := s.mediaKind == domain.MediaAudio
	if wantVideo {
		s.mediaKind = domain.MediaVideo
	}
	if err := s.acquireLocalMediaLocked(ctx, wantVideo); err != nil {
		s.notifyError("Error", "Could not toggle video")
		return err
	}
	if !wantVideo {
		s.mediaKind = domain.MediaAudio
	}

	if s.link != nil {
		if err := s.syncSendersLocked(); err != nil {
			s.notifyError("Error", "Could not toggle video")
			return err
		}
	}

	if s.mediaKind == domain.MediaVideo {
		s.notify("Video Enabled", "Your camera is now on")
	} else {
		s.notify("Video Disabled", "Your camera is now off")
	}
	return nil
}

// syncSendersLocked reconciles the link's outgoing senders with the
// freshly acquired local track set: audio is swapped in place, video
// is replaced, added or removed depending on the new media kind.
func (s *Session) syncSendersLocked() error {
	var audioSender, videoSender core.TrackSender
	for _, snd := range s.link.Senders() {
		if snd == nil || snd.Track() == nil {
			continue
		}
		switch snd.Track().Kind() {
		case domain.MediaAudio:
			audioSender = snd
		case domain.MediaVideo:
			videoSender = snd
		}
	}

	var audioTrack, videoTrack core.Track
	for _, t := range s.local.Tracks() {
		switch t.Kind() {
		case domain.MediaAudio:
			audioTrack = t
		case domain.MediaVideo:
			videoTrack = t
		}
	}

	if audioSender != nil && audioTrack != nil {
		if err := audioSender.ReplaceTrack(audioTrack); err != nil {
			return fmt.Errorf("replace audio track: %w", err)
		}
	}

	if s.mediaKind == domain.MediaVideo && videoTrack != nil {
		if videoSender != nil {
			if err := videoSender.ReplaceTrack(videoTrack); err != nil {
				return fmt.Errorf("replace video track: %w", err)
			}
		} else if _, err := s.link.AddTrack(videoTrack); err != nil {
			return fmt.Errorf("add video track: %w", err)
		}
		return nil
	}

	if videoSender != nil {
		if err := s.link.RemoveTrack(videoSender); err != nil {
			return fmt.Errorf("remove video track: %w", err)
		}
	}
	return nil
}

// StartScreenShare captures the display and adds its tracks to the
// active call. Valid only while Connected.
func (s *Session) StartScreenShare(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusConnected {
		return fmt.Errorf("%w: status %s", ErrInvalidState, s.status)
	}
	if s.sharing {
		return nil
	}
	if s.link == nil {
		return ErrNoPeerLink
	}

	ts, err := s.devices.AcquireDisplayMedia(ctx)
	if err != nil {
		s.notifyError("Screen Sharing Failed", "Could not start screen sharing")
		return fmt.Errorf("acquire display media: %w", err)
	}

	for _, t := range ts.Tracks() {
		snd, err := s.link.AddTrack(t)
		if err != nil {
			ts.StopAll()
			s.notifyError("Screen Sharing Failed", "Could not start screen sharing")
			return fmt.Errorf("add screen track: %w", err)
		}
		s.screenSenders = append(s.screenSenders, snd)
		// The platform revoking the capture (user stops sharing at the
		// OS level) goes through the same stop path as an explicit call.
		t.OnEnded(func() {
			if err := s.StopScreenShare(); err != nil {
				log.Warn().Err(err).Str("module", "call").Msg("stop screen share on track end")
			}
		})
	}

	s.screen = ts
	s.sharing = true
	s.notify("Screen Sharing Started", "You are now sharing your screen")
	return nil
}

// StopScreenShare removes the screen tracks from the link and releases
// the capture. Safe to call when nothing is being shared.
func (s *Session) StopScreenShare() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sharing || s.screen == nil {
		return nil
	}

	if s.link != nil {
		for _, snd := range s.screenSenders {
			if err := s.link.RemoveTrack(snd); err != nil {
				log.Warn().Err(err).Str("module", "call").Msg("remove screen track")
			}
		}
	}
	s.screen.StopAll()
	s.screen = nil
	s.screenSenders = nil
	s.sharing = false
	s.notify("Screen Sharing Stopped", "You are no longer sharing your screen")
	return nil
}
