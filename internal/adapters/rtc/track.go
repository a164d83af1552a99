package rtc

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/peerline/peerline/internal/core"
	"github.com/peerline/peerline/internal/domain"
)

var errForeignTrack = errors.New("track was not produced by this adapter")

// LocalTrack adapts a pion local track (and the capture pipeline
// feeding it) to core.Track. stop tears the pipeline down; the track
// object itself has no lifecycle in pion.
type LocalTrack struct {
	track webrtc.TrackLocal
	stop  func()

	mu      sync.Mutex
	stopped bool
	onEnded func()
}

func NewLocalTrack(track webrtc.TrackLocal, stop func()) *LocalTrack {
	return &LocalTrack{track: track, stop: stop}
}

func (t *LocalTrack) ID() string { return t.track.ID() }

func (t *LocalTrack) Kind() domain.MediaKind {
	if t.track.Kind() == webrtc.RTPCodecTypeVideo {
		return domain.MediaVideo
	}
	return domain.MediaAudio
}

func (t *LocalTrack) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	stop := t.stop
	t.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (t *LocalTrack) OnEnded(fn func()) {
	t.mu.Lock()
	t.onEnded = fn
	t.mu.Unlock()
}

// EndedByPlatform fires the ended callback, for capture pipelines that
// can be revoked externally (display capture).
func (t *LocalTrack) EndedByPlatform() {
	t.mu.Lock()
	fn := t.onEnded
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// remoteTrack wraps an inbound pion track. It is owned by the link
// and dies with it; Stop is a no-op.
type remoteTrack struct {
	track *webrtc.TrackRemote
}

func (t *remoteTrack) ID() string { return t.track.ID() }

func (t *remoteTrack) Kind() domain.MediaKind {
	if t.track.Kind() == webrtc.RTPCodecTypeVideo {
		return domain.MediaVideo
	}
	return domain.MediaAudio
}

func (t *remoteTrack) Stop()          {}
func (t *remoteTrack) OnEnded(func()) {}

// trackSender pairs a pion RTPSender with the core.Track currently
// occupying it.
type trackSender struct {
	sender *webrtc.RTPSender

	mu    sync.Mutex
	track core.Track
}

func (s *trackSender) Track() core.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}

func (s *trackSender) ReplaceTrack(t core.Track) error {
	lt, ok := t.(*LocalTrack)
	if !ok {
		return errForeignTrack
	}
	if err := s.sender.ReplaceTrack(lt.track); err != nil {
		return err
	}
	s.mu.Lock()
	s.track = t
	s.mu.Unlock()
	return nil
}
