// Package rtc adapts pion/webrtc to the engine's PeerLink port.
package rtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/peerline/peerline/internal/core"
	"github.com/peerline/peerline/internal/domain"
)

func DefaultConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// LinkFactory builds peer links, refreshing TURN credentials per link.
// A credential failure falls back to the STUN-only default config.
type LinkFactory struct {
	creds core.CredentialSource
}

func NewLinkFactory(creds core.CredentialSource) *LinkFactory {
	return &LinkFactory{creds: creds}
}

func (f *LinkFactory) NewPeerLink(ctx context.Context) (core.PeerLink, error) {
	cfg := DefaultConfig()
	if f.creds != nil {
		rc, err := f.creds.RelayCredentials(ctx)
		if err != nil {
			log.Warn().Err(err).Str("module", "rtc").Msg("relay credentials unavailable, STUN only")
		} else {
			cfg.ICEServers = append(cfg.ICEServers, webrtc.ICEServer{
				URLs:       rc.URIs,
				Username:   rc.Username,
				Credential: rc.Credential,
			})
		}
	}

	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	return &peerLink{pc: pc}, nil
}

type peerLink struct {
	pc *webrtc.PeerConnection

	mu      sync.Mutex
	senders []*trackSender
}

func (l *peerLink) CreateOffer(ctx context.Context) (domain.SessionDescription, error) {
	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return domain.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return domain.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return domain.SessionDescription{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

func (l *peerLink) CreateAnswer(ctx context.Context) (domain.SessionDescription, error) {
	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		return domain.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return domain.SessionDescription{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

func (l *peerLink) SetRemoteDescription(sd domain.SessionDescription) error {
	desc := webrtc.SessionDescription{Type: webrtc.NewSDPType(sd.Type), SDP: sd.SDP}
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (l *peerLink) AddIceCandidate(c domain.Candidate) error {
	return l.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	})
}

func (l *peerLink) AddTrack(t core.Track) (core.TrackSender, error) {
	lt, ok := t.(*LocalTrack)
	if !ok {
		return nil, errForeignTrack
	}
	sender, err := l.pc.AddTrack(lt.track)
	if err != nil {
		return nil, fmt.Errorf("add track: %w", err)
	}
	ts := &trackSender{sender: sender, track: t}
	l.mu.Lock()
	l.senders = append(l.senders, ts)
	l.mu.Unlock()
	return ts, nil
}

func (l *peerLink) RemoveTrack(s core.TrackSender) error {
	ts, ok := s.(*trackSender)
	if !ok {
		return errForeignTrack
	}
	if err := l.pc.RemoveTrack(ts.sender); err != nil {
		return fmt.Errorf("remove track: %w", err)
	}
	l.mu.Lock()
	for i, cur := range l.senders {
		if cur == ts {
			l.senders = append(l.senders[:i], l.senders[i+1:]...)
			break
		}
	}
	l.mu.Unlock()
	return nil
}

func (l *peerLink) Senders() []core.TrackSender {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.TrackSender, len(l.senders))
	for i, s := range l.senders {
		out[i] = s
	}
	return out
}

func (l *peerLink) OnIceCandidate(fn func(domain.Candidate)) {
	l.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		ci := c.ToJSON()
		fn(domain.Candidate{
			Candidate:     ci.Candidate,
			SDPMid:        ci.SDPMid,
			SDPMLineIndex: ci.SDPMLineIndex,
		})
	})
}

func (l *peerLink) OnIceStateChange(fn func(core.ICEState)) {
	l.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Debug().Str("module", "rtc").Str("ice_state", s.String()).Msg("ICE state")
		switch s {
		case webrtc.ICEConnectionStateConnected:
			fn(core.ICEConnected)
		case webrtc.ICEConnectionStateDisconnected:
			fn(core.ICEDisconnected)
		case webrtc.ICEConnectionStateFailed:
			fn(core.ICEFailed)
		}
	})
}

func (l *peerLink) OnRemoteTrack(fn func(core.Track)) {
	l.pc.OnTrack(func(tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().Str("module", "rtc").Str("kind", tr.Kind().String()).
			Str("track_id", tr.ID()).Msg("remote track received")
		fn(&remoteTrack{track: tr})
	})
}

func (l *peerLink) Close() {
	if err := l.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("close error")
	}
}
