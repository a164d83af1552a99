package call

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peerline/peerline/internal/core"
	"github.com/peerline/peerline/internal/domain"
)

const (
	maxReconnectAttempts = 3
	baseReconnectDelay   = time.Second
	maxReconnectDelay    = 10 * time.Second
)

// reconnectDelay is min(1s * 2^attempt, 10s), attempts counted from 0.
func reconnectDelay(attempt int) time.Duration {
	d := baseReconnectDelay << attempt
	if d > maxReconnectDelay {
		d = maxReconnectDelay
	}
	return d
}

// observeIceState is the ICE-layer connectivity signal. Failure while
// Connected hands the session to the reconnection path; a connected
// observation while Reconnecting restores the call and cancels any
// pending retry.
func (s *Session) observeIceState(st core.ICEState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch st {
	case core.ICEFailed, core.ICEDisconnected:
		if s.status == domain.StatusConnected {
			log.Warn().Str("module", "call").Str("user", string(s.userID)).
				Str("ice_state", string(st)).Msg("peer link lost, reconnecting")
			s.status = domain.StatusReconnecting
			s.scheduleReconnectLocked()
		}
	case core.ICEConnected:
		if s.status == domain.StatusReconnecting {
			s.status = domain.StatusConnected
			s.cancelRetryLocked()
			s.attempts = 0
			s.notify("Connection Restored", "Call connection has been restored")
		}
	}
}

// scheduleReconnectLocked schedules the next rebuild attempt, or gives
// up once the budget is spent. At most one retry is pending at a time;
// scheduling a new one cancels the previous.
func (s *Session) scheduleReconnectLocked() {
	if s.attempts >= maxReconnectAttempts {
		s.giveUpLocked()
		return
	}

	s.cancelRetryLocked()
	delay := reconnectDelay(s.attempts)
	s.attempts++
	s.notify("Connection Issue", fmt.Sprintf("Attempting to reconnect (%d/%d)...", s.attempts, maxReconnectAttempts))
	log.Info().Str("module", "call").Str("user", string(s.userID)).
		Int("attempt", s.attempts).Dur("delay", delay).Msg("reconnect scheduled")

	s.retryCancel = s.schedule(delay, func() {
		s.retryPeerLink(context.Background())
	})
}

func (s *Session) cancelRetryLocked() {
	if s.retryCancel != nil {
		s.retryCancel()
		s.retryCancel = nil
	}
}

// retryPeerLink rebuilds the peer link from scratch: close the old
// one, reattach local tracks, send a fresh offer to the same remote,
// and restart negotiation from Connecting.
func (s *Session) retryPeerLink(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.retryCancel = nil
	if s.remoteID == "" {
		return
	}
	switch s.status {
	case domain.StatusReconnecting, domain.StatusError, domain.StatusConnecting:
	default:
		return
	}

	if s.link != nil {
		s.link.Close()
		s.link = nil
	}

	if err := s.buildLinkLocked(ctx); err != nil {
		log.Error().Err(err).Str("module", "call").Str("user", string(s.userID)).Msg("reconnect: rebuild peer link")
		s.scheduleReconnectLocked()
		return
	}
	s.attachLocalTracksLocked()

	offer, err := s.link.CreateOffer(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "call").Str("user", string(s.userID)).Msg("reconnect: create offer")
		s.scheduleReconnectLocked()
		return
	}

	if err := s.send(domain.NewOffer(s.remoteID, s.username, offer, s.mediaKind, s.encrypted)); err != nil {
		log.Error().Err(err).Str("module", "call").Str("user", string(s.userID)).Msg("reconnect: send offer")
		s.scheduleReconnectLocked()
		return
	}

	s.status = domain.StatusConnecting
}

// giveUpLocked abandons the session after the attempt budget is spent:
// one terminal notification, full teardown, Idle.
func (s *Session) giveUpLocked() {
	log.Warn().Str("module", "call").Str("user", string(s.userID)).Msg("reconnect attempts exhausted")
	s.status = domain.StatusError
	s.lastErr = "connection failed after multiple attempts"
	s.notifyError("Connection Lost", "Could not reconnect the call after multiple attempts")
	s.teardownLocked()
}
