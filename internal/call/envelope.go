package call

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/peerline/peerline/internal/domain"
)

// HandleEnvelope applies one inbound signaling envelope. A failure
// while a call is in flight surfaces a processing error and hands the
// session to the reconnection path instead of discarding the call; a
// failure on an idle session resets silently. Stray frames racing a
// hangup (candidates still in flight when call-ended lands) are
// routine and must not reach the user.
func (s *Session) HandleEnvelope(ctx context.Context, env domain.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.status
	err := s.applyEnvelopeLocked(ctx, env)
	if err == nil {
		return nil
	}

	log.Error().Err(err).Str("module", "call").Str("user", string(s.userID)).
		Str("kind", string(env.Kind)).Msg("error handling signaling envelope")

	if prev == domain.StatusConnecting || prev == domain.StatusConnected {
		s.lastErr = "error processing call data"
		s.notifyError("Call Error", "Error processing call data")
		s.status = domain.StatusError
		s.scheduleReconnectLocked()
	} else {
		s.teardownLocked()
	}
	return err
}

func (s *Session) applyEnvelopeLocked(ctx context.Context, env domain.Envelope) error {
	switch env.Kind {
	case domain.KindOffer:
		return s.applyOfferLocked(ctx, env)
	case domain.KindAnswer:
		return s.applyAnswerLocked(ctx, env)
	case domain.KindIceCandidate:
		return s.applyCandidateLocked(env)
	case domain.KindCallRejected:
		return s.applyRejectedLocked(ctx, env)
	case domain.KindCallEnded:
		return s.applyEndedLocked(ctx, env)
	case domain.KindCallTransfer:
		return s.applyTransferLocked(ctx, env)
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownKind, env.Kind)
	}
}

// applyOfferLocked handles an incoming call. A stale non-idle session
// is torn down first; the newest offer from a peer wins.
func (s *Session) applyOfferLocked(ctx context.Context, env domain.Envelope) error {
	sd, err := env.Description()
	if err != nil {
		return err
	}

	if s.status != domain.StatusIdle {
		log.Info().Str("module", "call").Str("user", string(s.userID)).
			Str("stale_status", string(s.status)).Msg("tearing down stale session for new offer")
		s.teardownLocked()
	}

	s.lastErr = ""
	s.role = roleCallee
	s.remoteID = env.Sender
	s.remoteName = env.SenderName
	if s.remoteName == "" {
		s.remoteName = "Unknown User"
	}
	s.mediaKind = domain.MediaAudio
	if env.CallType == domain.MediaVideo {
		s.mediaKind = domain.MediaVideo
	}
	s.encrypted = env.EncryptionEnabled()
	if s.encrypted {
		key, err := newEncryptionKey()
		if err != nil {
			return err
		}
		s.encryptionKey = key
	}

	s.recordStartLocked(ctx, domain.CallRecord{
		CallerID:      env.Sender,
		CallerName:    s.remoteName,
		RecipientID:   s.userID,
		RecipientName: s.username,
		StartTime:     s.now(),
		Status:        domain.RecordMissed,
		CallType:      s.mediaKind,
		Encrypted:     s.encrypted,
	})

	if s.link == nil {
		if err := s.buildLinkLocked(ctx); err != nil {
			return err
		}
	}
	if err := s.link.SetRemoteDescription(sd); err != nil {
		return fmt.Errorf("apply offer: %w", err)
	}

	s.status = domain.StatusConnecting
	s.notify("Incoming Call", fmt.Sprintf("%s is calling you", s.displayRemoteLocked()))
	return nil
}

// applyAnswerLocked completes negotiation on the caller side.
func (s *Session) applyAnswerLocked(ctx context.Context, env domain.Envelope) error {
	if s.status != domain.StatusConnecting {
		return fmt.Errorf("%w: answer in %s", ErrUnexpectedEnvelope, s.status)
	}
	sd, err := env.Description()
	if err != nil {
		return err
	}
	if s.link == nil {
		return ErrNoPeerLink
	}
	if err := s.link.SetRemoteDescription(sd); err != nil {
		return fmt.Errorf("apply answer: %w", err)
	}

	s.status = domain.StatusConnected
	s.startedAt = s.now()
	s.attempts = 0
	s.recordUpdateLocked(ctx, domain.CallUpdate{Status: ptr(domain.RecordCompleted)})
	return nil
}

func (s *Session) applyCandidateLocked(env domain.Envelope) error {
	if s.status != domain.StatusConnecting && s.status != domain.StatusConnected {
		return fmt.Errorf("%w: candidate in %s", ErrUnexpectedEnvelope, s.status)
	}
	c, err := env.IceCandidate()
	if err != nil {
		return err
	}
	if s.link == nil {
		return ErrNoPeerLink
	}
	if err := s.link.AddIceCandidate(c); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

func (s *Session) applyRejectedLocked(ctx context.Context, env domain.Envelope) error {
	if s.status != domain.StatusConnecting {
		return fmt.Errorf("%w: call-rejected in %s", ErrUnexpectedEnvelope, s.status)
	}
	end := s.now()
	s.recordUpdateLocked(ctx, domain.CallUpdate{Status: ptr(domain.RecordRejected), EndTime: &end})
	name := s.displayRemoteLocked()
	s.teardownLocked()
	s.lastErr = "call rejected"
	s.notifyError("Call Rejected", fmt.Sprintf("%s rejected your call", name))
	return nil
}

func (s *Session) applyEndedLocked(ctx context.Context, env domain.Envelope) error {
	if s.status != domain.StatusConnecting && s.status != domain.StatusConnected {
		return fmt.Errorf("%w: call-ended in %s", ErrUnexpectedEnvelope, s.status)
	}
	s.recordUpdateLocked(ctx, s.endedUpdateLocked())
	name := s.displayRemoteLocked()
	s.teardownLocked()
	s.notify("Call Ended", fmt.Sprintf("%s ended the call", name))
	return nil
}

// applyTransferLocked tears the current link down and leaves advisory
// transfer state behind; the transfer target's own offer arrives later
// as a normal incoming call.
func (s *Session) applyTransferLocked(ctx context.Context, env domain.Envelope) error {
	if s.status != domain.StatusConnected {
		return fmt.Errorf("%w: call-transfer in %s", ErrUnexpectedEnvelope, s.status)
	}
	target, err := env.Transfer()
	if err != nil {
		return err
	}

	upd := s.endedUpdateLocked()
	upd.Transferred = ptr(true)
	upd.TransferredTo = &target.TargetID
	s.recordUpdateLocked(ctx, upd)

	name := s.displayRemoteLocked()
	s.teardownLocked()
	s.transferring = true
	s.transferTarget = target.TargetID
	s.notify("Call Transfer", fmt.Sprintf("%s is transferring you to another user", name))
	return nil
}
