package call

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/peerline/peerline/internal/domain"
)

// InitiateCall starts an outgoing call toward peerID. The session must
// be Idle; a session already driving a call rejects a second initiate.
func (s *Session) InitiateCall(ctx context.Context, peerID domain.UserID, peerName string, video bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusIdle {
		return fmt.Errorf("%w: status %s", ErrCallInProgress, s.status)
	}
	if err := domain.ValidateUserID(peerID); err != nil {
		return err
	}

	s.lastErr = ""
	s.transferring = false
	s.transferTarget = ""
	s.role = roleCaller
	s.remoteID = peerID
	s.remoteName = peerName
	s.mediaKind = domain.MediaAudio
	if video {
		s.mediaKind = domain.MediaVideo
	}

	if err := s.acquireLocalMediaLocked(ctx, video); err != nil {
		s.failSetupLocked("Call Failed", "Could not establish call. Please try again.")
		return err
	}

	if s.encrypted {
		key, err := newEncryptionKey()
		if err != nil {
			s.failSetupLocked("Call Failed", "Could not establish call. Please try again.")
			return err
		}
		s.encryptionKey = key
	}

	if err := s.buildLinkLocked(ctx); err != nil {
		s.failSetupLocked("Call Failed", "Could not establish call. Please try again.")
		return err
	}
	s.attachLocalTracksLocked()

	offer, err := s.link.CreateOffer(ctx)
	if err != nil {
		s.failSetupLocked("Call Failed", "Could not establish call. Please try again.")
		return fmt.Errorf("create offer: %w", err)
	}

	s.recordStartLocked(ctx, domain.CallRecord{
		CallerID:      s.userID,
		CallerName:    s.username,
		RecipientID:   peerID,
		RecipientName: peerName,
		StartTime:     s.now(),
		Status:        domain.RecordMissed,
		CallType:      s.mediaKind,
		Encrypted:     s.encrypted,
	})

	if err := s.send(domain.NewOffer(peerID, s.username, offer, s.mediaKind, s.encrypted)); err != nil {
		s.failSetupLocked("Call Failed", "Could not establish call. Please try again.")
		return err
	}

	s.status = domain.StatusConnecting
	log.Info().Str("module", "call").Str("user", string(s.userID)).Str("peer", string(peerID)).
		Str("media", string(s.mediaKind)).Msg("call initiated")
	return nil
}

// AnswerCall accepts the pending incoming call. Valid only while
// Connecting on the callee side.
func (s *Session) AnswerCall(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusConnecting || s.role != roleCallee {
		return fmt.Errorf("%w: status %s", ErrInvalidState, s.status)
	}
	if s.remoteID == "" {
		return ErrNoRemotePeer
	}

	if err := s.acquireLocalMediaLocked(ctx, s.mediaKind == domain.MediaVideo); err != nil {
		s.failSetupLocked("Call Failed", "Could not connect to the call. Please try again.")
		return err
	}

	if s.link == nil {
		if err := s.buildLinkLocked(ctx); err != nil {
			s.failSetupLocked("Call Failed", "Could not connect to the call. Please try again.")
			return err
		}
	}
	s.attachLocalTracksLocked()

	answer, err := s.link.CreateAnswer(ctx)
	if err != nil {
		s.failSetupLocked("Call Failed", "Could not connect to the call. Please try again.")
		return fmt.Errorf("create answer: %w", err)
	}

	if err := s.send(domain.NewAnswer(s.remoteID, s.username, answer)); err != nil {
		s.failSetupLocked("Call Failed", "Could not connect to the call. Please try again.")
		return err
	}

	s.status = domain.StatusConnected
	s.startedAt = s.now()
	s.recordUpdateLocked(ctx, domain.CallUpdate{Status: ptr(domain.RecordCompleted)})
	s.notify("Call Connected", fmt.Sprintf("Connected with %s", s.displayRemoteLocked()))
	log.Info().Str("module", "call").Str("user", string(s.userID)).Str("peer", string(s.remoteID)).Msg("call answered")
	return nil
}

// RejectCall declines the pending incoming call before answering.
func (s *Session) RejectCall(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusConnecting || s.role != roleCallee {
		return fmt.Errorf("%w: status %s", ErrInvalidState, s.status)
	}
	if s.remoteID == "" {
		return ErrNoRemotePeer
	}

	if err := s.send(domain.NewCallRejected(s.remoteID, s.username)); err != nil {
		log.Warn().Err(err).Str("module", "call").Msg("send call-rejected")
	}
	end := s.now()
	s.recordUpdateLocked(ctx, domain.CallUpdate{Status: ptr(domain.RecordRejected), EndTime: &end})
	s.teardownLocked()
	return nil
}

// EndCall hangs up the current call. Also valid while Reconnecting,
// where it cancels the pending retry.
func (s *Session) EndCall(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case domain.StatusConnecting, domain.StatusConnected, domain.StatusReconnecting:
	default:
		return fmt.Errorf("%w: status %s", ErrInvalidState, s.status)
	}
	if s.remoteID == "" {
		return ErrNoRemotePeer
	}

	if err := s.send(domain.NewCallEnded(s.remoteID, s.username)); err != nil {
		log.Warn().Err(err).Str("module", "call").Msg("send call-ended")
	}
	s.recordUpdateLocked(ctx, s.endedUpdateLocked())
	s.teardownLocked()
	return nil
}

// TransferCall hands the active call to a third party: the current
// peer is told where to go and this side's link is torn down. The
// fresh call toward the target is a separate InitiateCall.
func (s *Session) TransferCall(ctx context.Context, targetID domain.UserID, targetName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusConnected {
		return fmt.Errorf("%w: status %s", ErrInvalidState, s.status)
	}
	if targetID == "" || targetID == s.userID || targetID == s.remoteID {
		return ErrBadTransferTarget
	}

	target := domain.TransferTarget{TargetID: targetID, TargetName: targetName}
	if err := s.send(domain.NewCallTransfer(s.remoteID, s.username, target)); err != nil {
		return err
	}

	upd := s.endedUpdateLocked()
	upd.Transferred = ptr(true)
	upd.TransferredTo = &targetID
	s.recordUpdateLocked(ctx, upd)

	s.notify("Call Transferred", fmt.Sprintf("Call transferred to %s", targetName))
	s.teardownLocked()
	log.Info().Str("module", "call").Str("user", string(s.userID)).Str("target", string(targetID)).Msg("call transferred")
	return nil
}

// failSetupLocked aborts call setup: resources released, Idle, a
// user-visible reason retained.
func (s *Session) failSetupLocked(title, detail string) {
	s.lastErr = detail
	s.notifyError(title, detail)
	s.teardownLocked()
}

func (s *Session) displayRemoteLocked() string {
	if s.remoteName != "" {
		return s.remoteName
	}
	return string(s.remoteID)
}
