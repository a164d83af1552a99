// Package call implements one participant's view of a peer-to-peer
// call: the session state machine, reconnection with bounded backoff,
// and transfer hand-off. A Session is driven by local actions and by
// inbound envelopes delivered from the signaling relay; both are
// serialized through the session mutex, so only one event is ever
// in-flight against a session.
package call

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peerline/peerline/internal/core"
	"github.com/peerline/peerline/internal/domain"
)

var (
	ErrCallInProgress     = errors.New("call already in progress")
	ErrNoRemotePeer       = errors.New("no remote peer")
	ErrInvalidState       = errors.New("operation not valid in current state")
	ErrUnexpectedEnvelope = errors.New("envelope not valid in current state")
	ErrNoPeerLink         = errors.New("no peer link")
	ErrMediaUnavailable   = errors.New("could not access microphone")
)

type role int

const (
	roleNone role = iota
	roleCaller
	roleCallee
)

// Config wires a session to its collaborators. Store and Notifier may
// be nil; their calls become no-ops.
type Config struct {
	UserID   domain.UserID
	Username string

	Signaler core.Signaler
	Devices  core.MediaDevices
	Links    core.PeerLinkFactory
	Store    core.CallStore
	Notifier core.Notifier

	// DisableEncryption turns off per-call key generation; the default
	// is encrypted.
	DisableEncryption bool
}

// Session owns one logical call attempt from Idle through teardown.
// The remote participant holds its own mirror session; the two are
// correlated only by the (sender, recipient) pair on the wire.
type Session struct {
	mu sync.Mutex

	userID   domain.UserID
	username string

	signaler core.Signaler
	devices  core.MediaDevices
	links    core.PeerLinkFactory
	store    core.CallStore
	notifier core.Notifier

	status     domain.CallStatus
	role       role
	remoteID   domain.UserID
	remoteName string
	mediaKind  domain.MediaKind
	startedAt  time.Time
	callID     string
	lastErr    string

	defaultEncrypted bool
	encrypted        bool
	encryptionKey    []byte

	link          core.PeerLink
	local         core.TrackSet
	screen        core.TrackSet
	screenSenders []core.TrackSender
	remoteTracks  []core.Track
	sharing       bool

	transferring   bool
	transferTarget domain.UserID

	attempts    int
	retryCancel func()

	// test seams
	now      func() time.Time
	schedule func(d time.Duration, fn func()) (cancel func())
}

func New(cfg Config) *Session {
	enc := !cfg.DisableEncryption
	return &Session{
		userID:           cfg.UserID,
		username:         cfg.Username,
		signaler:         cfg.Signaler,
		devices:          cfg.Devices,
		links:            cfg.Links,
		store:            cfg.Store,
		notifier:         cfg.Notifier,
		status:           domain.StatusIdle,
		mediaKind:        domain.MediaAudio,
		defaultEncrypted: enc,
		encrypted:        enc,
		now:              time.Now,
		schedule: func(d time.Duration, fn func()) func() {
			t := time.AfterFunc(d, fn)
			return func() { t.Stop() }
		},
	}
}

func (s *Session) LocalID() domain.UserID { return s.userID }

func (s *Session) Status() domain.CallStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) RemoteID() domain.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteID
}

func (s *Session) RemoteName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteName
}

func (s *Session) MediaKind() domain.MediaKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mediaKind
}

// StartedAt is zero until the call reaches Connected.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

func (s *Session) ReconnectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *Session) IsScreenSharing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sharing
}

func (s *Session) IsTransferring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transferring
}

func (s *Session) TransferTarget() domain.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transferTarget
}

func (s *Session) EncryptionEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encrypted
}

// LastError is the most recent user-visible failure reason, cleared on
// the next call attempt.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) notify(title, detail string) {
	if s.notifier != nil {
		s.notifier.Notify(title, detail)
	}
}

func (s *Session) notifyError(title, detail string) {
	if s.notifier != nil {
		s.notifier.NotifyError(title, detail)
	}
}

func (s *Session) send(env domain.Envelope) error {
	if err := s.signaler.Send(env); err != nil {
		return fmt.Errorf("send %s: %w", env.Kind, err)
	}
	return nil
}

// recordStartLocked opens a call-history record. Persistence failures
// never block the call.
func (s *Session) recordStartLocked(ctx context.Context, rec domain.CallRecord) {
	if s.store == nil {
		return
	}
	id, err := s.store.RecordCallStart(ctx, rec)
	if err != nil {
		log.Warn().Err(err).Str("module", "call").Str("user", string(s.userID)).Msg("record call start failed")
		return
	}
	s.callID = id
}

func (s *Session) recordUpdateLocked(ctx context.Context, upd domain.CallUpdate) {
	if s.store == nil || s.callID == "" {
		return
	}
	if err := s.store.RecordCallUpdate(ctx, s.callID, upd); err != nil {
		log.Warn().Err(err).Str("module", "call").Str("call_id", s.callID).Msg("record call update failed")
	}
}

// endedUpdateLocked builds the completed-with-duration update, or a
// bare end-time update when the call never connected.
func (s *Session) endedUpdateLocked() domain.CallUpdate {
	end := s.now()
	upd := domain.CallUpdate{Status: ptr(domain.RecordCompleted), EndTime: &end}
	if !s.startedAt.IsZero() {
		upd.Duration = ptr(int(end.Sub(s.startedAt) / time.Second))
	}
	return upd
}

func newEncryptionKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}
	return key, nil
}

// teardownLocked releases every call-scoped resource and resets the
// session to Idle. Every terminal path funnels through here, so a
// capture device handle can never outlive its call.
func (s *Session) teardownLocked() {
	s.cancelRetryLocked()

	if s.link != nil {
		s.link.Close()
		s.link = nil
	}
	if s.local != nil {
		s.local.StopAll()
		s.local = nil
	}
	if s.screen != nil {
		s.screen.StopAll()
		s.screen = nil
	}
	s.screenSenders = nil
	s.remoteTracks = nil

	s.status = domain.StatusIdle
	s.role = roleNone
	s.remoteID = ""
	s.remoteName = ""
	s.mediaKind = domain.MediaAudio
	s.startedAt = time.Time{}
	s.callID = ""
	s.encrypted = s.defaultEncrypted
	s.encryptionKey = nil
	s.sharing = false
	s.transferring = false
	s.transferTarget = ""
	s.attempts = 0

	log.Debug().Str("module", "call").Str("user", string(s.userID)).Msg("session reset to idle")
}

func ptr[T any](v T) *T { return &v }
