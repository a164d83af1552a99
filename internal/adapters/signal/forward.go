package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/peerline/peerline/internal/domain"
)

const (
	eventUserOnline  = "user:online"
	eventUserOffline = "user:offline"
	eventUsersOnline = "users:online"
	eventHeartbeat   = "heartbeat"
)

// presenceEvent is the out-of-band relay-wide broadcast; it is not a
// signaling envelope and carries no payload to inspect.
type presenceEvent struct {
	Type   string          `json:"type"`
	UserID domain.UserID   `json:"userId,omitempty"`
	Users  []domain.UserID `json:"users,omitempty"`
}

func heartbeatFrame() []byte {
	return []byte(`{"type":"heartbeat"}`)
}

// handleFrame stamps the sender from the connection identity and
// forwards the envelope to the recipient's current connection. An
// offline recipient drops the envelope: stale negotiation data is
// worse than dropped data, so nothing is ever queued past a
// connection's lifetime.
func (ctl *Controller) handleFrame(from *wsConn, data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("user", string(from.user)).Msg("bad envelope json")
		return
	}
	if !env.Kind.Valid() {
		log.Warn().Str("module", "signal").Str("kind", string(env.Kind)).Msg("unknown envelope kind")
		return
	}
	if env.Recipient == "" {
		log.Warn().Str("module", "signal").Str("user", string(from.user)).Str("kind", string(env.Kind)).Msg("envelope without recipient")
		return
	}

	// The relay owns the sender identity; whatever the client put
	// there is overwritten.
	env.Sender = from.user

	out, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal envelope")
		return
	}

	dst, ok := ctl.presence.Lookup(env.Recipient)
	if !ok {
		log.Debug().Str("module", "signal").Str("recipient", string(env.Recipient)).
			Str("kind", string(env.Kind)).Msg("recipient offline, envelope dropped")
		return
	}
	if err := dst.TrySend(out); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("recipient", string(env.Recipient)).
			Str("kind", string(env.Kind)).Msg("envelope dropped")
	}
}

func (ctl *Controller) sendEvent(c *wsConn, ev presenceEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal presence event")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("user", string(c.user)).Msg("presence event dropped")
	}
}

// broadcastPresence fans a presence change out to everyone except the
// subject. Best-effort: slow consumers just miss the event.
func (ctl *Controller) broadcastPresence(about domain.UserID, ev presenceEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal presence event")
		return
	}
	for _, uid := range ctl.presence.ListOnline() {
		if uid == about {
			continue
		}
		if conn, ok := ctl.presence.Lookup(uid); ok {
			_ = conn.TrySend(b)
		}
	}
}
