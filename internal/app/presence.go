// Package app owns the shared server-side state: the presence
// registry mapping user ids to their live signaling connections.
package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/peerline/peerline/internal/core"
	"github.com/peerline/peerline/internal/domain"
)

// Presence maps a user id to its current live connection handle.
// One live connection per user id: a new Register for the same id
// replaces the old handle (last-connection-wins), and Unregister is a
// no-op unless the caller still holds the current handle. All mutation
// goes through these methods; nothing reads the map directly.
type Presence struct {
	mu    sync.RWMutex
	conns map[domain.UserID]core.SignalConnection
}

func NewPresence() *Presence {
	return &Presence{conns: make(map[domain.UserID]core.SignalConnection)}
}

// Register installs conn as the live handle for uid and returns the
// handle it replaced, if any. The caller must close the previous one.
func (p *Presence) Register(uid domain.UserID, conn core.SignalConnection) core.SignalConnection {
	p.mu.Lock()
	prev := p.conns[uid]
	p.conns[uid] = conn
	p.mu.Unlock()
	if prev != nil {
		log.Info().Str("module", "app.presence").Str("user", string(uid)).Msg("replaced existing connection")
	} else {
		log.Info().Str("module", "app.presence").Str("user", string(uid)).Msg("registered")
	}
	return prev
}

// Unregister removes the entry only if it still matches conn. This
// guards a stale disconnect racing a newer connection for the same
// user. Returns whether the entry was removed.
func (p *Presence) Unregister(uid domain.UserID, conn core.SignalConnection) bool {
	p.mu.Lock()
	cur, ok := p.conns[uid]
	if !ok || cur != conn {
		p.mu.Unlock()
		return false
	}
	delete(p.conns, uid)
	p.mu.Unlock()
	log.Info().Str("module", "app.presence").Str("user", string(uid)).Msg("unregistered")
	return true
}

// Lookup returns the current live handle for uid.
func (p *Presence) Lookup(uid domain.UserID) (core.SignalConnection, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.conns[uid]
	return c, ok
}

// ListOnline snapshots the ids with a live connection, for the initial
// presence sync of a freshly connected client.
func (p *Presence) ListOnline() []domain.UserID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.UserID, 0, len(p.conns))
	for uid := range p.conns {
		out = append(out, uid)
	}
	return out
}
