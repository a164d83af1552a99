// Package signal is the server-side signaling relay: it accepts
// persistent WebSocket connections keyed by user id, stamps and
// forwards envelopes between exactly two parties, and broadcasts
// presence changes. Payloads are never inspected or persisted.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/peerline/peerline/internal/app"
	"github.com/peerline/peerline/internal/core"
	"github.com/peerline/peerline/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

const sendBuffer = 32

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	presence  *app.Presence
	heartbeat time.Duration
	readLimit int64
}

func NewController(presence *app.Presence, heartbeat time.Duration, readLimit int64) *Controller {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Controller{presence: presence, heartbeat: heartbeat, readLimit: readLimit}
}

// wsConn is one user's live relay connection. Outbound frames go
// through a buffered channel drained by the write pump; a full buffer
// drops the frame rather than queueing stale negotiation data.
type wsConn struct {
	user domain.UserID
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request and runs the connection. The
// userId query must match the authenticated principal; mismatch is a
// hard rejection before the upgrade.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	principal := domain.UserID(c.GetString("principal"))
	uid := domain.UserID(c.Query("userId"))

	if err := domain.ValidateUserID(uid); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid userId"})
		return
	}
	if principal == "" || uid != principal {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "userId does not match authenticated principal"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}

	conn := &wsConn{
		user: uid,
		conn: ws,
		send: make(chan core.Frame, sendBuffer),
	}

	if prev := ctl.presence.Register(uid, conn); prev != nil {
		// Last-connection-wins: the stale handle is closed here and its
		// pending unregister becomes a no-op.
		prev.Close()
	}
	log.Info().Str("module", "signal").Str("user", string(uid)).Msg("new WS connection")

	ctl.sendEvent(conn, presenceEvent{Type: eventUsersOnline, Users: ctl.presence.ListOnline()})
	ctl.broadcastPresence(uid, presenceEvent{Type: eventUserOnline, UserID: uid})

	connCtx, cancel := context.WithCancel(ctx)
	go ctl.writePump(connCtx, conn)
	go ctl.readPump(connCtx, cancel, conn)
}
