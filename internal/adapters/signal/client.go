package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/peerline/peerline/internal/domain"
)

// ClientHandlers are the inbound callbacks of a relay client. Nil
// handlers are skipped.
type ClientHandlers struct {
	OnEnvelope    func(domain.Envelope)
	OnUserOnline  func(domain.UserID)
	OnUserOffline func(domain.UserID)
	OnUsersOnline func([]domain.UserID)
}

// Client is the engine-side relay connection. It implements
// core.Signaler for outbound envelopes and dispatches inbound
// envelopes and presence events to the handlers.
type Client struct {
	userID   domain.UserID
	conn     *websocket.Conn
	handlers ClientHandlers

	writeMu sync.Mutex

	mu        sync.RWMutex
	connected bool
}

// Dial connects to the relay's signaling endpoint. baseURL is the ws
// endpoint without query, e.g. "ws://host/api/ws/signal"; jar carries
// the authenticated session cookies.
func Dial(ctx context.Context, baseURL string, userID domain.UserID, jar http.CookieJar, h ClientHandlers) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("userId", string(userID))
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{Jar: jar}
	ws, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial relay: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	c := &Client{userID: userID, conn: ws, handlers: h, connected: true}
	go c.readLoop()
	return c, nil
}

// Send marshals the envelope and hands it to the relay. The relay
// stamps the sender, so the field is cleared before sending.
func (c *Client) Send(env domain.Envelope) error {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	if !connected {
		return fmt.Errorf("not connected to signaling")
	}

	env.Sender = ""
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}

// IsConnected reports whether the relay link is up. New call actions
// are blocked while it is down; an already connected call keeps its
// media flowing peer-to-peer regardless.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) Close() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	_ = c.conn.Close()
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("module", "signal.client").Str("user", string(c.userID)).Msg("relay read loop closed")
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		log.Warn().Err(err).Str("module", "signal.client").Msg("bad relay frame")
		return
	}

	switch head.Type {
	case eventHeartbeat:
		// Liveness only, no reply required.
	case eventUserOnline, eventUserOffline, eventUsersOnline:
		var ev presenceEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Warn().Err(err).Str("module", "signal.client").Msg("bad presence event")
			return
		}
		switch head.Type {
		case eventUserOnline:
			if c.handlers.OnUserOnline != nil {
				c.handlers.OnUserOnline(ev.UserID)
			}
		case eventUserOffline:
			if c.handlers.OnUserOffline != nil {
				c.handlers.OnUserOffline(ev.UserID)
			}
		case eventUsersOnline:
			if c.handlers.OnUsersOnline != nil {
				c.handlers.OnUsersOnline(ev.Users)
			}
		}
	default:
		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Str("module", "signal.client").Msg("bad envelope frame")
			return
		}
		if !env.Kind.Valid() {
			log.Warn().Str("module", "signal.client").Str("kind", string(env.Kind)).Msg("unknown frame type")
			return
		}
		if c.handlers.OnEnvelope != nil {
			c.handlers.OnEnvelope(env)
		}
	}
}
