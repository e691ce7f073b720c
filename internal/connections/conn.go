package connections

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nimbusworks/workchat/internal/chat"
)

// Status is the observable state of one workspace connection.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// CloseAuthFailure is the application close code the backend sends when
// the token is rejected mid-session. Together with policy violations it
// suppresses reconnection.
const CloseAuthFailure = 3000

// ErrNotConnected is returned by Send while the socket is not open.
var ErrNotConnected = errors.New("connection is not open")

// ErrClosed is returned when the connection was closed by its owner.
var ErrClosed = errors.New("connection closed")

// FrameHandler receives every parsed inbound frame.
type FrameHandler interface {
	HandleFrame(frame *chat.Frame)
}

// Conn is one live chat socket for a workspace. It owns a read pump and
// a ping ticker, and supervises its own reconnection within the pool's
// retry policy.
type Conn struct {
	workspaceID string
	sessionID   string
	pool        *Pool

	handler  FrameHandler
	onStatus func(Status)

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	writeMu sync.Mutex
	ws      *websocket.Conn
	status  Status
	dialing bool
	closed  bool
}

// Status returns the current connection status.
func (c *Conn) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// WorkspaceID returns the workspace this connection belongs to.
func (c *Conn) WorkspaceID() string {
	return c.workspaceID
}

func (c *Conn) setStatus(status Status) {
	c.mu.Lock()
	if c.status == status {
		c.mu.Unlock()
		return
	}
	c.status = status
	c.mu.Unlock()

	if c.onStatus != nil {
		c.onStatus(status)
	}
}

// Send writes one outbound frame with the configured write deadline.
func (c *Conn) Send(frame chat.OutboundFrame) error {
	c.mu.Lock()
	ws := c.ws
	status := c.status
	c.mu.Unlock()

	if status != StatusConnected || ws == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = ws.SetWriteDeadline(time.Now().Add(c.pool.timeouts.WriteWait))
	if err := ws.WriteJSON(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Close tears the connection down and cancels any pending reconnect.
// The pool entry is released.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	c.cancel()

	if ws != nil {
		c.writeMu.Lock()
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.pool.timeouts.WriteWait))
		c.writeMu.Unlock()
		_ = ws.Close()
	}

	c.setStatus(StatusDisconnected)
	c.pool.remove(c)
	return nil
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// dial opens the socket and starts the pumps. Concurrent dial attempts
// for one Conn are collapsed.
func (c *Conn) dial(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.dialing {
		c.mu.Unlock()
		return fmt.Errorf("connection attempt already in progress")
	}
	c.dialing = true
	// Close any prior socket this connection still holds.
	stale := c.ws
	c.ws = nil
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.dialing = false
		c.mu.Unlock()
	}()

	if stale != nil {
		_ = stale.Close()
	}

	c.setStatus(StatusConnecting)

	token, err := c.pool.tokens.AccessToken(ctx)
	if err != nil {
		c.setStatus(StatusError)
		return fmt.Errorf("no access token for chat socket: %w", err)
	}

	endpoint := c.endpoint(token)
	ws, _, err := c.pool.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		c.setStatus(StatusError)
		return fmt.Errorf("failed to dial chat socket: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = ws.Close()
		return ErrClosed
	}
	c.ws = ws
	c.mu.Unlock()

	c.setStatus(StatusConnected)

	log.Info().
		Str("workspace_id", c.workspaceID).
		Msg("Chat socket connected")

	go c.pingLoop(ws)
	go c.readPump(ws)
	return nil
}

func (c *Conn) endpoint(token string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("workspace_id", c.workspaceID)
	return fmt.Sprintf("%s/ws/chat/%s/?%s", c.pool.baseURL, c.sessionID, q.Encode())
}

func (c *Conn) pingLoop(ws *websocket.Conn) {
	ticker := time.NewTicker(c.pool.timeouts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(c.pool.timeouts.WriteWait)
			c.writeMu.Lock()
			err := ws.WriteControl(websocket.PingMessage, []byte{}, deadline)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Conn) readPump(ws *websocket.Conn) {
	_ = ws.SetReadDeadline(time.Now().Add(c.pool.timeouts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.pool.timeouts.PongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.handleReadError(ws, err)
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(c.pool.timeouts.PongWait))

		frame, err := chat.ParseFrame(data)
		if err != nil {
			log.Warn().
				Err(err).
				Str("workspace_id", c.workspaceID).
				Msg("Discarding malformed frame")
			continue
		}

		if c.handler != nil {
			c.handler.HandleFrame(frame)
		}
	}
}

func (c *Conn) handleReadError(ws *websocket.Conn, err error) {
	_ = ws.Close()

	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
	}
	stale := c.ws != nil // a newer socket already took over
	closed := c.closed
	c.mu.Unlock()

	if stale || closed {
		return
	}

	c.setStatus(StatusDisconnected)

	if isAuthClose(err) {
		log.Warn().
			Str("workspace_id", c.workspaceID).
			Msg("Chat socket closed for auth failure - not reconnecting")
		c.pool.remove(c)
		return
	}

	log.Info().
		Err(err).
		Str("workspace_id", c.workspaceID).
		Msg("Chat socket lost - reconnecting")
	go c.reconnect()
}

func isAuthClose(err error) bool {
	return websocket.IsCloseError(err, websocket.ClosePolicyViolation, CloseAuthFailure)
}

// reconnect re-dials under the pool's retry policy. It stops on Close,
// on an auth-failure classification, when credentials are gone, or when
// the attempt budget is spent.
func (c *Conn) reconnect() {
	policy := c.pool.retry

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		select {
		case <-time.After(policy.Delay(attempt)):
		case <-c.ctx.Done():
			return
		}

		if c.isClosed() {
			return
		}

		if token, err := c.pool.tokens.AccessToken(c.ctx); err != nil || token == "" {
			log.Warn().
				Str("workspace_id", c.workspaceID).
				Msg("No credentials for reconnect - giving up")
			c.pool.remove(c)
			return
		}

		err := c.dial(c.ctx)
		if err == nil {
			return
		}
		if errors.Is(err, ErrClosed) {
			return
		}

		log.Warn().
			Err(err).
			Str("workspace_id", c.workspaceID).
			Int("attempt", attempt).
			Msg("Reconnect attempt failed")
		c.setStatus(StatusDisconnected)
	}

	log.Error().
		Str("workspace_id", c.workspaceID).
		Int("attempts", policy.MaxAttempts).
		Msg("Reconnect budget exhausted")
	c.setStatus(StatusError)
	c.pool.remove(c)
}
