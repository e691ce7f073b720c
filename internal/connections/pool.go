package connections

import (
	"context"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// TokenSource supplies the current access token for socket auth. The
// auth store satisfies this via the api client.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Pool owns every chat connection of the process, at most one live
// connection per workspace id. It replaces ad hoc per-component socket
// ownership: entries belong to the pool, and callers share whatever
// connection is already up.
type Pool struct {
	baseURL   string
	sessionID string
	tokens    TokenSource
	timeouts  TimeoutConfig
	retry     RetryPolicy
	dialer    *websocket.Dialer

	onStatus func(workspaceID string, status Status)

	mu    sync.Mutex
	conns map[string]*Conn
}

// PoolOption adjusts pool construction.
type PoolOption func(*Pool)

func WithTimeouts(timeouts TimeoutConfig) PoolOption {
	return func(p *Pool) { p.timeouts = timeouts }
}

func WithRetryPolicy(policy RetryPolicy) PoolOption {
	return func(p *Pool) { p.retry = policy }
}

// WithStatusHandler observes every status transition across the pool.
func WithStatusHandler(fn func(workspaceID string, status Status)) PoolOption {
	return func(p *Pool) { p.onStatus = fn }
}

// NewPool creates a connection pool for one chat session. baseURL is
// the ws:// or wss:// origin of the backend.
func NewPool(baseURL, sessionID string, tokens TokenSource, opts ...PoolOption) *Pool {
	p := &Pool{
		baseURL:   strings.TrimRight(baseURL, "/"),
		sessionID: sessionID,
		tokens:    tokens,
		timeouts:  DefaultTimeouts,
		retry:     DefaultRetryPolicy,
		dialer:    websocket.DefaultDialer,
		conns:     make(map[string]*Conn),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns the live connection for a workspace, dialing a new one if
// none exists. The frame handler only applies to a newly dialed
// connection; an existing one keeps its handler.
func (p *Pool) Get(ctx context.Context, workspaceID string, handler FrameHandler) (*Conn, error) {
	p.mu.Lock()
	if existing, ok := p.conns[workspaceID]; ok {
		p.mu.Unlock()
		return existing, nil
	}

	connCtx, cancel := context.WithCancel(context.Background())
	conn := &Conn{
		workspaceID: workspaceID,
		sessionID:   p.sessionID,
		pool:        p,
		handler:     handler,
		ctx:         connCtx,
		cancel:      cancel,
		status:      StatusDisconnected,
	}
	if p.onStatus != nil {
		conn.onStatus = func(status Status) { p.onStatus(workspaceID, status) }
	}
	p.conns[workspaceID] = conn
	p.mu.Unlock()

	if err := conn.dial(ctx); err != nil {
		p.remove(conn)
		cancel()
		return nil, err
	}
	return conn, nil
}

// Lookup returns the pooled connection for a workspace, if any.
func (p *Pool) Lookup(workspaceID string) (*Conn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.conns[workspaceID]
	return conn, ok
}

// Len returns the number of pooled connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// remove releases a pool entry, but only while the entry still belongs
// to the given connection. A replacement dialed in the meantime stays.
func (p *Pool) remove(conn *Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if current, ok := p.conns[conn.workspaceID]; ok && current == conn {
		delete(p.conns, conn.workspaceID)
	}
}

// Close shuts down every connection in the pool.
func (p *Pool) Close() {
	p.mu.Lock()
	conns := make([]*Conn, 0, len(p.conns))
	for _, conn := range p.conns {
		conns = append(conns, conn)
	}
	p.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}
