package connections

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nimbusworks/workchat/internal/chat"
)

type staticTokens struct {
	token string
}

func (s *staticTokens) AccessToken(ctx context.Context) (string, error) {
	return s.token, nil
}

type collectingHandler struct {
	mu     sync.Mutex
	frames []*chat.Frame
}

func (h *collectingHandler) HandleFrame(frame *chat.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, frame)
}

func (h *collectingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames)
}

type statusRecorder struct {
	mu     sync.Mutex
	byWork map[string][]Status
}

func newStatusRecorder() *statusRecorder {
	return &statusRecorder{byWork: make(map[string][]Status)}
}

func (r *statusRecorder) record(workspaceID string, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byWork[workspaceID] = append(r.byWork[workspaceID], status)
}

func (r *statusRecorder) transitions(workspaceID string) []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.byWork[workspaceID]))
	copy(out, r.byWork[workspaceID])
	return out
}

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatServer is a minimal backend double: it upgrades, optionally
// rejects, and serves frames from a script.
type chatServer struct {
	t           *testing.T
	server      *httptest.Server
	accepted    atomic.Int32
	rejectAfter int32 // reject with HTTP 500 once accepted count reaches this (0 = never)
	closeCode   int   // when non-zero, close with this code right after upgrade
	onConn      func(ws *websocket.Conn)
}

func newChatServer(t *testing.T) *chatServer {
	cs := &chatServer{t: t}
	cs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if cs.rejectAfter > 0 && cs.accepted.Load() >= cs.rejectAfter {
			http.Error(w, "unavailable", http.StatusInternalServerError)
			return
		}

		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		cs.accepted.Add(1)

		if cs.closeCode != 0 {
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(cs.closeCode, "closing"),
				time.Now().Add(time.Second))
			_ = ws.Close()
			return
		}

		if cs.onConn != nil {
			cs.onConn(ws)
			return
		}

		// Default: keep the socket open, discard inbound traffic.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(cs.server.Close)
	return cs
}

func (cs *chatServer) wsURL() string {
	return "ws" + strings.TrimPrefix(cs.server.URL, "http")
}

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    40 * time.Millisecond,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 10 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped
		{9, 10 * time.Second},
		{0, time.Second}, // clamped to first attempt
	}

	for _, tt := range tests {
		if got := policy.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPoolSingleConnectionPerWorkspace(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cs := newChatServer(t)
	pool := NewPool(cs.wsURL(), "session-1", &staticTokens{token: "tok"})
	defer pool.Close()

	first, err := pool.Get(ctx, "ws-a", &collectingHandler{})
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	second, err := pool.Get(ctx, "ws-a", &collectingHandler{})
	if err != nil {
		t.Fatalf("second Get() failed: %v", err)
	}

	if first != second {
		t.Error("two Gets for one workspace returned different connections")
	}
	if got := cs.accepted.Load(); got != 1 {
		t.Errorf("server accepted %d connections, want 1", got)
	}

	other, err := pool.Get(ctx, "ws-b", &collectingHandler{})
	if err != nil {
		t.Fatalf("Get() for second workspace failed: %v", err)
	}
	if other == first {
		t.Error("distinct workspaces share one connection")
	}
	if pool.Len() != 2 {
		t.Errorf("pool holds %d connections, want 2", pool.Len())
	}
}

func TestConnStatusTransitions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cs := newChatServer(t)
	recorder := newStatusRecorder()
	pool := NewPool(cs.wsURL(), "session-1", &staticTokens{token: "tok"},
		WithStatusHandler(recorder.record))
	defer pool.Close()

	conn, err := pool.Get(ctx, "ws-a", &collectingHandler{})
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	waitFor(t, time.Second, func() bool { return conn.Status() == StatusConnected })

	got := recorder.transitions("ws-a")
	want := []Status{StatusConnecting, StatusConnected}
	if len(got) < 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("transitions = %v, want prefix %v", got, want)
	}
}

func TestConnReconnectAfterDrop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var serverConns sync.Mutex
	var sockets []*websocket.Conn

	cs := newChatServer(t)
	cs.onConn = func(ws *websocket.Conn) {
		serverConns.Lock()
		sockets = append(sockets, ws)
		serverConns.Unlock()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}

	recorder := newStatusRecorder()
	pool := NewPool(cs.wsURL(), "session-1", &staticTokens{token: "tok"},
		WithRetryPolicy(fastRetry(5)),
		WithStatusHandler(recorder.record))
	defer pool.Close()

	conn, err := pool.Get(ctx, "ws-a", &collectingHandler{})
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return conn.Status() == StatusConnected })

	// Drop the server side; the connection must come back on its own.
	serverConns.Lock()
	_ = sockets[0].Close()
	serverConns.Unlock()

	waitFor(t, 3*time.Second, func() bool { return cs.accepted.Load() >= 2 })
	waitFor(t, time.Second, func() bool { return conn.Status() == StatusConnected })

	// The pool entry survived the drop.
	if got, ok := pool.Lookup("ws-a"); !ok || got != conn {
		t.Error("pool lost the connection across a reconnect")
	}

	// connected must never be followed directly by connecting.
	transitions := recorder.transitions("ws-a")
	for i := 1; i < len(transitions); i++ {
		if transitions[i-1] == StatusConnected && transitions[i] == StatusConnecting {
			t.Errorf("illegal transition connected -> connecting at %d: %v", i, transitions)
		}
	}
}

func TestConnAuthCloseDoesNotReconnect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cs := newChatServer(t)
	cs.closeCode = websocket.ClosePolicyViolation

	pool := NewPool(cs.wsURL(), "session-1", &staticTokens{token: "tok"},
		WithRetryPolicy(fastRetry(3)))
	defer pool.Close()

	conn, err := pool.Get(ctx, "ws-a", &collectingHandler{})
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return conn.Status() == StatusDisconnected })
	waitFor(t, time.Second, func() bool { return pool.Len() == 0 })

	// Allow the retry window to elapse; no new dials may happen.
	time.Sleep(150 * time.Millisecond)
	if got := cs.accepted.Load(); got != 1 {
		t.Errorf("server accepted %d connections after auth close, want 1", got)
	}
}

func TestConnReconnectBudgetExhaustion(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var serverConns sync.Mutex
	var sockets []*websocket.Conn

	cs := newChatServer(t)
	cs.rejectAfter = 1
	cs.onConn = func(ws *websocket.Conn) {
		serverConns.Lock()
		sockets = append(sockets, ws)
		serverConns.Unlock()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}

	pool := NewPool(cs.wsURL(), "session-1", &staticTokens{token: "tok"},
		WithRetryPolicy(fastRetry(2)))
	defer pool.Close()

	conn, err := pool.Get(ctx, "ws-a", &collectingHandler{})
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return conn.Status() == StatusConnected })

	serverConns.Lock()
	_ = sockets[0].Close()
	serverConns.Unlock()

	waitFor(t, 5*time.Second, func() bool { return pool.Len() == 0 })

	if conn.Status() != StatusError {
		t.Errorf("status after exhausted retries = %q, want %q", conn.Status(), StatusError)
	}
}

func TestConnSendAndReceive(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cs := newChatServer(t)
	cs.onConn = func(ws *websocket.Conn) {
		// Reply to each inbound message with a chunk and a completion.
		for {
			var inbound chat.OutboundFrame
			if err := ws.ReadJSON(&inbound); err != nil {
				return
			}
			_ = ws.WriteJSON(chat.Frame{
				Type:      chat.FrameStreamChunk,
				MessageID: "reply-" + inbound.MessageID,
				Content:   "echo: " + inbound.Content,
			})
			_ = ws.WriteJSON(chat.Frame{
				Type:      chat.FrameComplete,
				MessageID: "reply-" + inbound.MessageID,
			})
		}
	}

	handler := &collectingHandler{}
	pool := NewPool(cs.wsURL(), "session-1", &staticTokens{token: "tok"})
	defer pool.Close()

	conn, err := pool.Get(ctx, "ws-a", handler)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return conn.Status() == StatusConnected })

	if err := conn.Send(chat.OutboundFrame{Type: "chat_message", MessageID: "m1", Content: "hi"}); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return handler.count() >= 2 })

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.frames[0].Type != chat.FrameStreamChunk || handler.frames[0].Content != "echo: hi" {
		t.Errorf("first frame = %+v", handler.frames[0])
	}
	if handler.frames[1].Type != chat.FrameComplete {
		t.Errorf("second frame = %+v", handler.frames[1])
	}
}

func TestConnSendWhileClosed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cs := newChatServer(t)
	pool := NewPool(cs.wsURL(), "session-1", &staticTokens{token: "tok"})
	defer pool.Close()

	conn, err := pool.Get(ctx, "ws-a", &collectingHandler{})
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	if err := conn.Send(chat.OutboundFrame{Type: "chat_message"}); err != ErrNotConnected {
		t.Errorf("Send() after Close error = %v, want ErrNotConnected", err)
	}
	if pool.Len() != 0 {
		t.Errorf("closed connection still pooled, len = %d", pool.Len())
	}
}
