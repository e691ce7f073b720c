package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoTransport is returned by Send before a sender is bound.
var ErrNoTransport = errors.New("no transport bound to session")

// Sender carries client-originated frames to the backend. The chat
// connection satisfies this.
type Sender interface {
	Send(frame OutboundFrame) error
}

// Session owns one conversation: it applies inbound frames to the
// reducer state and manages the lifecycle of outbound user messages.
type Session struct {
	mu     sync.RWMutex
	state  State
	sender Sender

	// onChange, when set, is invoked after every state transition.
	onChange func(State)
}

func NewSession(sender Sender) *Session {
	return &Session{sender: sender}
}

// SetSender binds the outbound transport. The session is usually
// created before its connection, which needs the session as its frame
// handler; this closes the loop.
func (s *Session) SetSender(sender Sender) {
	s.mu.Lock()
	s.sender = sender
	s.mu.Unlock()
}

// OnChange registers a callback observing every state change. Must be
// set before the session starts receiving frames.
func (s *Session) OnChange(fn func(State)) {
	s.onChange = fn
}

// HandleFrame applies one inbound frame. Satisfies the connection's
// frame handler.
func (s *Session) HandleFrame(frame *Frame) {
	s.mu.Lock()
	s.state = Apply(s.state, frame)
	state := s.state
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(state)
	}
}

// Send appends a user message with status sending, writes it to the
// socket, and promotes it to sent or error depending on the outcome.
func (s *Session) Send(content string) (Message, error) {
	msg := Message{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
		Status:    StatusSending,
	}

	s.mu.Lock()
	s.state.Messages = append(copyMessages(s.state.Messages), msg)
	sender := s.sender
	s.mu.Unlock()

	err := ErrNoTransport
	if sender != nil {
		err = sender.Send(OutboundFrame{
			Type:      "chat_message",
			MessageID: msg.ID,
			Content:   content,
		})
	}

	status := StatusSent
	if err != nil {
		status = StatusError
	}

	s.mu.Lock()
	if idx := indexOf(s.state.Messages, msg.ID); idx >= 0 {
		s.state.Messages = copyMessages(s.state.Messages)
		s.state.Messages[idx].Status = status
		msg = s.state.Messages[idx]
	}
	state := s.state
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(state)
	}

	return msg, err
}

// Messages returns a snapshot of the conversation in insertion order.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMessages(s.state.Messages)
}

// Workspace returns the current workspace snapshot.
func (s *Session) Workspace() WorkspaceData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Workspace
}

// Clear drops all conversation state, as on navigation away.
func (s *Session) Clear() {
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()
}
