package chat

import (
	"errors"
	"testing"
)

type stubSender struct {
	frames []OutboundFrame
	err    error
}

func (s *stubSender) Send(frame OutboundFrame) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, frame)
	return nil
}

func TestSessionSend(t *testing.T) {
	t.Run("successful send transitions sending to sent", func(t *testing.T) {
		sender := &stubSender{}
		session := NewSession(sender)

		msg, err := session.Send("Analyze costs")
		if err != nil {
			t.Fatalf("Send() failed: %v", err)
		}

		if msg.Role != RoleUser {
			t.Errorf("role = %q, want %q", msg.Role, RoleUser)
		}
		if msg.Status != StatusSent {
			t.Errorf("status = %q, want %q", msg.Status, StatusSent)
		}

		messages := session.Messages()
		if len(messages) != 1 || messages[0].Content != "Analyze costs" {
			t.Errorf("messages = %+v", messages)
		}
		if len(sender.frames) != 1 || sender.frames[0].Content != "Analyze costs" {
			t.Errorf("outbound frames = %+v", sender.frames)
		}
	})

	t.Run("failed send marks the message errored but keeps it", func(t *testing.T) {
		sender := &stubSender{err: errors.New("socket closed")}
		session := NewSession(sender)

		msg, err := session.Send("hello?")
		if err == nil {
			t.Fatal("Send() succeeded on a broken sender")
		}
		if msg.Status != StatusError {
			t.Errorf("status = %q, want %q", msg.Status, StatusError)
		}

		messages := session.Messages()
		if len(messages) != 1 {
			t.Fatalf("message count = %d, want 1", len(messages))
		}
	})
}

func TestSessionHandleFrame(t *testing.T) {
	session := NewSession(&stubSender{})

	var notifications int
	session.OnChange(func(State) { notifications++ })

	session.HandleFrame(chunk("r1", "streamed "))
	session.HandleFrame(chunk("r1", "reply"))
	session.HandleFrame(complete("r1"))

	messages := session.Messages()
	if len(messages) != 1 {
		t.Fatalf("message count = %d, want 1", len(messages))
	}
	if messages[0].Content != "streamed reply" {
		t.Errorf("content = %q", messages[0].Content)
	}
	if messages[0].Status != StatusSent {
		t.Errorf("status = %q, want %q", messages[0].Status, StatusSent)
	}
	if notifications != 3 {
		t.Errorf("onChange fired %d times, want 3", notifications)
	}
}

func TestSessionClear(t *testing.T) {
	session := NewSession(&stubSender{})
	_, _ = session.Send("first")
	session.HandleFrame(chunk("r1", "reply"))

	session.Clear()

	if got := session.Messages(); len(got) != 0 {
		t.Errorf("messages after Clear = %+v", got)
	}
}

func TestSessionSnapshotIsolation(t *testing.T) {
	session := NewSession(&stubSender{})
	_, _ = session.Send("original")

	snapshot := session.Messages()
	snapshot[0].Content = "tampered"

	if session.Messages()[0].Content != "original" {
		t.Error("mutating a snapshot changed session state")
	}
}
