package chat

import (
	"time"

	"github.com/rs/zerolog/log"
)

// State is the reducer's view of a conversation: the ordered message
// list and the workspace snapshot. Apply never mutates its input; it
// returns a new State sharing unchanged messages.
type State struct {
	Messages  []Message
	Workspace WorkspaceData
}

// Apply is a pure transition over (state, frame). Messages are only
// ever appended or updated in place by id; their order never changes.
func Apply(state State, frame *Frame) State {
	switch frame.Type {
	case FrameConnectionEstablished:
		return state

	case FrameStreamChunk:
		return applyChunk(state, frame)

	case FrameComplete, FrameStreamComplete:
		return applyComplete(state, frame)

	case FrameWorkspaceUpdate:
		next := state
		next.Workspace.Merge(frame.WorkspaceData)
		return next

	default:
		log.Debug().Str("type", frame.Type).Msg("Ignoring unknown frame type")
		return state
	}
}

func applyChunk(state State, frame *Frame) State {
	idx := indexOf(state.Messages, frame.MessageID)
	if idx < 0 {
		// First chunk of a new assistant reply.
		next := state
		next.Messages = append(copyMessages(state.Messages), Message{
			ID:        frame.MessageID,
			Role:      RoleAssistant,
			Content:   frame.Content,
			Timestamp: time.Now(),
			Status:    StatusStreaming,
		})
		return next
	}

	if state.Messages[idx].Status == StatusSent {
		// A chunk after completion would silently rewrite delivered
		// content; drop it instead.
		log.Warn().
			Str("message_id", frame.MessageID).
			Msg("Dropping stream chunk for already completed message")
		return state
	}

	next := state
	next.Messages = copyMessages(state.Messages)
	next.Messages[idx].Content += frame.Content
	next.Messages[idx].Status = StatusStreaming
	return next
}

func applyComplete(state State, frame *Frame) State {
	next := state
	next.Messages = copyMessages(state.Messages)

	idx := indexOf(next.Messages, frame.MessageID)
	if idx < 0 {
		// Completion for a reply we never saw chunks for; synthesize it.
		next.Messages = append(next.Messages, Message{
			ID:        frame.MessageID,
			Role:      RoleAssistant,
			Content:   frame.Content,
			Timestamp: time.Now(),
			Status:    StatusSent,
		})
		idx = len(next.Messages) - 1
	} else {
		if frame.Content != "" && next.Messages[idx].Content == "" {
			next.Messages[idx].Content = frame.Content
		}
		next.Messages[idx].Status = StatusSent
	}

	next.Messages[idx].Metadata = metadataFromFrame(frame)
	if len(frame.RichContent) > 0 {
		next.Messages[idx].RichContent = frame.RichContent
	}
	return next
}

func indexOf(messages []Message, id string) int {
	if id == "" {
		return -1
	}
	for i := range messages {
		if messages[i].ID == id {
			return i
		}
	}
	return -1
}

func copyMessages(messages []Message) []Message {
	copied := make([]Message, len(messages))
	copy(copied, messages)
	return copied
}
