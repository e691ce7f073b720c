package chat

import (
	"encoding/json"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message delivery status.
const (
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusStreaming = "streaming"
	StatusError     = "error"
)

// Message is one entry in the conversation. Messages live in process
// memory only and keep their insertion order for the whole session.
type Message struct {
	ID          string          `json:"id"`
	Role        string          `json:"role"`
	Content     string          `json:"content"`
	Timestamp   time.Time       `json:"timestamp"`
	Status      string          `json:"status"`
	RichContent json.RawMessage `json:"rich_content,omitempty"`
	Metadata    *Metadata       `json:"metadata,omitempty"`
}

// Metadata describes how an assistant reply was produced.
type Metadata struct {
	ModelUsed  string         `json:"model_used,omitempty"`
	TotalCost  float64        `json:"total_cost,omitempty"`
	TokensUsed int            `json:"tokens_used,omitempty"`
	Provider   string         `json:"provider,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

func metadataFromFrame(frame *Frame) *Metadata {
	if frame.ModelUsed == "" && frame.TotalCost == 0 && frame.TokensUsed == 0 && len(frame.Metadata) == 0 {
		return nil
	}

	md := &Metadata{
		ModelUsed:  frame.ModelUsed,
		TotalCost:  frame.TotalCost,
		TokensUsed: frame.TokensUsed,
	}
	if provider, ok := frame.Metadata["provider"].(string); ok {
		md.Provider = provider
	}
	if len(frame.Metadata) > 0 {
		md.Extra = frame.Metadata
	}
	return md
}
