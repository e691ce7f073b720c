package chat

import (
	"encoding/json"
	"fmt"
)

// Frame types delivered over the chat WebSocket.
const (
	FrameConnectionEstablished = "connection_established"
	FrameStreamChunk           = "stream_chunk"
	FrameComplete              = "complete"
	FrameStreamComplete        = "stream_complete"
	FrameWorkspaceUpdate       = "workspace_update"
)

// Frame is one parsed WebSocket JSON message from the backend.
type Frame struct {
	Type          string          `json:"type"`
	MessageID     string          `json:"message_id,omitempty"`
	Content       string          `json:"content,omitempty"`
	ModelUsed     string          `json:"model_used,omitempty"`
	TotalCost     float64         `json:"total_cost,omitempty"`
	TokensUsed    int             `json:"tokens_used,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	RichContent   json.RawMessage `json:"rich_content,omitempty"`
	WorkspaceData *WorkspaceData  `json:"workspace_data,omitempty"`
}

// OutboundFrame is a client-originated message on the socket.
type OutboundFrame struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// ParseFrame decodes a raw WebSocket payload into a Frame.
func ParseFrame(data []byte) (*Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	if frame.Type == "" {
		return nil, fmt.Errorf("frame missing type field")
	}
	return &frame, nil
}

// WorkspaceData is the read-mostly workspace snapshot. Frames carry
// partial updates; absent counters stay untouched on merge.
type WorkspaceData struct {
	AgentCount        *int   `json:"agent_count,omitempty"`
	ExecutionCount    *int   `json:"execution_count,omitempty"`
	CollaboratorCount *int   `json:"collaborator_count,omitempty"`
	FileCount         *int   `json:"file_count,omitempty"`
	Name              string `json:"name,omitempty"`
}

// Merge applies a shallow merge of update onto the snapshot: only the
// fields present in the update replace existing values.
func (w *WorkspaceData) Merge(update *WorkspaceData) {
	if update == nil {
		return
	}
	if update.AgentCount != nil {
		w.AgentCount = update.AgentCount
	}
	if update.ExecutionCount != nil {
		w.ExecutionCount = update.ExecutionCount
	}
	if update.CollaboratorCount != nil {
		w.CollaboratorCount = update.CollaboratorCount
	}
	if update.FileCount != nil {
		w.FileCount = update.FileCount
	}
	if update.Name != "" {
		w.Name = update.Name
	}
}
