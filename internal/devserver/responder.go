package devserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// ReplyMeta describes how an assistant reply was produced; it becomes
// the completion frame's metadata.
type ReplyMeta struct {
	Model      string
	TokensUsed int
	TotalCost  float64
	Provider   string
}

// Responder produces one assistant reply, emitting it chunk by chunk.
type Responder interface {
	Respond(ctx context.Context, prompt string, emit func(chunk string)) (*ReplyMeta, error)
}

// NewResponder selects the OpenAI-backed responder when a key is
// configured, otherwise the canned echo responder.
func NewResponder(openAIKey string) Responder {
	if openAIKey == "" {
		log.Info().Msg("No OpenAI key configured - using echo responder")
		return &EchoResponder{}
	}
	return &OpenAIResponder{
		client: openai.NewClient(openAIKey),
		model:  openai.GPT4oMini,
	}
}

// EchoResponder streams a canned acknowledgement word by word. It keeps
// the dev server usable offline.
type EchoResponder struct {
	// Delay between chunks; zero means a small default.
	Delay time.Duration
}

func (e *EchoResponder) Respond(ctx context.Context, prompt string, emit func(chunk string)) (*ReplyMeta, error) {
	delay := e.Delay
	if delay == 0 {
		delay = 20 * time.Millisecond
	}

	reply := fmt.Sprintf("You said: %s", prompt)
	words := strings.SplitAfter(reply, " ")
	for _, word := range words {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		emit(word)
	}

	return &ReplyMeta{
		Model:      "echo-1",
		TokensUsed: len(words),
		Provider:   "local",
	}, nil
}

// OpenAIResponder streams completions from the OpenAI API.
type OpenAIResponder struct {
	client *openai.Client
	model  string
}

func (o *OpenAIResponder) Respond(ctx context.Context, prompt string, emit func(chunk string)) (*ReplyMeta, error) {
	stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a concise workspace assistant."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open completion stream: %w", err)
	}
	defer stream.Close()

	meta := &ReplyMeta{Model: o.model, Provider: "openai"}

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("completion stream failed: %w", err)
		}

		if resp.Usage != nil {
			meta.TokensUsed = resp.Usage.TotalTokens
		}
		if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
			emit(resp.Choices[0].Delta.Content)
		}
	}

	return meta, nil
}
