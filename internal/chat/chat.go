// Package chat provides the clients that produce response text: an
// OpenAI-compatible HTTP client, a replay simulator and a file follower.
//
// Streaming clients follow one channel contract. Stream returns a content channel
// and an error channel. The content channel carries append-only text fragments and
// is closed when the stream ends. The error channel is buffered, receives at most
// one error and is closed after the content channel.
package chat

import (
	"context"
	"fmt"
)

// Role 消息角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request describes one completion call.
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
}

// NewRequest builds a request for a single user prompt after the given history.
func NewRequest(prompt string, history ...Message) Request {
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, Message{Role: RoleUser, Content: prompt})
	return Request{Messages: msgs}
}

// AllMessages returns the messages with the system prompt prepended when set.
func (r Request) AllMessages() []Message {
	if r.SystemPrompt == "" {
		return r.Messages
	}
	out := make([]Message, 0, len(r.Messages)+1)
	out = append(out, Message{Role: RoleSystem, Content: r.SystemPrompt})
	return append(out, r.Messages...)
}

// Prompt returns the content of the last user message.
func (r Request) Prompt() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// Client returns a complete response in one call.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// StreamClient returns a response as a stream of text fragments.
type StreamClient interface {
	Stream(ctx context.Context, req Request) (<-chan string, <-chan error)
}

// APIError is returned when the chat API answers with a non-200 status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat: API request failed with status %d: %s", e.StatusCode, e.Body)
}

// Collect drains a stream into one string. The first error stops collection and is
// returned with the text received so far.
func Collect(content <-chan string, errs <-chan error) (string, error) {
	var text []byte
	for chunk := range content {
		text = append(text, chunk...)
	}
	if err := <-errs; err != nil {
		return string(text), err
	}
	return string(text), nil
}
