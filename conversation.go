package chatmd

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/riverfjs/chatmd-go/internal/chat"
)

// Message is one prompt and its rendered response.
type Message struct {
	ID           string
	Prompt       string
	PromptOutput RenderedOutput // 提示词本身的渲染
	Response     RenderedOutput
	Status       Status
	Error        string // 展示用错误文本；取消时为 CancelledText
}

// Text returns the raw response text.
func (m Message) Text() string {
	return m.Response.RawText
}

func (m Message) clone() Message {
	m.PromptOutput = m.PromptOutput.Clone()
	m.Response = m.Response.Clone()
	return m
}

// Conversation 多轮对话：保存消息历史，每次发送启动一个会话
//
// 同一时间只有一个会话在进行；新的 Send 会先取消正在进行的会话。
type Conversation struct {
	renderer *Renderer
	onChange func(Message)

	mu       sync.Mutex
	messages []Message
	active   *Session
	gen      int // Send、Cancel 时递增，用于识别启动窗口内的取消
	closed   bool
}

// NewConversation creates a conversation. onChange, when set, receives a snapshot
// of a message whenever it changes.
func NewConversation(onChange func(Message), opts ...Option) *Conversation {
	c := &Conversation{onChange: onChange}
	c.renderer = New(opts...)
	return c
}

// Send appends a message for text and starts its session. The returned session
// is already running; its updates are folded into the message.
func (c *Conversation) Send(ctx context.Context, text string) (*Session, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if c.active != nil {
		c.active.Cancel()
		c.active = nil
	}
	c.gen++
	gen := c.gen

	history := c.historyLocked()
	msg := Message{
		ID:           uuid.NewString(),
		Prompt:       text,
		PromptOutput: c.renderer.pipeline.Output(text),
		Status:       StatusStreaming,
	}
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	c.notify(msg)

	// 每条消息使用独立的订阅者，避免与 Renderer 的订阅者相互覆盖
	opts := *c.renderer.opts
	userSub := opts.Subscriber
	opts.Subscriber = func(u Update) {
		c.apply(msg.ID, u)
		if userSub != nil {
			userSub(u)
		}
	}
	r := &Renderer{opts: &opts, pipeline: c.renderer.pipeline}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.closed {
		// Cancel、Clear 或 Close 发生在 notify 期间：会话以已取消状态启动并立即中止
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		ctx = cctx
	}
	s := r.Start(ctx, text, history...)
	c.active = s
	return s, nil
}

// historyLocked returns the settled turns as chat messages.
func (c *Conversation) historyLocked() []chat.Message {
	var history []chat.Message
	for _, m := range c.messages {
		if m.Status != StatusSettled {
			continue
		}
		history = append(history,
			chat.Message{Role: chat.RoleUser, Content: m.Prompt},
			chat.Message{Role: chat.RoleAssistant, Content: m.Response.RawText},
		)
	}
	return history
}

func (c *Conversation) apply(id string, u Update) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return
	}
	m := &c.messages[i]
	m.Response = u.Output
	m.Status = u.Status
	if u.Status == StatusAborted {
		if u.Reason == ReasonCancelled {
			m.Error = CancelledText
		} else {
			m.Error = u.Reason
		}
	}
	snapshot := m.clone()
	c.mu.Unlock()
	c.notify(snapshot)
}

func (c *Conversation) notify(m Message) {
	if c.onChange != nil {
		c.onChange(m.clone())
	}
}

func (c *Conversation) indexLocked(id string) int {
	for i := range c.messages {
		if c.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// Cancel cancels the in-flight response, if any.
func (c *Conversation) Cancel() {
	c.mu.Lock()
	s := c.active
	c.active = nil
	c.gen++
	c.mu.Unlock()
	if s != nil {
		s.Cancel()
	}
}

// Retry removes the message with id and sends its prompt again.
func (c *Conversation) Retry(ctx context.Context, id string) (*Session, error) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return nil, ErrMessageNotFound
	}
	prompt := c.messages[i].Prompt
	c.messages = append(c.messages[:i], c.messages[i+1:]...)
	c.mu.Unlock()
	return c.Send(ctx, prompt)
}

// Clear cancels the in-flight response and drops the history.
func (c *Conversation) Clear() {
	c.Cancel()
	c.mu.Lock()
	c.messages = nil
	c.mu.Unlock()
}

// Close cancels the in-flight response. Later sends fail with ErrSessionClosed.
func (c *Conversation) Close() {
	c.Cancel()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Messages returns snapshots of all messages in order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.clone()
	}
	return out
}

// Message returns a snapshot of the message with id.
func (c *Conversation) Message(id string) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.messages[i].clone(), true
	}
	return Message{}, false
}
