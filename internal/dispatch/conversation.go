package dispatch

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/univoxai/univox/internal/genai"
	"github.com/univoxai/univox/internal/session"
)

// Conversation is a multi-turn handle over the model chain. It owns its
// history exclusively; history only grows on successful turns, so a failed
// call leaves the context exactly as it was.
type Conversation struct {
	id    string
	chain *ModelChain
	tools []genai.Tool

	mu      sync.Mutex
	history []genai.Content
}

// NewConversation opens a fresh conversation with no history. Tools are
// attached to every request so the backend can invoke them autonomously.
func NewConversation(chain *ModelChain, tools ...genai.Tool) *Conversation {
	return &Conversation{
		id:    uuid.NewString(),
		chain: chain,
		tools: tools,
	}
}

// ID identifies this handle; a reset session gets a new one.
func (c *Conversation) ID() string {
	return c.id
}

// Send submits one user turn with the accumulated history and returns the
// model's reply. On success both sides of the exchange are appended to the
// history.
func (c *Conversation) Send(ctx context.Context, parts []genai.Part) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	contents := make([]genai.Content, 0, len(c.history)+1)
	contents = append(contents, c.history...)
	contents = append(contents, genai.UserContent(parts...))
	text, err := c.chain.Generate(ctx, contents, c.tools...)
	if err != nil {
		return "", err
	}
	c.history = append(c.history, genai.UserContent(parts...), genai.ModelContent(genai.Text(text)))
	return text, nil
}

// Len reports the number of stored history entries. Used by tests.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

var _ session.Conversation = (*Conversation)(nil)
