// Package engine abstracts the external language model behind two opaque
// calls: structured chat and text embedding. The rest of the system never
// sees how documents are generated or vectors produced.
package engine

import "context"

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Engine is the boundary to the external model provider.
type Engine interface {
	// ChatJSON sends messages and returns the assistant's reply, requesting
	// a JSON-object response from the provider.
	ChatJSON(ctx context.Context, model string, messages []Message) (string, error)

	// Chat sends messages and returns the assistant's free-form reply.
	Chat(ctx context.Context, model string, messages []Message) (string, error)

	// Embed returns the embedding vector for text.
	Embed(ctx context.Context, model, text string) ([]float32, error)
}
