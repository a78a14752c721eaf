package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Compile-time check that Client implements Engine.
var _ Engine = (*Client)(nil)

// Client talks to an OpenAI-compatible API (chat completions + embeddings)
// over HTTP. No retry or backoff policy lives here; callers own timeouts and
// cancellation through ctx.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a Client for the given base URL (e.g. https://api.openai.com/v1)
// and bearer API key.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

type chatRequest struct {
	Model          string    `json:"model"`
	Messages       []Message `json:"messages"`
	ResponseFormat any       `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// ChatJSON sends messages and requests a JSON-object response.
func (c *Client) ChatJSON(ctx context.Context, model string, messages []Message) (string, error) {
	return c.chat(ctx, chatRequest{
		Model:          model,
		Messages:       messages,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
}

// Chat sends messages and returns the free-form reply.
func (c *Client) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	return c.chat(ctx, chatRequest{Model: model, Messages: messages})
}

func (c *Client) chat(ctx context.Context, cr chatRequest) (string, error) {
	var result chatResponse
	if err := c.post(ctx, "/chat/completions", cr, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat: empty choices")
	}
	return result.Choices[0].Message.Content, nil
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for text using the given model.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	var result embedResponse
	if err := c.post(ctx, "/embeddings", embedRequest{Model: model, Input: text}, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("embed: empty data array")
	}
	return result.Data[0].Embedding, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
