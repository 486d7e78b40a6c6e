package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// TextClientConfig holds text provider connection settings
type TextClientConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// TextClient calls a chat-completions style text generation provider.
// The instruction template goes in as the system message and the job input,
// verbatim, as the user message.
type TextClient struct {
	config     *TextClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTextClient creates a new text provider client. Call deadlines come from
// the dispatcher's context, not from the HTTP client.
func NewTextClient(cfg *TextClientConfig, logger *slog.Logger) *TextClient {
	return &TextClient{
		config:     cfg,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate runs one completion and returns the raw assistant text.
func (c *TextClient) Generate(ctx context.Context, template string, input json.RawMessage) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: template},
			{Role: "user", Content: string(input)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("text provider returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("text provider error: %s", parsed.Error.Message)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("text provider returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}
