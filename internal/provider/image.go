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

// ImageClientConfig holds image provider connection settings
type ImageClientConfig struct {
	BaseURL string
	APIKey  string
}

// ImageClient calls an image-generation provider. The response payload shape
// varies between providers, so the client hands back the raw body and leaves
// normalization to the dispatcher.
type ImageClient struct {
	config     *ImageClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewImageClient creates a new image provider client.
func NewImageClient(cfg *ImageClientConfig, logger *slog.Logger) *ImageClient {
	return &ImageClient{
		config:     cfg,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// Generate runs one generation and returns the provider's raw JSON payload.
func (c *ImageClient) Generate(ctx context.Context, model, prompt string) (json.RawMessage, error) {
	body, err := json.Marshal(imageRequest{Model: model, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image provider returned status %d", resp.StatusCode)
	}

	return payload, nil
}

// normalizeImages folds the shapes image providers actually return into a
// flat URL list: a bare URL string, a list of URLs, an object with a url
// field, a list of such objects, or any of those under a data/images key.
func normalizeImages(raw json.RawMessage) ([]string, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %v", err)
	}

	urls := collectURLs(value)
	if len(urls) == 0 {
		return nil, fmt.Errorf("no image URLs in payload")
	}
	return urls, nil
}

func collectURLs(value any) []string {
	switch v := value.(type) {
	case string:
		if v != "" {
			return []string{v}
		}
	case []any:
		var urls []string
		for _, item := range v {
			urls = append(urls, collectURLs(item)...)
		}
		return urls
	case map[string]any:
		for _, key := range []string{"url", "image_url", "b64_json"} {
			if s, ok := v[key].(string); ok && s != "" {
				return []string{s}
			}
		}
		for _, key := range []string{"data", "images", "output"} {
			if nested, ok := v[key]; ok {
				if urls := collectURLs(nested); len(urls) > 0 {
					return urls
				}
			}
		}
	}
	return nil
}
