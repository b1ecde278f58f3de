// Package images is the image-generation adapter, a client for an
// OpenAI-compatible images endpoint returning base64 payloads.
package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/config"
)

type Generator struct {
	endpoint string
	apiKey   string
	model    string
	size     string
	client   *http.Client
	logger   *zap.Logger
}

func NewGenerator(cfg config.ImagesConfig, logger *zap.Logger) (*Generator, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("image generation endpoint is required")
	}

	return &Generator{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		size:     cfg.Size,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}, nil
}

// Generate produces one image for the prompt and returns its bytes.
func (g *Generator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	body := map[string]any{
		"prompt":          prompt,
		"n":               1,
		"size":            g.size,
		"response_format": "b64_json",
	}
	if g.model != "" {
		body["model"] = g.model
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("image API returned status %d: %s", resp.StatusCode, string(data))
	}

	var payload struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(payload.Data) == 0 {
		return nil, fmt.Errorf("image API returned no images")
	}

	data, err := base64.StdEncoding.DecodeString(payload.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}

	g.logger.Debug("Image generated", zap.Int("bytes", len(data)))
	return data, nil
}
