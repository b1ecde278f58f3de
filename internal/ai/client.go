// Package ai wraps the language-model capabilities the pipeline
// consumes: structural classification of content blocks, short image
// captions, and image prompt suggestions. The model is treated as an
// untrusted oracle; callers validate everything it returns.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/internal/content"
	"github.com/draftforge/draftforge/pkg/util"
)

// Client is the pipeline's view of the language model.
type Client interface {
	// ClassifyStructure assigns each block a semantic role and
	// proposes image insertion slots. Single request, no streaming.
	ClassifyStructure(ctx context.Context, blocks []content.Block, imageCount int) ([]content.StructureItem, error)
	// Caption produces a short caption for a generated image.
	Caption(ctx context.Context, prompt string) (string, error)
	// ImagePrompts suggests n illustration prompts for an article.
	ImagePrompts(ctx context.Context, title, text string, n int) ([]string, error)
	Close() error
}

// previewLen bounds each block's contribution to the prompt.
const previewLen = 150

// GeminiClient implements Client on Google Gemini.
type GeminiClient struct {
	client       *genai.Client
	model        string
	captionModel string
	logger       *zap.Logger
}

func NewGeminiClient(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AI API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:       client,
		model:        cfg.Model,
		captionModel: cfg.CaptionModel,
		logger:       logger,
	}, nil
}

func (c *GeminiClient) ClassifyStructure(ctx context.Context, blocks []content.Block, imageCount int) ([]content.StructureItem, error) {
	raw, err := c.generateJSON(ctx, c.model, classifyPrompt(blocks, imageCount))
	if err != nil {
		return nil, fmt.Errorf("classification request failed: %w", err)
	}

	items, err := content.ParseStructure(raw)
	if err != nil {
		c.logger.Warn("Classifier returned malformed structure", zap.Error(err))
		return nil, err
	}
	return items, nil
}

func (c *GeminiClient) Caption(ctx context.Context, prompt string) (string, error) {
	text, err := c.generateText(ctx, c.captionModel, captionPrompt(prompt))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *GeminiClient) ImagePrompts(ctx context.Context, title, text string, n int) ([]string, error) {
	raw, err := c.generateJSON(ctx, c.model, imagePromptsPrompt(title, text, n))
	if err != nil {
		return nil, fmt.Errorf("image prompt request failed: %w", err)
	}

	var payload struct {
		Prompts []string `json:"prompts"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("unparseable image prompts response: %w", err)
	}
	if len(payload.Prompts) > n {
		payload.Prompts = payload.Prompts[:n]
	}
	return payload.Prompts, nil
}

func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *GeminiClient) generateText(ctx context.Context, modelName, prompt string) (string, error) {
	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(0.1) // Low temperature for consistent output

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return extractTextFromResponse(resp)
}

func (c *GeminiClient) generateJSON(ctx context.Context, modelName, prompt string) (string, error) {
	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", err
	}

	// Clean any markdown code block wrappers
	return cleanJSONBlock(text), nil
}

// extractTextFromResponse extracts text from a Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}

// cleanJSONBlock removes markdown code block wrappers from JSON
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func classifyPrompt(blocks []content.Block, imageCount int) string {
	var sb strings.Builder
	sb.WriteString("You are structuring an article for publication. Below are its content blocks, numbered from 0, each with the tag it had in the source document.\n\n")
	for _, b := range blocks {
		fmt.Fprintf(&sb, "%d [%s]: %s\n", b.Index, b.Tag, util.Truncate(b.Text, previewLen))
	}
	fmt.Fprintf(&sb, "\nThere are %d generated images available, numbered 1..%d.\n", imageCount, imageCount)
	sb.WriteString(`
Return JSON of the form {"structure": [...]} where each element is one of:
  {"type": "p"|"h2"|"h3"|"li"|"table", "block_index": <0-based block number>}
  {"type": "image", "image_index": <1-based image number>}

Rules:
- Use every block index exactly once, in an order that reads well.
- Use every image index exactly once, placed where an illustration fits.
- Do not invent indices and do not rewrite any text.
`)
	return sb.String()
}

func captionPrompt(imagePrompt string) string {
	return fmt.Sprintf(
		"Write one short caption (at most 12 words, no quotes) for an article illustration generated from this prompt:\n%s",
		imagePrompt)
}

func imagePromptsPrompt(title, text string, n int) string {
	return fmt.Sprintf(`Suggest %d distinct prompts for generating editorial illustrations for the article below. Each prompt should describe one concrete scene, no text in the image.
Return JSON of the form {"prompts": ["...", ...]}.

Title: %s

%s`, n, title, util.Truncate(text, 2000))
}
