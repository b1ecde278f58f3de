// Package wordpress is the draft-publish adapter, a thin client for
// the WordPress REST API using application-password basic auth.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/config"
)

type Client struct {
	baseURL     string
	username    string
	appPassword string
	client      *http.Client
	logger      *zap.Logger
}

// Draft is a draft post created on the publish target.
type Draft struct {
	PostID   string
	EditLink string
}

// Media is an uploaded media item.
type Media struct {
	MediaID string
	URL     string
}

func NewClient(cfg config.WordPressConfig, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("wordpress base URL is required")
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		username:    cfg.Username,
		appPassword: cfg.AppPassword,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}, nil
}

// CreateDraft creates a draft post and returns its id and edit link.
// featuredMediaID is optional; pass an empty string to omit it.
func (c *Client) CreateDraft(ctx context.Context, title, html, featuredMediaID string) (*Draft, error) {
	body := map[string]any{
		"title":   title,
		"content": html,
		"status":  "draft",
	}
	if featuredMediaID != "" {
		body["featured_media"] = featuredMediaID
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/wp-json/wp/v2/posts", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.appPassword)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("wordpress API returned status %d: %s", resp.StatusCode, string(data))
	}

	var post struct {
		ID   int    `json:"id"`
		Link string `json:"link"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&post); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	postID := fmt.Sprintf("%d", post.ID)
	c.logger.Info("Draft created", zap.String("post_id", postID))

	return &Draft{
		PostID:   postID,
		EditLink: fmt.Sprintf("%s/wp-admin/post.php?post=%s&action=edit", c.baseURL, postID),
	}, nil
}

// UploadMedia uploads image bytes to the media library.
func (c *Client) UploadMedia(ctx context.Context, data []byte, filename string) (*Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/wp-json/wp/v2/media", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeFor(filename))
	req.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	req.SetBasicAuth(c.username, c.appPassword)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("wordpress API returned status %d: %s", resp.StatusCode, string(data))
	}

	var media struct {
		ID        int    `json:"id"`
		SourceURL string `json:"source_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &Media{
		MediaID: fmt.Sprintf("%d", media.ID),
		URL:     media.SourceURL,
	}, nil
}

func contentTypeFor(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".jpg"), strings.HasSuffix(filename, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(filename, ".webp"):
		return "image/webp"
	default:
		return "image/png"
	}
}
