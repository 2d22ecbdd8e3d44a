package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"NichePress/internal/config"
	"NichePress/internal/domain"
	"NichePress/internal/ports"
)

// Client talks to an Openverse-style royalty-free image search API.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.ImageSource = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.MediaConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Search returns the first image matching the query, or domain.ErrNoImage
// when the catalogue has nothing usable. Misses are expected and non-fatal.
func (c *Client) Search(ctx context.Context, query string) (domain.ImageRef, error) {
	if c.http == nil || c.endpoint == "" {
		return domain.ImageRef{}, fmt.Errorf("%w: media client not configured", domain.ErrNoImage)
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return domain.ImageRef{}, fmt.Errorf("invalid media endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("license_type", "commercial")
	q.Set("page_size", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.ImageRef{}, fmt.Errorf("new request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ImageRef{}, fmt.Errorf("search images: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ImageRef{}, fmt.Errorf("%w: %q", domain.ErrNoImage, query)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ImageRef{}, fmt.Errorf("media api returned %s", resp.Status)
	}

	var parsed struct {
		Results []struct {
			URL         string `json:"url"`
			Attribution string `json:"attribution"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.ImageRef{}, fmt.Errorf("decode media response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return domain.ImageRef{}, fmt.Errorf("%w: %q", domain.ErrNoImage, query)
	}

	return domain.ImageRef{
		URL:    parsed.Results[0].URL,
		Query:  query,
		Credit: parsed.Results[0].Attribution,
	}, nil
}
