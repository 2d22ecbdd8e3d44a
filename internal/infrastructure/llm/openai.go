package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NichePress/internal/config"
	"NichePress/internal/domain"
	"NichePress/internal/ports"
)

// OpenAIClient implements ports.Generator backed by OpenAI-compatible
// chat-completions APIs.
type OpenAIClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.Generator = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from configuration.
func NewOpenAIClient(cfg config.OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Name identifies the provider inside the generator registry.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Generate posts a system/user prompt pair and returns the reply text.
// Transport failures and 408/429/5xx responses are transient; every other
// non-2xx response is permanent. The stage tag is filled in by the caller.
func (c *OpenAIClient) Generate(ctx context.Context, genReq ports.GenerateRequest) (string, error) {
	if c == nil {
		return "", errors.New("openai client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", permanent(errors.New("openai client misconfigured"))
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(genReq.System)},
			{"role": "user", "content": genReq.Prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal openai payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transient(fmt.Errorf("send completion request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		apiErr := fmt.Errorf("openai error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
		if retryableStatus(resp.StatusCode) {
			return "", transient(apiErr)
		}
		return "", permanent(apiErr)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", permanent(fmt.Errorf("decode completion response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", permanent(errors.New("completion response has no choices"))
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}

// transient and permanent tag errors for the stage executors' retry loop;
// the stage field is filled in where the call site is known.
func transient(err error) error {
	return domain.NewGenerationError("", true, err)
}

func permanent(err error) error {
	return domain.NewGenerationError("", false, err)
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a helpful writing assistant."
	}
	return prompt
}
