package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sumire/verdictrelay/internal/domain"
	"github.com/sumire/verdictrelay/internal/httpx"
)

// Message is one role-tagged entry of a chat prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Complete sends a chat completion request and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("openai.chat.start", "req_id", rid, "model", c.cfg.ChatModel, "messages", len(messages))

	body := map[string]any{
		"model":       c.cfg.ChatModel,
		"temperature": c.cfg.Temperature,
		"messages":    messages,
	}
	raw, _, err := httpx.Do(ctx, c.api, http.MethodPost, c.cfg.BaseURL+"/chat/completions", body, c.log)
	if err != nil {
		c.log.Error("openai.chat.http_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}
	if err := validateResponse(c.chatSchema, raw); err != nil {
		c.log.Error("openai.chat.invalid_response", "req_id", rid, "error", err, "raw", string(raw))
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("%w: decode chat response: %v", domain.ErrUpstream, err)
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty chat completion", domain.ErrUpstream)
	}

	c.log.Info("openai.chat.ok", "req_id", rid, "chars", len(content),
		"elapsed_ms", time.Since(start).Milliseconds())
	return content, nil
}

// GenerateImage requests one image and returns its temporary hosted URL.
func (c *Client) GenerateImage(ctx context.Context, prompt, size string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("openai.image.start", "req_id", rid, "model", c.cfg.ImageModel, "size", size)

	body := map[string]any{
		"model":  c.cfg.ImageModel,
		"prompt": prompt,
		"size":   size,
	}
	raw, _, err := httpx.Do(ctx, c.api, http.MethodPost, c.cfg.BaseURL+"/images/generations", body, c.log)
	if err != nil {
		c.log.Error("openai.image.http_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}
	if err := validateResponse(c.imageSchema, raw); err != nil {
		c.log.Error("openai.image.invalid_response", "req_id", rid, "error", err, "raw", string(raw))
		return "", err
	}

	var ir struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &ir); err != nil {
		return "", fmt.Errorf("%w: decode image response: %v", domain.ErrUpstream, err)
	}

	c.log.Info("openai.image.ok", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
	return ir.Data[0].URL, nil
}

// Download fetches the bytes behind a generated image URL.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	raw, _, err := httpx.Do(ctx, c.download, http.MethodGet, url, nil, c.log)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty image body", domain.ErrUpstream)
	}
	return raw, nil
}
