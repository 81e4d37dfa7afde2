// Package manychat is a small client for the ManyChat Facebook API.
package manychat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sumire/verdictrelay/internal/domain"
	"github.com/sumire/verdictrelay/internal/httpx"
)

// Config for the ManyChat client.
type Config struct {
	APIKey  string
	BaseURL string        // default https://api.manychat.com
	Timeout time.Duration // zero keeps the transport default
}

// Client calls the subscriber and sending endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.manychat.com"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpx.NewBearerClient(cfg.APIKey, cfg.Timeout),
		log:     logger,
	}
}

// CustomField is a subscriber custom field as returned by getInfo.
type CustomField struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Subscriber is the subset of subscriber info this service reads.
type Subscriber struct {
	ID           string        `json:"id"`
	FirstName    string        `json:"first_name"`
	CustomFields []CustomField `json:"custom_fields"`
}

// Field looks up a custom field by name.
func (s Subscriber) Field(name string) (CustomField, bool) {
	for _, f := range s.CustomFields {
		if f.Name == name {
			return f, true
		}
	}
	return CustomField{}, false
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// GetSubscriber returns domain.ErrNotFound when ManyChat cannot resolve the ID.
func (c *Client) GetSubscriber(ctx context.Context, subscriberID string) (*Subscriber, error) {
	endpoint := c.baseURL + "/fb/subscriber/getInfo?subscriber_id=" + url.QueryEscape(subscriberID)
	raw, status, err := httpx.Do(ctx, c.http, http.MethodGet, endpoint, nil, c.log)
	if err != nil {
		if status == http.StatusBadRequest || status == http.StatusNotFound {
			return nil, fmt.Errorf("subscriber %s: %w", subscriberID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get subscriber %s: %w", subscriberID, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: decode getInfo: %v", domain.ErrUpstream, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("subscriber %s: %w", subscriberID, domain.ErrNotFound)
	}

	var sub Subscriber
	if err := json.Unmarshal(env.Data, &sub); err != nil {
		return nil, fmt.Errorf("%w: decode subscriber: %v", domain.ErrUpstream, err)
	}
	return &sub, nil
}

// SetCustomField writes one custom field value for a subscriber.
func (c *Client) SetCustomField(ctx context.Context, subscriberID string, fieldID int64, fieldName string, value any) error {
	body := map[string]any{
		"subscriber_id": subscriberIDValue(subscriberID),
		"field_id":      fieldID,
		"field_name":    fieldName,
		"field_value":   value,
	}
	raw, _, err := httpx.Do(ctx, c.http, http.MethodPost, c.baseURL+"/fb/subscriber/setCustomField", body, c.log)
	if err != nil {
		return fmt.Errorf("set field %s for %s: %w", fieldName, subscriberID, err)
	}
	return checkStatus(raw)
}

// SendText delivers a single text message to a subscriber.
func (c *Client) SendText(ctx context.Context, subscriberID, text string) error {
	body := map[string]any{
		"subscriber_id": subscriberIDValue(subscriberID),
		"data": map[string]any{
			"version": "v2",
			"content": map[string]any{
				"messages": []map[string]string{
					{"type": "text", "text": text},
				},
			},
		},
	}
	raw, _, err := httpx.Do(ctx, c.http, http.MethodPost, c.baseURL+"/fb/sending/sendContent", body, c.log)
	if err != nil {
		return fmt.Errorf("send content to %s: %w", subscriberID, err)
	}
	return checkStatus(raw)
}

func checkStatus(raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrUpstream, err)
	}
	if env.Status == "error" {
		return fmt.Errorf("%w: %s", domain.ErrUpstream, env.Message)
	}
	return nil
}

// subscriberIDValue sends numeric IDs as JSON numbers, which the sending API expects.
func subscriberIDValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

// IsNotFound reports whether err means the subscriber does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
