package openai

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sumire/verdictrelay/internal/httpx"
)

// Config for the OpenAI client.
type Config struct {
	APIKey      string
	BaseURL     string // default https://api.openai.com/v1
	ChatModel   string // e.g. "gpt-4o-mini"
	ImageModel  string // e.g. "dall-e-3"
	Temperature float64
	Timeout     time.Duration // zero keeps the transport default
}

// Client talks to the chat completions and image generation endpoints.
type Client struct {
	cfg      Config
	api      *http.Client
	download *http.Client
	log      *slog.Logger

	chatSchema  *jsonschema.Schema
	imageSchema *jsonschema.Schema
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "dall-e-3"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg: cfg,
		api: httpx.NewBearerClient(cfg.APIKey, cfg.Timeout),
		// Image URLs are pre-signed blobs; they must not receive the API key.
		download:    &http.Client{Timeout: cfg.Timeout},
		log:         logger,
		chatSchema:  jsonschema.MustCompileString("chat_completion.json", chatCompletionSchema),
		imageSchema: jsonschema.MustCompileString("image_generation.json", imageGenerationSchema),
	}
}
