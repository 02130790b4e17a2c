package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stovetop/galley/pkg/remote"
)

// Config holds the embedding client configuration.
type Config struct {
	// BaseURL is the embedding service endpoint, e.g. http://localhost:11434
	BaseURL string

	// Token is an optional bearer token for hosted services
	Token string

	// Model is the embedding model, e.g. "all-minilm"
	Model string

	// Timeout bounds each request. Zero means the client default.
	Timeout time.Duration
}

// Client calls an Ollama-compatible /api/embed endpoint.
type Client struct {
	remote *remote.Client
	model  string
	logger *zap.Logger
}

// NewClient creates an embedding client for the configured service.
func NewClient(config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		remote: remote.New(remote.Config{
			Service: "embedding",
			BaseURL: config.BaseURL,
			Token:   config.Token,
			Timeout: config.Timeout,
		}, logger),
		model:  config.Model,
		logger: logger,
	}
}

// embedRequest is the /api/embed request body.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the /api/embed response body.
type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`

	// Token accounting for the inputs
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
}

// Embed sends texts to the embedding service and returns one vector per
// text, in input order. Validation failures surface before any network
// traffic.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("compose embedding request: no texts")
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("compose embedding request: text %d is empty", i)
		}
	}
	if c.model == "" {
		return nil, fmt.Errorf("compose embedding request: no model configured")
	}

	var resp embedResponse
	err := c.remote.PostJSON(ctx, "/api/embed", &embedRequest{Model: c.model, Input: texts}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	c.logger.Debug("embedded texts",
		zap.String("model", c.model),
		zap.Int("count", len(texts)),
		zap.Int("prompt_tokens", resp.PromptEvalCount),
	)

	return resp.Embeddings, nil
}

// Model returns the configured embedding model.
func (c *Client) Model() string {
	return c.model
}
