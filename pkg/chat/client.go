package chat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stovetop/galley/pkg/remote"
)

// Config holds the completion service settings.
type Config struct {
	BaseURL string        // Service root, e.g. "http://localhost:11434"
	Token   string        // Optional bearer credential
	Model   string        // Default model when a request names none
	Timeout time.Duration // Zero means the remote default
}

// Client calls the completion service. One request, one blocking call,
// one response or error.
type Client struct {
	remote *remote.Client
	model  string
	logger *zap.Logger
}

// NewClient creates a completion client.
func NewClient(config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		remote: remote.New(remote.Config{
			Service: "completion",
			BaseURL: config.BaseURL,
			Token:   config.Token,
			Timeout: config.Timeout,
		}, logger),
		model:  config.Model,
		logger: logger,
	}
}

// Complete sends the request and returns the parsed response. The request
// is validated before any network traffic and is never mutated: the client
// works on a copy with streaming forced off and the default model applied.
func (c *Client) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("compose completion request: %w", err)
	}

	send := *req
	if send.Model == "" {
		send.Model = c.model
	}
	if send.Model == "" {
		return nil, fmt.Errorf("compose completion request: no model configured")
	}
	streaming := false
	send.Stream = &streaming

	c.logger.Debug("sending completion request",
		zap.String("model", send.Model),
		zap.Int("message_count", len(send.Messages)),
	)

	var resp Response
	if err := c.remote.PostJSON(ctx, "/api/chat", &send, &resp); err != nil {
		return nil, err
	}

	usage := resp.Usage()
	c.logger.Debug("completion received",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
	)

	return &resp, nil
}
