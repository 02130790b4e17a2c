package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stovetop/galley/pkg/remote"
)

// Config holds the gateway client configuration.
type Config struct {
	// BaseURL is the gateway endpoint, e.g. http://localhost:8090
	BaseURL string

	// Token is the bearer token the gateway expects
	Token string

	// Timeout bounds each request. Zero means the client default.
	Timeout time.Duration
}

// Client calls the action gateway.
type Client struct {
	remote *remote.Client
	logger *zap.Logger
}

// NewClient creates a gateway client.
func NewClient(config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		remote: remote.New(remote.Config{
			Service: "action gateway",
			BaseURL: config.BaseURL,
			Token:   config.Token,
			Timeout: config.Timeout,
		}, logger),
		logger: logger,
	}
}

// Query runs one SQL statement through the gateway and returns rows or a
// file envelope, whichever the request's format asked for.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("compose query request: query is empty")
	}

	var resp QueryResponse
	if err := c.remote.PostJSON(ctx, "/v1/query", &req, &resp); err != nil {
		return nil, err
	}

	if resp.Rows == nil && resp.File == nil {
		return nil, fmt.Errorf("action gateway returned neither rows nor a file")
	}

	c.logger.Debug("query answered",
		zap.Bool("file", resp.File != nil),
		zap.String("format", req.Format),
	)

	return &resp, nil
}
