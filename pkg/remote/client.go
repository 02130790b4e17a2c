// Package remote carries the HTTP plumbing shared by every external service
// client in galley. Each call is composed once, sent once, and surfaced to
// the caller as either a parsed response or an error; there is no retry,
// backoff, or partial-result salvage.
package remote

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
)

const defaultTimeout = 2 * time.Minute // model calls can be slow

// maxErrorMessage caps how much of a service's error body ends up in the
// returned error.
const maxErrorMessage = 300

// Config describes one external service endpoint.
type Config struct {
	// Service labels the endpoint in logs and errors, e.g. "completion".
	Service string
	// BaseURL is the service root, e.g. "http://localhost:11434".
	BaseURL string
	// Token, when set, is sent as a bearer credential.
	Token string
	// Timeout bounds each call. Zero means the two-minute default; this is
	// the only timeout policy the client enforces.
	Timeout time.Duration
}

// Client performs single blocking JSON calls against one service.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a client for the configured service.
func New(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// Service returns the label the client was configured with.
func (c *Client) Service() string {
	return c.config.Service
}

// PostJSON sends in as a JSON body to path and decodes the response into
// out (which may be nil to discard the body). A non-2xx status becomes a
// *ServiceError carrying the decoded service message.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", c.config.Service, err)
	}

	url := c.config.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", c.config.Service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	c.logger.Debug("calling service",
		zap.String("service", c.config.Service),
		zap.String("url", url),
		zap.Int("body_size", len(body)),
	)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", c.config.Service, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", c.config.Service, err)
	}

	c.logger.Debug("service answered",
		zap.String("service", c.config.Service),
		zap.Int("status", resp.StatusCode),
		zap.Int("body_size", len(respBody)),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServiceError{
			Service:    c.config.Service,
			StatusCode: resp.StatusCode,
			Message:    wireMessage(respBody),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse %s response: %w", c.config.Service, err)
	}
	return nil
}

// wireError is the error body shape shared by the services galley talks to.
type wireError struct {
	Error string `json:"error"`
}

// wireMessage extracts a printable message from an error body.
func wireMessage(body []byte) string {
	var we wireError
	if err := json.Unmarshal(body, &we); err == nil && we.Error != "" {
		return truncate(we.Error, maxErrorMessage)
	}
	return truncate(strings.TrimSpace(string(body)), maxErrorMessage)
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
