// Package chat implements the wire representation of the multimodal
// completion API and the client that calls it. The dialect is the
// Ollama-compatible chat shape: a role-tagged message list in, a single
// assistant message plus token counters out.
package chat

import "fmt"

// Request represents a chat completion request.
type Request struct {
	Model    string    `json:"model"`            // Model name (e.g. "llama3.2-vision")
	Messages []Message `json:"messages"`         // Conversation, oldest first
	Stream   *bool     `json:"stream,omitempty"` // Always forced false by the client; one call, one response
	Format   string    `json:"format,omitempty"` // "json" asks the model for a JSON object reply

	// Generation options
	Options *Options `json:"options,omitempty"`

	// Keep model loaded
	KeepAlive string `json:"keep_alive,omitempty"` // How long the service keeps the model in memory
}

// Validate reports the first reason the request cannot be sent. A request
// that fails validation never reaches the network.
func (r *Request) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("request has no messages")
	}
	for i, m := range r.Messages {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	if r.Format != "" && r.Format != "json" {
		return fmt.Errorf("format %q is not supported (only \"json\")", r.Format)
	}
	return nil
}
