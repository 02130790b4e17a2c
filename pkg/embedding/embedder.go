// Package embedding turns text into vectors through an Ollama-compatible
// embedding endpoint, with optional content-addressed caching so repeated
// texts never hit the network twice.
package embedding

import "context"

// Embedder converts texts into vector embeddings.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the name of the embedding model in use. Vectors from
	// different models are not comparable.
	Model() string
}
