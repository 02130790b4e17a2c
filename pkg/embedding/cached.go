package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/stovetop/galley/pkg/cache"
)

// CachedEmbedder wraps an Embedder with a write-through cache. A text that
// was embedded before, under the same model, is served from the store
// without touching the network.
type CachedEmbedder struct {
	embedder Embedder
	store    cache.Store
	logger   *zap.Logger
}

// WithCache wraps embedder so vectors are reused across calls and runs.
func WithCache(embedder Embedder, store cache.Store, logger *zap.Logger) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CachedEmbedder{
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Embed returns one vector per text, serving cached texts from the store
// and embedding only the misses.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	// Cache keys are scoped by model so switching models never serves
	// stale vectors
	kind := "embedding:" + c.embedder.Model()

	var misses []string
	var missAt []int
	for i, text := range texts {
		data, err := c.store.Get(ctx, cache.Key(kind, text))
		if err != nil {
			var notFound cache.ErrNotFound
			if errors.As(err, &notFound) {
				misses = append(misses, text)
				missAt = append(missAt, i)
				continue
			}
			return nil, fmt.Errorf("failed to read embedding cache: %w", err)
		}

		var vector []float32
		if err := json.Unmarshal(data, &vector); err != nil {
			return nil, fmt.Errorf("failed to decode cached embedding: %w", err)
		}
		vectors[i] = vector
	}

	if len(misses) == 0 {
		c.logger.Debug("embedding cache served all texts", zap.Int("count", len(texts)))
		return vectors, nil
	}

	fresh, err := c.embedder.Embed(ctx, misses)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(misses) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(misses))
	}

	for j, vector := range fresh {
		vectors[missAt[j]] = vector

		data, err := json.Marshal(vector)
		if err != nil {
			return nil, fmt.Errorf("failed to encode embedding for cache: %w", err)
		}
		if err := c.store.Put(ctx, cache.Key(kind, misses[j]), data); err != nil {
			c.logger.Error("failed to cache embedding", zap.Error(err))
			// Continue - don't fail the call just because caching failed
		}
	}

	c.logger.Debug("embedded with cache",
		zap.Int("hits", len(texts)-len(misses)),
		zap.Int("misses", len(misses)),
	)

	return vectors, nil
}

// Model returns the wrapped embedder's model.
func (c *CachedEmbedder) Model() string {
	return c.embedder.Model()
}
