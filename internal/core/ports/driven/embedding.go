// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

// EmbeddingService generates vector embeddings from text.
// The vector store uses it to turn query text into a query vector for
// the RPC path; without one, vector search goes straight to REST scroll.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	// This is determined by the model and should match the collection's vector size.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// EmbeddingFactory builds an embedding service from settings read for one operation.
type EmbeddingFactory interface {
	// Create returns a service for the settings, or (nil, nil) when embeddings are not configured.
	Create(settings domain.EmbeddingSettings) (EmbeddingService, error)
}
