// Package ai builds embedding service adapters from settings.
package ai

import (
	"fmt"

	ollamaembed "github.com/custodia-labs/graphloom/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/graphloom/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/graphloom/internal/core/domain"
	"github.com/custodia-labs/graphloom/internal/core/ports/driven"
)

// Ensure EmbeddingFactory implements the interface.
var _ driven.EmbeddingFactory = (*EmbeddingFactory)(nil)

// EmbeddingFactory creates embedding services per operation.
type EmbeddingFactory struct{}

// NewEmbeddingFactory creates an embedding factory.
func NewEmbeddingFactory() *EmbeddingFactory {
	return &EmbeddingFactory{}
}

// Create returns a service for the settings, or (nil, nil) when no
// provider is configured.
func (f *EmbeddingFactory) Create(settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	return CreateEmbeddingService(settings)
}

// CreateEmbeddingService creates the embedding service for the configured provider.
func CreateEmbeddingService(settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	dimensions := domain.EmbeddingDimensions()[settings.Model]

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensions,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}
