package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

func TestResolveEndpoint_Defaults(t *testing.T) {
	snap := domain.SettingsSnapshot{Mode: domain.ConnectionModePerService}

	graph := ResolveEndpoint(domain.BackendGraph, snap)
	assert.Equal(t, DefaultGraphURL, graph.BaseURL)
	assert.Equal(t, DefaultGraphUser, graph.Username)
	assert.Equal(t, DefaultGraphDatabase, graph.Database)

	vector := ResolveEndpoint(domain.BackendVector, snap)
	assert.Equal(t, DefaultVectorURL, vector.BaseURL)
	assert.Equal(t, DefaultCollection, vector.Collection)
	assert.Equal(t, DefaultVectorName, vector.VectorName)
	assert.Equal(t, DefaultEmbeddingModel, vector.EmbeddingModel)
	assert.Equal(t, 768, vector.Dimension)
	assert.False(t, vector.Insecure)

	audit := ResolveEndpoint(domain.BackendAudit, snap)
	assert.Equal(t, DefaultAuditURL, audit.BaseURL)
}

func TestResolveEndpoint_Sanitizes(t *testing.T) {
	snap := domain.SettingsSnapshot{
		Mode: domain.ConnectionModePerService,
		Services: map[domain.Backend]domain.EndpointConfig{
			domain.BackendVector: {
				BaseURL:    "  http://qdrant.internal:6333///  ",
				APIKey:     "  secret ",
				Collection: "   ",
			},
			domain.BackendGraph: {
				BaseURL:  "bolt://neo4j:7687/",
				Username: "   ",
			},
		},
	}

	vector := ResolveEndpoint(domain.BackendVector, snap)
	assert.Equal(t, "http://qdrant.internal:6333", vector.BaseURL)
	assert.Equal(t, "secret", vector.APIKey)
	assert.Equal(t, DefaultCollection, vector.Collection, "blank value is treated as unset")

	graph := ResolveEndpoint(domain.BackendGraph, snap)
	assert.Equal(t, "bolt://neo4j:7687", graph.BaseURL)
	assert.Equal(t, DefaultGraphUser, graph.Username)
}

func TestResolveEndpoint_ConfiguredVectorName(t *testing.T) {
	snap := domain.SettingsSnapshot{
		Mode: domain.ConnectionModePerService,
		Services: map[domain.Backend]domain.EndpointConfig{
			domain.BackendVector: {VectorName: " dense "},
		},
	}

	assert.Equal(t, "dense", ResolveEndpoint(domain.BackendVector, snap).VectorName)
}

func TestResolveEndpoint_EnvironmentBetweenConfigAndDefault(t *testing.T) {
	env := map[string]string{
		EnvGraphURL:     "bolt://env-graph:7687/",
		EnvVectorAPIKey: "env-key",
		EnvAuditURL:     " http://env-audit/api/audit ",
	}

	t.Run("env used when unset", func(t *testing.T) {
		snap := domain.SettingsSnapshot{Env: env}
		assert.Equal(t, "bolt://env-graph:7687", ResolveEndpoint(domain.BackendGraph, snap).BaseURL)
		assert.Equal(t, "env-key", ResolveEndpoint(domain.BackendVector, snap).APIKey)
		assert.Equal(t, "http://env-audit/api/audit", ResolveEndpoint(domain.BackendAudit, snap).BaseURL)
	})

	t.Run("configured wins over env", func(t *testing.T) {
		snap := domain.SettingsSnapshot{
			Env: env,
			Services: map[domain.Backend]domain.EndpointConfig{
				domain.BackendGraph: {BaseURL: "bolt://configured:7687"},
			},
		}
		assert.Equal(t, "bolt://configured:7687", ResolveEndpoint(domain.BackendGraph, snap).BaseURL)
	})
}

func TestResolveEndpoint_DimensionFromEmbeddingModel(t *testing.T) {
	snap := domain.SettingsSnapshot{
		Embedding: domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "mxbai-embed-large"},
	}
	assert.Equal(t, 1024, ResolveEndpoint(domain.BackendVector, snap).Dimension)

	explicit := domain.SettingsSnapshot{
		Services: map[domain.Backend]domain.EndpointConfig{
			domain.BackendVector: {EmbeddingModel: "all-minilm", Dimension: 512},
		},
	}
	assert.Equal(t, 512, ResolveEndpoint(domain.BackendVector, explicit).Dimension)

	unknown := domain.SettingsSnapshot{
		Services: map[domain.Backend]domain.EndpointConfig{
			domain.BackendVector: {EmbeddingModel: "custom-model"},
		},
	}
	assert.Equal(t, DefaultDimension, ResolveEndpoint(domain.BackendVector, unknown).Dimension)
}

func TestResolveEndpoint_UnifiedMode(t *testing.T) {
	snap := domain.SettingsSnapshot{
		Mode:           domain.ConnectionModeUnified,
		GatewayBaseURL: "http://gateway.lab:8080/",
		Services: map[domain.Backend]domain.EndpointConfig{
			domain.BackendAudit: {BaseURL: "http://direct-audit/api/audit"},
		},
	}

	assert.Equal(t, "http://gateway.lab:8080/api/audit", ResolveEndpoint(domain.BackendAudit, snap).BaseURL)
	assert.Equal(t, "bolt://gateway.lab:7687", ResolveEndpoint(domain.BackendGraph, snap).BaseURL)
	assert.Equal(t, "http://gateway.lab:6333", ResolveEndpoint(domain.BackendVector, snap).BaseURL)
}

func TestResolveEndpoint_UnifiedModeWithoutGateway(t *testing.T) {
	snap := domain.SettingsSnapshot{
		Mode: domain.ConnectionModeUnified,
		Services: map[domain.Backend]domain.EndpointConfig{
			domain.BackendAudit: {BaseURL: "http://direct-audit/api/audit"},
		},
	}

	assert.Equal(t, "http://direct-audit/api/audit", ResolveEndpoint(domain.BackendAudit, snap).BaseURL)
}

func TestResolveEndpoint_PerServiceIgnoresGateway(t *testing.T) {
	snap := domain.SettingsSnapshot{
		Mode:           domain.ConnectionModePerService,
		GatewayBaseURL: "http://gateway.lab:8080",
	}

	assert.Equal(t, DefaultAuditURL, ResolveEndpoint(domain.BackendAudit, snap).BaseURL)
}

func TestResolveAll(t *testing.T) {
	all := ResolveAll(domain.SettingsSnapshot{})
	assert.Len(t, all, 3)
	assert.Equal(t, DefaultGraphURL, all[domain.BackendGraph].BaseURL)
}

func TestSanitizeURL(t *testing.T) {
	assert.Equal(t, "", SanitizeURL("   "))
	assert.Equal(t, "http://a", SanitizeURL(" http://a// "))
	assert.Equal(t, "http://a/b", SanitizeURL("http://a/b"))
}
