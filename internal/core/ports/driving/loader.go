package driving

import (
	"context"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

// LoaderService is the public query contract over the three backends.
//
// Every method returns either a populated result, an empty one, or nil
// ("no result") with a nil error when backends fail; failure detail goes
// to telemetry. Errors are reserved for invalid input and unreadable settings.
type LoaderService interface {
	// LoadBySource reads from one backend, or from graph, vector and audit
	// in turn for LoadSourceAuto, stopping at the first non-empty result.
	LoadBySource(ctx context.Context, source domain.LoadSource, opts domain.LoadOptions) (*domain.KnowledgeGraphResult, error)

	// LoadByEntityType loads graph nodes of the given types.
	LoadByEntityType(ctx context.Context, types []domain.EntityType, limit int) (*domain.KnowledgeGraphResult, error)

	// LoadBySearch loads graph nodes whose names contain query,
	// falling back to vector search when the graph has none.
	LoadBySearch(ctx context.Context, query string, limit int) (*domain.KnowledgeGraphResult, error)

	// LoadCenteredSubgraph loads nodes within depth hops of center.
	LoadCenteredSubgraph(ctx context.Context, center string, depth, maxNodes int) (*domain.KnowledgeGraphResult, error)

	// ShardedSearch runs coordinated vector + audit + graph topic search.
	ShardedSearch(ctx context.Context, topic string, opts domain.ShardedSearchOptions) (*domain.KnowledgeGraphResult, error)

	// Initialize prepares the graph client and loads an initial view,
	// preferring the given entity types.
	Initialize(ctx context.Context, preferredTypes []domain.EntityType, maxInitialNodes int) (*domain.KnowledgeGraphResult, error)
}

// DiscoveryService finds a reachable aggregation gateway.
type DiscoveryService interface {
	// Discover returns the first healthy candidate, or ok=false when none answer.
	Discover(ctx context.Context, snap domain.SettingsSnapshot) (baseURL string, ok bool)

	// Candidates lists the probe order for a snapshot.
	Candidates(snap domain.SettingsSnapshot) []string
}
