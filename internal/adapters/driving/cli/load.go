package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

var (
	loadSource string
	loadLimit  int
	loadQuery  string
	loadTypes  []string
	loadView   string
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a graph view from one backend",
	Long: `Load entities and relationships from a single backend.

Sources:
  auto    - graph, then vector, then audit; first non-empty result wins
  graph   - graph database nodes and the relationships between them
  vector  - vector store points (gRPC search, REST scroll fallback)
  audit   - recent audit log rows (last 30 days)`,
	Args: cobra.NoArgs,
	RunE: runLoad,
}

var typesLimit int

var typesCmd = &cobra.Command{
	Use:   "types TYPE [TYPE...]",
	Short: "Load graph entities of the given types",
	Long: `Load graph entities of one or more types.

Types: CONCEPT, PERSON, ORGANIZATION, LOCATION, EVENT, OTHER (case-insensitive).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTypes,
}

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search graph entities by name",
	Long: `Search graph entities whose names contain QUERY.
Falls back to the vector store when the graph has no match.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var (
	subgraphDepth    int
	subgraphMaxNodes int
)

var subgraphCmd = &cobra.Command{
	Use:   "subgraph CENTER",
	Short: "Load the neighbourhood of one entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubgraph,
}

var (
	shardNoVector    bool
	shardNoAudit     bool
	shardVectorLimit int
	shardAuditLimit  int
	shardMaxNodes    int
	shardFloor       int
	shardView        string
)

var shardCmd = &cobra.Command{
	Use:   "shard TOPIC",
	Short: "Run a coordinated topic search across all backends",
	Long: `Search TOPIC across the vector store and audit log concurrently, then
reconcile their correlation identifiers against the graph database.

Each entity is tagged with the stage that surfaced it:
  uuid_coordinated  - graph node matched a vector or audit identifier
  connected         - graph neighbour of a matched node
  text_search       - graph name match found while widening a sparse result
  vector_semantic   - vector store only
  audit_activity    - audit log only`,
	Args: cobra.ExactArgs(1),
	RunE: runShard,
}

var (
	initTypes    []string
	initMaxNodes int
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the graph client and load a starting view",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	loadCmd.Flags().StringVarP(&loadSource, "source", "s", string(domain.LoadSourceAuto), "auto, graph, vector or audit")
	loadCmd.Flags().IntVarP(&loadLimit, "limit", "n", domain.DefaultGraphLimit, "maximum number of entities")
	loadCmd.Flags().StringVarP(&loadQuery, "query", "q", "", "text filter")
	loadCmd.Flags().StringSliceVarP(&loadTypes, "types", "t", nil, "entity types (graph source)")
	loadCmd.Flags().StringVar(&loadView, "view", "", "view type recorded in metadata")

	typesCmd.Flags().IntVarP(&typesLimit, "limit", "n", domain.DefaultGraphLimit, "maximum number of entities")

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", domain.DefaultGraphLimit, "maximum number of entities")

	subgraphCmd.Flags().IntVarP(&subgraphDepth, "depth", "d", domain.DefaultSubgraphDepth, "maximum hops from the center")
	subgraphCmd.Flags().IntVarP(&subgraphMaxNodes, "max-nodes", "n", domain.DefaultGraphLimit, "maximum number of entities")

	defaults := domain.DefaultShardedSearchOptions()
	shardCmd.Flags().BoolVar(&shardNoVector, "no-vector", false, "skip the vector shard")
	shardCmd.Flags().BoolVar(&shardNoAudit, "no-audit", false, "skip the audit shard")
	shardCmd.Flags().IntVar(&shardVectorLimit, "vector-limit", defaults.VectorLimit, "vector shard result cap")
	shardCmd.Flags().IntVar(&shardAuditLimit, "audit-limit", defaults.AuditLimit, "audit shard result cap")
	shardCmd.Flags().IntVarP(&shardMaxNodes, "max-nodes", "n", defaults.MaxNodes, "graph result cap")
	shardCmd.Flags().IntVar(&shardFloor, "widening-floor", 0, "widen the graph search below this many entities (0 = setting)")
	shardCmd.Flags().StringVar(&shardView, "view", defaults.ViewType, "view type recorded in metadata")

	initCmd.Flags().StringSliceVarP(&initTypes, "types", "t", nil, "preferred entity types")
	initCmd.Flags().IntVarP(&initMaxNodes, "max-nodes", "n", domain.DefaultGraphLimit, "maximum number of entities")

	rootCmd.AddCommand(loadCmd, typesCmd, searchCmd, subgraphCmd, shardCmd, initCmd)
}

func runLoad(cmd *cobra.Command, _ []string) error {
	if err := requireLoader(); err != nil {
		return err
	}

	source := domain.LoadSource(strings.ToLower(loadSource))
	res, err := loaderService.LoadBySource(cmd.Context(), source, domain.LoadOptions{
		Limit:       loadLimit,
		Query:       loadQuery,
		EntityTypes: parseEntityTypes(loadTypes),
		ViewType:    loadView,
	})
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	return printResult(cmd, res)
}

func runTypes(cmd *cobra.Command, args []string) error {
	if err := requireLoader(); err != nil {
		return err
	}

	res, err := loaderService.LoadByEntityType(cmd.Context(), parseEntityTypes(args), typesLimit)
	if err != nil {
		return fmt.Errorf("load by type failed: %w", err)
	}
	return printResult(cmd, res)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := requireLoader(); err != nil {
		return err
	}

	res, err := loaderService.LoadBySearch(cmd.Context(), args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return printResult(cmd, res)
}

func runSubgraph(cmd *cobra.Command, args []string) error {
	if err := requireLoader(); err != nil {
		return err
	}

	res, err := loaderService.LoadCenteredSubgraph(cmd.Context(), args[0], subgraphDepth, subgraphMaxNodes)
	if err != nil {
		return fmt.Errorf("subgraph failed: %w", err)
	}
	return printResult(cmd, res)
}

func runShard(cmd *cobra.Command, args []string) error {
	if err := requireLoader(); err != nil {
		return err
	}

	res, err := loaderService.ShardedSearch(cmd.Context(), args[0], domain.ShardedSearchOptions{
		UseVector:     !shardNoVector,
		UseAudit:      !shardNoAudit,
		VectorLimit:   shardVectorLimit,
		AuditLimit:    shardAuditLimit,
		MaxNodes:      shardMaxNodes,
		ViewType:      shardView,
		WideningFloor: shardFloor,
	})
	if err != nil {
		return fmt.Errorf("sharded search failed: %w", err)
	}
	return printResult(cmd, res)
}

func runInit(cmd *cobra.Command, _ []string) error {
	if err := requireLoader(); err != nil {
		return err
	}

	res, err := loaderService.Initialize(cmd.Context(), parseEntityTypes(initTypes), initMaxNodes)
	if err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}
	return printResult(cmd, res)
}

// parseEntityTypes upper-cases type names; the loader rejects unknown ones.
func parseEntityTypes(values []string) []domain.EntityType {
	if len(values) == 0 {
		return nil
	}
	types := make([]domain.EntityType, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			types = append(types, domain.EntityType(strings.ToUpper(v)))
		}
	}
	return types
}
