package cli

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

func TestLoadCmd(t *testing.T) {
	t.Run("passes flags to the loader", func(t *testing.T) {
		loader := &mockLoaderService{result: sampleResult()}

		out, err := execute(t, Services{Loader: loader},
			"load", "--source", "GRAPH", "-n", "5", "-q", "ali", "-t", "person,event", "--view", "explore")

		require.NoError(t, err)
		assert.Equal(t, []string{"LoadBySource"}, loader.calls)
		assert.Equal(t, domain.LoadSourceGraph, loader.source)
		assert.Equal(t, domain.LoadOptions{
			Limit:       5,
			Query:       "ali",
			EntityTypes: []domain.EntityType{domain.EntityTypePerson, domain.EntityTypeEvent},
			ViewType:    "explore",
		}, loader.opts)
		assert.Contains(t, out, "2 entities, 1 relationships")
		assert.Contains(t, out, "Alice")
		assert.Contains(t, out, "WORKS_AT")
		assert.Contains(t, out, "source=graph")
	})

	t.Run("defaults to auto", func(t *testing.T) {
		loader := &mockLoaderService{result: sampleResult()}

		_, err := execute(t, Services{Loader: loader}, "load")

		require.NoError(t, err)
		assert.Equal(t, domain.LoadSourceAuto, loader.source)
		assert.Equal(t, domain.DefaultGraphLimit, loader.opts.Limit)
	})

	t.Run("json output", func(t *testing.T) {
		loader := &mockLoaderService{result: sampleResult()}

		out, err := execute(t, Services{Loader: loader}, "load", "--json")

		require.NoError(t, err)
		var got domain.KnowledgeGraphResult
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Len(t, got.Entities, 2)
		assert.Equal(t, "WORKS_AT", got.Relationships[0].Label)
	})

	t.Run("no result", func(t *testing.T) {
		out, err := execute(t, Services{Loader: &mockLoaderService{}}, "load")

		require.NoError(t, err)
		assert.Contains(t, out, "No result")
	})

	t.Run("invalid input is an error", func(t *testing.T) {
		loader := &mockLoaderService{err: domain.ErrInvalidInput}

		_, err := execute(t, Services{Loader: loader}, "load", "--source", "nowhere")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Contains(t, err.Error(), "load failed")
	})

	t.Run("missing loader", func(t *testing.T) {
		_, err := execute(t, Services{}, "load")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "loader service not configured")
	})
}

func TestTypesCmd(t *testing.T) {
	loader := &mockLoaderService{result: sampleResult()}

	_, err := execute(t, Services{Loader: loader}, "types", "person", "Organization", "-n", "10")

	require.NoError(t, err)
	assert.Equal(t, []domain.EntityType{domain.EntityTypePerson, domain.EntityTypeOrganization}, loader.types)
	assert.Equal(t, 10, loader.limit)
}

func TestSearchCmd(t *testing.T) {
	t.Run("searches by name", func(t *testing.T) {
		loader := &mockLoaderService{result: sampleResult()}

		_, err := execute(t, Services{Loader: loader}, "search", "acme")

		require.NoError(t, err)
		assert.Equal(t, "acme", loader.query)
		assert.Equal(t, domain.DefaultGraphLimit, loader.limit)
	})

	t.Run("requires a query", func(t *testing.T) {
		_, err := execute(t, Services{Loader: &mockLoaderService{}}, "search")
		assert.Error(t, err)
	})
}

func TestSubgraphCmd(t *testing.T) {
	loader := &mockLoaderService{result: sampleResult()}

	_, err := execute(t, Services{Loader: loader}, "subgraph", "Alice", "--depth", "3", "--max-nodes", "40")

	require.NoError(t, err)
	assert.Equal(t, "Alice", loader.query)
	assert.Equal(t, 3, loader.depth)
	assert.Equal(t, 40, loader.limit)
}

func TestShardCmd(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		loader := &mockLoaderService{result: sampleResult()}

		_, err := execute(t, Services{Loader: loader}, "shard", "supply chain")

		require.NoError(t, err)
		assert.Equal(t, "supply chain", loader.query)
		assert.Equal(t, domain.DefaultShardedSearchOptions(), loader.shardOpts)
	})

	t.Run("flags", func(t *testing.T) {
		loader := &mockLoaderService{result: sampleResult()}

		_, err := execute(t, Services{Loader: loader}, "shard", "t",
			"--no-audit", "--vector-limit", "7", "--widening-floor", "12", "--view", "timeline")

		require.NoError(t, err)
		assert.True(t, loader.shardOpts.UseVector)
		assert.False(t, loader.shardOpts.UseAudit)
		assert.Equal(t, 7, loader.shardOpts.VectorLimit)
		assert.Equal(t, 12, loader.shardOpts.WideningFloor)
		assert.Equal(t, "timeline", loader.shardOpts.ViewType)
	})

	t.Run("loader error", func(t *testing.T) {
		loader := &mockLoaderService{err: errors.New("read settings: corrupt")}

		_, err := execute(t, Services{Loader: loader}, "shard", "t")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "sharded search failed")
	})
}

func TestInitCmd(t *testing.T) {
	loader := &mockLoaderService{result: sampleResult()}

	_, err := execute(t, Services{Loader: loader}, "init", "--types", "concept", "--max-nodes", "25")

	require.NoError(t, err)
	assert.Equal(t, []string{"Initialize"}, loader.calls)
	assert.Equal(t, []domain.EntityType{domain.EntityTypeConcept}, loader.types)
	assert.Equal(t, 25, loader.limit)
}

func TestParseEntityTypes(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []domain.EntityType
	}{
		{name: "nil", input: nil, expected: nil},
		{name: "upper-cases", input: []string{"person"}, expected: []domain.EntityType{domain.EntityTypePerson}},
		{name: "skips blanks", input: []string{" ", "event "}, expected: []domain.EntityType{domain.EntityTypeEvent}},
		{name: "keeps unknown for the loader to reject", input: []string{"planet"}, expected: []domain.EntityType{"PLANET"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseEntityTypes(tt.input))
		})
	}
}

func TestInsecureVectorFlag(t *testing.T) {
	settings := settingsFixture()
	loader := &mockLoaderService{result: sampleResult()}

	_, err := execute(t, Services{Loader: loader, Settings: settings}, "load", "--insecure-vector")

	require.NoError(t, err)
	assert.Equal(t, "true", settings.overrides["vector.insecure"])
	assert.Empty(t, settings.set)
}
