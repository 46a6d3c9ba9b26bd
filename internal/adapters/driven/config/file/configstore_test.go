package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	store, err := NewConfigStore(dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), store.Path())
	assert.DirExists(t, dir)
	_, ok := store.Get("graph.base_url")
	assert.False(t, ok)
}

func TestNewConfigStore_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("graph = [unterminated"), 0o600))

	_, err := NewConfigStore(dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode config")
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("graph.base_url", "bolt://db:7687"))
	require.NoError(t, store.Set("vector.dimension", 1024))
	require.NoError(t, store.Set("vector.insecure", true))

	tests := []struct {
		name string
		got  any
		want any
	}{
		{name: "string", got: store.GetString("graph.base_url"), want: "bolt://db:7687"},
		{name: "int", got: store.GetInt("vector.dimension"), want: 1024},
		{name: "bool", got: store.GetBool("vector.insecure"), want: true},
		{name: "missing string", got: store.GetString("audit.base_url"), want: ""},
		{name: "mistyped int", got: store.GetInt("graph.base_url"), want: 0},
		{name: "mistyped bool", got: store.GetBool("vector.dimension"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestConfigStore_PersistsAsTables(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("graph.base_url", "bolt://db:7687"))
	require.NoError(t, store.Set("graph.database", "kg"))
	require.NoError(t, store.Set("search.widening_floor", 12))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[graph]")
	assert.Contains(t, string(raw), "[search]")

	reopened, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "bolt://db:7687", reopened.GetString("graph.base_url"))
	assert.Equal(t, "kg", reopened.GetString("graph.database"))
	assert.Equal(t, 12, reopened.GetInt("search.widening_floor"))
}

func TestConfigStore_LoadPicksUpExternalEdits(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("connection.mode", "per-service"))

	edited := "[connection]\nmode = \"unified\"\ngateway_url = \"http://gw:8080\"\n"
	require.NoError(t, os.WriteFile(store.Path(), []byte(edited), 0o600))
	require.NoError(t, store.Load())

	assert.Equal(t, "unified", store.GetString("connection.mode"))
	assert.Equal(t, "http://gw:8080", store.GetString("connection.gateway_url"))

	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, store.Load())
	assert.Empty(t, store.GetString("connection.mode"))
}

func TestNestFlatten(t *testing.T) {
	flat := map[string]any{
		"graph.base_url": "bolt://x",
		"graph.username": "neo4j",
		"top":            "v",
	}

	nested := nest(flat)

	assert.Equal(t, map[string]any{
		"graph": map[string]any{"base_url": "bolt://x", "username": "neo4j"},
		"top":   "v",
	}, nested)
	assert.Equal(t, flat, flatten(nested, ""))
}
