package neo4j

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

type captureTelemetry struct {
	events []domain.Event
}

func (c *captureTelemetry) Emit(e domain.Event) { c.events = append(c.events, e) }

// fakeDriver hands out one scripted session.
type fakeDriver struct {
	neo4j.DriverWithContext
	session *fakeSession
}

func (d *fakeDriver) VerifyConnectivity(context.Context) error { return nil }

func (d *fakeDriver) NewSession(context.Context, neo4j.SessionConfig) neo4j.SessionWithContext {
	return d.session
}

func (d *fakeDriver) Close(context.Context) error { return nil }

type fakeRun struct {
	records []*neo4j.Record
	err     error
}

// fakeSession answers Run calls in order and counts Close calls.
type fakeSession struct {
	neo4j.SessionWithContext
	runs   []fakeRun
	cypher []string
	params []map[string]any
	closed int
}

func (s *fakeSession) Run(
	_ context.Context, cypher string, params map[string]any, _ ...func(*neo4j.TransactionConfig),
) (neo4j.ResultWithContext, error) {
	i := len(s.cypher)
	s.cypher = append(s.cypher, cypher)
	s.params = append(s.params, params)
	if i >= len(s.runs) {
		return &fakeResult{}, nil
	}
	if s.runs[i].err != nil {
		return nil, s.runs[i].err
	}
	return &fakeResult{records: s.runs[i].records}, nil
}

func (s *fakeSession) Close(context.Context) error {
	s.closed++
	return nil
}

type fakeResult struct {
	neo4j.ResultWithContext
	records []*neo4j.Record
	next    int
}

func (r *fakeResult) Next(context.Context) bool {
	if r.next >= len(r.records) {
		return false
	}
	r.next++
	return true
}

func (r *fakeResult) Record() *neo4j.Record { return r.records[r.next-1] }

func (r *fakeResult) Err() error { return nil }

func nodeRecords(names ...string) []*neo4j.Record {
	out := make([]*neo4j.Record, len(names))
	for i, name := range names {
		out[i] = &neo4j.Record{
			Keys: []string{"n"},
			Values: []any{neo4j.Node{
				ElementId: "4:db:" + name,
				Labels:    []string{"Entity"},
				Props:     map[string]any{"name": name},
			}},
		}
	}
	return out
}

func newFakeStore(session *fakeSession) *Store {
	p := NewDriverProvider()
	p.factory = func(string, string, string, ...func(*config.Config)) (neo4j.DriverWithContext, error) {
		return &fakeDriver{session: session}, nil
	}
	store := NewStore(p, nil)
	store.ping = func(context.Context, string) {}
	return store
}

var testEndpoint = domain.EndpointConfig{BaseURL: "bolt://graph.lab:7687", Username: "neo4j", Database: "neo4j"}

func TestStore_Query(t *testing.T) {
	edge := &neo4j.Record{
		Keys:   []string{"source", "target", "type", "props"},
		Values: []any{"Ada", "Babbage", "WORKED_WITH", map[string]any{}},
	}

	t.Run("reads nodes then edges and closes the session", func(t *testing.T) {
		session := &fakeSession{runs: []fakeRun{
			{records: nodeRecords("Ada", "Babbage")},
			{records: []*neo4j.Record{edge}},
		}}

		raw, err := newFakeStore(session).Query(context.Background(), testEndpoint, domain.GraphQuery{})

		require.NoError(t, err)
		require.NotNil(t, raw)
		payload := raw.Data.(*domain.GraphPayload)
		assert.Len(t, payload.Nodes, 2)
		require.Len(t, payload.Edges, 1)
		assert.Equal(t, "WORKED_WITH", payload.Edges[0].Type)
		assert.Equal(t, 1, session.closed)
		require.Len(t, session.params, 2)
		assert.Equal(t, []string{"4:db:Ada", "4:db:Babbage"}, session.params[1]["ids"])
	})

	t.Run("relationship failure discards nodes", func(t *testing.T) {
		session := &fakeSession{runs: []fakeRun{
			{records: nodeRecords("Ada")},
			{err: errors.New("connection reset")},
		}}

		raw, err := newFakeStore(session).Query(context.Background(), testEndpoint, domain.GraphQuery{})

		assert.Nil(t, raw)
		var be *domain.BackendError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "relationships", be.Op)
		assert.Equal(t, 1, session.closed)
	})

	t.Run("node failure closes the session", func(t *testing.T) {
		session := &fakeSession{runs: []fakeRun{{err: errors.New("syntax error")}}}

		raw, err := newFakeStore(session).Query(context.Background(), testEndpoint, domain.GraphQuery{})

		assert.Nil(t, raw)
		var be *domain.BackendError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "query", be.Op)
		assert.Len(t, session.cypher, 1)
		assert.Equal(t, 1, session.closed)
	})

	t.Run("no nodes skips the relationship read", func(t *testing.T) {
		session := &fakeSession{}

		raw, err := newFakeStore(session).Query(context.Background(), testEndpoint, domain.GraphQuery{})

		require.NoError(t, err)
		assert.Empty(t, raw.Data.(*domain.GraphPayload).Nodes)
		assert.Len(t, session.cypher, 1)
		assert.Equal(t, 1, session.closed)
	})
}

func TestStore_QueryRelationshipLimit(t *testing.T) {
	tests := []struct {
		nodes int
		want  int
	}{
		{nodes: 3, want: 100},
		{nodes: 25, want: 100},
		{nodes: 40, want: 160},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d nodes", tt.nodes), func(t *testing.T) {
			names := make([]string, tt.nodes)
			for i := range names {
				names[i] = fmt.Sprintf("n%d", i)
			}
			session := &fakeSession{runs: []fakeRun{{records: nodeRecords(names...)}}}

			_, err := newFakeStore(session).Query(context.Background(), testEndpoint, domain.GraphQuery{Limit: 200})

			require.NoError(t, err)
			require.Len(t, session.params, 2)
			assert.Equal(t, tt.want, session.params[1]["limit"])
			assert.Contains(t, session.cypher[1], "LIMIT $limit")
		})
	}
}

func TestNodeFromRecord(t *testing.T) {
	rec := &neo4j.Record{
		Keys: []string{"n"},
		Values: []any{neo4j.Node{
			ElementId: "4:abc:1",
			Labels:    []string{"Entity", "Person"},
			Props:     map[string]any{"name": "Ada", "identifier": "p-1"},
		}},
	}

	node, ok := nodeFromRecord(rec)

	require.True(t, ok)
	assert.Equal(t, "4:abc:1", node.ElementID)
	assert.Equal(t, []string{"Entity", "Person"}, node.Labels)
	assert.Equal(t, "Ada", node.Properties["name"])

	_, ok = nodeFromRecord(&neo4j.Record{Keys: []string{"n"}, Values: []any{"not a node"}})
	assert.False(t, ok)
	_, ok = nodeFromRecord(nil)
	assert.False(t, ok)
}

func TestEdgeFromRecord(t *testing.T) {
	rec := &neo4j.Record{
		Keys:   []string{"source", "target", "type", "props"},
		Values: []any{"Ada", "Babbage", "WORKED_WITH", map[string]any{"identifier": "r-1"}},
	}

	edge, ok := edgeFromRecord(rec)

	require.True(t, ok)
	assert.Equal(t, domain.GraphEdge{
		Source:     "Ada",
		Target:     "Babbage",
		Type:       "WORKED_WITH",
		Properties: map[string]any{"identifier": "r-1"},
	}, edge)

	_, ok = edgeFromRecord(&neo4j.Record{Keys: []string{"source", "target"}, Values: []any{"Ada", nil}})
	assert.False(t, ok)
}

func TestDriverProvider_Lifecycle(t *testing.T) {
	p := NewDriverProvider()
	assert.False(t, p.IsReady())

	require.NoError(t, p.Initialize())
	require.NoError(t, p.Initialize())
	assert.True(t, p.IsReady())
	assert.Len(t, p.configurers, 1)
	assert.NoError(t, p.Close(context.Background()))
}

func TestDriverProvider_FactoryError(t *testing.T) {
	p := NewDriverProvider()
	p.factory = func(string, string, string, ...func(*config.Config)) (neo4j.DriverWithContext, error) {
		return nil, errors.New("bad scheme")
	}

	_, err := p.Driver(domain.EndpointConfig{BaseURL: "ftp://graph"})

	assert.EqualError(t, err, "bad scheme")
	assert.True(t, p.IsReady())
}

func TestStore_ConnectFailure(t *testing.T) {
	p := NewDriverProvider()
	p.factory = func(string, string, string, ...func(*config.Config)) (neo4j.DriverWithContext, error) {
		return nil, errors.New("unsupported URL scheme")
	}
	tel := &captureTelemetry{}
	store := NewStore(p, tel)
	var pinged []string
	store.ping = func(_ context.Context, host string) { pinged = append(pinged, host) }

	raw, err := store.Query(context.Background(), domain.EndpointConfig{BaseURL: "bolt://graph.lab:7687"}, domain.GraphQuery{})

	assert.Nil(t, raw)
	assert.ErrorIs(t, err, domain.ErrConnection)
	assert.Equal(t, []string{"graph.lab"}, pinged)
	require.NotEmpty(t, tel.events)
	assert.Equal(t, domain.LevelWarn, tel.events[len(tel.events)-1].Level)
}

func TestStore_VerifyFailure(t *testing.T) {
	store := NewStore(nil, nil)
	store.ping = func(context.Context, string) {}
	defer store.Close(context.Background())

	raw, err := store.Query(context.Background(), domain.EndpointConfig{
		BaseURL:  "bolt://127.0.0.1:1",
		Username: "neo4j",
	}, domain.GraphQuery{})

	assert.Nil(t, raw)
	require.Error(t, err)
	var be *domain.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "verify", be.Op)
	assert.True(t, store.IsReady())
}

func TestClassify_CarriesServerCode(t *testing.T) {
	err := classify("query", &neo4j.Neo4jError{Code: "Neo.ClientError.Security.Unauthorized", Msg: "bad credentials"})

	assert.ErrorIs(t, err, domain.ErrConnection)
	assert.Equal(t, "Neo.ClientError.Security.Unauthorized", err.Code)
}
