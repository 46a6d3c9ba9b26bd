// Package qdrant implements driven.VectorStore: gRPC similarity search
// first, REST scroll with client-side text filtering as the fallback.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

const (
	defaultRESTPort = 6333
	userAgent       = "graphloom"
)

// pointsClient is the subset of the Qdrant gRPC client the store uses.
type pointsClient interface {
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// clientFactory opens a gRPC client; swapped in tests.
type clientFactory func(cfg *qdrant.Config) (pointsClient, error)

func newGRPCClient(cfg *qdrant.Config) (pointsClient, error) {
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// grpcConfig derives the gRPC client config from the REST base URL.
// The gRPC port is the REST port plus one.
func grpcConfig(baseURL, apiKey string, insecure bool) (*qdrant.Config, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse vector url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("parse vector url: no host in %q", baseURL)
	}

	restPort := defaultRESTPort
	if p := u.Port(); p != "" {
		restPort, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parse vector port: %w", err)
		}
	}

	return &qdrant.Config{
		Host:        u.Hostname(),
		Port:        restPort + 1,
		APIKey:      apiKey,
		UseTLS:      !insecure,
		GrpcOptions: []grpc.DialOption{grpc.WithUserAgent(userAgent)},
	}, nil
}

// vectorSize returns the configured size of the named vector, or of the
// default vector when the collection has a single unnamed one. resolved
// is the vector name to query with ("" for the default vector).
func vectorSize(info *qdrant.CollectionInfo, name string) (size uint64, resolved string, found bool) {
	vc := info.GetConfig().GetParams().GetVectorsConfig()
	if params := vc.GetParams(); params != nil {
		return params.GetSize(), "", name == ""
	}

	named := vc.GetParamsMap().GetMap()
	if name != "" {
		if params, ok := named[name]; ok {
			return params.GetSize(), name, true
		}
		return 0, name, false
	}
	if len(named) == 1 {
		for n, params := range named {
			return params.GetSize(), n, true
		}
	}
	names := make([]string, 0, len(named))
	for n := range named {
		names = append(names, n)
	}
	sort.Strings(names)
	if len(names) > 0 {
		return named[names[0]].GetSize(), names[0], false
	}
	return 0, "", false
}

// pointID renders a UUID or numeric point id as a string.
func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// payloadMap converts a gRPC payload into plain Go values.
func payloadMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_StructValue:
		return payloadMap(kind.StructValue.GetFields())
	case *qdrant.Value_ListValue:
		values := kind.ListValue.GetValues()
		list := make([]any, len(values))
		for i, item := range values {
			list[i] = valueToAny(item)
		}
		return list
	default:
		return nil
	}
}
