package services

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/custodia-labs/graphloom/internal/core/domain"
	"github.com/custodia-labs/graphloom/internal/core/ports/driven"
	"github.com/custodia-labs/graphloom/internal/core/ports/driving"
)

// Ensure SettingsService implements both interfaces.
var (
	_ driving.SettingsService  = (*SettingsService)(nil)
	_ driven.SettingsProvider = (*SettingsService)(nil)
)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	KeyGraphURL        = "graph.base_url"
	KeyGraphUsername   = "graph.username"
	KeyGraphPassword   = "graph.password"
	KeyGraphDatabase   = "graph.database"
	KeyVectorURL       = "vector.base_url"
	KeyVectorAPIKey    = "vector.api_key"
	KeyVectorCollect   = "vector.collection"
	KeyVectorName      = "vector.vector_name"
	KeyVectorDimension = "vector.dimension"
	KeyVectorInsecure  = "vector.insecure"
	KeyEmbedProvider   = "embedding.provider"
	KeyEmbedModel      = "embedding.model"
	KeyEmbedBaseURL    = "embedding.base_url"
	KeyEmbedAPIKey     = "embedding.api_key"
	KeyAuditURL        = "audit.base_url"
	KeyConnectionMode  = "connection.mode"
	KeyGatewayURL      = "connection.gateway_url"
	KeyWideningFloor   = "search.widening_floor"
)

// DefaultConnectionMode is used when connection.mode is unset or invalid.
const DefaultConnectionMode = domain.ConnectionModePerService

type valueKind int

const (
	kindText valueKind = iota
	kindURL
	kindInt
	kindBool
	kindMode
	kindProvider
)

type settingKey struct {
	key    string
	kind   valueKind
	secret bool
}

// settingKeys is the settable key list in display order.
var settingKeys = []settingKey{
	{key: KeyConnectionMode, kind: kindMode},
	{key: KeyGatewayURL, kind: kindURL},
	{key: KeyGraphURL, kind: kindURL},
	{key: KeyGraphUsername, kind: kindText},
	{key: KeyGraphPassword, kind: kindText, secret: true},
	{key: KeyGraphDatabase, kind: kindText},
	{key: KeyVectorURL, kind: kindURL},
	{key: KeyVectorAPIKey, kind: kindText, secret: true},
	{key: KeyVectorCollect, kind: kindText},
	{key: KeyVectorName, kind: kindText},
	{key: KeyVectorDimension, kind: kindInt},
	{key: KeyVectorInsecure, kind: kindBool},
	{key: KeyEmbedProvider, kind: kindProvider},
	{key: KeyEmbedModel, kind: kindText},
	{key: KeyEmbedBaseURL, kind: kindURL},
	{key: KeyEmbedAPIKey, kind: kindText, secret: true},
	{key: KeyAuditURL, kind: kindURL},
	{key: KeyWideningFloor, kind: kindInt},
}

// SettingsService manages connection settings and serves per-operation snapshots.
type SettingsService struct {
	configStore driven.ConfigStore
	embeddings  driven.EmbeddingFactory
	getenv      func(string) string

	mu        sync.RWMutex
	overrides map[string]any
}

// NewSettingsService creates a new settings service.
// embeddings may be nil, in which case embedding validation is skipped.
func NewSettingsService(configStore driven.ConfigStore, embeddings driven.EmbeddingFactory) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		embeddings:  embeddings,
		getenv:      os.Getenv,
		overrides:   make(map[string]any),
	}
}

// Snapshot reads the current settings and environment defaults.
func (s *SettingsService) Snapshot(_ context.Context) (domain.SettingsSnapshot, error) {
	mode := domain.ConnectionMode(s.getString(KeyConnectionMode))
	if !mode.IsValid() {
		mode = DefaultConnectionMode
	}

	env := make(map[string]string, len(EnvKeys()))
	for _, key := range EnvKeys() {
		if v := s.getenv(key); v != "" {
			env[key] = v
		}
	}

	embedding := domain.EmbeddingSettings{
		Provider: domain.AIProvider(s.getString(KeyEmbedProvider)),
		Model:    s.getString(KeyEmbedModel),
		BaseURL:  s.getString(KeyEmbedBaseURL),
		APIKey:   s.getString(KeyEmbedAPIKey),
	}

	return domain.SettingsSnapshot{
		Mode:           mode,
		GatewayBaseURL: s.getString(KeyGatewayURL),
		Services: map[domain.Backend]domain.EndpointConfig{
			domain.BackendGraph: {
				BaseURL:  s.getString(KeyGraphURL),
				Username: s.getString(KeyGraphUsername),
				Password: s.getString(KeyGraphPassword),
				Database: s.getString(KeyGraphDatabase),
			},
			domain.BackendVector: {
				BaseURL:        s.getString(KeyVectorURL),
				APIKey:         s.getString(KeyVectorAPIKey),
				Collection:     s.getString(KeyVectorCollect),
				VectorName:     s.getString(KeyVectorName),
				Dimension:      s.getInt(KeyVectorDimension),
				Insecure:       s.getBool(KeyVectorInsecure),
				EmbeddingModel: embedding.Model,
			},
			domain.BackendAudit: {
				BaseURL: s.getString(KeyAuditURL),
			},
		},
		Embedding:     embedding,
		WideningFloor: s.getInt(KeyWideningFloor),
		Env:           env,
	}, nil
}

// Resolved returns the sanitized endpoint for every backend.
func (s *SettingsService) Resolved(ctx context.Context) (map[domain.Backend]domain.EndpointConfig, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ResolveAll(snap), nil
}

// Set validates value against the key's kind and persists it.
// An empty value clears a text or URL setting.
func (s *SettingsService) Set(key, value string) error {
	sk, ok := lookupKey(key)
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	typed, err := parseSetting(sk, strings.TrimSpace(value))
	if err != nil {
		return err
	}
	if err := s.configStore.Set(key, typed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}

	// Choosing a provider without a model picks the provider's default model.
	if key == KeyEmbedProvider && s.configStore.GetString(KeyEmbedModel) == "" {
		if model, ok := domain.DefaultEmbeddingModels()[domain.AIProvider(typed.(string))]; ok {
			if err := s.configStore.Set(KeyEmbedModel, model); err != nil {
				return fmt.Errorf("save %s: %w", KeyEmbedModel, err)
			}
		}
	}
	return nil
}

// Override sets a value for the life of the process without persisting it.
// Overrides win over stored values in every later snapshot.
func (s *SettingsService) Override(key, value string) error {
	sk, ok := lookupKey(key)
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	typed, err := parseSetting(sk, strings.TrimSpace(value))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.overrides[key] = typed
	s.mu.Unlock()
	return nil
}

func (s *SettingsService) override(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.overrides[key]
	return v, ok
}

func (s *SettingsService) getString(key string) string {
	if v, ok := s.override(key); ok {
		str, _ := v.(string)
		return str
	}
	return s.configStore.GetString(key)
}

func (s *SettingsService) getInt(key string) int {
	if v, ok := s.override(key); ok {
		n, _ := v.(int)
		return n
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getBool(key string) bool {
	if v, ok := s.override(key); ok {
		b, _ := v.(bool)
		return b
	}
	return s.configStore.GetBool(key)
}

// Keys lists the settable keys in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settingKeys))
	for i, sk := range settingKeys {
		keys[i] = sk.key
	}
	return keys
}

// IsSecret reports whether a key holds a credential.
func (s *SettingsService) IsSecret(key string) bool {
	sk, ok := lookupKey(key)
	return ok && sk.secret
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig(ctx context.Context) error {
	if s.embeddings == nil {
		return nil
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	if !snap.Embedding.IsConfigured() {
		return fmt.Errorf("%w: provider %q is not configured", domain.ErrEmbeddingUnavailable, snap.Embedding.Provider)
	}

	svc, err := s.embeddings.Create(snap.Embedding)
	if err != nil {
		return fmt.Errorf("create embedding service: %w", err)
	}
	if svc == nil {
		return domain.ErrEmbeddingUnavailable
	}
	defer func() { _ = svc.Close() }()

	if err := svc.Ping(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", snap.Embedding.Provider, err)
	}
	return nil
}

func lookupKey(key string) (settingKey, bool) {
	for _, sk := range settingKeys {
		if sk.key == key {
			return sk, true
		}
	}
	return settingKey{}, false
}

func parseSetting(sk settingKey, value string) (any, error) {
	switch sk.kind {
	case kindURL:
		value = SanitizeURL(value)
		if value == "" {
			return value, nil
		}
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: %s must be an absolute URL, got %q", domain.ErrInvalidInput, sk.key, value)
		}
		return value, nil

	case kindInt:
		if value == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %s must be a non-negative integer, got %q", domain.ErrInvalidInput, sk.key, value)
		}
		return n, nil

	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be true or false, got %q", domain.ErrInvalidInput, sk.key, value)
		}
		return b, nil

	case kindMode:
		mode := domain.ConnectionMode(value)
		if !mode.IsValid() {
			return nil, fmt.Errorf("%w: %s must be %q or %q, got %q", domain.ErrInvalidInput, sk.key,
				domain.ConnectionModeUnified, domain.ConnectionModePerService, value)
		}
		return value, nil

	case kindProvider:
		if value == "" {
			return value, nil
		}
		provider := domain.AIProvider(value)
		for _, p := range domain.AllEmbeddingProviders() {
			if p == provider {
				return value, nil
			}
		}
		return nil, fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrInvalidInput, value)

	default:
		return value, nil
	}
}
