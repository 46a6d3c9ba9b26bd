package domain

// Backend names one of the three data stores.
type Backend string

// Known backends.
const (
	BackendGraph  Backend = "graph"
	BackendVector Backend = "vector"
	BackendAudit  Backend = "audit"

	// BackendGateway names the aggregation gateway in errors and telemetry.
	// It is not a data store and is not listed by Backends.
	BackendGateway Backend = "gateway"
)

// Backends lists every backend in auto-load order.
func Backends() []Backend {
	return []Backend{BackendGraph, BackendVector, BackendAudit}
}

// IsValid returns true if the backend is recognised.
func (b Backend) IsValid() bool {
	switch b {
	case BackendGraph, BackendVector, BackendAudit:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b Backend) String() string {
	return string(b)
}

// ConnectionMode selects how backends are addressed.
type ConnectionMode string

// Connection modes.
const (
	// ConnectionModeUnified routes backends through one aggregation gateway.
	ConnectionModeUnified ConnectionMode = "unified"

	// ConnectionModePerService addresses each backend at its own base URL.
	ConnectionModePerService ConnectionMode = "per-service"
)

// IsValid returns true if the connection mode is recognised.
func (m ConnectionMode) IsValid() bool {
	return m == ConnectionModeUnified || m == ConnectionModePerService
}

// String returns the string representation.
func (m ConnectionMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m ConnectionMode) Description() string {
	switch m {
	case ConnectionModeUnified:
		return "Unified (single aggregation gateway)"
	case ConnectionModePerService:
		return "Per-service (direct backend addresses)"
	default:
		return unknownDescription
	}
}

// EndpointConfig is the resolved connection configuration for one backend.
// Built fresh for every operation.
type EndpointConfig struct {
	BaseURL        string `json:"baseUrl"`
	Username       string `json:"username,omitempty"`
	Password       string `json:"password,omitempty"`
	APIKey         string `json:"apiKey,omitempty"`
	Model          string `json:"model,omitempty"`
	Database       string `json:"database,omitempty"`
	Collection     string `json:"collection,omitempty"`
	VectorName     string `json:"vectorName,omitempty"`
	EmbeddingModel string `json:"embeddingModel,omitempty"`
	Dimension      int    `json:"dimension,omitempty"`

	// Insecure disables transport encryption on the vector RPC path.
	Insecure bool `json:"insecure,omitempty"`
}

// SettingsSnapshot is an immutable read of connection settings,
// taken once per logical operation and threaded through the call.
type SettingsSnapshot struct {
	Mode           ConnectionMode
	GatewayBaseURL string
	Services       map[Backend]EndpointConfig
	Embedding      EmbeddingSettings

	// WideningFloor overrides the sharded search widening threshold when > 0.
	WideningFloor int

	// Env carries environment defaults captured when the snapshot was taken.
	Env map[string]string
}

// ServiceConfig returns the configured (unresolved) endpoint for a backend.
func (s SettingsSnapshot) ServiceConfig(b Backend) EndpointConfig {
	if s.Services == nil {
		return EndpointConfig{}
	}
	return s.Services[b]
}

// WithGateway returns a copy of s with the gateway base URL replaced.
func (s SettingsSnapshot) WithGateway(url string) SettingsSnapshot {
	s.GatewayBaseURL = url
	return s
}
