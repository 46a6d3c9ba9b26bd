package driven

import "github.com/custodia-labs/graphloom/internal/core/domain"

// Telemetry receives structured events at adapter lifecycle milestones:
// connect attempt, connect success/failure, query issued, query result,
// fallback triggered. Implementations must be safe for concurrent use
// and must not block the caller for long.
type Telemetry interface {
	Emit(event domain.Event)
}

// MetricsRecorder records operation timings and shard outcomes.
type MetricsRecorder interface {
	// ObserveOperation records one loader operation.
	ObserveOperation(op string, success bool, seconds float64)

	// IncShard counts a shard outcome ("hit", "empty", "failed", "skipped").
	IncShard(shard, outcome string)
}
