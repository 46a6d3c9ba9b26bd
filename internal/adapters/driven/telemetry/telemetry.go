// Package telemetry provides driven.Telemetry sinks.
package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/graphloom/internal/core/domain"
	"github.com/custodia-labs/graphloom/internal/core/ports/driven"
	"github.com/custodia-labs/graphloom/internal/logger"
)

// Ensure sinks implement the interface.
var (
	_ driven.Telemetry = (*LogSink)(nil)
	_ driven.Telemetry = (*JSONSink)(nil)
	_ driven.Telemetry = Multi(nil)
	_ driven.Telemetry = Nop{}
)

// LogSink writes events as one-line key=value records through the logger package.
// Events below MinLevel are dropped.
type LogSink struct {
	MinLevel domain.Level
}

// NewLogSink creates a log sink that drops events below min.
func NewLogSink(min domain.Level) *LogSink {
	return &LogSink{MinLevel: min}
}

// Emit logs the event at its level.
func (s *LogSink) Emit(event domain.Event) {
	if event.Level.Rank() < s.MinLevel.Rank() {
		return
	}
	line := FormatLine(event)
	switch event.Level {
	case domain.LevelDebug:
		logger.Debug("%s", line)
	case domain.LevelWarn:
		logger.Warn("%s", line)
	case domain.LevelError:
		logger.Error("%s", line)
	default:
		logger.Info("%s", line)
	}
}

// FormatLine renders "source: message key=value ..." with keys sorted.
func FormatLine(event domain.Event) string {
	var b strings.Builder
	b.WriteString(event.Source)
	b.WriteString(": ")
	b.WriteString(event.Message)

	keys := make([]string, 0, len(event.Detail))
	for k := range event.Detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, event.Detail[k])
	}
	return b.String()
}

// JSONSink writes one JSON object per event, for log viewers.
type JSONSink struct {
	mu       sync.Mutex
	enc      *json.Encoder
	minLevel domain.Level
}

// NewJSONSink creates a JSON-lines sink on w.
func NewJSONSink(w io.Writer, min domain.Level) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w), minLevel: min}
}

// Emit encodes the event. Encoding errors are logged and dropped.
func (s *JSONSink) Emit(event domain.Event) {
	if event.Level.Rank() < s.minLevel.Rank() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(event); err != nil {
		logger.Warn("telemetry: encode event: %v", err)
	}
}

// Multi fans each event out to every sink in order.
type Multi []driven.Telemetry

// Emit forwards the event to each non-nil sink.
func (m Multi) Emit(event domain.Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Emit(event)
		}
	}
}

// Nop discards events.
type Nop struct{}

// Emit does nothing.
func (Nop) Emit(domain.Event) {}
