package domain

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds for backend failures. Adapters wrap these in a BackendError;
// callers match them with errors.Is.
var (
	// ErrConnection indicates a backend connection could not be established or authenticated.
	ErrConnection = errors.New("connection failed")

	// ErrTimeout indicates a bounded operation exceeded its deadline.
	ErrTimeout = errors.New("timed out")

	// ErrSchemaMismatch indicates the vector collection schema differs from configuration.
	// Reported as a warning only; the query still runs.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrMalformedResponse indicates a payload that could not be parsed or coerced.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrUnavailable indicates no reachable gateway in unified mode.
	ErrUnavailable = errors.New("unavailable")
)

// Input errors returned to callers of the loader.
var (
	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedSource indicates an unknown load source.
	ErrUnsupportedSource = errors.New("unsupported source")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// The vector RPC path is skipped without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

// BackendError is a classified failure from one backend operation.
type BackendError struct {
	// Kind is one of the Err* kind sentinels above.
	Kind error

	// Backend is the store that failed.
	Backend Backend

	// Op names the failing step, e.g. "verify", "query", "scroll".
	Op string

	// Code is a machine-readable code when the backend supplies one.
	Code string

	// Err is the underlying cause.
	Err error
}

// NewBackendError builds a BackendError.
func NewBackendError(kind error, backend Backend, op string, err error) *BackendError {
	return &BackendError{Kind: kind, Backend: backend, Op: op, Err: err}
}

func (e *BackendError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// WithCode sets the machine-readable code and returns e.
func (e *BackendError) WithCode(code string) *BackendError {
	e.Code = code
	return e
}

// ClassifyError wraps a transport failure as ErrTimeout when a deadline
// expired, else as ErrConnection.
func ClassifyError(backend Backend, op string, err error) *BackendError {
	kind := ErrConnection
	var timeout interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &timeout) && timeout.Timeout()) {
		kind = ErrTimeout
	}
	return NewBackendError(kind, backend, op, err)
}

// Unwrap exposes the underlying cause.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is matches the error kind as well as the wrapped cause.
func (e *BackendError) Is(target error) bool {
	return e.Kind == target
}

// Detail renders the error as telemetry detail fields.
func (e *BackendError) Detail() map[string]any {
	d := map[string]any{
		"backend": string(e.Backend),
		"op":      e.Op,
		"kind":    e.Kind.Error(),
	}
	if e.Err != nil {
		d["error"] = e.Err.Error()
	}
	if e.Code != "" {
		d["code"] = e.Code
	}
	return d
}
