// Package breaker implements the per-executor circuit breaker gate
// spec.md §4.3/§5 requires: after CIRCUIT_BREAKER_THRESHOLD consecutive
// failures, an executor name is rejected until CIRCUIT_BREAKER_RESET
// elapses. Two implementations ship: an in-memory one for single-process
// development, and a Redis-backed one so a multi-worker deployment
// shares breaker state, per spec.md §5's requirement that distributed
// breaker state MUST be shared to be effective.
package breaker

import (
	"context"
	"time"
)

const (
	// Threshold is the number of consecutive failures that opens the
	// circuit for an executor name.
	Threshold = 5

	// ResetWindow is how long the circuit stays open before a new
	// attempt is admitted.
	ResetWindow = 300 * time.Second
)

// Breaker gates task attempts per executor name.
type Breaker interface {
	// Allow reports whether an attempt against executor may proceed.
	Allow(ctx context.Context, executor string) (bool, error)

	// RecordSuccess resets the failure counter for executor.
	RecordSuccess(ctx context.Context, executor string) error

	// RecordFailure increments the failure counter for executor, opening
	// the circuit once Threshold consecutive failures are reached.
	RecordFailure(ctx context.Context, executor string) error
}
