package breaker

import (
	"context"
	"sync"
	"time"
)

// MemoryBreaker is a mutex-guarded, single-process Breaker. It is
// suitable for development and tests; a multi-worker deployment needs
// RedisBreaker instead, since each process would otherwise keep its own
// failure counters.
type MemoryBreaker struct {
	mu    sync.Mutex
	state map[string]*counterState
}

type counterState struct {
	failures int
	openedAt time.Time
}

// NewMemoryBreaker returns an empty MemoryBreaker.
func NewMemoryBreaker() *MemoryBreaker {
	return &MemoryBreaker{state: make(map[string]*counterState)}
}

// Allow implements Breaker.
func (b *MemoryBreaker) Allow(ctx context.Context, executor string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.state[executor]
	if !ok || s.failures < Threshold {
		return true, nil
	}
	if time.Since(s.openedAt) >= ResetWindow {
		// Reset window elapsed: admit a new attempt and clear the counter
		// so a single further failure doesn't immediately re-trip the breaker.
		s.failures = 0
		return true, nil
	}
	return false, nil
}

// RecordSuccess implements Breaker.
func (b *MemoryBreaker) RecordSuccess(ctx context.Context, executor string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.state, executor)
	return nil
}

// RecordFailure implements Breaker.
func (b *MemoryBreaker) RecordFailure(ctx context.Context, executor string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.state[executor]
	if !ok {
		s = &counterState{}
		b.state[executor] = s
	}
	s.failures++
	if s.failures == Threshold {
		s.openedAt = time.Now()
	}
	return nil
}
