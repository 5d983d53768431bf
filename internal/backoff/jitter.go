package backoff

import (
	"math/rand"
	"sync"
	"time"
)

// JitterType selects how NewJitterFunc randomizes an interval.
type JitterType int

const (
	// NoJitter returns the interval unchanged.
	NoJitter JitterType = iota
	// FullJitter returns a uniform random duration in [0, interval].
	FullJitter
	// Jitter returns a uniform random duration in [0.5*interval, 1.5*interval].
	Jitter
)

// JitterFunc randomizes a base interval.
type JitterFunc func(interval time.Duration) time.Duration

var jitterRand = struct {
	mu sync.Mutex
	r  *rand.Rand
}{r: rand.New(rand.NewSource(time.Now().UnixNano()))}

func randFloat64() float64 {
	jitterRand.mu.Lock()
	defer jitterRand.mu.Unlock()
	return jitterRand.r.Float64()
}

// NewJitterFunc returns a JitterFunc for the given JitterType.
func NewJitterFunc(jt JitterType) JitterFunc {
	switch jt {
	case FullJitter:
		return func(interval time.Duration) time.Duration {
			if interval <= 0 {
				return 0
			}
			return time.Duration(randFloat64() * float64(interval))
		}
	case Jitter:
		return func(interval time.Duration) time.Duration {
			if interval <= 0 {
				return 0
			}
			half := float64(interval) / 2
			return time.Duration(half + randFloat64()*float64(interval))
		}
	default:
		return func(interval time.Duration) time.Duration {
			if interval <= 0 {
				return 0
			}
			return interval
		}
	}
}

// WithJitter wraps a RetryPolicy so its computed interval is randomized
// according to jt before being returned.
func WithJitter(policy RetryPolicy, jt JitterType) RetryPolicy {
	return &jitteredPolicy{policy: policy, jitterFunc: NewJitterFunc(jt)}
}

type jitteredPolicy struct {
	policy     RetryPolicy
	jitterFunc JitterFunc
}

func (p *jitteredPolicy) ComputeNextInterval(retryCount int, elapsedTime time.Duration, err error) (time.Duration, error) {
	interval, computeErr := p.policy.ComputeNextInterval(retryCount, elapsedTime, err)
	if computeErr != nil {
		return 0, computeErr
	}
	return p.jitterFunc(interval), nil
}
