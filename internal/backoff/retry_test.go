package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoffPolicy(t *testing.T) {
	policy := &ExponentialBackoffPolicy{
		InitialInterval: time.Second,
		BackoffFactor:   2.0,
		MaxInterval:     60 * time.Second,
		MaxRetries:      5,
	}

	expected := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}
	for i, want := range expected {
		got, err := policy.ComputeNextInterval(i, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := policy.ComputeNextInterval(5, 0, nil)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
}

func TestExponentialBackoffPolicyCapsAtMaxInterval(t *testing.T) {
	policy := NewExponentialBackoffPolicy(time.Second)
	policy.MaxInterval = 10 * time.Second

	got, err := policy.ComputeNextInterval(10, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, got)
}

func TestExponentialBackoffPolicyUnlimitedByDefault(t *testing.T) {
	policy := NewExponentialBackoffPolicy(time.Millisecond)
	assert.Equal(t, 0, policy.MaxRetries)

	_, err := policy.ComputeNextInterval(1000, 0, nil)
	require.NoError(t, err)
}
