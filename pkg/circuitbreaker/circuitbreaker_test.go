package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker(t *testing.T) {
	failing := func() error { return errors.New("boom") }
	succeeding := func() error { return nil }

	t.Run("stays closed on success", func(t *testing.T) {
		cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})
		for i := 0; i < 5; i++ {
			require.NoError(t, cb.Execute(succeeding))
		}
		assert.Equal(t, "closed", cb.State())
	})

	t.Run("opens after max consecutive failures", func(t *testing.T) {
		cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})
		assert.Error(t, cb.Execute(failing))
		assert.Equal(t, "closed", cb.State())
		assert.Error(t, cb.Execute(failing))
		assert.Equal(t, "open", cb.State())

		err := cb.Execute(succeeding)
		require.Error(t, err, "open breaker rejects without calling")
		assert.Contains(t, err.Error(), "circuit breaker test is open")
	})

	t.Run("success resets the failure count", func(t *testing.T) {
		cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})
		assert.Error(t, cb.Execute(failing))
		require.NoError(t, cb.Execute(succeeding))
		assert.Error(t, cb.Execute(failing))
		assert.Equal(t, "closed", cb.State())
	})

	t.Run("recovers through half-open after timeout", func(t *testing.T) {
		cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 1, Timeout: 5 * time.Millisecond})
		assert.Error(t, cb.Execute(failing))
		assert.Equal(t, "open", cb.State())

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, cb.Execute(succeeding))
		assert.Equal(t, "closed", cb.State())
	})
}
