package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconnectPolicy(t *testing.T) {
	p := NewReconnectPolicy(time.Second, 10*time.Second, 5)

	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for i, w := range want {
		d, ok := p.Next()
		require.True(t, ok, "attempt %d", i+1)
		assert.Equal(t, w, d, "attempt %d", i+1)
		assert.Equal(t, i+1, p.Attempt())
	}

	_, ok := p.Next()
	assert.False(t, ok, "no sixth attempt")
	assert.Equal(t, 5, p.Attempt())
	assert.Equal(t, 5, p.MaxAttempts())

	p.Reset()
	assert.Equal(t, 0, p.Attempt())
	d, ok := p.Next()
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, d)
}

func TestReconnectPolicy_Monotonic(t *testing.T) {
	p := NewReconnectPolicy(500*time.Millisecond, 3*time.Second, 8)

	var prev time.Duration
	for {
		d, ok := p.Next()
		if !ok {
			break
		}
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, 3*time.Second)
		prev = d
	}
	assert.Equal(t, 8, p.Attempt())
}
