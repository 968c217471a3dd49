package checker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateSerializesWhenFull(t *testing.T) {
	gate := NewGate(1)

	require.NoError(t, gate.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := gate.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	gate.Release()
	require.NoError(t, gate.Acquire(context.Background()))
	gate.Release()
}

func TestGateAllowsUpToSize(t *testing.T) {
	gate := NewGate(3)

	for i := 0; i < 3; i++ {
		require.NoError(t, gate.Acquire(context.Background()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, gate.Acquire(ctx))
}

func TestFixedDelayPacingSkipsFirstIndex(t *testing.T) {
	pacing := FixedDelayPacing(3 * time.Second)

	assert.Equal(t, time.Duration(0), pacing(0))
	assert.Equal(t, 3*time.Second, pacing(1))
	assert.Equal(t, 3*time.Second, pacing(4))
}
