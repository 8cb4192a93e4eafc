package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uniqtime/internal/testutil"
)

func TestMemory_HistoryIsACopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10, WithClock(testutil.NewFakeClock()))

	_, err := m.Uniquify(ctx, "2016-01-01T10:15", "P1")
	require.NoError(t, err)

	got, err := m.History(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	got[0].Subject = "mutated"

	again, err := m.History(ctx)
	require.NoError(t, err)
	assert.Equal(t, "P1", again[0].Subject)
}

func TestMemory_SweepReleasesKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, WithClock(testutil.NewFakeClock()))

	for _, subject := range []string{"A", "B", "C"} {
		_, err := m.Uniquify(ctx, "2016-01-01T10:15", subject)
		require.NoError(t, err)
	}

	assert.Len(t, m.live, 2)
	assert.Len(t, m.order, 2)
	_, aLive := m.live[entryKey{timestamp: "2016-01-01T10:15:00", subject: "A"}]
	assert.False(t, aLive, "evicted entry must leave the lookup set")
}

func TestMemory_NoClockUsesSystemClock(t *testing.T) {
	m := NewMemory(10, WithClock(nil))
	_, ok := m.clock.(SystemClock)
	assert.True(t, ok)
}

func TestMemory_CloseIsNoop(t *testing.T) {
	m := NewMemory(10)
	assert.NoError(t, m.Close())
}
