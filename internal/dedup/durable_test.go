package dedup

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uniqtime/internal/store"
	"github.com/roach88/uniqtime/internal/testutil"
)

func TestDurable_RestartPreservesOccupancy(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	e1, err := OpenDurable(ctx, path, 1000, WithClock(testutil.NewFakeClock()))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := e1.Uniquify(ctx, "2016-01-01T10:15", "P1")
		require.NoError(t, err)
	}
	require.NoError(t, e1.Close())

	e2, err := OpenDurable(ctx, path, 1000, WithClock(testutil.NewFakeClock()))
	require.NoError(t, err)
	defer e2.Close()

	assert.Equal(t, 5, e2.Len(), "counter must be reloaded from the store")

	got, err := e2.Uniquify(ctx, "2016-01-01T10:15", "P1")
	require.NoError(t, err)
	assert.Equal(t, "2016-01-01T10:15:05", got)
}

func TestDurable_RestartRespectsThreshold(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	clock := testutil.NewFakeClock()

	e1, err := OpenDurable(ctx, path, 10, WithClock(clock))
	require.NoError(t, err)
	for i := 0; i < 11; i++ {
		_, err := e1.Uniquify(ctx, "2016-01-01T10:15", fmt.Sprintf("S%02d", i))
		require.NoError(t, err)
	}
	require.Equal(t, 11, e1.Len())
	require.NoError(t, e1.Close())

	e2, err := OpenDurable(ctx, path, 10, WithClock(clock))
	require.NoError(t, err)
	defer e2.Close()

	_, err = e2.Uniquify(ctx, "2016-01-01T10:15", "S11")
	require.NoError(t, err)
	assert.Equal(t, 10, e2.Len())
}

func TestDurable_LenMatchesStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer st.Close()

	e, err := NewDurable(ctx, st, 3, WithClock(testutil.NewFakeClock()))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := e.Uniquify(ctx, "2016-01-01T10:15", fmt.Sprintf("S%d", i))
		require.NoError(t, err)

		n, err := st.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, n, e.Len(), "after insertion %d", i)
	}

	// 4*10 > 3*11, so the fourth insertion swept down to 3
	assert.Equal(t, 3, e.Len())

	records, err := st.List(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "S1", records[0].Subject)
}

func TestDurable_NewDurableLoadsExistingRows(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer st.Close()

	err = st.WithUnit(ctx, func(u *store.Unit) error {
		for i := 0; i < 7; i++ {
			if _, err := u.Insert(ctx, store.Record{
				EventDate: fmt.Sprintf("2016-01-01T10:15:%02d", i),
				Subject:   "P1",
				Created:   testutil.DefaultEpoch,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	e, err := NewDurable(ctx, st, 1000)
	require.NoError(t, err)
	assert.Equal(t, 7, e.Len())

	got, err := e.Uniquify(ctx, "2016-01-01T10:15", "P1")
	require.NoError(t, err)
	assert.Equal(t, "2016-01-01T10:15:07", got)
}

func TestDurable_ExhaustionInsertsNothing(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer st.Close()

	e, err := NewDurable(ctx, st, 1000)
	require.NoError(t, err)

	for i := 0; i < Offsets; i++ {
		_, err := e.Uniquify(ctx, "2016-01-01T10:15", "P1")
		require.NoError(t, err)
	}

	_, err = e.Uniquify(ctx, "2016-01-01T10:15", "P1")
	require.Error(t, err)

	var ee *ExhaustionError
	require.ErrorAs(t, err, &ee, "exhaustion must not be wrapped as a persistence failure")
	assert.Equal(t, "2016-01-01T10:15", ee.Date)
	assert.Equal(t, "P1", ee.Subject)

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, Offsets, n)
}

func TestDurable_FailedUnitLeavesCounterUnchanged(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)

	e, err := NewDurable(ctx, st, 1000)
	require.NoError(t, err)

	_, err = e.Uniquify(ctx, "2016-01-01T10:15", "P1")
	require.NoError(t, err)
	require.Equal(t, 1, e.Len())

	// Pull the store out from under the engine
	require.NoError(t, st.Close())

	_, err = e.Uniquify(ctx, "2016-01-01T10:15", "P1")
	require.Error(t, err)
	assert.True(t, IsPersistence(err), "got %T: %v", err, err)
	assert.False(t, IsExhausted(err))
	assert.Equal(t, 1, e.Len())

	_, err = e.History(ctx)
	assert.True(t, IsPersistence(err))
}

func TestDurable_CloseOwnership(t *testing.T) {
	ctx := context.Background()

	t.Run("borrowed store stays open", func(t *testing.T) {
		st, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
		require.NoError(t, err)
		defer st.Close()

		e, err := NewDurable(ctx, st, 1000)
		require.NoError(t, err)
		require.NoError(t, e.Close())

		_, err = st.Count(ctx)
		assert.NoError(t, err, "NewDurable must not take ownership of the store")
	})

	t.Run("owned store closes once", func(t *testing.T) {
		e, err := OpenDurable(ctx, filepath.Join(t.TempDir(), "history.db"), 1000)
		require.NoError(t, err)
		assert.NoError(t, e.Close())
		assert.NoError(t, e.Close(), "second Close should be a no-op")
	})
}

func TestDurable_OpenInvalidPath(t *testing.T) {
	_, err := OpenDurable(context.Background(), "/nonexistent/dir/history.db", 1000)
	require.Error(t, err)
	assert.True(t, IsPersistence(err))
}
