package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickem/internal/money"
)

func TestMemStoreRollback(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Update(ctx, func(tx Tx) error {
		require.NoError(t, tx.InsertSeries(ctx, &Series{Key: "k", EntryFee: testFee}))
		require.NoError(t, tx.InsertEntry(ctx, &Entry{SeriesKey: "k", Participant: participant(1)}))
		require.NoError(t, tx.AppendJournal(ctx, JournalEntry{ID: uuid.New(), Participant: participant(1), Amount: testFee}))

		// staged writes are visible inside the transaction
		s, err := tx.GetSeries(ctx, "k")
		require.NoError(t, err)
		require.NotNil(t, s)
		entrants, err := tx.ListEntrants(ctx, "k")
		require.NoError(t, err)
		assert.Len(t, entrants, 1)
		return boom
	})
	require.ErrorIs(t, err, boom)

	s, err := store.GetSeries(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, s)
	keys, err := store.ListSeriesKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	journal, err := store.ListJournal(ctx, participant(1))
	require.NoError(t, err)
	assert.Empty(t, journal)
}

func TestMemStoreReturnsCopies(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	require.NoError(t, store.Update(ctx, func(tx Tx) error {
		return tx.InsertSeries(ctx, &Series{Key: "k", PrizePool: money.Zero()})
	}))

	s, err := store.GetSeries(ctx, "k")
	require.NoError(t, err)
	s.Settled = true

	again, err := store.GetSeries(ctx, "k")
	require.NoError(t, err)
	assert.False(t, again.Settled)
}

func TestMemStoreRejectsDuplicates(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	err := store.Update(ctx, func(tx Tx) error {
		if err := tx.InsertSeries(ctx, &Series{Key: "k"}); err != nil {
			return err
		}
		return tx.InsertSeries(ctx, &Series{Key: "k"})
	})
	assert.Error(t, err)

	err = store.Update(ctx, func(tx Tx) error {
		return tx.UpdateEntry(ctx, &Entry{SeriesKey: "k", Participant: participant(1)})
	})
	assert.Error(t, err)
}
