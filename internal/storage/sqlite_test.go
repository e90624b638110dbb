package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickem/internal/ledger"
	"pickem/internal/money"
)

var (
	testStart     = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testOrganizer = ledger.MustParseAddress("0x00000000000000000000000000000000000000aa")
	testFee       = money.MustParse("0.01")
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err, "failed to initialize test database")
	t.Cleanup(func() { store.Close() })
	return store
}

func participant(i int) ledger.Address {
	return ledger.MustParseAddress(fmt.Sprintf("0x%040x", 0x1000+i))
}

func newTestLedger(t *testing.T, store *Store, opts ...ledger.Option) (*ledger.Ledger, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testStart)
	base := []ledger.Option{ledger.WithClock(clock), ledger.WithEventSink(&ledger.RecordingSink{})}
	return ledger.New(store, testOrganizer, append(base, opts...)...), clock
}

func createSeries(t *testing.T, l *ledger.Ledger, key string, d time.Duration) {
	t.Helper()
	_, err := l.CreateSeries(context.Background(), testOrganizer, ledger.CreateSeriesRequest{
		Key:      key,
		TeamA:    "Lakers",
		TeamB:    "Celtics",
		EntryFee: testFee,
		Duration: d,
	})
	require.NoError(t, err)
}

func enter(t *testing.T, l *ledger.Ledger, key string, i int, side ledger.Side) {
	t.Helper()
	var h ledger.Handle
	h[0] = 0xfe
	h[31] = byte(i)
	_, err := l.Enter(context.Background(), ledger.EnterRequest{
		Key:    key,
		Side:   side,
		Handle: h,
		Proof:  []byte("proof"),
		Paid:   testFee,
		Caller: participant(i),
	})
	require.NoError(t, err)
}

func TestSeriesRoundTrip(t *testing.T) {
	store := setupTestDB(t)
	l, _ := newTestLedger(t, store)
	ctx := context.Background()

	createSeries(t, l, "nba-final", 24*time.Hour)

	s, err := store.GetSeries(ctx, "nba-final")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "Lakers", s.TeamA)
	assert.Equal(t, "Celtics", s.TeamB)
	assert.True(t, s.EntryFee.Equal(testFee))
	assert.True(t, s.PrizePool.IsZero())
	assert.Equal(t, testStart.Add(24*time.Hour), s.LockDeadline)
	assert.Equal(t, testStart, s.CreatedAt)
	assert.True(t, s.ClosedAt.IsZero())
	assert.Equal(t, testOrganizer, s.Creator)
	assert.Equal(t, ledger.SideUnresolved, s.Winner)

	missing, err := store.GetSeries(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListSeriesKeysInsertionOrder(t *testing.T) {
	store := setupTestDB(t)
	l, _ := newTestLedger(t, store)

	for _, key := range []string{"zeta", "alpha", "mid"} {
		createSeries(t, l, key, 2*time.Hour)
	}

	keys, err := store.ListSeriesKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, keys)
}

func TestDuplicateSeriesKey(t *testing.T) {
	store := setupTestDB(t)
	l, _ := newTestLedger(t, store)
	createSeries(t, l, "dup", 2*time.Hour)

	_, err := l.CreateSeries(context.Background(), testOrganizer, ledger.CreateSeriesRequest{
		Key: "dup", TeamA: "A", TeamB: "B", EntryFee: testFee, Duration: 2 * time.Hour,
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicateKey)
}

func TestEntriesAndIndexes(t *testing.T) {
	store := setupTestDB(t)
	l, _ := newTestLedger(t, store)
	ctx := context.Background()

	createSeries(t, l, "s1", 2*time.Hour)
	createSeries(t, l, "s2", 2*time.Hour)
	enter(t, l, "s1", 3, ledger.SideTeamB)
	enter(t, l, "s1", 1, ledger.SideTeamA)
	enter(t, l, "s2", 1, ledger.SideTeamB)

	entrants, err := store.ListEntrants(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []ledger.Address{participant(3), participant(1)}, entrants)

	userSeries, err := store.ListUserSeries(ctx, participant(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, userSeries)

	e, err := store.GetEntry(ctx, "s1", participant(3))
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, ledger.SideTeamB, e.Side)
	assert.Equal(t, byte(0xfe), e.Handle[0])
	assert.Equal(t, byte(3), e.Handle[31])
	assert.True(t, e.Paid.Equal(testFee))
	assert.False(t, e.Claimed)
	assert.Equal(t, testStart, e.EnteredAt)

	none, err := store.GetEntry(ctx, "s2", participant(3))
	require.NoError(t, err)
	assert.Nil(t, none)

	s, err := store.GetSeries(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), s.EntryCount)
	assert.Equal(t, ledger.PickCounts{TeamA: 1, TeamB: 1}, s.Picks)
	assert.True(t, s.PrizePool.Equal(money.MustParse("0.02")))

	_, err = l.Enter(ctx, ledger.EnterRequest{
		Key: "s1", Side: ledger.SideTeamA, Handle: e.Handle, Proof: []byte("p"), Paid: testFee, Caller: participant(3),
	})
	assert.ErrorIs(t, err, ledger.ErrAlreadyEntered)
}

func TestSettleAndClaimPersist(t *testing.T) {
	store := setupTestDB(t)
	l, clock := newTestLedger(t, store)
	ctx := context.Background()

	createSeries(t, l, "final", time.Hour)
	enter(t, l, "final", 1, ledger.SideTeamA)
	enter(t, l, "final", 2, ledger.SideTeamA)
	enter(t, l, "final", 3, ledger.SideTeamB)

	clock.Advance(time.Hour)
	_, err := l.Settle(ctx, "final", ledger.SideTeamA, participant(9))
	require.NoError(t, err)

	got, err := l.ClaimPrize(ctx, "final", participant(1))
	require.NoError(t, err)
	assert.True(t, got.Equal(money.MustParse("0.015")))

	s, err := store.GetSeries(ctx, "final")
	require.NoError(t, err)
	assert.True(t, s.Settled)
	assert.Equal(t, ledger.SideTeamA, s.Winner)
	assert.Equal(t, testStart.Add(time.Hour), s.ClosedAt)
	assert.True(t, s.Disbursed.Equal(got))
	assert.True(t, s.PrizePool.Equal(money.MustParse("0.03")))

	e, err := store.GetEntry(ctx, "final", participant(1))
	require.NoError(t, err)
	assert.True(t, e.Claimed)
	assert.True(t, e.Payout.Equal(got))

	journal, err := store.ListJournal(ctx, participant(1))
	require.NoError(t, err)
	require.Len(t, journal, 2)
	assert.Equal(t, ledger.JournalEntryFee, journal[0].Kind)
	assert.Equal(t, ledger.JournalPrize, journal[1].Kind)
	assert.True(t, journal[1].Amount.Equal(got))

	_, err = l.ClaimPrize(ctx, "final", participant(1))
	assert.ErrorIs(t, err, ledger.ErrAlreadyClaimed)
}

func TestFailedTransferRollsBack(t *testing.T) {
	store := setupTestDB(t)
	boom := errors.New("treasury down")
	fail := true
	payer := ledger.PayerFunc(func(context.Context, ledger.Transfer) error {
		if fail {
			return boom
		}
		return nil
	})
	l, _ := newTestLedger(t, store, ledger.WithPayer(payer))
	ctx := context.Background()

	createSeries(t, l, "called-off", 2*time.Hour)
	enter(t, l, "called-off", 1, ledger.SideTeamA)
	_, err := l.Cancel(ctx, "called-off", testOrganizer)
	require.NoError(t, err)

	_, err = l.ClaimRefund(ctx, "called-off", participant(1))
	require.ErrorIs(t, err, ledger.ErrTransferFailed)
	require.ErrorIs(t, err, boom)

	e, err := store.GetEntry(ctx, "called-off", participant(1))
	require.NoError(t, err)
	assert.False(t, e.Claimed)
	s, err := store.GetSeries(ctx, "called-off")
	require.NoError(t, err)
	assert.True(t, s.Disbursed.IsZero())
	journal, err := store.ListJournal(ctx, participant(1))
	require.NoError(t, err)
	assert.Len(t, journal, 1)

	fail = false
	refund, err := l.ClaimRefund(ctx, "called-off", participant(1))
	require.NoError(t, err)
	assert.True(t, refund.Equal(testFee))
}

func TestUpdateRollback(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Update(ctx, func(tx ledger.Tx) error {
		require.NoError(t, tx.InsertSeries(ctx, &ledger.Series{
			Key: "k", TeamA: "A", TeamB: "B", EntryFee: testFee, LockDeadline: testStart, CreatedAt: testStart,
		}))
		s, err := tx.GetSeries(ctx, "k")
		require.NoError(t, err)
		require.NotNil(t, s)
		return boom
	})
	require.ErrorIs(t, err, boom)

	s, err := store.GetSeries(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestUpdateMissingRowFails(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	err := store.Update(ctx, func(tx ledger.Tx) error {
		return tx.UpdateSeries(ctx, &ledger.Series{Key: "ghost"})
	})
	assert.Error(t, err)
}

func TestListLockedOpen(t *testing.T) {
	store := setupTestDB(t)
	l, clock := newTestLedger(t, store)
	ctx := context.Background()

	createSeries(t, l, "early", time.Hour)
	createSeries(t, l, "late", 3*time.Hour)
	createSeries(t, l, "scrapped", time.Hour)
	_, err := l.Cancel(ctx, "scrapped", testOrganizer)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	locked, err := l.ListLocked(ctx)
	require.NoError(t, err)
	require.Len(t, locked, 1)
	assert.Equal(t, "early", locked[0].Key)

	clock.Advance(2 * time.Hour)
	locked, err = store.ListLockedOpen(ctx, l.Now().Unix())
	require.NoError(t, err)
	require.Len(t, locked, 2)
	assert.Equal(t, "early", locked[0].Key)
	assert.Equal(t, "late", locked[1].Key)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pickem.db")
	store, err := Open(path)
	require.NoError(t, err)
	l, _ := newTestLedger(t, store)
	createSeries(t, l, "persisted", 2*time.Hour)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	s, err := reopened.GetSeries(context.Background(), "persisted")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "Lakers", s.TeamA)
}
