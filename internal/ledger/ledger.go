// Package ledger implements the series lifecycle: creation, entry admission,
// settlement and the payout and refund claims that drain the prize pool.
//
// Every mutating call takes the lock for its series key, samples the clock
// once, and commits its writes in a single store transaction. Events are
// published after the commit while the key lock is still held, so sinks see
// a series' events in commit order.
package ledger

import (
	"context"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/jonboulle/clockwork"

	"pickem/internal/money"
)

// Ledger is the series lifecycle service.
type Ledger struct {
	store     Store
	locks     *keyLocks
	clock     clockwork.Clock
	verifier  ProofVerifier
	payer     Payer
	events    EventSink
	organizer Address
	params    Params
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

func WithVerifier(v ProofVerifier) Option {
	return func(l *Ledger) { l.verifier = v }
}

func WithPayer(p Payer) Option {
	return func(l *Ledger) { l.payer = p }
}

func WithEventSink(s EventSink) Option {
	return func(l *Ledger) { l.events = s }
}

func WithParams(p Params) Option {
	return func(l *Ledger) { l.params = p }
}

// New creates a ledger over store. organizer is the only identity allowed to
// create and cancel series.
func New(store Store, organizer Address, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		locks:     newKeyLocks(),
		clock:     clockwork.NewRealClock(),
		verifier:  StructuralVerifier{},
		payer:     JournalOnlyPayer{},
		events:    LogSink{},
		organizer: organizer,
		params:    DefaultParams(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Params returns the minimum entry fee and the duration window.
func (l *Ledger) Params() Params { return l.params }

// MinEntryFee, MinDuration and MaxDuration expose the creation limits individually.
func (l *Ledger) MinEntryFee() money.Amount { return l.params.MinEntryFee }
func (l *Ledger) MinDuration() time.Duration { return l.params.MinDuration }
func (l *Ledger) MaxDuration() time.Duration { return l.params.MaxDuration }

func (l *Ledger) Organizer() Address { return l.organizer }

// Now is the ledger's clock at second precision.
func (l *Ledger) Now() time.Time { return l.now() }

// now is the single time sample for a call. Truncated to seconds so that
// deadlines round-trip through stores that keep unix seconds.
func (l *Ledger) now() time.Time {
	return l.clock.Now().UTC().Truncate(time.Second)
}

func (l *Ledger) publish(ctx context.Context, e Event) {
	if l.events != nil {
		l.events.Publish(ctx, e)
	}
}

func (l *Ledger) requireOrganizer(caller Address) error {
	if caller == "" || caller != l.organizer {
		return errorsmod.Wrapf(ErrUnauthorized, "caller %s is not the organizer", caller)
	}
	return nil
}

// loadSeries reads key through r and maps absence to ErrNotFound.
func loadSeries(ctx context.Context, r Reader, key string) (*Series, error) {
	s, err := r.GetSeries(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get series: %w", err)
	}
	if s == nil {
		return nil, errorsmod.Wrapf(ErrNotFound, "series %q", key)
	}
	return s, nil
}

// GetSeries returns the stored series.
func (l *Ledger) GetSeries(ctx context.Context, key string) (*Series, error) {
	return loadSeries(ctx, l.store, key)
}

// SeriesView is a series together with its state at the time of the read.
type SeriesView struct {
	*Series
	State State `json:"state"`
}

// GetSeriesView returns the series and its derived state.
func (l *Ledger) GetSeriesView(ctx context.Context, key string) (*SeriesView, error) {
	s, err := l.GetSeries(ctx, key)
	if err != nil {
		return nil, err
	}
	return &SeriesView{Series: s, State: DeriveState(s, l.now())}, nil
}

// ListSeries returns every key in creation order.
func (l *Ledger) ListSeries(ctx context.Context) ([]string, error) {
	keys, err := l.store.ListSeriesKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	return keys, nil
}

// GetEntry returns the participant's entry, or nil if they never entered.
func (l *Ledger) GetEntry(ctx context.Context, key string, participant Address) (*Entry, error) {
	if _, err := l.GetSeries(ctx, key); err != nil {
		return nil, err
	}
	e, err := l.store.GetEntry(ctx, key, participant)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return e, nil
}

// GetEntryConfidentialHandle returns the stored handle. The second result is
// false when the participant has no entry.
func (l *Ledger) GetEntryConfidentialHandle(ctx context.Context, key string, participant Address) (Handle, bool, error) {
	e, err := l.GetEntry(ctx, key, participant)
	if err != nil || e == nil {
		return Handle{}, false, err
	}
	return e.Handle, true, nil
}

// GetPickCounts returns the unweighted pick counters.
func (l *Ledger) GetPickCounts(ctx context.Context, key string) (PickCounts, error) {
	s, err := l.GetSeries(ctx, key)
	if err != nil {
		return PickCounts{}, err
	}
	return s.Picks, nil
}

// GetEntrants returns participants in entry order.
func (l *Ledger) GetEntrants(ctx context.Context, key string) ([]Address, error) {
	if _, err := l.GetSeries(ctx, key); err != nil {
		return nil, err
	}
	out, err := l.store.ListEntrants(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list entrants: %w", err)
	}
	return out, nil
}

// GetUserSeries returns the keys a participant has entered, in entry order.
func (l *Ledger) GetUserSeries(ctx context.Context, participant Address) ([]string, error) {
	out, err := l.store.ListUserSeries(ctx, participant)
	if err != nil {
		return nil, fmt.Errorf("failed to list user series: %w", err)
	}
	return out, nil
}

// GetJournal returns every fund movement recorded for a participant.
func (l *Ledger) GetJournal(ctx context.Context, participant Address) ([]JournalEntry, error) {
	out, err := l.store.ListJournal(ctx, participant)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", err)
	}
	return out, nil
}

// lockedLister is implemented by stores that can filter locked series themselves.
type lockedLister interface {
	ListLockedOpen(ctx context.Context, now int64) ([]*Series, error)
}

// ListLocked returns the series that are past their deadline but neither
// settled nor cancelled.
func (l *Ledger) ListLocked(ctx context.Context) ([]*Series, error) {
	now := l.now()
	if ll, ok := l.store.(lockedLister); ok {
		return ll.ListLockedOpen(ctx, now.Unix())
	}

	keys, err := l.store.ListSeriesKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	var out []*Series
	for _, key := range keys {
		s, err := loadSeries(ctx, l.store, key)
		if err != nil {
			return nil, err
		}
		if DeriveState(s, now) == StateLocked {
			out = append(out, s)
		}
	}
	return out, nil
}
