package ledger

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"github.com/google/uuid"

	"pickem/internal/logger"
	"pickem/internal/money"
)

// EnterRequest is one participant's entry into a series.
type EnterRequest struct {
	Key    string
	Side   Side
	Handle Handle
	Proof  []byte
	Paid   money.Amount
	Caller Address
}

// Enter admits the caller into an open series. The checks run in a fixed
// order and the first one that fails decides the error:
// not found, closed, locked, fee mismatch, already entered, side, proof.
func (l *Ledger) Enter(ctx context.Context, req EnterRequest) (*Entry, error) {
	if req.Caller == "" {
		return nil, errorsmod.Wrap(ErrUnauthorized, "caller identity required")
	}

	unlock := l.locks.Lock(req.Key)
	defer unlock()
	now := l.now()

	var entry *Entry
	err := l.store.Update(ctx, func(tx Tx) error {
		s, err := loadSeries(ctx, tx, req.Key)
		if err != nil {
			return err
		}
		if s.Cancelled || s.Settled {
			return errorsmod.Wrapf(ErrSeriesClosed, "series %q", req.Key)
		}
		if !now.Before(s.LockDeadline) {
			return errorsmod.Wrapf(ErrSeriesLocked, "series %q locked at %s", req.Key, s.LockDeadline)
		}
		if !req.Paid.Equal(s.EntryFee) {
			return errorsmod.Wrapf(ErrIncorrectFee, "paid %s, fee is %s", req.Paid, s.EntryFee)
		}
		existing, err := tx.GetEntry(ctx, req.Key, req.Caller)
		if err != nil {
			return fmt.Errorf("failed to get entry: %w", err)
		}
		if existing != nil {
			return errorsmod.Wrapf(ErrAlreadyEntered, "%s in %q", req.Caller, req.Key)
		}
		if !req.Side.IsPick() {
			return errorsmod.Wrapf(ErrInvalidSide, "%q", req.Side)
		}
		if err := l.verifier.Verify(ctx, ProofRequest{
			SeriesKey:   req.Key,
			Participant: req.Caller,
			Handle:      req.Handle,
			Proof:       req.Proof,
		}); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfidentialProof, err)
		}

		pool, err := s.PrizePool.Add(req.Paid)
		if err != nil {
			return fmt.Errorf("failed to grow prize pool: %w", err)
		}
		s.PrizePool = pool
		s.EntryCount++
		switch req.Side {
		case SideTeamA:
			s.Picks.TeamA++
		case SideTeamB:
			s.Picks.TeamB++
		}

		e := &Entry{
			SeriesKey:   req.Key,
			Participant: req.Caller,
			Side:        req.Side,
			Handle:      req.Handle,
			Paid:        req.Paid,
			Payout:      money.Zero(),
			EnteredAt:   now,
		}
		if err := tx.InsertEntry(ctx, e); err != nil {
			return fmt.Errorf("failed to insert entry: %w", err)
		}
		if err := tx.UpdateSeries(ctx, s); err != nil {
			return fmt.Errorf("failed to update series: %w", err)
		}
		if err := tx.AppendJournal(ctx, JournalEntry{
			ID:          uuid.New(),
			Participant: req.Caller,
			SeriesKey:   req.Key,
			Kind:        JournalEntryFee,
			Amount:      req.Paid,
			CreatedAt:   now,
		}); err != nil {
			return fmt.Errorf("failed to append journal: %w", err)
		}
		entry = e
		return nil
	})
	if err != nil {
		logger.Debug(req.Caller.String(), "entry_rejected", fmt.Sprintf("key=%s error=%s", req.Key, err))
		return nil, err
	}

	ev := newEvent(EventEntrySubmitted, req.Key, req.Caller, now)
	ev.Side = entry.Side
	ev.Amount = entry.Paid
	l.publish(ctx, ev)
	return entry, nil
}
