package ledger

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"pickem/internal/logger"
)

// Settle records the outcome of a locked series. Anyone may call it once the
// lock deadline has passed; the outcome itself comes from outside the ledger.
func (l *Ledger) Settle(ctx context.Context, key string, winner Side, caller Address) (*Series, error) {
	unlock := l.locks.Lock(key)
	defer unlock()
	now := l.now()

	var settled *Series
	err := l.store.Update(ctx, func(tx Tx) error {
		s, err := loadSeries(ctx, tx, key)
		if err != nil {
			return err
		}
		if s.Settled || s.Cancelled {
			return errorsmod.Wrapf(ErrAlreadySettledOrCancelled, "series %q", key)
		}
		if now.Before(s.LockDeadline) {
			return errorsmod.Wrapf(ErrNotYetLocked, "series %q locks at %s", key, s.LockDeadline)
		}
		if !winner.IsOutcome() {
			return errorsmod.Wrapf(ErrInvalidOutcome, "%q", winner)
		}
		s.Settled = true
		s.Winner = winner
		s.ClosedAt = now
		if err := tx.UpdateSeries(ctx, s); err != nil {
			return fmt.Errorf("failed to update series: %w", err)
		}
		settled = s
		return nil
	})
	if err != nil {
		logger.Debug(caller.String(), "settle_rejected", fmt.Sprintf("key=%s error=%s", key, err))
		return nil, err
	}

	if settled.Winner != SideDraw && settled.Picks.For(settled.Winner) == 0 && settled.EntryCount > 0 {
		logger.Info(caller.String(), "settled_without_winners", fmt.Sprintf("key=%s winner=%s pool=%s", key, settled.Winner, settled.PrizePool))
	}

	e := newEvent(EventSeriesSettled, key, caller, now)
	e.TeamA, e.TeamB = settled.TeamA, settled.TeamB
	e.Side = settled.Winner
	e.Amount = settled.PrizePool
	l.publish(ctx, e)
	return settled, nil
}

// Cancel voids a series that is not yet settled or cancelled. Organizer only.
// Entrants can then reclaim their fee with ClaimRefund.
func (l *Ledger) Cancel(ctx context.Context, key string, caller Address) (*Series, error) {
	if err := l.requireOrganizer(caller); err != nil {
		logger.Debug(caller.String(), "cancel_unauthorized", "key="+key)
		return nil, err
	}

	unlock := l.locks.Lock(key)
	defer unlock()
	now := l.now()

	var cancelled *Series
	err := l.store.Update(ctx, func(tx Tx) error {
		s, err := loadSeries(ctx, tx, key)
		if err != nil {
			return err
		}
		if s.Settled || s.Cancelled {
			return errorsmod.Wrapf(ErrAlreadySettledOrCancelled, "series %q", key)
		}
		s.Cancelled = true
		s.ClosedAt = now
		if err := tx.UpdateSeries(ctx, s); err != nil {
			return fmt.Errorf("failed to update series: %w", err)
		}
		cancelled = s
		return nil
	})
	if err != nil {
		logger.Debug(caller.String(), "cancel_rejected", fmt.Sprintf("key=%s error=%s", key, err))
		return nil, err
	}

	e := newEvent(EventSeriesCancelled, key, caller, now)
	e.TeamA, e.TeamB = cancelled.TeamA, cancelled.TeamB
	e.Amount = cancelled.PrizePool
	l.publish(ctx, e)
	return cancelled, nil
}
