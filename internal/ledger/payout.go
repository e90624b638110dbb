package ledger

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"pickem/internal/logger"
	"pickem/internal/money"
)

// prizeFor checks that caller may claim a prize from s and returns the amount.
// The pool is split evenly over the winning side; the remainder stays as dust.
func prizeFor(s *Series, e *Entry) (money.Amount, error) {
	if !s.Settled {
		return money.Amount{}, errorsmod.Wrapf(ErrNotSettled, "series %q", s.Key)
	}
	if e == nil {
		return money.Amount{}, errorsmod.Wrap(ErrNotAWinner, "no entry")
	}
	if s.Winner == SideDraw {
		return money.Amount{}, errorsmod.Wrap(ErrNotAWinner, "draw pays refunds only")
	}
	if e.Side != s.Winner {
		return money.Amount{}, errorsmod.Wrapf(ErrNotAWinner, "picked %s, winner %s", e.Side, s.Winner)
	}
	if e.Claimed {
		return money.Amount{}, errorsmod.Wrapf(ErrAlreadyClaimed, "%s in %q", e.Participant, s.Key)
	}
	winners := s.Picks.For(s.Winner)
	payout, _, err := s.PrizePool.QuoInt(winners)
	if err != nil {
		return money.Amount{}, fmt.Errorf("failed to split pool: %w", err)
	}
	return payout, nil
}

// QuotePrize returns what ClaimPrize would pay the caller right now, without claiming.
func (l *Ledger) QuotePrize(ctx context.Context, key string, caller Address) (money.Amount, error) {
	s, err := l.GetSeries(ctx, key)
	if err != nil {
		return money.Amount{}, err
	}
	e, err := l.store.GetEntry(ctx, key, caller)
	if err != nil {
		return money.Amount{}, fmt.Errorf("failed to get entry: %w", err)
	}
	return prizeFor(s, e)
}

// ClaimPrize pays the caller their share of a settled pool.
func (l *Ledger) ClaimPrize(ctx context.Context, key string, caller Address) (money.Amount, error) {
	return l.claim(ctx, key, caller, JournalPrize, prizeFor)
}

// refundFor checks refund eligibility: the series was cancelled or settled as a draw.
func refundFor(s *Series, e *Entry) (money.Amount, error) {
	eligible := s.Cancelled || (s.Settled && s.Winner == SideDraw)
	if !eligible {
		return money.Amount{}, errorsmod.Wrapf(ErrNotEligible, "series %q is neither cancelled nor drawn", s.Key)
	}
	if e == nil {
		return money.Amount{}, errorsmod.Wrap(ErrNotEligible, "no entry")
	}
	if e.Claimed {
		return money.Amount{}, errorsmod.Wrapf(ErrAlreadyClaimed, "%s in %q", e.Participant, s.Key)
	}
	return s.EntryFee, nil
}

// ClaimRefund returns the entry fee from a cancelled or drawn series.
func (l *Ledger) ClaimRefund(ctx context.Context, key string, caller Address) (money.Amount, error) {
	return l.claim(ctx, key, caller, JournalRefund, refundFor)
}

// claim marks the entry claimed and calls the payer inside one transaction.
// A payer error rolls back the claimed flag with everything else.
func (l *Ledger) claim(ctx context.Context, key string, caller Address, kind JournalKind, amountFor func(*Series, *Entry) (money.Amount, error)) (money.Amount, error) {
	if caller == "" {
		return money.Amount{}, errorsmod.Wrap(ErrUnauthorized, "caller identity required")
	}

	unlock := l.locks.Lock(key)
	defer unlock()
	now := l.now()

	var paid money.Amount
	err := l.store.Update(ctx, func(tx Tx) error {
		s, err := loadSeries(ctx, tx, key)
		if err != nil {
			return err
		}
		e, err := tx.GetEntry(ctx, key, caller)
		if err != nil {
			return fmt.Errorf("failed to get entry: %w", err)
		}
		amount, err := amountFor(s, e)
		if err != nil {
			return err
		}

		disbursed, err := s.Disbursed.Add(amount)
		if err != nil {
			return fmt.Errorf("failed to track disbursement: %w", err)
		}
		if disbursed.GT(s.PrizePool) {
			return fmt.Errorf("series %q would pay out %s from a pool of %s", key, disbursed, s.PrizePool)
		}
		s.Disbursed = disbursed
		e.Claimed = true
		e.Payout = amount

		if err := tx.UpdateEntry(ctx, e); err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}
		if err := tx.UpdateSeries(ctx, s); err != nil {
			return fmt.Errorf("failed to update series: %w", err)
		}
		transferID := TransferID(key, caller, kind)
		if err := tx.AppendJournal(ctx, JournalEntry{
			ID:          transferID,
			Participant: caller,
			SeriesKey:   key,
			Kind:        kind,
			Amount:      amount,
			CreatedAt:   now,
		}); err != nil {
			return fmt.Errorf("failed to append journal: %w", err)
		}

		if err := l.payer.Pay(ctx, Transfer{
			ID:        transferID,
			SeriesKey: key,
			Recipient: caller,
			Amount:    amount,
			Kind:      kind,
		}); err != nil {
			logger.Error(caller.String(), "transfer_failed", fmt.Sprintf("key=%s kind=%s amount=%s error=%s", key, kind, amount, err))
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
		paid = amount
		return nil
	})
	if err != nil {
		logger.Debug(caller.String(), "claim_rejected", fmt.Sprintf("key=%s kind=%s error=%s", key, kind, err))
		return money.Amount{}, err
	}

	typ := EventPrizeClaimed
	if kind == JournalRefund {
		typ = EventRefundClaimed
	}
	e := newEvent(typ, key, caller, now)
	e.Amount = paid
	l.publish(ctx, e)
	return paid, nil
}
