package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"

	"pickem/internal/logger"
	"pickem/internal/money"
)

const (
	maxKeyLen  = 64
	maxTeamLen = 80
)

// CreateSeriesRequest carries the organizer's parameters for a new series.
type CreateSeriesRequest struct {
	Key      string
	TeamA    string
	TeamB    string
	EntryFee money.Amount
	Duration time.Duration
}

func (r CreateSeriesRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Key) == "":
		return errorsmod.Wrap(ErrInvalidRequest, "key is required")
	case len(r.Key) > maxKeyLen:
		return errorsmod.Wrapf(ErrInvalidRequest, "key longer than %d bytes", maxKeyLen)
	case strings.TrimSpace(r.TeamA) == "" || strings.TrimSpace(r.TeamB) == "":
		return errorsmod.Wrap(ErrInvalidRequest, "both team names are required")
	case len(r.TeamA) > maxTeamLen || len(r.TeamB) > maxTeamLen:
		return errorsmod.Wrapf(ErrInvalidRequest, "team names longer than %d bytes", maxTeamLen)
	case strings.EqualFold(strings.TrimSpace(r.TeamA), strings.TrimSpace(r.TeamB)):
		return errorsmod.Wrap(ErrInvalidRequest, "teams must differ")
	}
	return nil
}

// CreateSeries registers a new series. Only the organizer may call it.
// The lock deadline is now + Duration.
func (l *Ledger) CreateSeries(ctx context.Context, caller Address, req CreateSeriesRequest) (*Series, error) {
	if err := l.requireOrganizer(caller); err != nil {
		logger.Debug(caller.String(), "series_create_unauthorized", "key="+req.Key)
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	unlock := l.locks.Lock(req.Key)
	defer unlock()
	now := l.now()

	var created *Series
	err := l.store.Update(ctx, func(tx Tx) error {
		existing, err := tx.GetSeries(ctx, req.Key)
		if err != nil {
			return fmt.Errorf("failed to get series: %w", err)
		}
		if existing != nil {
			return errorsmod.Wrapf(ErrDuplicateKey, "series %q", req.Key)
		}
		if req.EntryFee.LT(l.params.MinEntryFee) {
			return errorsmod.Wrapf(ErrInvalidFee, "fee %s below minimum %s", req.EntryFee, l.params.MinEntryFee)
		}
		if req.Duration < l.params.MinDuration || req.Duration > l.params.MaxDuration {
			return errorsmod.Wrapf(ErrInvalidDuration, "%s not within [%s, %s]", req.Duration, l.params.MinDuration, l.params.MaxDuration)
		}

		s := &Series{
			Key:          req.Key,
			TeamA:        strings.TrimSpace(req.TeamA),
			TeamB:        strings.TrimSpace(req.TeamB),
			EntryFee:     req.EntryFee,
			LockDeadline: now.Add(req.Duration),
			PrizePool:    money.Zero(),
			Disbursed:    money.Zero(),
			Winner:       SideUnresolved,
			Creator:      caller,
			CreatedAt:    now,
		}
		if err := tx.InsertSeries(ctx, s); err != nil {
			return fmt.Errorf("failed to insert series: %w", err)
		}
		created = s
		return nil
	})
	if err != nil {
		logger.Debug(caller.String(), "series_create_rejected", fmt.Sprintf("key=%s error=%s", req.Key, err))
		return nil, err
	}

	e := newEvent(EventSeriesCreated, created.Key, caller, now)
	e.TeamA, e.TeamB = created.TeamA, created.TeamB
	e.Amount = created.EntryFee
	e.LockDeadline = created.LockDeadline
	l.publish(ctx, e)
	return created, nil
}
