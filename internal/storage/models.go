package storage

import (
	"time"

	"github.com/google/uuid"

	"pickem/internal/ledger"
	"pickem/internal/money"
)

// seriesRow is a row of the series table. Times are unix seconds.
type seriesRow struct {
	Key          string         `db:"series_key"`
	TeamA        string         `db:"team_a"`
	TeamB        string         `db:"team_b"`
	EntryFee     money.Amount   `db:"entry_fee"`
	LockDeadline int64          `db:"lock_deadline"`
	PrizePool    money.Amount   `db:"prize_pool"`
	Disbursed    money.Amount   `db:"disbursed"`
	EntryCount   uint64         `db:"entry_count"`
	PicksA       uint64         `db:"picks_a"`
	PicksB       uint64         `db:"picks_b"`
	Cancelled    bool           `db:"cancelled"`
	Settled      bool           `db:"settled"`
	Winner       ledger.Side    `db:"winner"`
	Creator      ledger.Address `db:"creator"`
	CreatedAt    int64          `db:"created_at"`
	ClosedAt     int64          `db:"closed_at"`
}

func newSeriesRow(s *ledger.Series) seriesRow {
	return seriesRow{
		Key:          s.Key,
		TeamA:        s.TeamA,
		TeamB:        s.TeamB,
		EntryFee:     s.EntryFee,
		LockDeadline: s.LockDeadline.Unix(),
		PrizePool:    s.PrizePool,
		Disbursed:    s.Disbursed,
		EntryCount:   s.EntryCount,
		PicksA:       s.Picks.TeamA,
		PicksB:       s.Picks.TeamB,
		Cancelled:    s.Cancelled,
		Settled:      s.Settled,
		Winner:       s.Winner,
		Creator:      s.Creator,
		CreatedAt:    s.CreatedAt.Unix(),
		ClosedAt:     unixOrZero(s.ClosedAt),
	}
}

func (r seriesRow) toSeries() *ledger.Series {
	return &ledger.Series{
		Key:          r.Key,
		TeamA:        r.TeamA,
		TeamB:        r.TeamB,
		EntryFee:     r.EntryFee,
		LockDeadline: fromUnix(r.LockDeadline),
		PrizePool:    r.PrizePool,
		Disbursed:    r.Disbursed,
		EntryCount:   r.EntryCount,
		Picks:        ledger.PickCounts{TeamA: r.PicksA, TeamB: r.PicksB},
		Cancelled:    r.Cancelled,
		Settled:      r.Settled,
		Winner:       r.Winner,
		Creator:      r.Creator,
		CreatedAt:    fromUnix(r.CreatedAt),
		ClosedAt:     fromUnix(r.ClosedAt),
	}
}

// entryRow is a row of the entries table.
type entryRow struct {
	SeriesKey   string         `db:"series_key"`
	Participant ledger.Address `db:"participant"`
	Side        ledger.Side    `db:"side"`
	Handle      ledger.Handle  `db:"handle"`
	Paid        money.Amount   `db:"paid"`
	Claimed     bool           `db:"claimed"`
	Payout      money.Amount   `db:"payout"`
	EnteredAt   int64          `db:"entered_at"`
}

func newEntryRow(e *ledger.Entry) entryRow {
	return entryRow{
		SeriesKey:   e.SeriesKey,
		Participant: e.Participant,
		Side:        e.Side,
		Handle:      e.Handle,
		Paid:        e.Paid,
		Claimed:     e.Claimed,
		Payout:      e.Payout,
		EnteredAt:   e.EnteredAt.Unix(),
	}
}

func (r entryRow) toEntry() *ledger.Entry {
	return &ledger.Entry{
		SeriesKey:   r.SeriesKey,
		Participant: r.Participant,
		Side:        r.Side,
		Handle:      r.Handle,
		Paid:        r.Paid,
		Claimed:     r.Claimed,
		Payout:      r.Payout,
		EnteredAt:   fromUnix(r.EnteredAt),
	}
}

// journalRow is a row of the journal table.
type journalRow struct {
	ID          string             `db:"id"`
	Participant ledger.Address     `db:"participant"`
	SeriesKey   string             `db:"series_key"`
	Kind        ledger.JournalKind `db:"kind"`
	Amount      money.Amount       `db:"amount"`
	CreatedAt   int64              `db:"created_at"`
}

func newJournalRow(j ledger.JournalEntry) journalRow {
	return journalRow{
		ID:          j.ID.String(),
		Participant: j.Participant,
		SeriesKey:   j.SeriesKey,
		Kind:        j.Kind,
		Amount:      j.Amount,
		CreatedAt:   j.CreatedAt.Unix(),
	}
}

func (r journalRow) toJournalEntry() (ledger.JournalEntry, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	return ledger.JournalEntry{
		ID:          id,
		Participant: r.Participant,
		SeriesKey:   r.SeriesKey,
		Kind:        r.Kind,
		Amount:      r.Amount,
		CreatedAt:   fromUnix(r.CreatedAt),
	}, nil
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
