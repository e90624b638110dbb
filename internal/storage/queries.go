package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"pickem/internal/ledger"
)

const seriesColumns = `series_key, team_a, team_b, entry_fee, lock_deadline, prize_pool, disbursed,
	entry_count, picks_a, picks_b, cancelled, settled, winner, creator, created_at, closed_at`

const entryColumns = `series_key, participant, side, handle, paid, claimed, payout, entered_at`

// queries runs the read side against either the pool or a transaction.
type queries struct {
	q sqlx.ExtContext
}

func (r queries) GetSeries(ctx context.Context, key string) (*ledger.Series, error) {
	var row seriesRow
	err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+seriesColumns+` FROM series WHERE series_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get series: %w", err)
	}
	return row.toSeries(), nil
}

func (r queries) ListSeriesKeys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := sqlx.SelectContext(ctx, r.q, &keys, `SELECT series_key FROM series ORDER BY seq`); err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	return keys, nil
}

func (r queries) GetEntry(ctx context.Context, key string, participant ledger.Address) (*ledger.Entry, error) {
	var row entryRow
	err := sqlx.GetContext(ctx, r.q, &row, `
		SELECT `+entryColumns+`
		FROM entries
		WHERE series_key = ? AND participant = ?
	`, key, participant)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return row.toEntry(), nil
}

func (r queries) ListEntrants(ctx context.Context, key string) ([]ledger.Address, error) {
	var out []ledger.Address
	if err := sqlx.SelectContext(ctx, r.q, &out, `SELECT participant FROM entries WHERE series_key = ? ORDER BY seq`, key); err != nil {
		return nil, fmt.Errorf("failed to list entrants: %w", err)
	}
	return out, nil
}

// ListUserSeries relies on the (series_key, participant) unique constraint for de-duplication.
func (r queries) ListUserSeries(ctx context.Context, participant ledger.Address) ([]string, error) {
	var out []string
	if err := sqlx.SelectContext(ctx, r.q, &out, `SELECT series_key FROM entries WHERE participant = ? ORDER BY seq`, participant); err != nil {
		return nil, fmt.Errorf("failed to list user series: %w", err)
	}
	return out, nil
}

func (r queries) ListJournal(ctx context.Context, participant ledger.Address) ([]ledger.JournalEntry, error) {
	var rows []journalRow
	err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT id, participant, series_key, kind, amount, created_at
		FROM journal
		WHERE participant = ?
		ORDER BY seq
	`, participant)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", err)
	}
	out := make([]ledger.JournalEntry, 0, len(rows))
	for _, row := range rows {
		j, err := row.toJournalEntry()
		if err != nil {
			return nil, fmt.Errorf("failed to decode journal row: %w", err)
		}
		out = append(out, j)
	}
	return out, nil
}

// sqlTx implements ledger.Tx on a database transaction.
type sqlTx struct {
	queries
	tx *sqlx.Tx
}

func (t *sqlTx) InsertSeries(ctx context.Context, s *ledger.Series) error {
	_, err := sqlx.NamedExecContext(ctx, t.tx, `
		INSERT INTO series (`+seriesColumns+`)
		VALUES (:series_key, :team_a, :team_b, :entry_fee, :lock_deadline, :prize_pool, :disbursed,
			:entry_count, :picks_a, :picks_b, :cancelled, :settled, :winner, :creator, :created_at, :closed_at)
	`, newSeriesRow(s))
	if err != nil {
		return fmt.Errorf("failed to insert series: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateSeries(ctx context.Context, s *ledger.Series) error {
	res, err := sqlx.NamedExecContext(ctx, t.tx, `
		UPDATE series SET
			prize_pool = :prize_pool,
			disbursed = :disbursed,
			entry_count = :entry_count,
			picks_a = :picks_a,
			picks_b = :picks_b,
			cancelled = :cancelled,
			settled = :settled,
			winner = :winner,
			closed_at = :closed_at
		WHERE series_key = :series_key
	`, newSeriesRow(s))
	if err != nil {
		return fmt.Errorf("failed to update series: %w", err)
	}
	return expectOneRow(res, "series "+s.Key)
}

func (t *sqlTx) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	_, err := sqlx.NamedExecContext(ctx, t.tx, `
		INSERT INTO entries (`+entryColumns+`)
		VALUES (:series_key, :participant, :side, :handle, :paid, :claimed, :payout, :entered_at)
	`, newEntryRow(e))
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateEntry(ctx context.Context, e *ledger.Entry) error {
	res, err := sqlx.NamedExecContext(ctx, t.tx, `
		UPDATE entries SET claimed = :claimed, payout = :payout
		WHERE series_key = :series_key AND participant = :participant
	`, newEntryRow(e))
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	return expectOneRow(res, fmt.Sprintf("entry %s/%s", e.SeriesKey, e.Participant))
}

func (t *sqlTx) AppendJournal(ctx context.Context, j ledger.JournalEntry) error {
	_, err := sqlx.NamedExecContext(ctx, t.tx, `
		INSERT INTO journal (id, participant, series_key, kind, amount, created_at)
		VALUES (:id, :participant, :series_key, :kind, :amount, :created_at)
	`, newJournalRow(j))
	if err != nil {
		return fmt.Errorf("failed to insert journal row: %w", err)
	}
	return nil
}

func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%s: expected 1 row affected, got %d", what, n)
	}
	return nil
}
