package ledger

import "context"

// Reader is the read side of a store. Lookups return (nil, nil) when the record is absent.
type Reader interface {
	GetSeries(ctx context.Context, key string) (*Series, error)
	ListSeriesKeys(ctx context.Context) ([]string, error)
	GetEntry(ctx context.Context, key string, participant Address) (*Entry, error)
	ListEntrants(ctx context.Context, key string) ([]Address, error)
	ListUserSeries(ctx context.Context, participant Address) ([]string, error)
	ListJournal(ctx context.Context, participant Address) ([]JournalEntry, error)
}

// Tx is a unit of work. Writes are visible to reads on the same Tx
// and to nobody else until the enclosing Update returns nil.
type Tx interface {
	Reader
	InsertSeries(ctx context.Context, s *Series) error
	UpdateSeries(ctx context.Context, s *Series) error
	// InsertEntry also appends the participant to the series' entrant list
	// and the key to the participant's series index.
	InsertEntry(ctx context.Context, e *Entry) error
	UpdateEntry(ctx context.Context, e *Entry) error
	AppendJournal(ctx context.Context, j JournalEntry) error
}

// Store persists series, entries and the account journal.
type Store interface {
	Reader
	// Update runs fn in a transaction. Any error from fn discards every write.
	Update(ctx context.Context, fn func(tx Tx) error) error
}
