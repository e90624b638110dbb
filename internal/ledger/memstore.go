package ledger

import (
	"context"
	"fmt"
	"sync"
)

type entryKey struct {
	series      string
	participant Address
}

// MemStore is an in-process Store. Transactions stage writes in an overlay
// that is applied to the committed maps only when the callback succeeds.
type MemStore struct {
	mu          sync.RWMutex
	series      map[string]*Series
	seriesOrder []string
	entries     map[entryKey]*Entry
	entrants    map[string][]Address
	userSeries  map[Address][]string
	journal     map[Address][]JournalEntry
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		series:     make(map[string]*Series),
		entries:    make(map[entryKey]*Entry),
		entrants:   make(map[string][]Address),
		userSeries: make(map[Address][]string),
		journal:    make(map[Address][]JournalEntry),
	}
}

func (m *MemStore) GetSeries(_ context.Context, key string) (*Series, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.series[key]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (m *MemStore) ListSeriesKeys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.seriesOrder...), nil
}

func (m *MemStore) GetEntry(_ context.Context, key string, participant Address) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[entryKey{key, participant}]
	if !ok {
		return nil, nil
	}
	c := *e
	return &c, nil
}

func (m *MemStore) ListEntrants(_ context.Context, key string) ([]Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Address(nil), m.entrants[key]...), nil
}

func (m *MemStore) ListUserSeries(_ context.Context, participant Address) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.userSeries[participant]...), nil
}

func (m *MemStore) ListJournal(_ context.Context, participant Address) ([]JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]JournalEntry(nil), m.journal[participant]...), nil
}

// Update stages writes in a memTx and applies them under the write lock on success.
// Callers serialize per series key, so overlays for different keys never conflict.
func (m *MemStore) Update(_ context.Context, fn func(tx Tx) error) error {
	tx := &memTx{
		base:    m,
		series:  make(map[string]*Series),
		entries: make(map[entryKey]*Entry),
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.commit(tx)
	return nil
}

func (m *MemStore) commit(tx *memTx) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range tx.newSeries {
		m.seriesOrder = append(m.seriesOrder, key)
	}
	for key, s := range tx.series {
		m.series[key] = s
	}
	for _, ek := range tx.newEntries {
		m.entrants[ek.series] = append(m.entrants[ek.series], ek.participant)
		if !containsKey(m.userSeries[ek.participant], ek.series) {
			m.userSeries[ek.participant] = append(m.userSeries[ek.participant], ek.series)
		}
	}
	for ek, e := range tx.entries {
		m.entries[ek] = e
	}
	for _, j := range tx.journal {
		m.journal[j.Participant] = append(m.journal[j.Participant], j)
	}
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

type memTx struct {
	base       *MemStore
	series     map[string]*Series
	newSeries  []string
	entries    map[entryKey]*Entry
	newEntries []entryKey
	journal    []JournalEntry
}

func (t *memTx) GetSeries(ctx context.Context, key string) (*Series, error) {
	if s, ok := t.series[key]; ok {
		c := *s
		return &c, nil
	}
	return t.base.GetSeries(ctx, key)
}

func (t *memTx) ListSeriesKeys(ctx context.Context) ([]string, error) {
	keys, err := t.base.ListSeriesKeys(ctx)
	if err != nil {
		return nil, err
	}
	return append(keys, t.newSeries...), nil
}

func (t *memTx) GetEntry(ctx context.Context, key string, participant Address) (*Entry, error) {
	if e, ok := t.entries[entryKey{key, participant}]; ok {
		c := *e
		return &c, nil
	}
	return t.base.GetEntry(ctx, key, participant)
}

func (t *memTx) ListEntrants(ctx context.Context, key string) ([]Address, error) {
	out, err := t.base.ListEntrants(ctx, key)
	if err != nil {
		return nil, err
	}
	for _, ek := range t.newEntries {
		if ek.series == key {
			out = append(out, ek.participant)
		}
	}
	return out, nil
}

func (t *memTx) ListUserSeries(ctx context.Context, participant Address) ([]string, error) {
	out, err := t.base.ListUserSeries(ctx, participant)
	if err != nil {
		return nil, err
	}
	for _, ek := range t.newEntries {
		if ek.participant == participant && !containsKey(out, ek.series) {
			out = append(out, ek.series)
		}
	}
	return out, nil
}

func (t *memTx) ListJournal(ctx context.Context, participant Address) ([]JournalEntry, error) {
	out, err := t.base.ListJournal(ctx, participant)
	if err != nil {
		return nil, err
	}
	for _, j := range t.journal {
		if j.Participant == participant {
			out = append(out, j)
		}
	}
	return out, nil
}

func (t *memTx) InsertSeries(ctx context.Context, s *Series) error {
	existing, err := t.GetSeries(ctx, s.Key)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("series %q already stored", s.Key)
	}
	c := *s
	t.series[s.Key] = &c
	t.newSeries = append(t.newSeries, s.Key)
	return nil
}

func (t *memTx) UpdateSeries(ctx context.Context, s *Series) error {
	existing, err := t.GetSeries(ctx, s.Key)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("series %q not stored", s.Key)
	}
	c := *s
	t.series[s.Key] = &c
	return nil
}

func (t *memTx) InsertEntry(ctx context.Context, e *Entry) error {
	existing, err := t.GetEntry(ctx, e.SeriesKey, e.Participant)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("entry %s/%s already stored", e.SeriesKey, e.Participant)
	}
	ek := entryKey{e.SeriesKey, e.Participant}
	c := *e
	t.entries[ek] = &c
	t.newEntries = append(t.newEntries, ek)
	return nil
}

func (t *memTx) UpdateEntry(ctx context.Context, e *Entry) error {
	existing, err := t.GetEntry(ctx, e.SeriesKey, e.Participant)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("entry %s/%s not stored", e.SeriesKey, e.Participant)
	}
	c := *e
	t.entries[entryKey{e.SeriesKey, e.Participant}] = &c
	return nil
}

func (t *memTx) AppendJournal(_ context.Context, j JournalEntry) error {
	t.journal = append(t.journal, j)
	return nil
}
