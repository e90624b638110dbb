package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pickem/internal/logger"
	"pickem/internal/money"
)

// EventType names a committed ledger transition.
type EventType string

const (
	EventSeriesCreated   EventType = "series_created"
	EventEntrySubmitted  EventType = "entry_submitted"
	EventSeriesSettled   EventType = "series_settled"
	EventSeriesCancelled EventType = "series_cancelled"
	EventPrizeClaimed    EventType = "prize_claimed"
	EventRefundClaimed   EventType = "refund_claimed"
)

// Event is emitted once per successful mutation, after commit.
// Fields that do not apply to the type are left zero.
type Event struct {
	ID           uuid.UUID    `json:"id"`
	Type         EventType    `json:"type"`
	SeriesKey    string       `json:"series_key"`
	Actor        Address      `json:"actor"`
	TeamA        string       `json:"team_a,omitempty"`
	TeamB        string       `json:"team_b,omitempty"`
	Side         Side         `json:"side,omitempty"`
	Amount       money.Amount `json:"amount"`
	LockDeadline time.Time    `json:"lock_deadline,omitzero"`
	At           time.Time    `json:"at"`
}

func newEvent(typ EventType, key string, actor Address, at time.Time) Event {
	return Event{
		ID:        uuid.New(),
		Type:      typ,
		SeriesKey: key,
		Actor:     actor,
		At:        at,
	}
}

// EventSink receives committed events. Publish must not block the caller for long;
// sinks that talk to the network should queue.
type EventSink interface {
	Publish(ctx context.Context, e Event)
}

// MultiSink fans an event out to every sink in order.
type MultiSink []EventSink

func (m MultiSink) Publish(ctx context.Context, e Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(ctx, e)
		}
	}
}

// LogSink writes every event through the logger.
type LogSink struct{}

func (LogSink) Publish(_ context.Context, e Event) {
	details := fmt.Sprintf("event_id=%s series=%s", e.ID, e.SeriesKey)
	if e.Side != SideUnresolved {
		details += fmt.Sprintf(" side=%s", e.Side)
	}
	if !e.Amount.IsZero() {
		details += fmt.Sprintf(" amount=%s", e.Amount)
	}
	if !e.LockDeadline.IsZero() {
		details += fmt.Sprintf(" lock_deadline=%s", e.LockDeadline.Format(time.RFC3339))
	}
	logger.Info(e.Actor.String(), string(e.Type), details)
}

// RecordingSink keeps events in memory.
type RecordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *RecordingSink) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far.
func (r *RecordingSink) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
