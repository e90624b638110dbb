package ledger

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pickem/internal/money"
)

// Address identifies a participant or the organizer: "0x" followed by 40 hex digits, lowercased.
type Address string

// ParseAddress validates and normalizes an address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if len(s) != 42 || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return "", fmt.Errorf("invalid address %q", s)
	}
	if _, err := hex.DecodeString(s[2:]); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", s, err)
	}
	return Address(strings.ToLower(s)), nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string { return string(a) }

// Side is a pick at entry time or a settlement outcome.
type Side string

const (
	SideUnresolved Side = ""
	SideTeamA      Side = "TEAM_A"
	SideTeamB      Side = "TEAM_B"
	SideDraw       Side = "DRAW"
)

// ParseSide accepts the wire names and a few loose spellings.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TEAM_A", "A", "TEAMA":
		return SideTeamA, nil
	case "TEAM_B", "B", "TEAMB":
		return SideTeamB, nil
	case "DRAW":
		return SideDraw, nil
	}
	return SideUnresolved, fmt.Errorf("unknown side %q", s)
}

// IsPick reports whether s may be chosen when entering.
func (s Side) IsPick() bool {
	return s == SideTeamA || s == SideTeamB
}

// IsOutcome reports whether s may be passed to Settle.
func (s Side) IsOutcome() bool {
	return s.IsPick() || s == SideDraw
}

// State is the derived lifecycle state of a series.
type State string

const (
	StateOpen      State = "OPEN"
	StateLocked    State = "LOCKED"
	StateSettled   State = "SETTLED"
	StateCancelled State = "CANCELLED"
)

// HandleSize is the byte length of a confidential handle.
const HandleSize = 32

// Handle is an opaque ciphertext handle produced by the encryption relayer.
// The ledger stores it verbatim and never looks inside.
type Handle [HandleSize]byte

// ParseHandle decodes a 0x-prefixed hex handle.
func ParseHandle(s string) (Handle, error) {
	var h Handle
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(raw)
	if err != nil {
		return h, fmt.Errorf("invalid handle: %w", err)
	}
	if len(b) != HandleSize {
		return h, fmt.Errorf("invalid handle: want %d bytes, got %d", HandleSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

func (h Handle) IsZero() bool { return h == Handle{} }

func (h Handle) String() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Handle) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Handle) UnmarshalText(b []byte) error {
	parsed, err := ParseHandle(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Value stores the handle as a BLOB.
func (h Handle) Value() (driver.Value, error) { return h[:], nil }

func (h *Handle) Scan(src any) error {
	b, ok := src.([]byte)
	if !ok || len(b) != HandleSize {
		return fmt.Errorf("cannot scan %T into Handle", src)
	}
	copy(h[:], b)
	return nil
}

// PickCounts are unweighted entry counts per side.
type PickCounts struct {
	TeamA uint64 `json:"team_a"`
	TeamB uint64 `json:"team_b"`
}

// For returns the count for a pick side.
func (p PickCounts) For(side Side) uint64 {
	switch side {
	case SideTeamA:
		return p.TeamA
	case SideTeamB:
		return p.TeamB
	}
	return 0
}

// Series is one binary-outcome event.
type Series struct {
	Key          string       `json:"key"`
	TeamA        string       `json:"team_a"`
	TeamB        string       `json:"team_b"`
	EntryFee     money.Amount `json:"entry_fee"`
	LockDeadline time.Time    `json:"lock_deadline"`
	PrizePool    money.Amount `json:"prize_pool"`
	Disbursed    money.Amount `json:"disbursed"`
	EntryCount   uint64       `json:"entry_count"`
	Picks        PickCounts   `json:"picks"`
	Cancelled    bool         `json:"cancelled"`
	Settled      bool         `json:"settled"`
	Winner       Side         `json:"winner,omitempty"`
	Creator      Address      `json:"creator"`
	CreatedAt    time.Time    `json:"created_at"`
	ClosedAt     time.Time    `json:"closed_at,omitzero"`
}

// DeriveState computes the lifecycle state at now.
// Locked is never stored; it follows from the deadline.
func DeriveState(s *Series, now time.Time) State {
	switch {
	case s.Cancelled:
		return StateCancelled
	case s.Settled:
		return StateSettled
	case !now.Before(s.LockDeadline):
		return StateLocked
	default:
		return StateOpen
	}
}

// Entry is one participant's pick in one series.
type Entry struct {
	SeriesKey   string       `json:"series_key"`
	Participant Address      `json:"participant"`
	Side        Side         `json:"side"`
	Handle      Handle       `json:"handle"`
	Paid        money.Amount `json:"paid"`
	Claimed     bool         `json:"claimed"`
	Payout      money.Amount `json:"payout"`
	EnteredAt   time.Time    `json:"entered_at"`
}

// JournalKind classifies a fund movement.
type JournalKind string

const (
	JournalEntryFee JournalKind = "ENTRY_FEE"
	JournalPrize    JournalKind = "PRIZE_PAYOUT"
	JournalRefund   JournalKind = "REFUND"
)

// JournalEntry records a single fund movement for an address.
// EntryFee rows are debits, prize and refund rows are credits.
type JournalEntry struct {
	ID          uuid.UUID    `json:"id"`
	Participant Address      `json:"participant"`
	SeriesKey   string       `json:"series_key"`
	Kind        JournalKind  `json:"kind"`
	Amount      money.Amount `json:"amount"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Params are the creation limits readable by clients.
type Params struct {
	MinEntryFee money.Amount  `json:"min_entry_fee"`
	MinDuration time.Duration `json:"min_duration"`
	MaxDuration time.Duration `json:"max_duration"`
}

// DefaultParams returns a 0.01 minimum fee and a 1h..90d duration window.
func DefaultParams() Params {
	return Params{
		MinEntryFee: money.MustParse("0.01"),
		MinDuration: time.Hour,
		MaxDuration: 90 * 24 * time.Hour,
	}
}
