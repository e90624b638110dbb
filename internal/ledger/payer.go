package ledger

import (
	"context"

	"github.com/google/uuid"

	"pickem/internal/money"
)

// Transfer is one outgoing payment from a series pool.
type Transfer struct {
	ID        uuid.UUID    `json:"id"`
	SeriesKey string       `json:"series_key"`
	Recipient Address      `json:"recipient"`
	Amount    money.Amount `json:"amount"`
	Kind      JournalKind  `json:"kind"`
}

// Payer moves funds out of the pool. It is called inside the claim transaction;
// returning an error aborts the claim and leaves the entry unclaimed.
// Transfer.ID is derived from the claim (series, recipient, kind), so a retry
// after a lost acknowledgement carries the same ID and implementations can dedupe.
type Payer interface {
	Pay(ctx context.Context, t Transfer) error
}

var transferNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:pickem:transfer"))

// TransferID is the deterministic ID of the single transfer a claim may make.
func TransferID(key string, recipient Address, kind JournalKind) uuid.UUID {
	return uuid.NewSHA1(transferNamespace, []byte(key+"/"+recipient.String()+"/"+string(kind)))
}

// PayerFunc adapts a function to Payer.
type PayerFunc func(ctx context.Context, t Transfer) error

func (f PayerFunc) Pay(ctx context.Context, t Transfer) error { return f(ctx, t) }

// JournalOnlyPayer settles claims purely in the account journal.
type JournalOnlyPayer struct{}

func (JournalOnlyPayer) Pay(context.Context, Transfer) error { return nil }
