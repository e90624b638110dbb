package treasury

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickem/internal/ledger"
	"pickem/internal/money"
)

func testTransfer() ledger.Transfer {
	return ledger.Transfer{
		ID:        uuid.New(),
		SeriesKey: "final",
		Recipient: ledger.MustParseAddress("0x0000000000000000000000000000000000001001"),
		Amount:    money.MustParse("0.015"),
		Kind:      ledger.JournalPrize,
	}
}

func TestPaySendsTransfer(t *testing.T) {
	tr := testTransfer()
	var got ledger.Transfer
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transfers", r.URL.Path)
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		assert.Equal(t, tr.ID.String(), r.Header.Get("Idempotency-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":"sent","tx_ref":"0xabc"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "svc-token")
	require.NoError(t, c.Pay(context.Background(), tr))

	assert.Equal(t, tr.ID, got.ID)
	assert.Equal(t, tr.Recipient, got.Recipient)
	assert.True(t, tr.Amount.Equal(got.Amount))
	assert.Equal(t, ledger.JournalPrize, got.Kind)
}

func TestPayStatuses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		expectErr bool
	}{
		{name: "accepted", status: http.StatusAccepted},
		{name: "ok without body", status: http.StatusOK},
		{name: "duplicate", status: http.StatusConflict},
		{name: "rejected", status: http.StatusUnprocessableEntity, body: `{"error":"insufficient funds"}`, expectErr: true},
		{name: "server error", status: http.StatusInternalServerError, expectErr: true},
		{name: "garbled ack", status: http.StatusOK, body: `{`, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewClient(srv.URL, "t").Pay(context.Background(), testTransfer())
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPayUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewClient(url, "t").Pay(context.Background(), testTransfer())
	assert.Error(t, err)
}

func TestPayFailureKeepsClaimOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx := context.Background()
	organizer := ledger.MustParseAddress("0x00000000000000000000000000000000000000aa")
	player := ledger.MustParseAddress("0x0000000000000000000000000000000000001001")
	l := ledger.New(ledger.NewMemStore(), organizer,
		ledger.WithPayer(NewClient(srv.URL, "t")),
		ledger.WithEventSink(&ledger.RecordingSink{}),
	)
	_, err := l.CreateSeries(ctx, organizer, ledger.CreateSeriesRequest{
		Key: "rain", TeamA: "A", TeamB: "B", EntryFee: money.MustParse("0.01"), Duration: 2 * time.Hour,
	})
	require.NoError(t, err)
	var h ledger.Handle
	h[0] = 1
	_, err = l.Enter(ctx, ledger.EnterRequest{
		Key: "rain", Side: ledger.SideTeamA, Handle: h, Proof: []byte{1}, Paid: money.MustParse("0.01"), Caller: player,
	})
	require.NoError(t, err)
	_, err = l.Cancel(ctx, "rain", organizer)
	require.NoError(t, err)

	_, err = l.ClaimRefund(ctx, "rain", player)
	require.ErrorIs(t, err, ledger.ErrTransferFailed)

	e, err := l.GetEntry(ctx, "rain", player)
	require.NoError(t, err)
	assert.False(t, e.Claimed)
}
