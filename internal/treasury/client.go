// Package treasury pays out claims through an external treasury service.
package treasury

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pickem/internal/ledger"
	"pickem/internal/logger"
)

// Client posts transfer instructions to the treasury service.
type Client struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

var _ ledger.Payer = (*Client)(nil)

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// transferResponse is the treasury's acknowledgement.
type transferResponse struct {
	Status string `json:"status"`
	TxRef  string `json:"tx_ref"`
}

// Pay calls POST /transfers. The transfer ID doubles as the idempotency key,
// and a 409 means the treasury already executed this transfer.
func (c *Client) Pay(ctx context.Context, t ledger.Transfer) error {
	jsonData, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode transfer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/transfers", bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Idempotency-Key", t.ID.String())

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("treasury request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	case http.StatusConflict:
		logger.Info(t.Recipient.String(), "treasury_duplicate_transfer", "transfer_id="+t.ID.String())
		return nil
	default:
		logger.Error(t.Recipient.String(), "treasury_transfer_rejected",
			fmt.Sprintf("transfer_id=%s status=%d body=%s", t.ID, resp.StatusCode, string(body)))
		return fmt.Errorf("treasury returned %d", resp.StatusCode)
	}

	var out transferResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return fmt.Errorf("failed to decode treasury response: %w", err)
		}
	}
	logger.Info(t.Recipient.String(), "treasury_transfer_sent",
		fmt.Sprintf("transfer_id=%s series=%s amount=%s tx_ref=%s", t.ID, t.SeriesKey, t.Amount, out.TxRef))
	return nil
}
