// Package ton is the REST client for a toncenter-style TON chain indexer.
// It is used by the purchase poller to correlate inbound transfers with
// purchase memos.
package ton

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taibet/taibet/internal/domain"
)

// Client is the REST client for the TON indexer API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new indexer client.
//
// baseURL is the API root, e.g. "https://toncenter.com/api/v2".
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RecentTransfers returns the most recent inbound transfers to the given
// account, newest first.
func (c *Client) RecentTransfers(ctx context.Context, account string, limit int) ([]Transfer, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	params := url.Values{}
	params.Set("address", account)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("archival", "false")

	body, err := c.doRequest(ctx, "/getTransactions?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("ton: get transactions for %s: %w", account, err)
	}

	var resp struct {
		OK     bool             `json:"ok"`
		Result []rawTransaction `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("ton: decode transactions: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("ton: indexer returned not-ok for %s", account)
	}

	transfers := make([]Transfer, 0, len(resp.Result))
	for _, raw := range resp.Result {
		if raw.InMsg.Source == "" {
			// Outbound or external message, not a payment.
			continue
		}
		t, err := toTransfer(raw)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, nil
}

// FindTransferByMemo scans recent inbound transfers to account for one whose
// comment equals memo. domain.ErrNotFound when no such transfer exists yet.
func (c *Client) FindTransferByMemo(ctx context.Context, account, memo string) (Transfer, error) {
	transfers, err := c.RecentTransfers(ctx, account, 50)
	if err != nil {
		return Transfer{}, err
	}
	for _, t := range transfers {
		if t.Comment == memo {
			return t, nil
		}
	}
	return Transfer{}, domain.ErrNotFound
}

func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

func toTransfer(raw rawTransaction) (Transfer, error) {
	lt, err := strconv.ParseInt(raw.TransactionID.Lt, 10, 64)
	if err != nil {
		return Transfer{}, fmt.Errorf("ton: parse lt %q: %w", raw.TransactionID.Lt, err)
	}
	nano, err := decimal.NewFromString(raw.InMsg.Value)
	if err != nil {
		return Transfer{}, fmt.Errorf("ton: parse value %q: %w", raw.InMsg.Value, err)
	}
	return Transfer{
		TxHash:    raw.TransactionID.Hash,
		Source:    raw.InMsg.Source,
		Dest:      raw.InMsg.Destination,
		AmountTON: nano.Div(nanoTON),
		Comment:   raw.InMsg.Message,
		Lt:        lt,
		Utime:     raw.Utime,
	}, nil
}
