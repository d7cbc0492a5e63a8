package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adtrust/escrow-bridge/internal/escrow"
	"github.com/adtrust/escrow-bridge/internal/txcodec"
	"go.uber.org/zap"
)

// HTTPClient speaks the ledger's JSON wire contract (the same one
// cmd/devledger serves). Connection failures and 5xx answers surface as
// ErrUnavailable so callers can tell "down" from "said no".
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, log *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

func (c *HTTPClient) CurrentCheckpoint(ctx context.Context) (CheckpointInfo, error) {
	var info CheckpointInfo
	if err := c.getJSON(ctx, "/checkpoint", &info); err != nil {
		return CheckpointInfo{}, err
	}
	return info, nil
}

func (c *HTTPClient) Balance(ctx context.Context, id string) (int64, error) {
	var out struct {
		Balance int64 `json:"balance"`
	}
	path := fmt.Sprintf("/accounts/%s/balance", url.PathEscape(id))
	if err := c.getJSON(ctx, path, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

func (c *HTTPClient) Broadcast(ctx context.Context, env txcodec.SignedEnvelope) (string, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("broadcast: %w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("broadcast: %w: HTTP %d", ErrUnavailable, resp.StatusCode)
	default:
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("broadcast rejected: HTTP %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		TxID string `json:"tx_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("broadcast: decode response: %w", err)
	}
	if out.TxID == "" {
		return "", fmt.Errorf("broadcast: ledger returned empty transaction id")
	}
	return out.TxID, nil
}

func (c *HTTPClient) Transaction(ctx context.Context, id string) (*Transaction, error) {
	var tx Transaction
	path := fmt.Sprintf("/transactions/%s", url.PathEscape(id))
	if err := c.getJSON(ctx, path, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *HTTPClient) TransactionsAt(ctx context.Context, checkpoint uint64) ([]Transaction, error) {
	var txs []Transaction
	path := fmt.Sprintf("/checkpoints/%d/transactions", checkpoint)
	if err := c.getJSON(ctx, path, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (c *HTTPClient) EscrowSnapshot(ctx context.Context, address string) (*escrow.Snapshot, error) {
	var out struct {
		escrow.Snapshot
		Wire string `json:"wire,omitempty"`
	}
	path := fmt.Sprintf("/escrows/%s", url.PathEscape(address))
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out.Snapshot, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", path, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%s: %w: HTTP %d", path, ErrUnavailable, resp.StatusCode)
	default:
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: HTTP %d: %s", path, resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}

var _ Accessor = (*HTTPClient)(nil)
