package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultEsploraURL is the public Blockstream explorer API.
const DefaultEsploraURL = "https://blockstream.info/api"

// ErrTransactionNotFound is returned when the explorer answers 404 for a
// transaction lookup.
var ErrTransactionNotFound = errors.New("transaction not found")

// APIError is a non-200 explorer response.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status %d", e.StatusCode)
}

// BitcoinTransaction mirrors the Esplora GET /tx/{txid} document.
type BitcoinTransaction struct {
	TxID   string          `json:"txid"`
	Status BitcoinTxStatus `json:"status"`
	Vin    []BitcoinInput  `json:"vin"`
	Vout   []BitcoinOutput `json:"vout"`
}

type BitcoinTxStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight *int64 `json:"block_height,omitempty"`
	BlockHash   string `json:"block_hash,omitempty"`
	BlockTime   int64  `json:"block_time,omitempty"`
}

type BitcoinInput struct {
	TxID    string         `json:"txid"`
	Vout    uint32         `json:"vout"`
	Prevout *BitcoinOutput `json:"prevout"`
}

type BitcoinOutput struct {
	ScriptPubKey        string `json:"scriptpubkey"`
	ScriptPubKeyType    string `json:"scriptpubkey_type"`
	ScriptPubKeyAddress string `json:"scriptpubkey_address"`
	Value               int64  `json:"value"`
}

// BitcoinProvider queries a block explorer.
type BitcoinProvider interface {
	GetTransaction(ctx context.Context, txid string) (*BitcoinTransaction, error)
	GetTipHeight(ctx context.Context) (int64, error)
}

// BitcoinBackend is either a configured provider or the disabled variant.
type BitcoinBackend struct {
	provider BitcoinProvider
}

func ConfiguredBitcoin(p BitcoinProvider) BitcoinBackend {
	return BitcoinBackend{provider: p}
}

func UnconfiguredBitcoin() BitcoinBackend {
	return BitcoinBackend{}
}

// Provider returns the provider and whether Bitcoin is enabled
func (b BitcoinBackend) Provider() (BitcoinProvider, bool) {
	return b.provider, b.provider != nil
}

// EsploraClient implements BitcoinProvider against an Esplora-compatible API.
type EsploraClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

func NewEsploraClient(baseURL string, httpClient *http.Client, timeout time.Duration) *EsploraClient {
	if baseURL == "" {
		baseURL = DefaultEsploraURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &EsploraClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		timeout:    timeout,
	}
}

func (c *EsploraClient) GetTransaction(ctx context.Context, txid string) (*BitcoinTransaction, error) {
	body, err := c.get(ctx, "/tx/"+url.PathEscape(txid))
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	var tx BitcoinTransaction
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return &tx, nil
}

func (c *EsploraClient) GetTipHeight(ctx context.Context) (int64, error) {
	body, err := c.get(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}

	height, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse tip height: %w", err)
	}
	return height, nil
}

func (c *EsploraClient) get(ctx context.Context, path string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("explorer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
