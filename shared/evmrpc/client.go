package evmrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Config holds EVM gateway connection configuration
type Config struct {
	URL            string
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryInterval  time.Duration
}

// Client is a JSON-RPC 2.0 client for a read-only blockchain gateway.
// It is used for transaction lookup only; it never submits transactions.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *slog.Logger
}

// Transaction is the subset of an EVM transaction the verifier needs.
type Transaction struct {
	Hash  string `json:"hash"`
	From  string `json:"from"`
	To    string `json:"to"`
	Input string `json:"input"`
	Value string `json:"value"`
}

// Receipt carries the execution status of a mined transaction.
// Status is "0x1" for success, "0x0" for revert.
type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	Status          string `json:"status"`
}

// ErrNotFound is returned when the gateway resolves the request but the
// transaction does not exist. Callers must treat it as a hard reject, not a
// transient failure.
var ErrNotFound = errors.New("transaction not found")

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewClient creates a new gateway client
func NewClient(config *Config, logger *slog.Logger) *Client {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// TransactionByHash fetches a transaction by its hash.
// Returns ErrNotFound if the hash does not resolve.
func (c *Client) TransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	var tx Transaction
	found, err := c.call(ctx, "eth_getTransactionByHash", []any{hash}, &tx)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &tx, nil
}

// TransactionReceipt fetches the receipt of a mined transaction.
// Returns ErrNotFound if the transaction is unknown or not yet mined.
func (c *Client) TransactionReceipt(ctx context.Context, hash string) (*Receipt, error) {
	var receipt Receipt
	found, err := c.call(ctx, "eth_getTransactionReceipt", []any{hash}, &receipt)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &receipt, nil
}

// call performs one JSON-RPC method call with retry on transient failures.
// A null result is not retried: the gateway answered, the data does not exist.
func (c *Client) call(ctx context.Context, method string, params []any, result any) (bool, error) {
	attempts := c.config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(c.config.RetryInterval):
			}
		}

		found, err := c.callOnce(ctx, method, params, result)
		if err == nil {
			return found, nil
		}

		lastErr = err
		c.logger.Warn("RPC call failed",
			slog.String("method", method),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.String("error", err.Error()),
		)

		if ctx.Err() != nil {
			return false, ctx.Err()
		}
	}

	return false, fmt.Errorf("rpc call %s failed after %d attempts: %w", method, attempts, lastErr)
}

func (c *Client) callOnce(ctx context.Context, method string, params []any, result any) (bool, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("rpc request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("rpc gateway returned status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return false, fmt.Errorf("failed to decode rpc response: %w", err)
	}

	if rpcResp.Error != nil {
		return false, rpcResp.Error
	}

	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return false, nil
	}

	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return false, fmt.Errorf("failed to decode rpc result: %w", err)
	}

	return true, nil
}
