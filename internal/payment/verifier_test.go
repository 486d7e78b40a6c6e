package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paygenio/paygen/internal/domain"
	"github.com/paygenio/paygen/shared/evmrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTokenContract = "0x036cbd53842c5426634e7929541ec2318f3dcf7e"
	testRecipient     = "0x1111111111111111111111111111111111111111"
	testPayer         = "0x2222222222222222222222222222222222222222"
	testTxHash        = "0x" + "ab" + "00000000000000000000000000000000000000000000000000000000000000"
)

// transferInput builds ERC-20 transfer call data for a recipient and amount.
func transferInput(recipient string, units *big.Int) string {
	addr := strings.TrimPrefix(strings.ToLower(recipient), "0x")
	return "0xa9059cbb" +
		strings.Repeat("0", 24) + addr +
		fmt.Sprintf("%064x", units)
}

type rpcFixture struct {
	tx        map[string]any
	receipt   map[string]any
	failFirst bool
	calls     int
}

// newRPCServer serves eth_getTransactionByHash and eth_getTransactionReceipt
// from the fixture. Nil fixture fields answer null, the way a real gateway
// reports an unknown hash.
func newRPCServer(t *testing.T, fx *rpcFixture) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fx.calls++
		if fx.failFirst && fx.calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		var req struct {
			Method string `json:"method"`
			ID     int    `json:"id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result any
		switch req.Method {
		case "eth_getTransactionByHash":
			if fx.tx != nil {
				result = fx.tx
			}
		case "eth_getTransactionReceipt":
			if fx.receipt != nil {
				result = fx.receipt
			}
		default:
			t.Fatalf("unexpected rpc method %s", req.Method)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
}

func newTestVerifier(gatewayURL string, toleranceBps int64) *Verifier {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gateway := evmrpc.NewClient(&evmrpc.Config{
		URL:            gatewayURL,
		RequestTimeout: 5 * time.Second,
		RetryAttempts:  2,
		RetryInterval:  10 * time.Millisecond,
	}, logger)

	return NewVerifier(gateway, &Config{
		TokenContract:      testTokenContract,
		AmountToleranceBps: toleranceBps,
	}, logger)
}

func goodTx(recipient string, units *big.Int) map[string]any {
	return map[string]any{
		"hash":  testTxHash,
		"from":  testPayer,
		"to":    testTokenContract,
		"input": transferInput(recipient, units),
		"value": "0x0",
	}
}

func successReceipt() map[string]any {
	return map[string]any{"transactionHash": testTxHash, "status": "0x1"}
}

func TestVerifier_Verify(t *testing.T) {
	price, err := domain.ParseAmount("1.00")
	require.NoError(t, err)
	exactUnits := big.NewInt(1_000_000)

	tests := []struct {
		name       string
		fixture    *rpcFixture
		wantAccept bool
		wantReason string
	}{
		{
			name: "exact payment accepted",
			fixture: &rpcFixture{
				tx:      goodTx(testRecipient, exactUnits),
				receipt: successReceipt(),
			},
			wantAccept: true,
		},
		{
			name: "payment within tolerance accepted",
			fixture: &rpcFixture{
				tx:      goodTx(testRecipient, big.NewInt(999_500)),
				receipt: successReceipt(),
			},
			wantAccept: true,
		},
		{
			name:       "transaction not found",
			fixture:    &rpcFixture{},
			wantReason: domain.RejectTxNotFound,
		},
		{
			name: "transaction not yet mined",
			fixture: &rpcFixture{
				tx: goodTx(testRecipient, exactUnits),
			},
			wantReason: domain.RejectTxNotFound,
		},
		{
			name: "transaction reverted",
			fixture: &rpcFixture{
				tx:      goodTx(testRecipient, exactUnits),
				receipt: map[string]any{"transactionHash": testTxHash, "status": "0x0"},
			},
			wantReason: domain.RejectExecutionFailed,
		},
		{
			name: "wrong token contract",
			fixture: &rpcFixture{
				tx: map[string]any{
					"hash":  testTxHash,
					"from":  testPayer,
					"to":    "0x9999999999999999999999999999999999999999",
					"input": transferInput(testRecipient, exactUnits),
				},
				receipt: successReceipt(),
			},
			wantReason: domain.RejectWrongContract,
		},
		{
			name: "call data is not a transfer",
			fixture: &rpcFixture{
				tx: map[string]any{
					"hash":  testTxHash,
					"from":  testPayer,
					"to":    testTokenContract,
					"input": "0xdeadbeef",
				},
				receipt: successReceipt(),
			},
			wantReason: domain.RejectWrongContract,
		},
		{
			name: "transfer frame with trailing bytes",
			fixture: &rpcFixture{
				tx: map[string]any{
					"hash":  testTxHash,
					"from":  testPayer,
					"to":    testTokenContract,
					"input": transferInput(testRecipient, exactUnits) + "00",
				},
				receipt: successReceipt(),
			},
			wantReason: domain.RejectWrongContract,
		},
		{
			name: "wrong recipient",
			fixture: &rpcFixture{
				tx:      goodTx("0x3333333333333333333333333333333333333333", exactUnits),
				receipt: successReceipt(),
			},
			wantReason: domain.RejectWrongRecipient,
		},
		{
			name: "amount outside tolerance",
			fixture: &rpcFixture{
				tx:      goodTx(testRecipient, big.NewInt(998_000)),
				receipt: successReceipt(),
			},
			wantReason: domain.RejectWrongAmount,
		},
		{
			name: "transient gateway failure retried",
			fixture: &rpcFixture{
				tx:        goodTx(testRecipient, exactUnits),
				receipt:   successReceipt(),
				failFirst: true,
			},
			wantAccept: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newRPCServer(t, tt.fixture)
			defer srv.Close()

			verifier := newTestVerifier(srv.URL, 10)

			verdict, err := verifier.Verify(context.Background(), testTxHash, testRecipient, price)
			require.NoError(t, err)
			require.NotNil(t, verdict)

			if tt.wantAccept {
				assert.True(t, verdict.Accepted)
				assert.Equal(t, testPayer, verdict.Payer)
			} else {
				assert.False(t, verdict.Accepted)
				assert.Equal(t, tt.wantReason, verdict.Reason)
				assert.NotEmpty(t, verdict.Detail)
			}
		})
	}
}

func TestVerifier_Verify_GatewayUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	price, err := domain.ParseAmount("1.00")
	require.NoError(t, err)

	verifier := newTestVerifier(srv.URL, 10)

	verdict, err := verifier.Verify(context.Background(), testTxHash, testRecipient, price)
	require.Error(t, err)
	assert.Nil(t, verdict)
	assert.Contains(t, err.Error(), "failed to fetch transaction")
}

func TestVerifier_Verify_Repeatable(t *testing.T) {
	fx := &rpcFixture{
		tx:      goodTx(testRecipient, big.NewInt(1_000_000)),
		receipt: successReceipt(),
	}
	srv := newRPCServer(t, fx)
	defer srv.Close()

	price, err := domain.ParseAmount("1.00")
	require.NoError(t, err)

	verifier := newTestVerifier(srv.URL, 10)

	// The verifier is a pure oracle: repeated checks of the same reference
	// return the same verdict.
	for i := 0; i < 3; i++ {
		verdict, err := verifier.Verify(context.Background(), testTxHash, testRecipient, price)
		require.NoError(t, err)
		assert.True(t, verdict.Accepted)
	}
}

func TestDecodeTransfer(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantAddr  string
		wantUnits int64
		wantErr   bool
	}{
		{
			name:      "valid transfer",
			input:     transferInput(testRecipient, big.NewInt(500_000)),
			wantAddr:  testRecipient,
			wantUnits: 500_000,
		},
		{
			name:    "short call data",
			input:   "0xa9059cbb",
			wantErr: true,
		},
		{
			name:    "wrong selector",
			input:   "0x095ea7b3" + strings.Repeat("0", 128),
			wantErr: true,
		},
		{
			name:    "trailing bytes after transfer frame",
			input:   transferInput(testRecipient, big.NewInt(500_000)) + "ff",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recipient, amount, err := decodeTransfer(tt.input)

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantAddr, recipient)
				assert.Equal(t, tt.wantUnits, amount.Int64())
			}
		})
	}
}
