package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/paygenio/paygen/internal/domain"
	"github.com/paygenio/paygen/shared/evmrpc"
)

// Verdict is the outcome of verifying one payment claim. When Accepted is
// false, Reason holds one of the domain.Reject* constants and Detail an
// actionable explanation safe to return to the caller.
type Verdict struct {
	Accepted bool
	Reason   string
	Detail   string
	Payer    string
}

// Gateway is the read-only chain access the verifier needs.
type Gateway interface {
	TransactionByHash(ctx context.Context, hash string) (*evmrpc.Transaction, error)
	TransactionReceipt(ctx context.Context, hash string) (*evmrpc.Receipt, error)
}

// Config holds verifier settings
type Config struct {
	TokenContract      string
	AmountToleranceBps int64
}

// Verifier checks a claimed transaction against the chain. It is a pure
// oracle: no side effects beyond the RPC reads, safe to call any number of
// times for the same reference.
type Verifier struct {
	gateway       Gateway
	tokenContract string
	toleranceBps  int64
	logger        *slog.Logger
}

// NewVerifier creates a new payment verifier
func NewVerifier(gateway Gateway, cfg *Config, logger *slog.Logger) *Verifier {
	return &Verifier{
		gateway:       gateway,
		tokenContract: strings.ToLower(cfg.TokenContract),
		toleranceBps:  cfg.AmountToleranceBps,
		logger:        logger,
	}
}

// Verify fetches and decodes the claimed transaction and returns a verdict.
// A non-nil error means the chain gateway could not be consulted; the claim
// is neither accepted nor rejected and the caller may retry later.
func (v *Verifier) Verify(ctx context.Context, txHash, expectedRecipient string, expectedAmount domain.Amount) (*Verdict, error) {
	tx, err := v.gateway.TransactionByHash(ctx, txHash)
	if err != nil {
		if errors.Is(err, evmrpc.ErrNotFound) {
			return reject(domain.RejectTxNotFound, "transaction not found on chain"), nil
		}
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}

	receipt, err := v.gateway.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, evmrpc.ErrNotFound) {
			return reject(domain.RejectTxNotFound, "transaction not yet confirmed"), nil
		}
		return nil, fmt.Errorf("failed to fetch receipt: %w", err)
	}

	if receipt.Status != "0x1" {
		return reject(domain.RejectExecutionFailed, "transaction reverted on chain"), nil
	}

	if !strings.EqualFold(tx.To, v.tokenContract) {
		return reject(domain.RejectWrongContract,
			fmt.Sprintf("transaction targets %s, expected token contract %s", tx.To, v.tokenContract)), nil
	}

	recipient, rawAmount, err := decodeTransfer(tx.Input)
	if err != nil {
		v.logger.Warn("Failed to decode transfer call data",
			slog.String("tx_hash", txHash),
			slog.String("error", err.Error()),
		)
		return reject(domain.RejectWrongContract, "call data is not an ERC-20 transfer"), nil
	}

	if !strings.EqualFold(recipient, expectedRecipient) {
		return reject(domain.RejectWrongRecipient,
			fmt.Sprintf("transfer pays %s, expected %s", recipient, strings.ToLower(expectedRecipient))), nil
	}

	paid := domain.NewAmount(rawAmount)
	if !expectedAmount.WithinTolerance(paid, v.toleranceBps) {
		return reject(domain.RejectWrongAmount,
			fmt.Sprintf("transfer of %s does not match price %s", paid, expectedAmount)), nil
	}

	v.logger.Info("Payment verified",
		slog.String("tx_hash", txHash),
		slog.String("payer", strings.ToLower(tx.From)),
		slog.String("amount", paid.String()),
	)

	return &Verdict{Accepted: true, Payer: strings.ToLower(tx.From)}, nil
}

func reject(reason, detail string) *Verdict {
	return &Verdict{Reason: reason, Detail: detail}
}
