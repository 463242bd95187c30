package domain

import (
	"context"
	"errors"
	"math/big"
)

// Provider-level signals. Sources return these so callers can distinguish
// throttling from data gaps; retry policy lives with the caller.
var (
	// ErrRateLimited indicates the provider rejected the call due to rate
	// limiting. Callers may retry with backoff.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrPriceUnavailable indicates no price data exists for the requested
	// point in history. Not retryable.
	ErrPriceUnavailable = errors.New("price unavailable")
)

// TransferLogSource supplies paginated token transfer history.
// The cursor is an opaque continuation token: "" starts from the beginning,
// and callers must round-trip NextCursor without inspecting it.
// For a fixed provider state, the same cursor must always yield the same page.
type TransferLogSource interface {
	Page(ctx context.Context, tokenAddress, cursor string) (*TransferPage, error)
}

// TokenInfoSource resolves token metadata for a contract address.
type TokenInfoSource interface {
	TokenInfo(ctx context.Context, address string) (*Token, error)
}

// PriceSource resolves a fiat conversion rate for a currency as of a
// historical timestamp. Returns ErrPriceUnavailable when no data exists at
// that point in history.
type PriceSource interface {
	PriceAt(ctx context.Context, currency string, timestamp int64) (float64, error)
}

// GasInfo holds execution fee inputs for a transaction.
type GasInfo struct {
	GasUsed           uint64
	EffectiveGasPrice *big.Int // wei
}

// ValueMovement is a native-currency or stablecoin transfer observed within a
// transaction. LogIndex < 0 means the movement is transaction-scoped (the
// outer call value) rather than a positioned log entry.
type ValueMovement struct {
	From     string
	To       string
	Currency string
	Amount   float64 // whole currency units
	LogIndex int
}

// TransactionDetailSource supplies per-transaction details used by the
// estimator and gas annotator.
type TransactionDetailSource interface {
	GasInfo(ctx context.Context, txHash string) (*GasInfo, error)
	ValueMovements(ctx context.Context, txHash string) ([]*ValueMovement, error)
}
