// Package gascost annotates wallet records with the fiat execution fee of
// their first transfer's transaction.
package gascost

import (
	"context"
	"log"
	"math/big"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/ratelimit"
)

var weiPerEther = new(big.Float).SetInt64(1e18)

// Annotator computes gasUsed * effectiveGasPrice converted to fiat at the
// transaction's timestamp.
type Annotator struct {
	details  domain.TransactionDetailSource
	prices   domain.PriceSource
	limiter  *ratelimit.Limiter
	currency string
	logger   *log.Logger
	verbose  bool
}

// Options configures an Annotator.
type Options struct {
	Details domain.TransactionDetailSource
	Prices  domain.PriceSource
	Limiter *ratelimit.Limiter

	// Currency is the chain's native currency for fee pricing. Defaults to
	// "ETH".
	Currency string

	Logger  *log.Logger
	Verbose bool
}

// New creates an Annotator.
func New(opts Options) *Annotator {
	currency := opts.Currency
	if currency == "" {
		currency = "ETH"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Annotator{
		details:  opts.Details,
		prices:   opts.Prices,
		limiter:  opts.Limiter,
		currency: currency,
		logger:   logger,
		verbose:  opts.Verbose,
	}
}

// GasCostFiat returns the fiat fee for the transaction, or nil when gas
// details or the price are unavailable. Only context errors are returned.
func (a *Annotator) GasCostFiat(ctx context.Context, txHash string, timestamp int64) (*float64, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	info, err := a.details.GasInfo(ctx, txHash)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		a.log("gas info unavailable for tx %s: %v", txHash, err)
		return nil, nil
	}
	if info == nil || info.EffectiveGasPrice == nil || info.GasUsed == 0 {
		return nil, nil
	}

	price, err := a.prices.PriceAt(ctx, a.currency, timestamp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		a.log("price unavailable for %s@%d, gas cost unknown", a.currency, timestamp)
		return nil, nil
	}

	feeWei := new(big.Int).Mul(info.EffectiveGasPrice, new(big.Int).SetUint64(info.GasUsed))
	native, _ := new(big.Float).Quo(new(big.Float).SetInt(feeWei), weiPerEther).Float64()
	fiat := native * price
	return &fiat, nil
}

func (a *Annotator) log(format string, args ...interface{}) {
	if a.verbose {
		a.logger.Printf("[gascost] "+format, args...)
	}
}
