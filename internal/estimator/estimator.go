// Package estimator derives a wallet's initial investment from value
// movements inside its first transfer's transaction.
package estimator

import (
	"context"
	"log"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/classifier"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/ratelimit"
)

// DefaultLogWindow is how far a payment log may sit from the token transfer
// log and still be considered part of the same swap. Router swaps interleave
// a handful of logs between the payment and the token delivery.
const DefaultLogWindow = 3

// Estimator pairs a wallet's first token transfer with counter-value payments
// in the same transaction and converts the paired amount to fiat.
type Estimator struct {
	details   domain.TransactionDetailSource
	prices    domain.PriceSource
	limiter   *ratelimit.Limiter
	logWindow int
	logger    *log.Logger
	verbose   bool
}

// Options configures an Estimator.
type Options struct {
	Details domain.TransactionDetailSource
	Prices  domain.PriceSource
	Limiter *ratelimit.Limiter

	// LogWindow overrides DefaultLogWindow.
	LogWindow int

	Logger  *log.Logger
	Verbose bool
}

// New creates an Estimator.
func New(opts Options) *Estimator {
	logWindow := opts.LogWindow
	if logWindow <= 0 {
		logWindow = DefaultLogWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Estimator{
		details:   opts.Details,
		prices:    opts.Prices,
		limiter:   opts.Limiter,
		logWindow: logWindow,
		logger:    logger,
		verbose:   opts.Verbose,
	}
}

// Estimate returns the investment paired with the transfer, or nil when no
// payment evidence was found or the transaction details could not be fetched.
// A nil result means unknown, never zero. Only context errors are returned;
// provider failures degrade to unknown.
func (e *Estimator) Estimate(ctx context.Context, ev *domain.TransferEvent) (*domain.EstimatedInvestment, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	movements, err := e.details.ValueMovements(ctx, ev.TxHash)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		e.log("value movements unavailable for tx %s: %v", ev.TxHash, err)
		return nil, nil
	}

	totals := make(map[string]float64)
	for _, m := range movements {
		if e.pairs(m, ev) {
			totals[m.Currency] += m.Amount
		}
	}
	if len(totals) == 0 {
		return nil, nil
	}

	// When payments span currencies, report the largest one.
	var currency string
	var amount float64
	for c, total := range totals {
		if total > amount || (total == amount && (currency == "" || c < currency)) {
			currency, amount = c, total
		}
	}
	if amount <= 0 {
		return nil, nil
	}

	inv := &domain.EstimatedInvestment{Currency: currency, NativeAmount: amount}

	price, err := e.prices.PriceAt(ctx, currency, ev.Timestamp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		e.log("price unavailable for %s@%d, fiat value unknown", currency, ev.Timestamp)
		return inv, nil
	}
	fiat := amount * price
	inv.FiatAmount = &fiat
	return inv, nil
}

// pairs reports whether a value movement looks like this wallet paying for
// the transfer: the wallet is the payer, the destination is plausibly the
// counterparty side of a swap, and the movement sits near the transfer in the
// log sequence. Transaction-scoped movements (LogIndex < 0) always satisfy
// the position check.
func (e *Estimator) pairs(m *domain.ValueMovement, ev *domain.TransferEvent) bool {
	if m.From != ev.To || m.Amount <= 0 {
		return false
	}
	counterparty := m.To == ev.From || m.To == ev.TokenAddress || classifier.LikelyContract(m.To)
	if !counterparty {
		return false
	}
	if m.LogIndex < 0 {
		return true
	}
	diff := m.LogIndex - ev.LogIndex
	if diff < 0 {
		diff = -diff
	}
	return diff <= e.logWindow
}

func (e *Estimator) log(format string, args ...interface{}) {
	if e.verbose {
		e.logger.Printf("[estimator] "+format, args...)
	}
}
