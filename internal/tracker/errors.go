package tracker

import (
	"errors"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/fetcher"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/ledger"
)

// Engine errors. Lower-layer sentinels are re-exported so callers match the
// whole error surface with one import.
var (
	// ErrInvalidTokenAddress is returned before any provider call when the
	// token address is not well-formed.
	ErrInvalidTokenAddress = errors.New("invalid token address")

	// ErrTimedOut is returned when the run deadline expired and partial
	// results were not requested.
	ErrTimedOut = errors.New("discovery timed out")

	// ErrProviderRateLimited: the provider kept throttling after retries.
	ErrProviderRateLimited = fetcher.ErrProviderRateLimited

	// ErrProviderUnavailable: transient provider failures exhausted retries.
	ErrProviderUnavailable = fetcher.ErrProviderUnavailable

	// ErrMalformedResponse: provider data failed validation; never retried.
	ErrMalformedResponse = fetcher.ErrMalformedResponse

	// ErrDiscoveryExhausted: the scanning budget ran out before enough
	// wallets were found. Returned alongside the partial ledger.
	ErrDiscoveryExhausted = ledger.ErrDiscoveryExhausted
)
