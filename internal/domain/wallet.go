package domain

import "math/big"

// Classification is the heuristic label attached to a wallet's first
// qualifying transfer.
type Classification string

const (
	ClassificationBuyer   Classification = "BUYER"
	ClassificationAirdrop Classification = "AIRDROP_RECIPIENT"
	ClassificationUnknown Classification = "UNKNOWN"
)

// EstimatedInvestment is the paired counter-value found for a wallet's first
// transfer. FiatAmount is nil when the price lookup failed; that is distinct
// from an explicit zero (a genuine zero-cost transfer).
type EstimatedInvestment struct {
	Currency     string // native currency or stablecoin identifier
	NativeAmount float64
	FiatAmount   *float64
}

// WalletRecord is one discovered wallet with its first qualifying inbound
// transfer and enrichment outputs. Created once per unique wallet; after
// classification completes it is never mutated.
type WalletRecord struct {
	Address        string
	Rank           int // dense 1-based position in first-seen order
	AmountReceived *big.Int
	FirstTxHash    string
	FirstBlock     int64
	FirstTxIndex   int
	FirstLogIndex  int
	FirstTimestamp int64
	Classification Classification
	Investment     *EstimatedInvestment // nil when unknown
	GasCostFiat    *float64             // nil when price unavailable
}

// Ledger is the ordered discovery result handed to the rendering layer.
type Ledger struct {
	Token            Token
	Records          []*WalletRecord // strictly ascending canonical order, ranks 1..N
	TransfersScanned int
	UniqueRecipients int
	AnalyzedAt       int64 // Unix seconds

	// Incomplete marks a partial result (discovery budget exhausted or
	// run deadline hit in partial-results mode).
	Incomplete       bool
	IncompleteReason string
}
