package domain

import (
	"math/big"
	"sort"
)

// TransferEvent is a single token transfer log entry. Immutable; produced
// only by the fetcher.
//
// Canonical total order key: (BlockNumber, TxIndex, LogIndex). Block number
// alone is not enough because multiple transfers can share a block and even
// a transaction.
type TransferEvent struct {
	TokenAddress string   // token contract, canonical lowercase hex
	From         string   // sender, canonical lowercase hex
	To           string   // recipient, canonical lowercase hex
	RawAmount    *big.Int // unsigned, scaled by token decimals
	BlockNumber  int64
	TxHash       string
	TxIndex      int // transaction position within the block
	LogIndex     int // log position within the block
	Timestamp    int64 // Unix seconds
}

// Compare returns negative/zero/positive for a before/equal/after b in
// canonical order (block ASC, tx index ASC, log index ASC).
func Compare(a, b *TransferEvent) int {
	if a.BlockNumber != b.BlockNumber {
		if a.BlockNumber < b.BlockNumber {
			return -1
		}
		return 1
	}
	if a.TxIndex != b.TxIndex {
		if a.TxIndex < b.TxIndex {
			return -1
		}
		return 1
	}
	if a.LogIndex != b.LogIndex {
		if a.LogIndex < b.LogIndex {
			return -1
		}
		return 1
	}
	return 0
}

// SortTransferEvents orders events canonically in place.
func SortTransferEvents(events []*TransferEvent) {
	sort.Slice(events, func(i, j int) bool {
		return Compare(events[i], events[j]) < 0
	})
}

// ScaledAmount converts a raw amount into whole token units using the token's
// decimal precision. Intended for display and threshold checks, not arithmetic
// on chain values.
func ScaledAmount(raw *big.Int, decimals int) float64 {
	if raw == nil {
		return 0
	}
	if decimals <= 0 {
		f, _ := new(big.Float).SetInt(raw).Float64()
		return f
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	q := new(big.Float).Quo(new(big.Float).SetInt(raw), new(big.Float).SetInt(divisor))
	f, _ := q.Float64()
	return f
}

// TransferPage is one provider page of transfer events, in the provider's
// native order. NextCursor is opaque; empty means the stream is done.
type TransferPage struct {
	Events     []*TransferEvent
	NextCursor string
}
