package classifier

import (
	"math"
	"strings"
)

// Burn/system addresses that never represent an organic wallet.
var specialAddresses = map[string]struct{}{
	"0x0000000000000000000000000000000000000000": {},
	"0x000000000000000000000000000000000000dead": {},
}

// Router and distribution contracts commonly seen as transfer senders.
// Lowercase hex.
var knownContracts = map[string]struct{}{
	"0x7a250d5630b4cf539739df2c5dacb4c659f2488d": {}, // Uniswap V2 router
	"0xe592427a0aece92de3edee1f18e0157c05861564": {}, // Uniswap V3 router
	"0x68b3465833fb72a70ecdf485e0e4c7bd8665fc45": {}, // Uniswap V3 router 2
	"0xd9e1ce17f2641f24ae83637ab66a2cca9c378b9f": {}, // SushiSwap router
	"0x1111111254eeb25477b68fb85ed929f73a960582": {}, // 1inch v5
	"0xdef1c0ded9bec7f1a1670819833240f027b25eff": {}, // 0x exchange proxy
}

// LikelyContract reports whether the address looks like a contract or system
// address rather than an externally owned wallet. Heuristic only; there is no
// on-chain code lookup here.
func LikelyContract(address string) bool {
	addr := strings.ToLower(address)
	if _, ok := specialAddresses[addr]; ok {
		return true
	}
	if _, ok := knownContracts[addr]; ok {
		return true
	}
	// Vanity and system contracts are deployed to addresses with long
	// leading-zero runs; organic wallets essentially never have them.
	return strings.HasPrefix(addr, "0x000000")
}

// Common distribution sizes seen in airdrop campaigns.
var commonAirdropAmounts = map[float64]struct{}{
	50: {}, 88: {}, 100: {}, 420: {}, 500: {}, 666: {}, 777: {},
	888: {}, 1000: {}, 1337: {}, 5000: {}, 8888: {}, 10000: {},
}

// RoundAmount reports whether a scaled token amount looks like a scripted
// distribution size: a whole number that is either a common airdrop amount or
// a multiple of 100.
func RoundAmount(amount float64) bool {
	if amount <= 0 {
		return false
	}
	if math.Abs(amount-math.Round(amount)) > 1e-9 {
		return false
	}
	whole := math.Round(amount)
	if _, ok := commonAirdropAmounts[whole]; ok {
		return true
	}
	return math.Mod(whole, 100) == 0
}
