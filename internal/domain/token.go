package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Token describes an ERC-20 token. Resolved once per run and immutable after.
type Token struct {
	Address  string // contract address, canonical lowercase hex with 0x prefix
	Name     string
	Symbol   string
	Decimals int
}

// ValidAddress reports whether s is a well-formed 20-byte hex address.
func ValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// NormalizeAddress converts an address to canonical form: lowercase hex with
// 0x prefix. Returns "" for malformed input.
func NormalizeAddress(s string) string {
	if !common.IsHexAddress(s) {
		return ""
	}
	return strings.ToLower(common.HexToAddress(s).Hex())
}
