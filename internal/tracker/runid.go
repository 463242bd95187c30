package tracker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// RunID computes a deterministic run identifier using SHA256.
// Formula: SHA256(token_address|max_wallets|include_airdrops|started_at)
// Returns hex-encoded hash (64 characters).
func RunID(tokenAddress string, maxWallets int, includeAirdrops bool, startedAt int64) string {
	data := fmt.Sprintf("%s|%d|%t|%d", tokenAddress, maxWallets, includeAirdrops, startedAt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
