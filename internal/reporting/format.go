// Package reporting renders a discovery ledger in table, CSV, or JSON form.
package reporting

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
)

// Format identifies an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatTable:
		return FormatTable, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, csv, or json)", s)
}

// shortAddress abbreviates an address for table display: 0x1234..abcd.
func shortAddress(addr string) string {
	if len(addr) < 12 {
		return addr
	}
	return addr[:6] + ".." + addr[len(addr)-4:]
}

// formatTokenAmount converts a raw integer amount to a human-readable decimal
// string using the token's decimals.
func formatTokenAmount(raw *big.Int, decimals int) string {
	if raw == nil {
		return "0"
	}
	if decimals <= 0 {
		return raw.String()
	}
	f := new(big.Float).SetInt(raw)
	div := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f.Quo(f, div)

	s := f.Text('f', 6)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// compactAmount renders a token amount for table display with K/M/B suffixes.
// Exports (CSV, JSON) keep full precision; the table trades it for width.
func compactAmount(raw *big.Int, decimals int) string {
	v := domain.ScaledAmount(raw, decimals)
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.2fK", v/1e3)
	}
	return formatTokenAmount(raw, decimals)
}

// formatInvestment renders the paired counter-value, or "-" when none was
// found.
func formatInvestment(inv *domain.EstimatedInvestment) string {
	if inv == nil {
		return "-"
	}
	return fmt.Sprintf("%.6f %s", inv.NativeAmount, inv.Currency)
}

// formatFiat renders an optional fiat amount, "-" when unavailable.
func formatFiat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *v)
}
