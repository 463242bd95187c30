package ethereum

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
)

var weiPerEther = new(big.Float).SetInt64(1e18)

type txReceipt struct {
	GasUsed           string `json:"gasUsed"`
	EffectiveGasPrice string `json:"effectiveGasPrice"`
	GasPrice          string `json:"gasPrice"` // pre-1559 receipts
}

// GasInfo returns gas usage and the effective gas price for a transaction.
func (c *Client) GasInfo(ctx context.Context, txHash string) (*domain.GasInfo, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_getTransactionReceipt")
	params.Set("txhash", txHash)

	result, err := c.proxy(ctx, params)
	if err != nil {
		return nil, err
	}
	if isJSONNull(result) {
		return nil, fmt.Errorf("no receipt for tx %s", txHash)
	}

	var receipt txReceipt
	if err := json.Unmarshal(result, &receipt); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}

	gasUsed, err := parseHexUint(receipt.GasUsed)
	if err != nil {
		return nil, fmt.Errorf("decode gasUsed: %w", err)
	}
	priceHex := receipt.EffectiveGasPrice
	if priceHex == "" {
		priceHex = receipt.GasPrice
	}
	price, err := parseHexBig(priceHex)
	if err != nil {
		return nil, fmt.Errorf("decode gas price: %w", err)
	}

	return &domain.GasInfo{GasUsed: gasUsed, EffectiveGasPrice: price}, nil
}

type txByHash struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

type internalTx struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// ValueMovements returns the native-currency movements inside a transaction:
// the outer call value plus internal transfers. All are transaction-scoped
// (LogIndex -1); the provider does not position them in the log sequence.
func (c *Client) ValueMovements(ctx context.Context, txHash string) ([]*domain.ValueMovement, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_getTransactionByHash")
	params.Set("txhash", txHash)

	result, err := c.proxy(ctx, params)
	if err != nil {
		return nil, err
	}
	if isJSONNull(result) {
		return nil, fmt.Errorf("no transaction %s", txHash)
	}

	var tx txByHash
	if err := json.Unmarshal(result, &tx); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}

	var movements []*domain.ValueMovement
	if amount, err := weiHexToEther(tx.Value); err == nil && amount > 0 {
		movements = append(movements, &domain.ValueMovement{
			From:     domain.NormalizeAddress(tx.From),
			To:       domain.NormalizeAddress(tx.To),
			Currency: c.currency,
			Amount:   amount,
			LogIndex: -1,
		})
	}

	internal, err := c.internalTransfers(ctx, txHash)
	if err != nil {
		// Internal transfers refine the estimate; the outer value alone is
		// still usable.
		c.log("internal transfers unavailable for %s: %v", txHash, err)
		return movements, nil
	}
	movements = append(movements, internal...)
	return movements, nil
}

func (c *Client) internalTransfers(ctx context.Context, txHash string) ([]*domain.ValueMovement, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlistinternal")
	params.Set("txhash", txHash)

	result, err := c.account(ctx, params)
	if err != nil {
		return nil, err
	}

	var raw []internalTx
	if len(result) > 0 {
		if err := json.Unmarshal(result, &raw); err != nil {
			return nil, fmt.Errorf("decode internal transfers: %w", err)
		}
	}

	movements := make([]*domain.ValueMovement, 0, len(raw))
	for _, t := range raw {
		amount, ok := new(big.Int).SetString(t.Value, 10)
		if !ok || amount.Sign() <= 0 {
			continue
		}
		ether, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), weiPerEther).Float64()
		movements = append(movements, &domain.ValueMovement{
			From:     domain.NormalizeAddress(t.From),
			To:       domain.NormalizeAddress(t.To),
			Currency: c.currency,
			Amount:   ether,
			LogIndex: -1,
		})
	}
	return movements, nil
}

func weiHexToEther(hexValue string) (float64, error) {
	wei, err := parseHexBig(hexValue)
	if err != nil {
		return 0, err
	}
	ether, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Float64()
	return ether, nil
}

func parseHexBig(s string) (*big.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil, fmt.Errorf("empty hex value")
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex %q", s)
	}
	return v, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
