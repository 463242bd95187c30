package ethereum

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
)

// ERC-20 read selectors.
const (
	selectorName     = "0x06fdde03"
	selectorSymbol   = "0x95d89b41"
	selectorDecimals = "0x313ce567"
)

type tokenInfoEntry struct {
	TokenName string `json:"tokenName"`
	Symbol    string `json:"symbol"`
	Divisor   string `json:"divisor"`
}

// TokenInfo resolves token metadata. The tokeninfo action needs a paid API
// tier, so on failure the client falls back to raw eth_call reads of the
// ERC-20 interface.
func (c *Client) TokenInfo(ctx context.Context, address string) (*domain.Token, error) {
	params := url.Values{}
	params.Set("module", "token")
	params.Set("action", "tokeninfo")
	params.Set("contractaddress", address)

	if result, err := c.account(ctx, params); err == nil {
		var entries []tokenInfoEntry
		if err := json.Unmarshal(result, &entries); err == nil && len(entries) > 0 {
			decimals, _ := strconv.Atoi(entries[0].Divisor)
			return &domain.Token{
				Address:  domain.NormalizeAddress(address),
				Name:     entries[0].TokenName,
				Symbol:   entries[0].Symbol,
				Decimals: decimals,
			}, nil
		}
	} else if ctx.Err() != nil {
		return nil, err
	}

	c.log("tokeninfo unavailable for %s, falling back to eth_call", address)
	return c.tokenInfoFromContract(ctx, address)
}

func (c *Client) tokenInfoFromContract(ctx context.Context, address string) (*domain.Token, error) {
	name, err := c.ethCallString(ctx, address, selectorName)
	if err != nil {
		return nil, fmt.Errorf("read name: %w", err)
	}
	symbol, err := c.ethCallString(ctx, address, selectorSymbol)
	if err != nil {
		return nil, fmt.Errorf("read symbol: %w", err)
	}
	decimalsHex, err := c.ethCall(ctx, address, selectorDecimals)
	if err != nil {
		return nil, fmt.Errorf("read decimals: %w", err)
	}
	decimals, err := parseHexUint(decimalsHex)
	if err != nil {
		return nil, fmt.Errorf("decode decimals: %w", err)
	}

	return &domain.Token{
		Address:  domain.NormalizeAddress(address),
		Name:     name,
		Symbol:   symbol,
		Decimals: int(decimals),
	}, nil
}

// ethCall performs a read-only contract call and returns the hex result.
func (c *Client) ethCall(ctx context.Context, to, data string) (string, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_call")
	params.Set("to", to)
	params.Set("data", data)
	params.Set("tag", "latest")

	result, err := c.proxy(ctx, params)
	if err != nil {
		return "", err
	}
	var hexData string
	if err := json.Unmarshal(result, &hexData); err != nil {
		return "", fmt.Errorf("decode eth_call result: %w", err)
	}
	return hexData, nil
}

func (c *Client) ethCallString(ctx context.Context, to, selector string) (string, error) {
	hexData, err := c.ethCall(ctx, to, selector)
	if err != nil {
		return "", err
	}
	return decodeABIString(hexData)
}

// decodeABIString decodes a string return value: either standard ABI
// encoding (offset, length, bytes) or the legacy bytes32 form some older
// tokens use.
func decodeABIString(hexData string) (string, error) {
	raw, err := hexBytes(hexData)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", nil
	}

	// Legacy bytes32: a single word holding the NUL-padded string.
	if len(raw) == 32 {
		return string(trimNul(raw)), nil
	}
	if len(raw) < 64 {
		return "", fmt.Errorf("abi string too short: %d bytes", len(raw))
	}

	offset := new(big.Int).SetBytes(raw[:32]).Uint64()
	if offset+32 > uint64(len(raw)) {
		return "", fmt.Errorf("abi string offset %d out of range", offset)
	}
	length := new(big.Int).SetBytes(raw[offset : offset+32]).Uint64()
	start := offset + 32
	if start+length > uint64(len(raw)) {
		return "", fmt.Errorf("abi string length %d out of range", length)
	}
	return string(raw[start : start+length]), nil
}

func hexBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	return raw, nil
}

func trimNul(raw []byte) []byte {
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	return raw[:end]
}

func parseHexUint(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, fmt.Errorf("empty hex value")
	}
	// eth_call pads to a 32-byte word.
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return 0, fmt.Errorf("invalid hex %q", s)
	}
	return v.Uint64(), nil
}
