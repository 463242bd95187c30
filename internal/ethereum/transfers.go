package ethereum

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"strconv"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
)

// tokenTransfer is one entry of the tokentx action result.
type tokenTransfer struct {
	BlockNumber      string `json:"blockNumber"`
	TimeStamp        string `json:"timeStamp"`
	Hash             string `json:"hash"`
	From             string `json:"from"`
	ContractAddress  string `json:"contractAddress"`
	To               string `json:"to"`
	Value            string `json:"value"`
	TransactionIndex string `json:"transactionIndex"`
	LogIndex         string `json:"logIndex"`
}

// Page returns one page of the token's transfer history in ascending block
// order. The cursor encodes the provider page number; "" means the first
// page, and an empty NextCursor means the stream is done.
func (c *Client) Page(ctx context.Context, tokenAddress, cursor string) (*domain.TransferPage, error) {
	pageNum := 1
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid cursor %q", cursor)
		}
		pageNum = n
	}

	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "tokentx")
	params.Set("contractaddress", tokenAddress)
	params.Set("page", strconv.Itoa(pageNum))
	params.Set("offset", strconv.Itoa(c.pageSize))
	params.Set("sort", "asc")

	result, err := c.account(ctx, params)
	if err != nil {
		return nil, err
	}

	var raw []tokenTransfer
	if len(result) > 0 {
		if err := json.Unmarshal(result, &raw); err != nil {
			return nil, fmt.Errorf("decode transfer page: %w", err)
		}
	}

	page := &domain.TransferPage{Events: make([]*domain.TransferEvent, 0, len(raw))}
	// Fallback log positions for providers that omit logIndex: transfers
	// within one transaction keep their response order.
	perTx := make(map[string]int)
	for i, t := range raw {
		ev, err := t.toEvent(perTx)
		if err != nil {
			return nil, fmt.Errorf("transfer %d: %w", i, err)
		}
		page.Events = append(page.Events, ev)
	}

	if len(raw) == c.pageSize {
		page.NextCursor = strconv.Itoa(pageNum + 1)
	}
	return page, nil
}

func (t *tokenTransfer) toEvent(perTx map[string]int) (*domain.TransferEvent, error) {
	block, err := strconv.ParseInt(t.BlockNumber, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("block number %q: %w", t.BlockNumber, err)
	}
	ts, err := strconv.ParseInt(t.TimeStamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("timestamp %q: %w", t.TimeStamp, err)
	}
	amount, ok := new(big.Int).SetString(t.Value, 10)
	if !ok {
		return nil, fmt.Errorf("value %q: not a decimal integer", t.Value)
	}

	txIndex := 0
	if t.TransactionIndex != "" {
		if txIndex, err = strconv.Atoi(t.TransactionIndex); err != nil {
			return nil, fmt.Errorf("transaction index %q: %w", t.TransactionIndex, err)
		}
	}
	logIndex := perTx[t.Hash]
	perTx[t.Hash]++
	if t.LogIndex != "" {
		if logIndex, err = strconv.Atoi(t.LogIndex); err != nil {
			return nil, fmt.Errorf("log index %q: %w", t.LogIndex, err)
		}
	}

	return &domain.TransferEvent{
		TokenAddress: domain.NormalizeAddress(t.ContractAddress),
		From:         domain.NormalizeAddress(t.From),
		To:           domain.NormalizeAddress(t.To),
		RawAmount:    amount,
		BlockNumber:  block,
		TxHash:       t.Hash,
		TxIndex:      txIndex,
		LogIndex:     logIndex,
		Timestamp:    ts,
	}, nil
}
