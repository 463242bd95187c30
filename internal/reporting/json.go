package reporting

import (
	"encoding/json"
	"io"
	"time"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
)

// jsonLedger is the serialized shape of a ledger. Raw amounts are emitted as
// decimal strings so precision survives round-trips.
type jsonLedger struct {
	Token            jsonToken    `json:"token"`
	Wallets          []jsonWallet `json:"wallets"`
	TransfersScanned int          `json:"transfers_scanned"`
	UniqueRecipients int          `json:"unique_recipients"`
	AnalyzedAt       string       `json:"analyzed_at"`
	Incomplete       bool         `json:"incomplete,omitempty"`
	IncompleteReason string       `json:"incomplete_reason,omitempty"`
}

type jsonToken struct {
	Address  string `json:"address"`
	Name     string `json:"name,omitempty"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type jsonWallet struct {
	Rank           int             `json:"rank"`
	Address        string          `json:"address"`
	RawAmount      string          `json:"raw_amount"`
	Amount         string          `json:"amount"`
	FirstBlock     int64           `json:"first_block"`
	FirstTxIndex   int             `json:"first_tx_index"`
	FirstLogIndex  int             `json:"first_log_index"`
	FirstTxHash    string          `json:"first_tx_hash"`
	FirstTimestamp int64           `json:"first_timestamp"`
	Classification string          `json:"classification"`
	Investment     *jsonInvestment `json:"investment,omitempty"`
	GasCostFiat    *float64        `json:"gas_cost_fiat,omitempty"`
}

type jsonInvestment struct {
	Currency     string   `json:"currency"`
	NativeAmount float64  `json:"native_amount"`
	FiatAmount   *float64 `json:"fiat_amount,omitempty"`
}

// RenderJSON writes the ledger as an indented JSON document.
func RenderJSON(w io.Writer, ledger *domain.Ledger) error {
	out := jsonLedger{
		Token: jsonToken{
			Address:  ledger.Token.Address,
			Name:     ledger.Token.Name,
			Symbol:   ledger.Token.Symbol,
			Decimals: ledger.Token.Decimals,
		},
		Wallets:          make([]jsonWallet, 0, len(ledger.Records)),
		TransfersScanned: ledger.TransfersScanned,
		UniqueRecipients: ledger.UniqueRecipients,
		AnalyzedAt:       time.Unix(ledger.AnalyzedAt, 0).UTC().Format(time.RFC3339),
		Incomplete:       ledger.Incomplete,
		IncompleteReason: ledger.IncompleteReason,
	}

	for _, rec := range ledger.Records {
		jw := jsonWallet{
			Rank:           rec.Rank,
			Address:        rec.Address,
			RawAmount:      "0",
			Amount:         formatTokenAmount(rec.AmountReceived, ledger.Token.Decimals),
			FirstBlock:     rec.FirstBlock,
			FirstTxIndex:   rec.FirstTxIndex,
			FirstLogIndex:  rec.FirstLogIndex,
			FirstTxHash:    rec.FirstTxHash,
			FirstTimestamp: rec.FirstTimestamp,
			Classification: string(rec.Classification),
			GasCostFiat:    rec.GasCostFiat,
		}
		if rec.AmountReceived != nil {
			jw.RawAmount = rec.AmountReceived.String()
		}
		if rec.Investment != nil {
			jw.Investment = &jsonInvestment{
				Currency:     rec.Investment.Currency,
				NativeAmount: rec.Investment.NativeAmount,
				FiatAmount:   rec.Investment.FiatAmount,
			}
		}
		out.Wallets = append(out.Wallets, jw)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
