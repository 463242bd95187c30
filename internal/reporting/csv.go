package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
)

// RenderCSV writes one row per wallet record. Optional values render as empty
// fields so the output stays machine-parseable.
func RenderCSV(w io.Writer, ledger *domain.Ledger) error {
	var sb strings.Builder

	sb.WriteString("rank,wallet,amount_received,first_block,first_tx_index,first_log_index,")
	sb.WriteString("first_tx_hash,first_timestamp,classification,")
	sb.WriteString("investment_currency,investment_native,investment_fiat,gas_cost_fiat\n")

	for _, rec := range ledger.Records {
		var currency, native, fiat, gas string
		if rec.Investment != nil {
			currency = rec.Investment.Currency
			native = fmt.Sprintf("%.6f", rec.Investment.NativeAmount)
			if rec.Investment.FiatAmount != nil {
				fiat = fmt.Sprintf("%.2f", *rec.Investment.FiatAmount)
			}
		}
		if rec.GasCostFiat != nil {
			gas = fmt.Sprintf("%.2f", *rec.GasCostFiat)
		}
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%d,%d,%d,%s,%d,%s,%s,%s,%s,%s\n",
			rec.Rank,
			rec.Address,
			formatTokenAmount(rec.AmountReceived, ledger.Token.Decimals),
			rec.FirstBlock,
			rec.FirstTxIndex,
			rec.FirstLogIndex,
			rec.FirstTxHash,
			rec.FirstTimestamp,
			rec.Classification,
			currency,
			native,
			fiat,
			gas,
		))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
