package reporting

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
)

// Render writes the ledger to w in the requested format.
func Render(w io.Writer, ledger *domain.Ledger, format Format) error {
	switch format {
	case FormatTable:
		return RenderTable(w, ledger)
	case FormatCSV:
		return RenderCSV(w, ledger)
	case FormatJSON:
		return RenderJSON(w, ledger)
	}
	return fmt.Errorf("unknown output format %q", format)
}

// RenderTable writes a human-readable summary table.
func RenderTable(w io.Writer, ledger *domain.Ledger) error {
	fmt.Fprintf(w, "Token: %s (%s)\n", ledger.Token.Name, ledger.Token.Symbol)
	fmt.Fprintf(w, "Contract: %s\n", ledger.Token.Address)
	fmt.Fprintf(w, "Analyzed: %s | Transfers scanned: %d | Unique recipients: %d\n",
		time.Unix(ledger.AnalyzedAt, 0).UTC().Format(time.RFC3339),
		ledger.TransfersScanned, ledger.UniqueRecipients)
	if ledger.Incomplete {
		fmt.Fprintf(w, "PARTIAL RESULT: %s\n", ledger.IncompleteReason)
	}
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Rank", "Wallet", "Amount", "Block", "Tx", "Type", "Investment", "Fiat", "Gas (fiat)"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	})

	for _, rec := range ledger.Records {
		var fiat *float64
		if rec.Investment != nil {
			fiat = rec.Investment.FiatAmount
		}
		table.Append([]string{
			fmt.Sprintf("%d", rec.Rank),
			shortAddress(rec.Address),
			compactAmount(rec.AmountReceived, ledger.Token.Decimals),
			fmt.Sprintf("%d", rec.FirstBlock),
			shortAddress(rec.FirstTxHash),
			string(rec.Classification),
			formatInvestment(rec.Investment),
			formatFiat(fiat),
			formatFiat(rec.GasCostFiat),
		})
	}
	table.Render()
	return nil
}
