package classifier

import "github.com/GentianSadiku/eth-wallet-tracker/internal/domain"

// TransferIndex accumulates sender fan-out and transaction shape statistics
// over every scanned transfer event. It is populated during discovery and
// queried read-only during classification; it is not safe for concurrent
// writes.
type TransferIndex struct {
	// sender -> block -> distinct recipients in that block
	senderBlocks map[string]map[int64]map[string]struct{}
	// tx hash -> distinct recipients in that transaction
	txRecipients map[string]map[string]struct{}
}

// NewTransferIndex creates an empty index.
func NewTransferIndex() *TransferIndex {
	return &TransferIndex{
		senderBlocks: make(map[string]map[int64]map[string]struct{}),
		txRecipients: make(map[string]map[string]struct{}),
	}
}

// Observe records one transfer event.
func (x *TransferIndex) Observe(ev *domain.TransferEvent) {
	blocks, ok := x.senderBlocks[ev.From]
	if !ok {
		blocks = make(map[int64]map[string]struct{})
		x.senderBlocks[ev.From] = blocks
	}
	recipients, ok := blocks[ev.BlockNumber]
	if !ok {
		recipients = make(map[string]struct{})
		blocks[ev.BlockNumber] = recipients
	}
	recipients[ev.To] = struct{}{}

	tx, ok := x.txRecipients[ev.TxHash]
	if !ok {
		tx = make(map[string]struct{})
		x.txRecipients[ev.TxHash] = tx
	}
	tx[ev.To] = struct{}{}
}

// DistinctRecipientsNear returns how many distinct recipients the sender
// transferred to within [block-window, block+window].
func (x *TransferIndex) DistinctRecipientsNear(sender string, block, window int64) int {
	blocks, ok := x.senderBlocks[sender]
	if !ok {
		return 0
	}
	seen := make(map[string]struct{})
	for b, recipients := range blocks {
		if b < block-window || b > block+window {
			continue
		}
		for r := range recipients {
			seen[r] = struct{}{}
		}
	}
	return len(seen)
}

// RecipientsInTx returns how many distinct recipients received token
// transfers within one transaction.
func (x *TransferIndex) RecipientsInTx(txHash string) int {
	return len(x.txRecipients[txHash])
}
