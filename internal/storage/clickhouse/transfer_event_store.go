package clickhouse

import (
	"context"
	"fmt"
	"math/big"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/storage"
)

// TransferEventStore implements storage.TransferEventStore using ClickHouse.
// MergeTree does not enforce uniqueness; re-scanned runs may archive the same
// event twice, which is acceptable for analytical queries.
type TransferEventStore struct {
	conn *Conn
}

// NewTransferEventStore creates a new TransferEventStore.
func NewTransferEventStore(conn *Conn) *TransferEventStore {
	return &TransferEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TransferEventStore = (*TransferEventStore)(nil)

// InsertBulk appends a batch of scanned events.
func (s *TransferEventStore) InsertBulk(ctx context.Context, events []*domain.TransferEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, ev := range events {
		if ev == nil || ev.TokenAddress == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO transfer_events (
			token_address, from_address, to_address, raw_amount,
			block_number, tx_hash, tx_index, log_index, ts
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, ev := range events {
		amount := "0"
		if ev.RawAmount != nil {
			amount = ev.RawAmount.String()
		}
		err = batch.Append(
			ev.TokenAddress, ev.From, ev.To, amount,
			uint64(ev.BlockNumber), ev.TxHash, int32(ev.TxIndex), int32(ev.LogIndex), ev.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByToken retrieves archived events for a token in canonical order.
func (s *TransferEventStore) GetByToken(ctx context.Context, tokenAddress string) ([]*domain.TransferEvent, error) {
	query := `
		SELECT token_address, from_address, to_address, raw_amount,
		       block_number, tx_hash, tx_index, log_index, ts
		FROM transfer_events
		WHERE token_address = ?
		ORDER BY block_number ASC, tx_index ASC, log_index ASC
	`

	rows, err := s.conn.Query(ctx, query, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("query events by token: %w", err)
	}
	defer rows.Close()

	var events []*domain.TransferEvent
	for rows.Next() {
		var ev domain.TransferEvent
		var amount string
		var blockNumber uint64
		var txIndex, logIndex int32

		err := rows.Scan(
			&ev.TokenAddress, &ev.From, &ev.To, &amount,
			&blockNumber, &ev.TxHash, &txIndex, &logIndex, &ev.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transfer event row: %w", err)
		}

		ev.RawAmount, _ = new(big.Int).SetString(amount, 10)
		if ev.RawAmount == nil {
			return nil, fmt.Errorf("malformed raw amount %q", amount)
		}
		ev.BlockNumber = int64(blockNumber)
		ev.TxIndex = int(txIndex)
		ev.LogIndex = int(logIndex)
		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer event rows: %w", err)
	}
	return events, nil
}

// CountByToken returns how many events are archived for a token.
func (s *TransferEventStore) CountByToken(ctx context.Context, tokenAddress string) (uint64, error) {
	query := `SELECT count(*) FROM transfer_events WHERE token_address = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, tokenAddress).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events by token: %w", err)
	}
	return count, nil
}
