package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/storage"
)

// WalletRecordStore implements storage.WalletRecordStore using PostgreSQL.
type WalletRecordStore struct {
	pool *Pool
}

// NewWalletRecordStore creates a new WalletRecordStore.
func NewWalletRecordStore(pool *Pool) *WalletRecordStore {
	return &WalletRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletRecordStore = (*WalletRecordStore)(nil)

// InsertBulk adds all records of one run atomically. Fails the entire batch
// on any duplicate (run_id, rank).
func (s *WalletRecordStore) InsertBulk(ctx context.Context, runID string, records []*domain.WalletRecord) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if rec == nil || rec.Address == "" || rec.Rank <= 0 {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO wallet_records (
			run_id, rank, address, amount_received,
			first_tx_hash, first_block, first_tx_index, first_log_index, first_timestamp,
			classification,
			investment_currency, investment_native, investment_fiat, gas_cost_fiat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	for _, rec := range records {
		amount := "0"
		if rec.AmountReceived != nil {
			amount = rec.AmountReceived.String()
		}
		var currency *string
		var native, fiat *float64
		if rec.Investment != nil {
			currency = &rec.Investment.Currency
			native = &rec.Investment.NativeAmount
			fiat = rec.Investment.FiatAmount
		}

		_, err := tx.Exec(ctx, query,
			runID, rec.Rank, rec.Address, amount,
			rec.FirstTxHash, rec.FirstBlock, rec.FirstTxIndex, rec.FirstLogIndex, rec.FirstTimestamp,
			string(rec.Classification),
			currency, native, fiat, rec.GasCostFiat,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert wallet record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves all records for a run, ordered by rank ASC.
func (s *WalletRecordStore) GetByRunID(ctx context.Context, runID string) ([]*domain.WalletRecord, error) {
	query := `
		SELECT rank, address, amount_received,
		       first_tx_hash, first_block, first_tx_index, first_log_index, first_timestamp,
		       classification,
		       investment_currency, investment_native, investment_fiat, gas_cost_fiat
		FROM wallet_records
		WHERE run_id = $1
		ORDER BY rank ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get wallet records by run id: %w", err)
	}
	defer rows.Close()

	var records []*domain.WalletRecord
	for rows.Next() {
		rec, err := scanWalletRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet record row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet record rows: %w", err)
	}
	return records, nil
}

// scanWalletRecord scans a single row into a WalletRecord. Amounts are stored
// as decimal strings; NULL investment columns mean no counter-value was found.
func scanWalletRecord(row pgx.Row) (*domain.WalletRecord, error) {
	var rec domain.WalletRecord
	var amount, classification string
	var currency *string
	var native, fiat *float64

	err := row.Scan(
		&rec.Rank, &rec.Address, &amount,
		&rec.FirstTxHash, &rec.FirstBlock, &rec.FirstTxIndex, &rec.FirstLogIndex, &rec.FirstTimestamp,
		&classification,
		&currency, &native, &fiat, &rec.GasCostFiat,
	)
	if err != nil {
		return nil, err
	}

	rec.AmountReceived, _ = new(big.Int).SetString(amount, 10)
	if rec.AmountReceived == nil {
		return nil, fmt.Errorf("malformed amount %q", amount)
	}
	rec.Classification = domain.Classification(classification)
	if currency != nil {
		rec.Investment = &domain.EstimatedInvestment{
			Currency:   *currency,
			FiatAmount: fiat,
		}
		if native != nil {
			rec.Investment.NativeAmount = *native
		}
	}
	return &rec, nil
}
