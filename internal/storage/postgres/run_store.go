package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a finished run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, run *domain.DiscoveryRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO discovery_runs (
			run_id, token_address, token_symbol, max_wallets, include_airdrops,
			wallets_found, transfers_scanned, incomplete, incomplete_reason,
			started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		run.RunID,
		run.TokenAddress,
		run.TokenSymbol,
		run.MaxWallets,
		run.IncludeAirdrops,
		run.WalletsFound,
		run.TransfersScanned,
		run.Incomplete,
		run.IncompleteReason,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert discovery run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.DiscoveryRun, error) {
	query := `
		SELECT run_id, token_address, token_symbol, max_wallets, include_airdrops,
		       wallets_found, transfers_scanned, incomplete, incomplete_reason,
		       started_at, finished_at
		FROM discovery_runs
		WHERE run_id = $1
	`

	row := s.pool.QueryRow(ctx, query, runID)
	run, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	return run, nil
}

// GetByToken retrieves runs for a token address, newest first.
func (s *RunStore) GetByToken(ctx context.Context, tokenAddress string, limit int) ([]*domain.DiscoveryRun, error) {
	query := `
		SELECT run_id, token_address, token_symbol, max_wallets, include_airdrops,
		       wallets_found, transfers_scanned, incomplete, incomplete_reason,
		       started_at, finished_at
		FROM discovery_runs
		WHERE token_address = $1
		ORDER BY started_at DESC, run_id ASC
	`

	args := []any{tokenAddress}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get runs by token: %w", err)
	}
	defer rows.Close()

	var runs []*domain.DiscoveryRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// scanRun scans a single row into a DiscoveryRun.
func scanRun(row pgx.Row) (*domain.DiscoveryRun, error) {
	var run domain.DiscoveryRun
	err := row.Scan(
		&run.RunID,
		&run.TokenAddress,
		&run.TokenSymbol,
		&run.MaxWallets,
		&run.IncludeAirdrops,
		&run.WalletsFound,
		&run.TransfersScanned,
		&run.Incomplete,
		&run.IncompleteReason,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
