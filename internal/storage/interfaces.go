package storage

import (
	"context"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
)

// RunStore provides access to discovery_runs storage.
type RunStore interface {
	// Insert adds a finished run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.DiscoveryRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.DiscoveryRun, error)

	// GetByToken retrieves runs for a token address, newest first, at most
	// limit entries (limit <= 0 means no cap).
	GetByToken(ctx context.Context, tokenAddress string, limit int) ([]*domain.DiscoveryRun, error)
}

// WalletRecordStore provides access to wallet_records storage.
type WalletRecordStore interface {
	// InsertBulk adds all records of one run atomically. Fails the entire
	// batch on any duplicate (run_id, rank).
	InsertBulk(ctx context.Context, runID string, records []*domain.WalletRecord) error

	// GetByRunID retrieves all records for a run, ordered by rank ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.WalletRecord, error)
}

// TransferEventStore provides access to the transfer_events archive.
// The archive is analytical: inserts are batched and duplicates from
// re-scanned runs are tolerated.
type TransferEventStore interface {
	// InsertBulk appends a batch of scanned events.
	InsertBulk(ctx context.Context, events []*domain.TransferEvent) error

	// GetByToken retrieves archived events for a token in canonical order.
	GetByToken(ctx context.Context, tokenAddress string) ([]*domain.TransferEvent, error)

	// CountByToken returns how many events are archived for a token.
	CountByToken(ctx context.Context, tokenAddress string) (uint64, error)
}
