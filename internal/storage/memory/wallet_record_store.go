package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/storage"
)

// WalletRecordStore is an in-memory implementation of storage.WalletRecordStore.
type WalletRecordStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.WalletRecord // keyed by run_id
}

// NewWalletRecordStore creates a new in-memory wallet record store.
func NewWalletRecordStore() *WalletRecordStore {
	return &WalletRecordStore{
		data: make(map[string][]*domain.WalletRecord),
	}
}

// InsertBulk adds all records of one run. Fails the entire batch if any
// (run_id, rank) already exists.
func (s *WalletRecordStore) InsertBulk(_ context.Context, runID string, records []*domain.WalletRecord) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	for _, rec := range records {
		if rec == nil || rec.Address == "" || rec.Rank <= 0 {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[int]struct{}, len(s.data[runID]))
	for _, rec := range s.data[runID] {
		existing[rec.Rank] = struct{}{}
	}
	seen := make(map[int]struct{}, len(records))
	for _, rec := range records {
		if _, dup := existing[rec.Rank]; dup {
			return storage.ErrDuplicateKey
		}
		if _, dup := seen[rec.Rank]; dup {
			return storage.ErrDuplicateKey
		}
		seen[rec.Rank] = struct{}{}
	}

	for _, rec := range records {
		s.data[runID] = append(s.data[runID], copyRecord(rec))
	}
	return nil
}

// GetByRunID retrieves all records for a run, ordered by rank ASC.
func (s *WalletRecordStore) GetByRunID(_ context.Context, runID string) ([]*domain.WalletRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.data[runID]
	result := make([]*domain.WalletRecord, 0, len(stored))
	for _, rec := range stored {
		result = append(result, copyRecord(rec))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Rank < result[j].Rank
	})
	return result, nil
}

// copyRecord deep-copies a record, including the pointer-valued fields.
func copyRecord(rec *domain.WalletRecord) *domain.WalletRecord {
	recCopy := *rec
	if rec.AmountReceived != nil {
		recCopy.AmountReceived = new(big.Int).Set(rec.AmountReceived)
	}
	if rec.Investment != nil {
		invCopy := *rec.Investment
		if rec.Investment.FiatAmount != nil {
			fiat := *rec.Investment.FiatAmount
			invCopy.FiatAmount = &fiat
		}
		recCopy.Investment = &invCopy
	}
	if rec.GasCostFiat != nil {
		gas := *rec.GasCostFiat
		recCopy.GasCostFiat = &gas
	}
	return &recCopy
}

// Verify interface compliance at compile time.
var _ storage.WalletRecordStore = (*WalletRecordStore)(nil)
