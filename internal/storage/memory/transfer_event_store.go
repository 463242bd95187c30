package memory

import (
	"context"
	"math/big"
	"sync"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/storage"
)

// TransferEventStore is an in-memory implementation of
// storage.TransferEventStore. Duplicates are kept, matching the analytical
// archive semantics.
type TransferEventStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.TransferEvent // keyed by token address
}

// NewTransferEventStore creates a new in-memory transfer event archive.
func NewTransferEventStore() *TransferEventStore {
	return &TransferEventStore{
		data: make(map[string][]*domain.TransferEvent),
	}
}

// InsertBulk appends a batch of scanned events.
func (s *TransferEventStore) InsertBulk(_ context.Context, events []*domain.TransferEvent) error {
	for _, ev := range events {
		if ev == nil || ev.TokenAddress == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		s.data[ev.TokenAddress] = append(s.data[ev.TokenAddress], copyEvent(ev))
	}
	return nil
}

// GetByToken retrieves archived events for a token in canonical order.
func (s *TransferEventStore) GetByToken(_ context.Context, tokenAddress string) ([]*domain.TransferEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.data[tokenAddress]
	result := make([]*domain.TransferEvent, 0, len(stored))
	for _, ev := range stored {
		result = append(result, copyEvent(ev))
	}

	domain.SortTransferEvents(result)
	return result, nil
}

// CountByToken returns how many events are archived for a token.
func (s *TransferEventStore) CountByToken(_ context.Context, tokenAddress string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return uint64(len(s.data[tokenAddress])), nil
}

func copyEvent(ev *domain.TransferEvent) *domain.TransferEvent {
	evCopy := *ev
	if ev.RawAmount != nil {
		evCopy.RawAmount = new(big.Int).Set(ev.RawAmount)
	}
	return &evCopy
}

// Verify interface compliance at compile time.
var _ storage.TransferEventStore = (*TransferEventStore)(nil)
