package postgres

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/storage"
)

func testRecord(rank int) *domain.WalletRecord {
	return &domain.WalletRecord{
		Address:        "0x8ba1f109551bd432803012645ac136ddd64dba72",
		Rank:           rank,
		AmountReceived: big.NewInt(1e18),
		FirstTxHash:    "0xabc",
		FirstBlock:     10861674,
		FirstTxIndex:   3,
		FirstLogIndex:  rank,
		FirstTimestamp: 1600107000,
		Classification: domain.ClassificationBuyer,
	}
}

func TestWalletRecordStore_InsertBulkAndGetByRunID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletRecordStore(pool)
	ctx := context.Background()

	first := testRecord(1)
	first.Investment = &domain.EstimatedInvestment{
		Currency:     "ETH",
		NativeAmount: 1.25,
		FiatAmount:   ptr(3210.55),
	}
	first.GasCostFiat = ptr(12.40)

	second := testRecord(2)
	second.Classification = domain.ClassificationAirdrop

	// Very large amounts must survive the round trip.
	huge, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457", 10)
	require.True(t, ok)
	second.AmountReceived = huge

	require.NoError(t, store.InsertBulk(ctx, "run-1", []*domain.WalletRecord{second, first}))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0])
	assert.Equal(t, second, got[1])
}

func TestWalletRecordStore_DuplicateRankFailsWholeBatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletRecordStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "run-1", []*domain.WalletRecord{testRecord(1)}))

	err := store.InsertBulk(ctx, "run-1", []*domain.WalletRecord{testRecord(2), testRecord(1)})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// The transaction rolled back; rank 2 must not have been applied.
	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestWalletRecordStore_RunsIsolated(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletRecordStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "run-1", []*domain.WalletRecord{testRecord(1)}))
	require.NoError(t, store.InsertBulk(ctx, "run-2", []*domain.WalletRecord{testRecord(1)}))

	got, err := store.GetByRunID(ctx, "run-2")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestWalletRecordStore_EmptyBatchIsNoop(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletRecordStore(pool)

	assert.NoError(t, store.InsertBulk(context.Background(), "run-1", nil))
}

func TestWalletRecordStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletRecordStore(pool)
	ctx := context.Background()

	err := store.InsertBulk(ctx, "", []*domain.WalletRecord{testRecord(1)})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.InsertBulk(ctx, "run-1", []*domain.WalletRecord{testRecord(0)})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
