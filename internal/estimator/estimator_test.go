package estimator

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/ratelimit"
)

type fakeDetails struct {
	movements []*domain.ValueMovement
	err       error
}

func (f *fakeDetails) GasInfo(_ context.Context, _ string) (*domain.GasInfo, error) {
	return nil, errors.New("not used")
}

func (f *fakeDetails) ValueMovements(_ context.Context, _ string) ([]*domain.ValueMovement, error) {
	return f.movements, f.err
}

type fakePrices struct {
	price float64
	err   error
}

func (f *fakePrices) PriceAt(_ context.Context, _ string, _ int64) (float64, error) {
	return f.price, f.err
}

func buyTransfer() *domain.TransferEvent {
	return &domain.TransferEvent{
		TokenAddress: "0xtoken",
		From:         "0xpool",
		To:           "0xwallet",
		RawAmount:    big.NewInt(1000),
		BlockNumber:  100,
		TxHash:       "0xswap",
		LogIndex:     5,
		Timestamp:    1700000000,
	}
}

func newTestEstimator(details *fakeDetails, prices *fakePrices) *Estimator {
	return New(Options{Details: details, Prices: prices, Limiter: ratelimit.New(0)})
}

func TestEstimate_PairsPaymentToPool(t *testing.T) {
	details := &fakeDetails{movements: []*domain.ValueMovement{
		{From: "0xwallet", To: "0xpool", Currency: "ETH", Amount: 1.0, LogIndex: 4},
	}}
	e := newTestEstimator(details, &fakePrices{price: 2000})

	inv, err := e.Estimate(context.Background(), buyTransfer())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if inv == nil {
		t.Fatal("expected an investment")
	}
	if inv.Currency != "ETH" || inv.NativeAmount != 1.0 {
		t.Errorf("expected 1.0 ETH, got %f %s", inv.NativeAmount, inv.Currency)
	}
	if inv.FiatAmount == nil || *inv.FiatAmount != 2000 {
		t.Errorf("expected fiat 2000, got %v", inv.FiatAmount)
	}
}

func TestEstimate_TransactionScopedMovementAlwaysPairs(t *testing.T) {
	// Outer call value has no log position; it pairs regardless of distance.
	details := &fakeDetails{movements: []*domain.ValueMovement{
		{From: "0xwallet", To: "0xpool", Currency: "ETH", Amount: 0.5, LogIndex: -1},
	}}
	e := newTestEstimator(details, &fakePrices{price: 2000})

	inv, err := e.Estimate(context.Background(), buyTransfer())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if inv == nil || inv.NativeAmount != 0.5 {
		t.Fatalf("expected 0.5 ETH, got %+v", inv)
	}
}

func TestEstimate_DistantLogDoesNotPair(t *testing.T) {
	details := &fakeDetails{movements: []*domain.ValueMovement{
		{From: "0xwallet", To: "0xpool", Currency: "ETH", Amount: 1.0, LogIndex: 50},
	}}
	e := newTestEstimator(details, &fakePrices{price: 2000})

	inv, err := e.Estimate(context.Background(), buyTransfer())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if inv != nil {
		t.Fatalf("movement far from the transfer log must not pair, got %+v", inv)
	}
}

func TestEstimate_OtherPayerDoesNotPair(t *testing.T) {
	details := &fakeDetails{movements: []*domain.ValueMovement{
		{From: "0xsomeoneelse", To: "0xpool", Currency: "ETH", Amount: 1.0, LogIndex: 4},
	}}
	e := newTestEstimator(details, &fakePrices{price: 2000})

	inv, err := e.Estimate(context.Background(), buyTransfer())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if inv != nil {
		t.Fatalf("payment by another wallet must not pair, got %+v", inv)
	}
}

func TestEstimate_PaymentToUnrelatedWalletDoesNotPair(t *testing.T) {
	details := &fakeDetails{movements: []*domain.ValueMovement{
		{From: "0xwallet", To: "0x8ba1f109551bd432803012645ac136ddd64dba72", Currency: "ETH", Amount: 1.0, LogIndex: 4},
	}}
	e := newTestEstimator(details, &fakePrices{price: 2000})

	inv, err := e.Estimate(context.Background(), buyTransfer())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if inv != nil {
		t.Fatalf("payment to an unrelated wallet must not pair, got %+v", inv)
	}
}

func TestEstimate_SumsMovementsAndPicksLargestCurrency(t *testing.T) {
	details := &fakeDetails{movements: []*domain.ValueMovement{
		{From: "0xwallet", To: "0xpool", Currency: "ETH", Amount: 0.3, LogIndex: 4},
		{From: "0xwallet", To: "0xpool", Currency: "ETH", Amount: 0.2, LogIndex: 6},
		{From: "0xwallet", To: "0xpool", Currency: "USDC", Amount: 0.1, LogIndex: 3},
	}}
	e := newTestEstimator(details, &fakePrices{price: 2000})

	inv, err := e.Estimate(context.Background(), buyTransfer())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if inv == nil || inv.Currency != "ETH" || inv.NativeAmount != 0.5 {
		t.Fatalf("expected 0.5 ETH, got %+v", inv)
	}
}

func TestEstimate_PriceFailureKeepsNativeAmount(t *testing.T) {
	details := &fakeDetails{movements: []*domain.ValueMovement{
		{From: "0xwallet", To: "0xpool", Currency: "ETH", Amount: 1.0, LogIndex: 4},
	}}
	e := newTestEstimator(details, &fakePrices{err: domain.ErrPriceUnavailable})

	inv, err := e.Estimate(context.Background(), buyTransfer())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if inv == nil {
		t.Fatal("expected an investment with unknown fiat value")
	}
	if inv.NativeAmount != 1.0 {
		t.Errorf("expected native amount 1.0, got %f", inv.NativeAmount)
	}
	if inv.FiatAmount != nil {
		t.Errorf("expected nil fiat amount, got %v", *inv.FiatAmount)
	}
}

func TestEstimate_DetailFailureDegradesToUnknown(t *testing.T) {
	details := &fakeDetails{err: errors.New("provider down")}
	e := newTestEstimator(details, &fakePrices{price: 2000})

	inv, err := e.Estimate(context.Background(), buyTransfer())
	if err != nil {
		t.Fatalf("provider failure must degrade, not fail: %v", err)
	}
	if inv != nil {
		t.Fatalf("expected unknown investment, got %+v", inv)
	}
}

func TestEstimate_ContextCancelledPropagates(t *testing.T) {
	details := &fakeDetails{err: context.Canceled}
	e := newTestEstimator(details, &fakePrices{price: 2000})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Estimate(ctx, buyTransfer())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
