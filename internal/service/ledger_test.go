package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pilldncl/DNCL-SupMS-sub000/internal/cache"
	"github.com/pilldncl/DNCL-SupMS-sub000/internal/domain"
	"github.com/pilldncl/DNCL-SupMS-sub000/internal/store"
	"github.com/pilldncl/DNCL-SupMS-sub000/internal/store/memory"
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.New()
	svc := New(repo, cache.NoopReportCache{}, 5*time.Minute, 10)
	return svc, repo
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestMutateCreatesAggregateWithDefaults(t *testing.T) {
	svc, _ := newTestService()

	result, err := svc.Mutate(context.Background(), domain.MutationRequest{
		ItemID:       10,
		PartCategory: "screen",
		Quantity:     5,
		Mode:         domain.ModeAdd,
		Source:       domain.SourceQuickAdd,
	})
	if err != nil {
		t.Fatalf("mutate failed: %v", err)
	}
	if result.Item.Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", result.Item.Quantity)
	}
	if result.Item.PartCategory != "SCREEN" {
		t.Fatalf("expected normalized category SCREEN, got %s", result.Item.PartCategory)
	}
	if result.Item.LowStockThreshold != domain.NoAlertThreshold {
		t.Fatalf("expected default threshold %d, got %d", domain.NoAlertThreshold, result.Item.LowStockThreshold)
	}
	if result.Item.IsLowStock() {
		t.Fatalf("sentinel threshold must never flag low stock")
	}
	if result.Transaction.Type != domain.TxTypeAdd || result.Transaction.Quantity != 5 {
		t.Fatalf("expected ADD transaction with magnitude 5, got %s/%d", result.Transaction.Type, result.Transaction.Quantity)
	}
	if result.Transaction.QuantityBefore != 0 || result.Transaction.QuantityAfter != 5 {
		t.Fatalf("expected before/after 0/5, got %d/%d", result.Transaction.QuantityBefore, result.Transaction.QuantityAfter)
	}
}

func TestMutateAddClampsAtZero(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Mutate(ctx, domain.MutationRequest{
		ItemID: 10, PartCategory: "SCREEN", Quantity: 3, Mode: domain.ModeAdd, Source: domain.SourceManual,
	}); err != nil {
		t.Fatalf("seed mutate failed: %v", err)
	}

	result, err := svc.Mutate(ctx, domain.MutationRequest{
		ItemID: 10, PartCategory: "SCREEN", Quantity: -10, Mode: domain.ModeAdd, Source: domain.SourceManual,
	})
	if err != nil {
		t.Fatalf("mutate failed: %v", err)
	}
	if result.Item.Quantity != 0 {
		t.Fatalf("expected clamp to zero, got %d", result.Item.Quantity)
	}
	if result.Transaction.Type != domain.TxTypeSubtract {
		t.Fatalf("expected SUBTRACT transaction, got %s", result.Transaction.Type)
	}
	// Magnitude records what was requested, not what was applied.
	if result.Transaction.Quantity != 10 {
		t.Fatalf("expected magnitude 10, got %d", result.Transaction.Quantity)
	}
	if result.Transaction.QuantityBefore != 3 || result.Transaction.QuantityAfter != 0 {
		t.Fatalf("expected before/after 3/0, got %d/%d", result.Transaction.QuantityBefore, result.Transaction.QuantityAfter)
	}
}

func TestMutateRejectsNegativeAddOnMissingItem(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Mutate(context.Background(), domain.MutationRequest{
		ItemID: 99, PartCategory: "BATTERY", Quantity: -1, Mode: domain.ModeAdd, Source: domain.SourceManual,
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}

	quantity, err := svc.CurrentQuantity(context.Background(), domain.StockKey{ItemID: 99, PartCategory: "BATTERY"})
	if err != nil {
		t.Fatalf("current quantity failed: %v", err)
	}
	if quantity != 0 {
		t.Fatalf("expected quantity 0 for untouched key, got %d", quantity)
	}
}

func TestMutateSetClampIsIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Mutate(ctx, domain.MutationRequest{
		ItemID: 7, PartCategory: "CAMERA", Quantity: -5, Mode: domain.ModeSet, Source: domain.SourceUpdateModal,
	})
	if err != nil {
		t.Fatalf("first set failed: %v", err)
	}
	second, err := svc.Mutate(ctx, domain.MutationRequest{
		ItemID: 7, PartCategory: "CAMERA", Quantity: -5, Mode: domain.ModeSet, Source: domain.SourceUpdateModal,
	})
	if err != nil {
		t.Fatalf("second set failed: %v", err)
	}
	if first.Item.Quantity != 0 || second.Item.Quantity != 0 {
		t.Fatalf("expected SET -5 to clamp to 0 both times")
	}
	if first.Transaction.Quantity != 0 || second.Transaction.Quantity != 0 {
		t.Fatalf("SET magnitude must record the clamped value")
	}
	if second.Transaction.QuantityBefore != 0 || second.Transaction.QuantityAfter != 0 {
		t.Fatalf("repeated SET must be a 0 -> 0 transition")
	}
}

func TestLedgerScenarioMatchesRunningQuantities(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	key := domain.StockKey{ItemID: 10, PartCategory: "SCREEN"}

	steps := []struct {
		quantity  int
		mode      domain.MutationMode
		wantAfter int
		wantType  domain.TxType
		wantMag   int
	}{
		{5, domain.ModeAdd, 5, domain.TxTypeAdd, 5},
		{-2, domain.ModeAdd, 3, domain.TxTypeSubtract, 2},
		{10, domain.ModeSet, 10, domain.TxTypeSet, 10},
	}
	for i, step := range steps {
		result, err := svc.Mutate(ctx, domain.MutationRequest{
			ItemID: key.ItemID, PartCategory: key.PartCategory,
			Quantity: step.quantity, Mode: step.mode, Source: domain.SourceManual,
		})
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		if result.Item.Quantity != step.wantAfter {
			t.Fatalf("step %d: expected quantity %d, got %d", i, step.wantAfter, result.Item.Quantity)
		}
		if result.Transaction.Type != step.wantType || result.Transaction.Quantity != step.wantMag {
			t.Fatalf("step %d: expected %s/%d, got %s/%d", i, step.wantType, step.wantMag, result.Transaction.Type, result.Transaction.Quantity)
		}
	}

	// Replaying the log must land exactly on the aggregate.
	history, err := svc.History(ctx, key, 50)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(history))
	}
	if history[0].QuantityAfter != 10 {
		t.Fatalf("newest transaction must carry the current quantity, got %d", history[0].QuantityAfter)
	}
	for i := 0; i < len(history)-1; i++ {
		if history[i].QuantityBefore != history[i+1].QuantityAfter {
			t.Fatalf("transaction chain broken between %d and %d", i, i+1)
		}
	}
	quantity, err := svc.CurrentQuantity(ctx, key)
	if err != nil {
		t.Fatalf("current quantity failed: %v", err)
	}
	if quantity != 10 {
		t.Fatalf("expected current quantity 10, got %d", quantity)
	}
}

func TestMutateTrackingNumberTriState(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	result, err := svc.Mutate(ctx, domain.MutationRequest{
		ItemID: 4, PartCategory: "BACK_GLASS", Quantity: 2, Mode: domain.ModeAdd,
		Source: domain.SourceBulkEntry, TrackingNumber: strPtr("1Z999"),
	})
	if err != nil {
		t.Fatalf("mutate failed: %v", err)
	}
	if result.Item.TrackingNumber != "1Z999" {
		t.Fatalf("expected tracking number set, got %q", result.Item.TrackingNumber)
	}

	// nil pointer leaves the stored value alone.
	result, err = svc.Mutate(ctx, domain.MutationRequest{
		ItemID: 4, PartCategory: "BACK_GLASS", Quantity: 1, Mode: domain.ModeAdd, Source: domain.SourceBulkEntry,
	})
	if err != nil {
		t.Fatalf("mutate failed: %v", err)
	}
	if result.Item.TrackingNumber != "1Z999" {
		t.Fatalf("nil tracking pointer must not change the stored value, got %q", result.Item.TrackingNumber)
	}

	// empty string clears it.
	result, err = svc.Mutate(ctx, domain.MutationRequest{
		ItemID: 4, PartCategory: "BACK_GLASS", Quantity: 1, Mode: domain.ModeAdd,
		Source: domain.SourceBulkEntry, TrackingNumber: strPtr(""),
	})
	if err != nil {
		t.Fatalf("mutate failed: %v", err)
	}
	if result.Item.TrackingNumber != "" {
		t.Fatalf("empty tracking pointer must clear the stored value, got %q", result.Item.TrackingNumber)
	}
}

func TestMutateRejectsUnknownModeAndSource(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Mutate(context.Background(), domain.MutationRequest{
		ItemID: 1, PartCategory: "SCREEN", Quantity: 1, Mode: "MERGE", Source: domain.SourceManual,
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown mode, got %v", err)
	}

	_, err = svc.Mutate(context.Background(), domain.MutationRequest{
		ItemID: 1, PartCategory: "SCREEN", Quantity: 1, Mode: domain.ModeAdd, Source: "CARRIER_PIGEON",
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown source, got %v", err)
	}
}

func TestListLowStock(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Mutate(ctx, domain.MutationRequest{
		ItemID: 1, PartCategory: "SCREEN", Quantity: 2, Mode: domain.ModeAdd,
		Source: domain.SourceManual, LowStockThreshold: intPtr(5),
	}); err != nil {
		t.Fatalf("mutate failed: %v", err)
	}
	if _, err := svc.Mutate(ctx, domain.MutationRequest{
		ItemID: 2, PartCategory: "SCREEN", Quantity: 50, Mode: domain.ModeAdd,
		Source: domain.SourceManual, LowStockThreshold: intPtr(5),
	}); err != nil {
		t.Fatalf("mutate failed: %v", err)
	}
	if _, err := svc.Mutate(ctx, domain.MutationRequest{
		ItemID: 3, PartCategory: "SCREEN", Quantity: 0, Mode: domain.ModeSet, Source: domain.SourceManual,
	}); err != nil {
		t.Fatalf("mutate failed: %v", err)
	}

	low, err := svc.ListLowStock(ctx)
	if err != nil {
		t.Fatalf("list low stock failed: %v", err)
	}
	if len(low) != 1 {
		t.Fatalf("expected exactly one low-stock item, got %d", len(low))
	}
	if low[0].ItemID != 1 {
		t.Fatalf("expected item 1 to be low, got %d", low[0].ItemID)
	}
}
