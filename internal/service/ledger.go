package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pilldncl/DNCL-SupMS-sub000/internal/domain"
	"github.com/pilldncl/DNCL-SupMS-sub000/internal/store"
	"github.com/pilldncl/DNCL-SupMS-sub000/internal/xid"
)

// Mutate is the single entry point for changing inventory. Every call
// that succeeds leaves behind exactly one ledger transaction whose
// quantity_after matches the stored aggregate.
func (s *Service) Mutate(ctx context.Context, req domain.MutationRequest) (domain.MutationResult, error) {
	req.PartCategory = strings.ToUpper(strings.TrimSpace(req.PartCategory))
	if req.ItemID < 1 || req.PartCategory == "" {
		return domain.MutationResult{}, store.ErrInvalidInput
	}
	if req.Mode != domain.ModeAdd && req.Mode != domain.ModeSet {
		return domain.MutationResult{}, fmt.Errorf("%w: unknown mutation mode %q", store.ErrInvalidInput, req.Mode)
	}
	if req.Source == "" {
		req.Source = domain.SourceManual
	}
	if !req.Source.Valid() {
		return domain.MutationResult{}, fmt.Errorf("%w: unknown source %q", store.ErrInvalidInput, req.Source)
	}

	key := domain.StockKey{ItemID: req.ItemID, PartCategory: req.PartCategory}
	existing, err := s.repo.GetStockItem(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.MutationResult{}, err
	}
	creating := existing == nil
	if creating && req.Mode == domain.ModeAdd && req.Quantity < 0 {
		return domain.MutationResult{}, fmt.Errorf("%w: cannot remove stock from non-existent item", store.ErrInvalidInput)
	}

	before := 0
	item := domain.StockItem{
		ItemID:            req.ItemID,
		PartCategory:      req.PartCategory,
		LowStockThreshold: domain.NoAlertThreshold,
	}
	if !creating {
		before = existing.Quantity
		item = *existing
	}

	var after int
	var txType domain.TxType
	var magnitude int
	switch req.Mode {
	case domain.ModeSet:
		after = req.Quantity
		if after < 0 {
			after = 0
		}
		txType = domain.TxTypeSet
		magnitude = after
	default:
		after = before + req.Quantity
		if after < 0 {
			after = 0
		}
		if req.Quantity < 0 {
			txType = domain.TxTypeSubtract
			magnitude = -req.Quantity
		} else {
			txType = domain.TxTypeAdd
			magnitude = req.Quantity
		}
	}

	if req.LowStockThreshold != nil {
		if *req.LowStockThreshold < 0 {
			return domain.MutationResult{}, fmt.Errorf("%w: negative low-stock threshold", store.ErrInvalidInput)
		}
		item.LowStockThreshold = *req.LowStockThreshold
	}
	if req.Notes != nil {
		item.Notes = strings.TrimSpace(*req.Notes)
	}
	// Tracking number is tri-state: nil keeps the stored value, an empty
	// string clears it.
	if req.TrackingNumber != nil {
		item.TrackingNumber = strings.TrimSpace(*req.TrackingNumber)
	}

	now := time.Now().UTC()
	updatedBy := req.UserID
	if updatedBy == "" {
		updatedBy = actorUsername(ctx)
	}
	item.Quantity = after
	item.LastUpdated = now
	item.UpdatedBy = updatedBy

	tx := domain.StockTransaction{
		ID:             xid.New("stx"),
		ItemID:         req.ItemID,
		PartCategory:   req.PartCategory,
		Quantity:       magnitude,
		QuantityBefore: before,
		QuantityAfter:  after,
		Type:           txType,
		Source:         req.Source,
		TrackingNumber: item.TrackingNumber,
		Notes:          item.Notes,
		CreatedAt:      now,
		CreatedBy:      updatedBy,
	}

	if err := s.repo.ApplyMutation(ctx, item, tx); err != nil {
		return domain.MutationResult{}, err
	}

	return domain.MutationResult{Item: item, Transaction: tx}, nil
}

// CurrentQuantity reports zero for keys that have never been mutated.
func (s *Service) CurrentQuantity(ctx context.Context, key domain.StockKey) (int, error) {
	key.PartCategory = strings.ToUpper(strings.TrimSpace(key.PartCategory))
	item, err := s.repo.GetStockItem(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return item.Quantity, nil
}

func (s *Service) GetStockItem(ctx context.Context, key domain.StockKey) (domain.StockItem, error) {
	key.PartCategory = strings.ToUpper(strings.TrimSpace(key.PartCategory))
	item, err := s.repo.GetStockItem(ctx, key)
	if err != nil {
		return domain.StockItem{}, err
	}
	return *item, nil
}

func (s *Service) ListStock(ctx context.Context) ([]domain.StockItem, error) {
	return s.repo.ListStockItems(ctx)
}

func (s *Service) ListLowStock(ctx context.Context) ([]domain.StockItem, error) {
	items, err := s.repo.ListStockItems(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]domain.StockItem, 0, len(items))
	for _, item := range items {
		if item.IsLowStock() {
			low = append(low, item)
		}
	}
	return low, nil
}

func (s *Service) History(ctx context.Context, key domain.StockKey, limit int) ([]domain.StockTransaction, error) {
	key.PartCategory = strings.ToUpper(strings.TrimSpace(key.PartCategory))
	if key.ItemID < 1 || key.PartCategory == "" {
		return nil, store.ErrInvalidInput
	}
	if limit < 1 {
		limit = 50
	}
	return s.repo.ListTransactions(ctx, key, limit)
}

func (s *Service) AllHistory(ctx context.Context, limit int) ([]domain.StockTransaction, error) {
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListAllTransactions(ctx, limit)
}
