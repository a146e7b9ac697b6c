package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pilldncl/DNCL-SupMS-sub000/internal/domain"
	"github.com/pilldncl/DNCL-SupMS-sub000/internal/store"
	"github.com/pilldncl/DNCL-SupMS-sub000/internal/xid"
)

// ensureActiveWeekCycle returns the active cycle, lazily creating a
// Monday..Sunday (UTC) cycle when none exists.
func (s *Service) ensureActiveWeekCycle(ctx context.Context) (domain.WeekCycle, error) {
	cycle, err := s.repo.GetActiveWeekCycle(ctx)
	if err == nil {
		return *cycle, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.WeekCycle{}, err
	}

	now := time.Now().UTC()
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1-weekday)
	created, err := s.repo.CreateWeekCycle(ctx, domain.WeekCycle{
		ID:        xid.New("wk"),
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 7),
		IsActive:  true,
	})
	if err != nil {
		return domain.WeekCycle{}, err
	}
	log.Printf("[service] started week cycle %s (%s)", created.ID, start.Format("2006-01-02"))
	return *created, nil
}

func (s *Service) AddOrderItem(ctx context.Context, req domain.AddOrderItemRequest) (domain.OrderItem, error) {
	req.PartCategory = strings.ToUpper(strings.TrimSpace(req.PartCategory))
	if req.ItemID < 1 || req.PartCategory == "" {
		return domain.OrderItem{}, store.ErrInvalidInput
	}
	if req.Quantity < 0 {
		return domain.OrderItem{}, fmt.Errorf("%w: negative quantity", store.ErrInvalidInput)
	}

	cycle, err := s.ensureActiveWeekCycle(ctx)
	if err != nil {
		return domain.OrderItem{}, err
	}

	item := domain.OrderItem{
		ID:           xid.New("ord"),
		ItemID:       req.ItemID,
		PartCategory: req.PartCategory,
		Quantity:     req.Quantity,
		Status:       domain.StatusPending,
		AddedAt:      time.Now().UTC(),
		AddedBy:      actorUsername(ctx),
		WeekCycleID:  cycle.ID,
	}
	created, err := s.repo.CreateOrderItem(ctx, item)
	if err != nil {
		return domain.OrderItem{}, err
	}
	return *created, nil
}

func (s *Service) RemoveOrderItem(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return store.ErrInvalidInput
	}
	return s.repo.DeleteOrderItem(ctx, id)
}

// ListOrders returns the active week's items. With no active cycle there
// is nothing current, so the list is empty rather than an error.
func (s *Service) ListOrders(ctx context.Context) ([]domain.OrderItem, error) {
	cycle, err := s.repo.GetActiveWeekCycle(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []domain.OrderItem{}, nil
		}
		return nil, err
	}
	return s.repo.ListOrderItems(ctx, cycle.ID)
}

func (s *Service) StatusSummary(ctx context.Context) (domain.StatusSummary, error) {
	items, err := s.ListOrders(ctx)
	if err != nil {
		return domain.StatusSummary{}, err
	}
	var summary domain.StatusSummary
	for _, item := range items {
		switch item.Status {
		case domain.StatusPending:
			summary.Pending++
		case domain.StatusOrdered:
			summary.Ordered++
		case domain.StatusShipping:
			summary.Shipping++
		case domain.StatusReceived:
			summary.Received++
		case domain.StatusStockAdded:
			summary.StockAdded++
		}
		summary.Total++
	}
	return summary, nil
}

// Advance moves an order one state forward. Transitions that need
// caller-supplied data (ORDERED wants tracking info, STOCK_ADDED wants
// the received quantity) are reported via RequiresInput instead of
// being taken.
func (s *Service) Advance(ctx context.Context, id string) (domain.AdvanceResult, error) {
	item, err := s.repo.GetOrderItem(ctx, id)
	if err != nil {
		return domain.AdvanceResult{}, err
	}

	next, ok := item.Status.Next()
	if !ok {
		return domain.AdvanceResult{Item: *item, Advanced: false}, nil
	}

	now := time.Now().UTC()
	switch next {
	case domain.StatusOrdered:
		return domain.AdvanceResult{Item: *item, RequiresInput: "tracking info"}, nil
	case domain.StatusStockAdded:
		return domain.AdvanceResult{Item: *item, RequiresInput: "received quantity"}, nil
	case domain.StatusShipping:
		item.Status = next
		item.ShippingAt = &now
	case domain.StatusReceived:
		item.Status = next
		item.ReceivedAt = &now
	}

	updated, err := s.repo.UpdateOrderItem(ctx, *item)
	if err != nil {
		return domain.AdvanceResult{}, err
	}
	return domain.AdvanceResult{Item: *updated, Advanced: true}, nil
}

// MarkOrdered stamps ordering metadata and forces the status to ORDERED
// regardless of the current state. Re-marking replaces the previous
// tracking info.
func (s *Service) MarkOrdered(ctx context.Context, id string, req domain.MarkOrderedRequest) (domain.OrderItem, error) {
	item, err := s.repo.GetOrderItem(ctx, id)
	if err != nil {
		return domain.OrderItem{}, err
	}

	now := time.Now().UTC()
	item.Status = domain.StatusOrdered
	item.OrderedAt = &now
	item.OrderedBy = actorUsername(ctx)
	item.TrackingNumber = strings.TrimSpace(req.TrackingNumber)
	item.TrackingURL = strings.TrimSpace(req.TrackingURL)
	item.ShippingAt = nil
	item.ReceivedAt = nil
	item.StockAddedAt = nil
	item.StockAddedBy = ""
	item.StockQuantityAdded = 0

	updated, err := s.repo.UpdateOrderItem(ctx, *item)
	if err != nil {
		return domain.OrderItem{}, err
	}
	return *updated, nil
}

// CompleteWithStock finishes a RECEIVED order by adding the received
// quantity to inventory and marking the order STOCK_ADDED. The ledger
// mutation happens first; if the order update then fails, the inverse
// mutation is applied so inventory and workflow never diverge silently.
func (s *Service) CompleteWithStock(ctx context.Context, id string, req domain.CompleteWithStockRequest) (domain.OrderItem, error) {
	if req.Quantity < 1 {
		return domain.OrderItem{}, fmt.Errorf("%w: received quantity must be positive", store.ErrInvalidInput)
	}
	item, err := s.repo.GetOrderItem(ctx, id)
	if err != nil {
		return domain.OrderItem{}, err
	}
	if item.Status != domain.StatusReceived {
		return domain.OrderItem{}, fmt.Errorf("%w: order %s is %s, expected %s", store.ErrInvalidInput, id, item.Status, domain.StatusReceived)
	}

	notes := fmt.Sprintf("received from order %s", item.ID)
	_, err = s.Mutate(ctx, domain.MutationRequest{
		ItemID:       item.ItemID,
		PartCategory: item.PartCategory,
		Quantity:     req.Quantity,
		Mode:         domain.ModeAdd,
		Source:       domain.SourceOrderReceived,
		Notes:        &notes,
	})
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("add received stock: %w", err)
	}

	now := time.Now().UTC()
	item.Status = domain.StatusStockAdded
	item.StockAddedAt = &now
	item.StockAddedBy = actorUsername(ctx)
	item.StockQuantityAdded = req.Quantity

	updated, err := s.repo.UpdateOrderItem(ctx, *item)
	if err != nil {
		s.undoStockMovement(ctx, *item, -req.Quantity, fmt.Sprintf("undo receive for order %s", item.ID))
		return domain.OrderItem{}, fmt.Errorf("update order after stock add: %w", err)
	}
	return *updated, nil
}

// Revert moves an order one state backward and clears the fields the
// undone state had stamped. Reverting STOCK_ADDED removes the received
// quantity from inventory before touching the order; a failed removal
// aborts the revert.
func (s *Service) Revert(ctx context.Context, id string) (domain.OrderItem, error) {
	item, err := s.repo.GetOrderItem(ctx, id)
	if err != nil {
		return domain.OrderItem{}, err
	}

	prev, ok := item.Status.Prev()
	if !ok {
		return *item, nil
	}

	removed := 0
	switch item.Status {
	case domain.StatusOrdered:
		item.OrderedAt = nil
		item.OrderedBy = ""
		item.TrackingNumber = ""
		item.TrackingURL = ""
	case domain.StatusShipping:
		item.ShippingAt = nil
	case domain.StatusReceived:
		item.ReceivedAt = nil
	case domain.StatusStockAdded:
		removed = item.StockQuantityAdded
		if removed > 0 {
			notes := "reverted from STOCK_ADDED"
			_, err := s.Mutate(ctx, domain.MutationRequest{
				ItemID:       item.ItemID,
				PartCategory: item.PartCategory,
				Quantity:     -removed,
				Mode:         domain.ModeAdd,
				Source:       domain.SourceManual,
				Notes:        &notes,
			})
			if err != nil {
				return domain.OrderItem{}, fmt.Errorf("compensating stock removal: %w", err)
			}
		}
		item.StockAddedAt = nil
		item.StockAddedBy = ""
		item.StockQuantityAdded = 0
	}
	item.Status = prev

	updated, err := s.repo.UpdateOrderItem(ctx, *item)
	if err != nil {
		if removed > 0 {
			s.undoStockMovement(ctx, *item, removed, fmt.Sprintf("undo revert for order %s", item.ID))
		}
		return domain.OrderItem{}, fmt.Errorf("update order after revert: %w", err)
	}
	return *updated, nil
}

// undoStockMovement re-applies the inverse of a just-made ledger
// mutation when the paired order update failed. Failure here is logged
// loudly; the original error still reaches the caller.
func (s *Service) undoStockMovement(ctx context.Context, item domain.OrderItem, quantity int, notes string) {
	_, err := s.Mutate(ctx, domain.MutationRequest{
		ItemID:       item.ItemID,
		PartCategory: item.PartCategory,
		Quantity:     quantity,
		Mode:         domain.ModeAdd,
		Source:       domain.SourceManual,
		Notes:        &notes,
	})
	if err != nil {
		log.Printf("[service] WARN: failed to undo stock movement for order %s (qty %d): %v", item.ID, quantity, err)
	}
}

// ResetWeek deletes the active cycle's order items and deactivates the
// cycle. The next added item starts a fresh cycle.
func (s *Service) ResetWeek(ctx context.Context) error {
	cycle, err := s.repo.GetActiveWeekCycle(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.repo.ResetWeekCycle(ctx, cycle.ID)
}
