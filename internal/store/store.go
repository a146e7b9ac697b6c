package store

import (
	"context"
	"errors"
	"time"

	"github.com/pilldncl/DNCL-SupMS-sub000/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict means a mutation lost a race: the stored quantity no
	// longer matched the transaction's quantity_before.
	ErrConflict = errors.New("stock state changed concurrently")
)

type Repository interface {
	// ApplyMutation upserts the stock aggregate and appends the ledger
	// transaction as one atomic operation. The stored quantity must equal
	// tx.QuantityBefore (zero for a new aggregate) or ErrConflict is
	// returned and nothing changes.
	ApplyMutation(ctx context.Context, item domain.StockItem, tx domain.StockTransaction) error
	GetStockItem(ctx context.Context, key domain.StockKey) (*domain.StockItem, error)
	ListStockItems(ctx context.Context) ([]domain.StockItem, error)
	ListTransactions(ctx context.Context, key domain.StockKey, limit int) ([]domain.StockTransaction, error)
	ListAllTransactions(ctx context.Context, limit int) ([]domain.StockTransaction, error)
	ListTransactionsBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.StockTransaction, error)

	GetDailySummary(ctx context.Context, date string) (*domain.DailySummary, error)
	UpsertDailySummary(ctx context.Context, summary domain.DailySummary) error

	CreateOrderItem(ctx context.Context, item domain.OrderItem) (*domain.OrderItem, error)
	GetOrderItem(ctx context.Context, id string) (*domain.OrderItem, error)
	UpdateOrderItem(ctx context.Context, item domain.OrderItem) (*domain.OrderItem, error)
	DeleteOrderItem(ctx context.Context, id string) error
	ListOrderItems(ctx context.Context, weekCycleID string) ([]domain.OrderItem, error)

	GetActiveWeekCycle(ctx context.Context) (*domain.WeekCycle, error)
	CreateWeekCycle(ctx context.Context, cycle domain.WeekCycle) (*domain.WeekCycle, error)
	ResetWeekCycle(ctx context.Context, weekCycleID string) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
