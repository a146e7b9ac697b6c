package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pilldncl/DNCL-SupMS-sub000/internal/domain"
	"github.com/pilldncl/DNCL-SupMS-sub000/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	stock           map[domain.StockKey]domain.StockItem
	transactions    []domain.StockTransaction
	dailySummaries  map[string]domain.DailySummary
	orderItemsByID  map[string]domain.OrderItem
	weekCyclesByID  map[string]domain.WeekCycle
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		stock:           make(map[domain.StockKey]domain.StockItem),
		transactions:    make([]domain.StockTransaction, 0, 256),
		dailySummaries:  make(map[string]domain.DailySummary),
		orderItemsByID:  make(map[string]domain.OrderItem),
		weekCyclesByID:  make(map[string]domain.WeekCycle),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"staff", staffPwd, "staff"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()

	now := time.Now().UTC()
	seed := []domain.StockItem{
		{ItemID: 10, PartCategory: "SCREEN", Quantity: 24, LowStockThreshold: 5, LastUpdated: now},
		{ItemID: 10, PartCategory: "BATTERY", Quantity: 40, LowStockThreshold: 10, LastUpdated: now},
		{ItemID: 22, PartCategory: "SCREEN", Quantity: 3, LowStockThreshold: 5, LastUpdated: now},
		{ItemID: 31, PartCategory: "CHARGING_PORT", Quantity: 15, LowStockThreshold: domain.NoAlertThreshold, LastUpdated: now},
	}
	for _, item := range seed {
		s.stock[item.Key()] = item
	}
	return s
}

func (s *Store) ApplyMutation(_ context.Context, item domain.StockItem, tx domain.StockTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.PartCategory == "" || tx.ID == "" {
		return store.ErrInvalidInput
	}

	current := 0
	if existing, ok := s.stock[item.Key()]; ok {
		current = existing.Quantity
	}
	if current != tx.QuantityBefore {
		return store.ErrConflict
	}

	s.stock[item.Key()] = item
	s.transactions = append(s.transactions, tx)
	return nil
}

func (s *Store) GetStockItem(_ context.Context, key domain.StockKey) (*domain.StockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.stock[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyItem := item
	return &copyItem, nil
}

func (s *Store) ListStockItems(_ context.Context) ([]domain.StockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.StockItem, 0, len(s.stock))
	for _, item := range s.stock {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.StockItem) int {
		if a.ItemID == b.ItemID {
			return cmpString(a.PartCategory, b.PartCategory)
		}
		if a.ItemID < b.ItemID {
			return -1
		}
		return 1
	})
	return items, nil
}

func (s *Store) ListTransactions(_ context.Context, key domain.StockKey, limit int) ([]domain.StockTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StockTransaction, 0, limit)
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		if tx.ItemID != key.ItemID || tx.PartCategory != key.PartCategory {
			continue
		}
		out = append(out, tx)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListAllTransactions(_ context.Context, limit int) ([]domain.StockTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StockTransaction, 0, limit)
	for i := len(s.transactions) - 1; i >= 0; i-- {
		out = append(out, s.transactions[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListTransactionsBetween(_ context.Context, from time.Time, to time.Time) ([]domain.StockTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StockTransaction, 0, 32)
	for _, tx := range s.transactions {
		if tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		out = append(out, tx)
	}
	slices.SortFunc(out, func(a, b domain.StockTransaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *Store) GetDailySummary(_ context.Context, date string) (*domain.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.dailySummaries[date]
	if !ok {
		return nil, store.ErrNotFound
	}
	copySummary := cloneSummary(summary)
	return &copySummary, nil
}

func (s *Store) UpsertDailySummary(_ context.Context, summary domain.DailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if summary.Date == "" {
		return store.ErrInvalidInput
	}
	s.dailySummaries[summary.Date] = cloneSummary(summary)
	return nil
}

func (s *Store) CreateOrderItem(_ context.Context, item domain.OrderItem) (*domain.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" || item.PartCategory == "" || item.WeekCycleID == "" {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.orderItemsByID[item.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	s.orderItemsByID[item.ID] = cloneOrderItem(item)
	created := cloneOrderItem(item)
	return &created, nil
}

func (s *Store) GetOrderItem(_ context.Context, id string) (*domain.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.orderItemsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyItem := cloneOrderItem(item)
	return &copyItem, nil
}

func (s *Store) UpdateOrderItem(_ context.Context, item domain.OrderItem) (*domain.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orderItemsByID[item.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.orderItemsByID[item.ID] = cloneOrderItem(item)
	updated := cloneOrderItem(item)
	return &updated, nil
}

func (s *Store) DeleteOrderItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orderItemsByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.orderItemsByID, id)
	return nil
}

func (s *Store) ListOrderItems(_ context.Context, weekCycleID string) ([]domain.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.OrderItem, 0, len(s.orderItemsByID))
	for _, item := range s.orderItemsByID {
		if weekCycleID != "" && item.WeekCycleID != weekCycleID {
			continue
		}
		items = append(items, cloneOrderItem(item))
	}
	slices.SortFunc(items, func(a, b domain.OrderItem) int {
		if c := a.AddedAt.Compare(b.AddedAt); c != 0 {
			return c
		}
		return cmpString(a.ID, b.ID)
	})
	return items, nil
}

func (s *Store) GetActiveWeekCycle(_ context.Context) (*domain.WeekCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cycle := range s.weekCyclesByID {
		if cycle.IsActive {
			copyCycle := cycle
			return &copyCycle, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateWeekCycle(_ context.Context, cycle domain.WeekCycle) (*domain.WeekCycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cycle.ID == "" {
		return nil, store.ErrInvalidInput
	}
	if cycle.IsActive {
		for id, existing := range s.weekCyclesByID {
			if existing.IsActive {
				existing.IsActive = false
				s.weekCyclesByID[id] = existing
			}
		}
	}
	s.weekCyclesByID[cycle.ID] = cycle
	created := cycle
	return &created, nil
}

func (s *Store) ResetWeekCycle(_ context.Context, weekCycleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cycle, ok := s.weekCyclesByID[weekCycleID]
	if !ok {
		return store.ErrNotFound
	}
	for id, item := range s.orderItemsByID {
		if item.WeekCycleID == weekCycleID {
			delete(s.orderItemsByID, id)
		}
	}
	cycle.IsActive = false
	s.weekCyclesByID[weekCycleID] = cycle
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" || user.Role == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidInput
	}
	user.Username = username
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	if password == "" {
		return store.ErrInvalidInput
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cloneSummary(summary domain.DailySummary) domain.DailySummary {
	out := summary
	out.ByType = make(map[domain.TxType]int, len(summary.ByType))
	for k, v := range summary.ByType {
		out.ByType[k] = v
	}
	out.BySource = make(map[domain.TxSource]int, len(summary.BySource))
	for k, v := range summary.BySource {
		out.BySource[k] = v
	}
	return out
}

func cloneOrderItem(item domain.OrderItem) domain.OrderItem {
	out := item
	out.OrderedAt = cloneTime(item.OrderedAt)
	out.ShippingAt = cloneTime(item.ShippingAt)
	out.ReceivedAt = cloneTime(item.ReceivedAt)
	out.StockAddedAt = cloneTime(item.StockAddedAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copyT := *t
	return &copyT
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
