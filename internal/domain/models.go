package domain

import "time"

// NoAlertThreshold disables low-stock alerting for an aggregate. Any
// threshold at or above this value is treated as "never alert".
const NoAlertThreshold = 999999

type TxType string

const (
	TxTypeSet      TxType = "SET"
	TxTypeAdd      TxType = "ADD"
	TxTypeSubtract TxType = "SUBTRACT"
)

type TxSource string

const (
	SourceQuickAdd      TxSource = "QUICK_ADD"
	SourceUpdateModal   TxSource = "UPDATE_MODAL"
	SourceBulkEntry     TxSource = "BULK_ENTRY"
	SourceOrderReceived TxSource = "ORDER_RECEIVED"
	SourceManual        TxSource = "MANUAL"
)

func (s TxSource) Valid() bool {
	switch s {
	case SourceQuickAdd, SourceUpdateModal, SourceBulkEntry, SourceOrderReceived, SourceManual:
		return true
	}
	return false
}

type MutationMode string

const (
	ModeAdd MutationMode = "ADD"
	ModeSet MutationMode = "SET"
)

// StockKey identifies a stock aggregate: one part bin per
// (item, part category) pair.
type StockKey struct {
	ItemID       int64  `json:"item_id"`
	PartCategory string `json:"part_category"`
}

// StockItem is the derived current-quantity aggregate for a key. It is a
// cache over the transaction log: its quantity always equals the
// quantity_after of the key's most recent transaction.
type StockItem struct {
	ItemID            int64     `json:"item_id"`
	PartCategory      string    `json:"part_category"`
	Quantity          int       `json:"quantity"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	Notes             string    `json:"notes,omitempty"`
	TrackingNumber    string    `json:"tracking_number,omitempty"`
	LastUpdated       time.Time `json:"last_updated"`
	UpdatedBy         string    `json:"updated_by,omitempty"`
}

func (s StockItem) Key() StockKey {
	return StockKey{ItemID: s.ItemID, PartCategory: s.PartCategory}
}

// IsLowStock is recomputed on every read, never stored.
func (s StockItem) IsLowStock() bool {
	return s.LowStockThreshold < NoAlertThreshold && s.Quantity <= s.LowStockThreshold
}

// StockTransaction is an immutable ledger fact. Quantity is the magnitude
// of the movement; QuantityBefore/QuantityAfter pin the aggregate state
// around it so the log replays to the aggregate exactly.
type StockTransaction struct {
	ID             string    `json:"id"`
	ItemID         int64     `json:"item_id"`
	PartCategory   string    `json:"part_category"`
	Quantity       int       `json:"quantity"`
	QuantityBefore int       `json:"quantity_before"`
	QuantityAfter  int       `json:"quantity_after"`
	Type           TxType    `json:"type"`
	Source         TxSource  `json:"source"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	CreatedBy      string    `json:"created_by,omitempty"`
}

// MutationRequest is the single sanctioned input for changing inventory.
// Pointer fields are tri-state: nil leaves the stored value unchanged,
// a pointed-to zero value clears it.
type MutationRequest struct {
	ItemID            int64        `json:"item_id"`
	PartCategory      string       `json:"part_category"`
	Quantity          int          `json:"quantity"`
	Mode              MutationMode `json:"mode"`
	Source            TxSource     `json:"source"`
	LowStockThreshold *int         `json:"low_stock_threshold,omitempty"`
	Notes             *string      `json:"notes,omitempty"`
	TrackingNumber    *string      `json:"tracking_number,omitempty"`
	UserID            string       `json:"user_id,omitempty"`
}

type MutationResult struct {
	Item        StockItem        `json:"item"`
	Transaction StockTransaction `json:"transaction"`
}

type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusOrdered    OrderStatus = "ORDERED"
	StatusShipping   OrderStatus = "SHIPPING"
	StatusReceived   OrderStatus = "RECEIVED"
	StatusStockAdded OrderStatus = "STOCK_ADDED"
)

var statusOrder = []OrderStatus{
	StatusPending,
	StatusOrdered,
	StatusShipping,
	StatusReceived,
	StatusStockAdded,
}

func (s OrderStatus) Valid() bool {
	for _, st := range statusOrder {
		if s == st {
			return true
		}
	}
	return false
}

// Next returns the successor status; ok is false at the terminal state.
func (s OrderStatus) Next() (OrderStatus, bool) {
	for i, st := range statusOrder {
		if s == st && i+1 < len(statusOrder) {
			return statusOrder[i+1], true
		}
	}
	return s, false
}

// Prev returns the predecessor status; ok is false at the initial state.
func (s OrderStatus) Prev() (OrderStatus, bool) {
	for i, st := range statusOrder {
		if s == st && i > 0 {
			return statusOrder[i-1], true
		}
	}
	return s, false
}

// OrderItem is an order line progressing through the five-state
// fulfillment lifecycle. Fields belonging to states beyond the current
// one are always zero; the transition logic enforces that, not storage.
type OrderItem struct {
	ID                 string      `json:"id"`
	ItemID             int64       `json:"item_id"`
	PartCategory       string      `json:"part_category"`
	Quantity           int         `json:"quantity,omitempty"`
	Status             OrderStatus `json:"status"`
	AddedAt            time.Time   `json:"added_at"`
	AddedBy            string      `json:"added_by,omitempty"`
	OrderedAt          *time.Time  `json:"ordered_at,omitempty"`
	OrderedBy          string      `json:"ordered_by,omitempty"`
	TrackingNumber     string      `json:"tracking_number,omitempty"`
	TrackingURL        string      `json:"tracking_url,omitempty"`
	ShippingAt         *time.Time  `json:"shipping_at,omitempty"`
	ReceivedAt         *time.Time  `json:"received_at,omitempty"`
	StockAddedAt       *time.Time  `json:"stock_added_at,omitempty"`
	StockAddedBy       string      `json:"stock_added_by,omitempty"`
	StockQuantityAdded int         `json:"stock_quantity_added,omitempty"`
	WeekCycleID        string      `json:"week_cycle_id"`
}

// WeekCycle is the time-boxed grouping that scopes which order items are
// current. At most one cycle is active at any time.
type WeekCycle struct {
	ID        string    `json:"id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsActive  bool      `json:"is_active"`
}

type AddOrderItemRequest struct {
	ItemID       int64  `json:"item_id"`
	PartCategory string `json:"part_category"`
	Quantity     int    `json:"quantity,omitempty"`
}

type MarkOrderedRequest struct {
	TrackingNumber string `json:"tracking_number,omitempty"`
	TrackingURL    string `json:"tracking_url,omitempty"`
}

type CompleteWithStockRequest struct {
	Quantity int `json:"quantity"`
}

// AdvanceResult reports what an advance call did. When the next state
// needs caller-supplied input (tracking info for ORDERED, a received
// quantity for STOCK_ADDED) the item is returned unchanged and
// RequiresInput names what is missing.
type AdvanceResult struct {
	Item          OrderItem `json:"item"`
	Advanced      bool      `json:"advanced"`
	RequiresInput string    `json:"requires_input,omitempty"`
}

type StatusSummary struct {
	Pending    int `json:"pending"`
	Ordered    int `json:"ordered"`
	Shipping   int `json:"shipping"`
	Received   int `json:"received"`
	StockAdded int `json:"stock_added"`
	Total      int `json:"total"`
}

// DailySummary is a per-calendar-day fold of the transaction log. When
// stored as a precomputed row it must equal the fold of that day's
// transactions; otherwise it is computed on the fly.
type DailySummary struct {
	Date             string           `json:"date"`
	TransactionCount int              `json:"transaction_count"`
	TotalAdded       int              `json:"total_added"`
	TotalSubtracted  int              `json:"total_subtracted"`
	TotalSet         int              `json:"total_set"`
	ByType           map[TxType]int   `json:"by_type"`
	BySource         map[TxSource]int `json:"by_source"`
	UniqueItems      int              `json:"unique_items"`
	UniqueCategories int              `json:"unique_categories"`
}

type DailyReport struct {
	Date         string             `json:"date"`
	Summary      DailySummary       `json:"summary"`
	Transactions []StockTransaction `json:"transactions"`
	Precomputed  bool               `json:"precomputed"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
