package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pilldncl/DNCL-SupMS-sub000/internal/domain"
	"github.com/pilldncl/DNCL-SupMS-sub000/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ApplyMutation(ctx context.Context, item domain.StockItem, tx domain.StockTransaction) error {
	if item.PartCategory == "" || tx.ID == "" {
		return store.ErrInvalidInput
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	// CAS against the transaction's quantity_before: the aggregate row is
	// only replaced if nobody moved it since the caller read it.
	if tx.QuantityBefore == 0 {
		res, err := pgTx.ExecContext(ctx, `
			INSERT INTO stock_items (item_id, part_category, quantity, low_stock_threshold, notes, tracking_number, last_updated, updated_by)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (item_id, part_category) DO UPDATE
			SET quantity = EXCLUDED.quantity,
				low_stock_threshold = EXCLUDED.low_stock_threshold,
				notes = EXCLUDED.notes,
				tracking_number = EXCLUDED.tracking_number,
				last_updated = EXCLUDED.last_updated,
				updated_by = EXCLUDED.updated_by
			WHERE stock_items.quantity = 0
		`, item.ItemID, item.PartCategory, item.Quantity, item.LowStockThreshold, item.Notes, item.TrackingNumber, item.LastUpdated, item.UpdatedBy)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrConflict
		}
	} else {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE stock_items
			SET quantity = $3, low_stock_threshold = $4, notes = $5, tracking_number = $6, last_updated = $7, updated_by = $8
			WHERE item_id = $1 AND part_category = $2 AND quantity = $9
		`, item.ItemID, item.PartCategory, item.Quantity, item.LowStockThreshold, item.Notes, item.TrackingNumber, item.LastUpdated, item.UpdatedBy, tx.QuantityBefore)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrConflict
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO stock_transactions (id, item_id, part_category, quantity, quantity_before, quantity_after, tx_type, source, tracking_number, notes, created_at, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, tx.ID, tx.ItemID, tx.PartCategory, tx.Quantity, tx.QuantityBefore, tx.QuantityAfter, string(tx.Type), string(tx.Source), tx.TrackingNumber, tx.Notes, tx.CreatedAt, tx.CreatedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}

	return pgTx.Commit()
}

func (s *Store) GetStockItem(ctx context.Context, key domain.StockKey) (*domain.StockItem, error) {
	var item domain.StockItem
	err := s.db.QueryRowContext(ctx, `
		SELECT item_id, part_category, quantity, low_stock_threshold, COALESCE(notes,''), COALESCE(tracking_number,''), last_updated, COALESCE(updated_by,'')
		FROM stock_items
		WHERE item_id = $1 AND part_category = $2
	`, key.ItemID, key.PartCategory).Scan(&item.ItemID, &item.PartCategory, &item.Quantity, &item.LowStockThreshold, &item.Notes, &item.TrackingNumber, &item.LastUpdated, &item.UpdatedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	item.LastUpdated = item.LastUpdated.UTC()
	return &item, nil
}

func (s *Store) ListStockItems(ctx context.Context) ([]domain.StockItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, part_category, quantity, low_stock_threshold, COALESCE(notes,''), COALESCE(tracking_number,''), last_updated, COALESCE(updated_by,'')
		FROM stock_items
		ORDER BY item_id, part_category
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.StockItem, 0, 128)
	for rows.Next() {
		var item domain.StockItem
		if err := rows.Scan(&item.ItemID, &item.PartCategory, &item.Quantity, &item.LowStockThreshold, &item.Notes, &item.TrackingNumber, &item.LastUpdated, &item.UpdatedBy); err != nil {
			return nil, err
		}
		item.LastUpdated = item.LastUpdated.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const transactionColumns = `id, item_id, part_category, quantity, quantity_before, quantity_after, tx_type, source, COALESCE(tracking_number,''), COALESCE(notes,''), created_at, COALESCE(created_by,'')`

func scanTransactions(rows *sql.Rows, capacity int) ([]domain.StockTransaction, error) {
	txs := make([]domain.StockTransaction, 0, capacity)
	for rows.Next() {
		var tx domain.StockTransaction
		var txType, source string
		if err := rows.Scan(&tx.ID, &tx.ItemID, &tx.PartCategory, &tx.Quantity, &tx.QuantityBefore, &tx.QuantityAfter, &txType, &source, &tx.TrackingNumber, &tx.Notes, &tx.CreatedAt, &tx.CreatedBy); err != nil {
			return nil, err
		}
		tx.Type = domain.TxType(txType)
		tx.Source = domain.TxSource(source)
		tx.CreatedAt = tx.CreatedAt.UTC()
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *Store) ListTransactions(ctx context.Context, key domain.StockKey, limit int) ([]domain.StockTransaction, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM stock_transactions
		WHERE item_id = $1 AND part_category = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, key.ItemID, key.PartCategory, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows, limit)
}

func (s *Store) ListAllTransactions(ctx context.Context, limit int) ([]domain.StockTransaction, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM stock_transactions
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows, limit)
}

func (s *Store) ListTransactionsBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.StockTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM stock_transactions
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows, 64)
}

func (s *Store) GetDailySummary(ctx context.Context, date string) (*domain.DailySummary, error) {
	var summary domain.DailySummary
	var byTypeRaw, bySourceRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT date, transaction_count, total_added, total_subtracted, total_set, by_type, by_source, unique_items, unique_categories
		FROM daily_summaries
		WHERE date = $1
	`, date).Scan(&summary.Date, &summary.TransactionCount, &summary.TotalAdded, &summary.TotalSubtracted, &summary.TotalSet, &byTypeRaw, &bySourceRaw, &summary.UniqueItems, &summary.UniqueCategories)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(byTypeRaw, &summary.ByType); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(bySourceRaw, &summary.BySource); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *Store) UpsertDailySummary(ctx context.Context, summary domain.DailySummary) error {
	if summary.Date == "" {
		return store.ErrInvalidInput
	}
	byTypeRaw, err := json.Marshal(summary.ByType)
	if err != nil {
		return err
	}
	bySourceRaw, err := json.Marshal(summary.BySource)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_summaries (date, transaction_count, total_added, total_subtracted, total_set, by_type, by_source, unique_items, unique_categories, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())
		ON CONFLICT (date) DO UPDATE
		SET transaction_count = EXCLUDED.transaction_count,
			total_added = EXCLUDED.total_added,
			total_subtracted = EXCLUDED.total_subtracted,
			total_set = EXCLUDED.total_set,
			by_type = EXCLUDED.by_type,
			by_source = EXCLUDED.by_source,
			unique_items = EXCLUDED.unique_items,
			unique_categories = EXCLUDED.unique_categories,
			updated_at = now()
	`, summary.Date, summary.TransactionCount, summary.TotalAdded, summary.TotalSubtracted, summary.TotalSet, byTypeRaw, bySourceRaw, summary.UniqueItems, summary.UniqueCategories)
	return err
}

const orderItemColumns = `id, item_id, part_category, quantity, status, added_at, COALESCE(added_by,''), ordered_at, COALESCE(ordered_by,''), COALESCE(tracking_number,''), COALESCE(tracking_url,''), shipping_at, received_at, stock_added_at, COALESCE(stock_added_by,''), stock_quantity_added, week_cycle_id`

func scanOrderItem(row interface {
	Scan(dest ...any) error
}) (*domain.OrderItem, error) {
	var item domain.OrderItem
	var status string
	var orderedAt, shippingAt, receivedAt, stockAddedAt sql.NullTime
	err := row.Scan(&item.ID, &item.ItemID, &item.PartCategory, &item.Quantity, &status, &item.AddedAt, &item.AddedBy, &orderedAt, &item.OrderedBy, &item.TrackingNumber, &item.TrackingURL, &shippingAt, &receivedAt, &stockAddedAt, &item.StockAddedBy, &item.StockQuantityAdded, &item.WeekCycleID)
	if err != nil {
		return nil, err
	}
	item.Status = domain.OrderStatus(status)
	item.AddedAt = item.AddedAt.UTC()
	item.OrderedAt = nullTimePtr(orderedAt)
	item.ShippingAt = nullTimePtr(shippingAt)
	item.ReceivedAt = nullTimePtr(receivedAt)
	item.StockAddedAt = nullTimePtr(stockAddedAt)
	return &item, nil
}

func (s *Store) CreateOrderItem(ctx context.Context, item domain.OrderItem) (*domain.OrderItem, error) {
	if item.ID == "" || item.PartCategory == "" || item.WeekCycleID == "" {
		return nil, store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_items (id, item_id, part_category, quantity, status, added_at, added_by, week_cycle_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, item.ID, item.ItemID, item.PartCategory, item.Quantity, string(item.Status), item.AddedAt, item.AddedBy, item.WeekCycleID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	created := item
	return &created, nil
}

func (s *Store) GetOrderItem(ctx context.Context, id string) (*domain.OrderItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderItemColumns+`
		FROM order_items
		WHERE id = $1
	`, id)
	item, err := scanOrderItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *Store) UpdateOrderItem(ctx context.Context, item domain.OrderItem) (*domain.OrderItem, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE order_items
		SET quantity = $2, status = $3, ordered_at = $4, ordered_by = $5, tracking_number = $6,
			tracking_url = $7, shipping_at = $8, received_at = $9, stock_added_at = $10,
			stock_added_by = $11, stock_quantity_added = $12
		WHERE id = $1
	`, item.ID, item.Quantity, string(item.Status), item.OrderedAt, item.OrderedBy, item.TrackingNumber,
		item.TrackingURL, item.ShippingAt, item.ReceivedAt, item.StockAddedAt,
		item.StockAddedBy, item.StockQuantityAdded)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := item
	return &updated, nil
}

func (s *Store) DeleteOrderItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM order_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListOrderItems(ctx context.Context, weekCycleID string) ([]domain.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderItemColumns+`
		FROM order_items
		WHERE week_cycle_id = $1
		ORDER BY added_at, id
	`, weekCycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0, 32)
	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetActiveWeekCycle(ctx context.Context) (*domain.WeekCycle, error) {
	var cycle domain.WeekCycle
	err := s.db.QueryRowContext(ctx, `
		SELECT id, start_date, end_date, is_active
		FROM week_cycles
		WHERE is_active = true
		ORDER BY start_date DESC
		LIMIT 1
	`).Scan(&cycle.ID, &cycle.StartDate, &cycle.EndDate, &cycle.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	cycle.StartDate = cycle.StartDate.UTC()
	cycle.EndDate = cycle.EndDate.UTC()
	return &cycle, nil
}

func (s *Store) CreateWeekCycle(ctx context.Context, cycle domain.WeekCycle) (*domain.WeekCycle, error) {
	if cycle.ID == "" {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if cycle.IsActive {
		if _, err := tx.ExecContext(ctx, `UPDATE week_cycles SET is_active = false WHERE is_active = true`); err != nil {
			return nil, err
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO week_cycles (id, start_date, end_date, is_active)
		VALUES ($1,$2,$3,$4)
	`, cycle.ID, cycle.StartDate, cycle.EndDate, cycle.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := cycle
	return &created, nil
}

func (s *Store) ResetWeekCycle(ctx context.Context, weekCycleID string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE week_cycles SET is_active = false WHERE id = $1`, weekCycleID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE week_cycle_id = $1`, weekCycleID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" || user.Role == "" {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,now())
	`, user.Username, user.Password, user.Role, user.Active)
	if err != nil && isUniqueViolation(err) {
		return store.ErrInvalidInput
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	if password == "" {
		return store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
