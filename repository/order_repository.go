package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-api/apperrors"
	"marketplace-api/models"
)

const orderColumns = `id, order_number, user_id, shop_id, shop_name,
	address_line1, address_city, address_postal_code, address_latitude, address_longitude,
	subtotal, delivery_fee, service_fee, tax, discount, tip, total,
	payment_method, payment_id, payment_status, status,
	delivery_person_id, cancellation_reason, version,
	created_at, updated_at, delivered_at, estimated_delivery_at`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order with its items and reserves stock in one
// transaction. A product whose stock ran out concurrently fails the whole
// order with OutOfStock.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders (order_number, user_id, shop_id, shop_name,
			address_line1, address_city, address_postal_code, address_latitude, address_longitude,
			subtotal, delivery_fee, service_fee, tax, discount, tip, total,
			payment_method, payment_id, payment_status, status, version,
			created_at, updated_at, estimated_delivery_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderNumber, o.UserID, o.ShopID, o.ShopName,
		o.DeliveryAddress.Line1, o.DeliveryAddress.City, o.DeliveryAddress.PostalCode,
		o.DeliveryAddress.Latitude, o.DeliveryAddress.Longitude,
		o.Subtotal, o.DeliveryFee, o.ServiceFee, o.Tax, o.Discount, o.Tip, o.Total,
		o.PaymentMethod, o.PaymentID, o.PaymentStatus, o.Status, 1,
		o.CreatedAt, o.UpdatedAt, o.EstimatedDeliveryAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("order id: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		itemRes, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity, line_total)
			VALUES (?, ?, ?, ?, ?, ?)`,
			orderID, item.ProductID, item.ProductName, item.UnitPrice, item.Quantity, item.LineTotal,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
		if item.ID, err = itemRes.LastInsertId(); err != nil {
			return fmt.Errorf("order item id: %w", err)
		}
		item.OrderID = orderID

		// MySQL evaluates SET left to right, so in_stock sees the decremented value.
		stockRes, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock_quantity = stock_quantity - ?, in_stock = stock_quantity > 0
			WHERE id = ? AND stock_quantity >= ?`,
			item.Quantity, item.ProductID, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("reserve stock: %w", err)
		}
		if n, err := stockRes.RowsAffected(); err != nil {
			return fmt.Errorf("reserve stock: %w", err)
		} else if n == 0 {
			return apperrors.OutOfStock(item.ProductID)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit order tx: %w", err)
	}
	o.ID = orderID
	o.Version = 1
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
}

func (r *OrderRepository) GetByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_id = ? ORDER BY id DESC LIMIT 1`, paymentID)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, arg any) (*models.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	items, err := r.itemsFor(ctx, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return order, nil
}

// List returns orders newest first with their items.
func (r *OrderRepository) List(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.ShopID != nil {
		where = append(where, "shop_id = ?")
		args = append(args, *f.ShopID)
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *f.Status)
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	f.Normalize()
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]models.Order, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *OrderRepository) itemsFor(ctx context.Context, orderIDs []int64) (map[int64][]models.OrderItem, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(orderIDs)), ",")
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, unit_price, quantity, line_total
		FROM order_items WHERE order_id IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]models.OrderItem, len(orderIDs))
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.UnitPrice, &it.Quantity, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

// Update writes every mutable column of o if, and only if, the stored version
// still equals o.Version. On success o.Version is advanced.
func (r *OrderRepository) Update(ctx context.Context, o *models.Order) error {
	return r.update(ctx, r.db, o)
}

// UpdateWithRefund flips the order and records the refund atomically.
func (r *OrderRepository) UpdateWithRefund(ctx context.Context, o *models.Order, refund *models.Refund) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin refund tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.update(ctx, tx, o); err != nil {
		return err
	}
	// update advanced the in-memory version; undo it if the tx does not commit.
	defer func() {
		if err != nil {
			o.Version--
		}
	}()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO refunds (order_id, refund_id, amount, reason, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		refund.OrderID, refund.RefundID, refund.Amount, refund.Reason, refund.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}
	if refund.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("refund id: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit refund tx: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *OrderRepository) update(ctx context.Context, db execer, o *models.Order) error {
	o.UpdatedAt = time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		UPDATE orders SET
			subtotal = ?, delivery_fee = ?, service_fee = ?, tax = ?, discount = ?, tip = ?, total = ?,
			payment_id = ?, payment_status = ?, status = ?,
			delivery_person_id = ?, cancellation_reason = ?,
			delivered_at = ?, estimated_delivery_at = ?, updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?`,
		o.Subtotal, o.DeliveryFee, o.ServiceFee, o.Tax, o.Discount, o.Tip, o.Total,
		o.PaymentID, o.PaymentStatus, o.Status,
		nullInt64(o.DeliveryPersonID), nullString(o.CancellationReason),
		o.DeliveredAt, o.EstimatedDeliveryAt, o.UpdatedAt,
		o.ID, o.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n == 0 {
		return apperrors.ErrStaleOrder
	}
	o.Version++
	return nil
}

// Stats aggregates order count and gross total per status.
func (r *OrderRepository) Stats(ctx context.Context) ([]models.StatusStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total), 0)
		FROM orders GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	defer rows.Close()

	stats := make([]models.StatusStats, 0)
	for rows.Next() {
		var s models.StatusStats
		if err := rows.Scan(&s.Status, &s.Count, &s.Gross); err != nil {
			return nil, fmt.Errorf("scan order stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o           models.Order
		deliveryID  sql.NullInt64
		reason      sql.NullString
		deliveredAt sql.NullTime
		estimatedAt sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.ShopID, &o.ShopName,
		&o.DeliveryAddress.Line1, &o.DeliveryAddress.City, &o.DeliveryAddress.PostalCode,
		&o.DeliveryAddress.Latitude, &o.DeliveryAddress.Longitude,
		&o.Subtotal, &o.DeliveryFee, &o.ServiceFee, &o.Tax, &o.Discount, &o.Tip, &o.Total,
		&o.PaymentMethod, &o.PaymentID, &o.PaymentStatus, &o.Status,
		&deliveryID, &reason, &o.Version,
		&o.CreatedAt, &o.UpdatedAt, &deliveredAt, &estimatedAt,
	)
	if err != nil {
		return nil, err
	}
	if deliveryID.Valid {
		o.DeliveryPersonID = &deliveryID.Int64
	}
	if reason.Valid {
		o.CancellationReason = &reason.String
	}
	if deliveredAt.Valid {
		o.DeliveredAt = &deliveredAt.Time
	}
	if estimatedAt.Valid {
		o.EstimatedDeliveryAt = &estimatedAt.Time
	}
	return &o, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
