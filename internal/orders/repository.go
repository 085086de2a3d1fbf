package orders

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kedaiku/kedaiku/internal/cart"
	"github.com/kedaiku/kedaiku/internal/catalog"
	"github.com/kedaiku/kedaiku/internal/platform/db"
	"github.com/kedaiku/kedaiku/internal/shared"
)

// Repository persists orders in PostgreSQL.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	List(ctx context.Context, filters ListFilters) ([]Order, int, error)
	ListForUser(ctx context.Context, userID int64) ([]Order, error)
}

// TxRepository exposes the operations the order engine runs inside a single
// transaction: cart snapshot, stock locking and movement, order insertion
// and the status updates of the lifecycle.
type TxRepository interface {
	CartSnapshot(ctx context.Context, userID int64) ([]cart.Line, error)
	LockStock(ctx context.Context, productIDs []int64) (map[int64]int, error)
	InsertOrder(ctx context.Context, o Order) (int64, error)
	InsertItems(ctx context.Context, orderID int64, items []OrderItem) error
	DecrementStock(ctx context.Context, productID int64, qty int) error
	RestoreStock(ctx context.Context, productID int64, qty int) error
	ClearCart(ctx context.Context, userID int64) error
	GetForUpdate(ctx context.Context, id int64) (*Order, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

type repository struct {
	pool *pgxpool.Pool
}

type txRepository struct {
	tx pgx.Tx
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction; every write in fn
// commits or rolls back as one unit.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const orderColumns = `o.id, o.user_id, u.email, o.order_number, o.status, o.total_amount::text,
o.payment_method, o.payment_status, o.delivery_address, o.delivery_phone, o.notes,
o.confirmed_at, o.delivered_at, o.created_at, o.updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o JOIN users u ON o.user_id = u.id WHERE o.id=$1`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if o.Items, err = r.itemsFor(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) GetByNumber(ctx context.Context, number string) (*Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o JOIN users u ON o.user_id = u.id WHERE o.order_number=$1`, number)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if o.Items, err = r.itemsFor(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Order, int, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o JOIN users u ON o.user_id = u.id WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM orders o WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	appendCond := func(cond string, value interface{}) {
		argCount++
		suffix := cond + ` $` + strconv.Itoa(argCount)
		query += suffix
		countQuery += suffix
		args = append(args, value)
	}

	if filters.Status != nil {
		appendCond(` AND o.status =`, string(*filters.Status))
	}
	if filters.From != nil {
		appendCond(` AND o.created_at >=`, *filters.From)
	}
	if filters.To != nil {
		appendCond(` AND o.created_at <=`, *filters.To)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY o.created_at DESC, o.id DESC`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *repository) ListForUser(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders o JOIN users u ON o.user_id = u.id
WHERE o.user_id=$1 ORDER BY o.created_at DESC, o.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (r *repository) itemsFor(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, product_name, variant_id, variant_label, quantity, unit_price::text, total_price::text
FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		var unit, total string
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.VariantID, &item.VariantLabel, &item.Quantity, &unit, &total); err != nil {
			return nil, err
		}
		if item.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return nil, err
		}
		if item.TotalPrice, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *txRepository) CartSnapshot(ctx context.Context, userID int64) ([]cart.Line, error) {
	rows, err := r.tx.Query(ctx, `SELECT ci.id, ci.product_id, p.name, ci.variant_id,
       COALESCE(pv.name || ': ' || pv.value, ''),
       ci.quantity, p.selling_price::text, COALESCE(pv.price_adjustment, 0)::text
FROM cart_items ci
JOIN products p ON ci.product_id = p.id
LEFT JOIN product_variants pv ON ci.variant_id = pv.id
WHERE ci.user_id = $1
ORDER BY ci.created_at DESC, ci.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []cart.Line
	for rows.Next() {
		var l cart.Line
		var selling, adjustment string
		if err := rows.Scan(&l.ItemID, &l.ProductID, &l.ProductName, &l.VariantID, &l.VariantLabel, &l.Quantity, &selling, &adjustment); err != nil {
			return nil, err
		}
		if l.SellingPrice, err = decimal.NewFromString(selling); err != nil {
			return nil, err
		}
		if l.PriceAdjustment, err = decimal.NewFromString(adjustment); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *txRepository) LockStock(ctx context.Context, productIDs []int64) (map[int64]int, error) {
	return catalog.LockStockForUpdate(ctx, r.tx, productIDs)
}

// InsertOrder runs inside a savepoint so a unique-violation on order_number
// aborts only the insert, not the enclosing checkout transaction, letting the
// engine regenerate the number and retry.
func (r *txRepository) InsertOrder(ctx context.Context, o Order) (int64, error) {
	inner, err := r.tx.Begin(ctx)
	if err != nil {
		return 0, err
	}

	var id int64
	err = inner.QueryRow(ctx, `INSERT INTO orders (user_id, order_number, status, total_amount, payment_method, payment_status, delivery_address, delivery_phone, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW()) RETURNING id`,
		o.UserID, o.OrderNumber, string(o.Status), o.TotalAmount.String(), o.PaymentMethod, string(o.PaymentStatus), o.DeliveryAddress, o.DeliveryPhone, o.Notes).Scan(&id)
	if err != nil {
		_ = inner.Rollback(ctx)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, errNumberTaken
		}
		return 0, err
	}

	if err := inner.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *txRepository) InsertItems(ctx context.Context, orderID int64, items []OrderItem) error {
	for _, item := range items {
		_, err := r.tx.Exec(ctx, `INSERT INTO order_items (order_id, product_id, product_name, variant_id, variant_label, quantity, unit_price, total_price)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			orderID, item.ProductID, item.ProductName, item.VariantID, item.VariantLabel, item.Quantity, item.UnitPrice.String(), item.TotalPrice.String())
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) DecrementStock(ctx context.Context, productID int64, qty int) error {
	return catalog.DecrementStock(ctx, r.tx, productID, qty)
}

func (r *txRepository) RestoreStock(ctx context.Context, productID int64, qty int) error {
	return catalog.RestoreStock(ctx, r.tx, productID, qty)
}

func (r *txRepository) ClearCart(ctx context.Context, userID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID)
	return err
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (*Order, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o JOIN users u ON o.user_id = u.id WHERE o.id=$1 FOR UPDATE OF o`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	rows, err := r.tx.Query(ctx, `SELECT id, order_id, product_id, product_name, variant_id, variant_label, quantity, unit_price::text, total_price::text
FROM order_items WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		var unit, total string
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.VariantID, &item.VariantLabel, &item.Quantity, &unit, &total); err != nil {
			return nil, err
		}
		if item.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return nil, err
		}
		if item.TotalPrice, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

// UpdateStatus writes the status and its lifecycle side effects: confirmed
// stamps confirmed_at, delivered stamps delivered_at and settles payment.
func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	var err error
	switch status {
	case StatusConfirmed:
		_, err = r.tx.Exec(ctx, `UPDATE orders SET status=$1, confirmed_at=NOW(), updated_at=NOW() WHERE id=$2`, string(status), id)
	case StatusDelivered:
		_, err = r.tx.Exec(ctx, `UPDATE orders SET status=$1, delivered_at=NOW(), payment_status=$2, updated_at=NOW() WHERE id=$3`, string(status), string(PaymentPaid), id)
	default:
		_, err = r.tx.Exec(ctx, `UPDATE orders SET status=$1, updated_at=NOW() WHERE id=$2`, string(status), id)
	}
	return err
}

type orderScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row orderScanner) (*Order, error) {
	var o Order
	var totalAmount string
	var status, paymentStatus string
	err := row.Scan(&o.ID, &o.UserID, &o.UserEmail, &o.OrderNumber, &status, &totalAmount,
		&o.PaymentMethod, &paymentStatus, &o.DeliveryAddress, &o.DeliveryPhone, &o.Notes,
		&o.ConfirmedAt, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(paymentStatus)
	if o.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
		return nil, err
	}
	return &o, nil
}

func scanOrders(rows pgx.Rows) ([]Order, error) {
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}
