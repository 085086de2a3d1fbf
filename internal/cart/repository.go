package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kedaiku/kedaiku/internal/shared"
)

// Repository persists cart items in PostgreSQL.
type Repository interface {
	FindItem(ctx context.Context, userID, productID int64, variantID *int64) (CartItem, error)
	GetItem(ctx context.Context, id int64) (CartItem, error)
	Insert(ctx context.Context, item CartItem) (CartItem, error)
	UpdateQuantity(ctx context.Context, id int64, qty int) error
	Delete(ctx context.Context, id int64) error
	Clear(ctx context.Context, userID int64) error
	Snapshot(ctx context.Context, userID int64) ([]Line, error)
	StockFor(ctx context.Context, productIDs []int64) (map[int64]int, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) FindItem(ctx context.Context, userID, productID int64, variantID *int64) (CartItem, error) {
	var item CartItem
	err := r.db.QueryRow(ctx, `SELECT id, user_id, product_id, variant_id, quantity, created_at, updated_at
FROM cart_items
WHERE user_id=$1 AND product_id=$2 AND variant_id IS NOT DISTINCT FROM $3`, userID, productID, variantID).
		Scan(&item.ID, &item.UserID, &item.ProductID, &item.VariantID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CartItem{}, shared.ErrNotFound
		}
		return CartItem{}, err
	}
	return item, nil
}

func (r *repository) GetItem(ctx context.Context, id int64) (CartItem, error) {
	var item CartItem
	err := r.db.QueryRow(ctx, `SELECT id, user_id, product_id, variant_id, quantity, created_at, updated_at FROM cart_items WHERE id=$1`, id).
		Scan(&item.ID, &item.UserID, &item.ProductID, &item.VariantID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CartItem{}, shared.ErrNotFound
		}
		return CartItem{}, err
	}
	return item, nil
}

func (r *repository) Insert(ctx context.Context, item CartItem) (CartItem, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO cart_items (user_id, product_id, variant_id, quantity, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		item.UserID, item.ProductID, item.VariantID, item.Quantity).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return CartItem{}, err
	}
	return item, nil
}

func (r *repository) UpdateQuantity(ctx context.Context, id int64, qty int) error {
	tag, err := r.db.Exec(ctx, `UPDATE cart_items SET quantity=$1, updated_at=NOW() WHERE id=$2`, qty, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Clear(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID)
	return err
}

// Snapshot returns the user's cart rows most-recent-first, joined with their
// product and variant. It reflects committed state at call time.
func (r *repository) Snapshot(ctx context.Context, userID int64) ([]Line, error) {
	rows, err := r.db.Query(ctx, `SELECT ci.id, ci.product_id, p.name, ci.variant_id,
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

	var lines []Line
	for rows.Next() {
		var l Line
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

func (r *repository) StockFor(ctx context.Context, productIDs []int64) (map[int64]int, error) {
	rows, err := r.db.Query(ctx, `SELECT id, stock_quantity FROM products WHERE id = ANY($1)`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stock := make(map[int64]int, len(productIDs))
	for rows.Next() {
		var id int64
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		stock[id] = qty
	}
	return stock, rows.Err()
}
