package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kedaiku/kedaiku/internal/shared"
)

// Repository persists catalog data in PostgreSQL.
type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	CreateCategory(ctx context.Context, c Category) (Category, error)
	UpdateCategory(ctx context.Context, id int64, c Category) error
	DeleteCategory(ctx context.Context, id int64) error

	ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, id int64, p Product) error
	DeleteProduct(ctx context.Context, id int64) error

	GetVariant(ctx context.Context, id int64) (ProductVariant, error)
	CreateVariant(ctx context.Context, v ProductVariant) (ProductVariant, error)
	UpdateVariant(ctx context.Context, id int64, v ProductVariant) error
	DeleteVariant(ctx context.Context, id int64) error

	AddIngredient(ctx context.Context, ing ProductIngredient) (ProductIngredient, error)
	DeleteIngredient(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.db.QueryRow(ctx, `SELECT id, name, description, created_at FROM categories WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, shared.ErrNotFound
		}
		return Category{}, err
	}
	return c, nil
}

func (r *repository) CreateCategory(ctx context.Context, c Category) (Category, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO categories (name, description, created_at) VALUES ($1,$2,NOW()) RETURNING id, created_at`,
		c.Name, c.Description).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return Category{}, mapPgError(err)
	}
	return c, nil
}

func (r *repository) UpdateCategory(ctx context.Context, id int64, c Category) error {
	tag, err := r.db.Exec(ctx, `UPDATE categories SET name=$1, description=$2 WHERE id=$3`, c.Name, c.Description, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteCategory fails with shared.ErrConflict while products reference the
// category (FK RESTRICT).
func (r *repository) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	query := `SELECT id, category_id, name, slug, description, cost_price::text, selling_price::text, stock_quantity, is_available, created_at, updated_at FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	appendCond := func(cond string, value interface{}) {
		argCount++
		suffix := cond + ` $` + strconv.Itoa(argCount)
		query += suffix
		countQuery += suffix
		args = append(args, value)
	}

	if filters.CategoryID != nil {
		appendCond(` AND category_id =`, *filters.CategoryID)
	}
	if filters.Search != "" {
		appendCond(` AND name ILIKE`, "%"+filters.Search+"%")
	}
	if filters.IsAvailable != nil {
		appendCond(` AND is_available =`, *filters.IsAvailable)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	row := r.db.QueryRow(ctx, `SELECT id, category_id, name, slug, description, cost_price::text, selling_price::text, stock_quantity, is_available, created_at, updated_at FROM products WHERE id=$1`, id)
	return r.hydrateProduct(ctx, row)
}

func (r *repository) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	row := r.db.QueryRow(ctx, `SELECT id, category_id, name, slug, description, cost_price::text, selling_price::text, stock_quantity, is_available, created_at, updated_at FROM products WHERE slug=$1`, slug)
	return r.hydrateProduct(ctx, row)
}

func (r *repository) hydrateProduct(ctx context.Context, row pgx.Row) (Product, error) {
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, err
	}
	if p.Variants, err = r.variantsFor(ctx, p.ID); err != nil {
		return Product{}, err
	}
	if p.Ingredients, err = r.ingredientsFor(ctx, p.ID); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE slug=$1)`, slug).Scan(&exists)
	return exists, err
}

func (r *repository) CreateProduct(ctx context.Context, p Product) (Product, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO products (category_id, name, slug, description, cost_price, selling_price, stock_quantity, is_available, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		p.CategoryID, p.Name, p.Slug, p.Description, p.CostPrice.String(), p.SellingPrice.String(), p.StockQuantity, p.IsAvailable).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, mapPgError(err)
	}
	return p, nil
}

func (r *repository) UpdateProduct(ctx context.Context, id int64, p Product) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET category_id=$1, name=$2, slug=$3, description=$4, cost_price=$5, selling_price=$6, stock_quantity=$7, is_available=$8, updated_at=NOW() WHERE id=$9`,
		p.CategoryID, p.Name, p.Slug, p.Description, p.CostPrice.String(), p.SellingPrice.String(), p.StockQuantity, p.IsAvailable, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteProduct fails with shared.ErrConflict while order items reference the
// product; variants and ingredients cascade.
func (r *repository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) variantsFor(ctx context.Context, productID int64) ([]ProductVariant, error) {
	rows, err := r.db.Query(ctx, `SELECT id, product_id, name, value, price_adjustment::text FROM product_variants WHERE product_id=$1 ORDER BY id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []ProductVariant
	for rows.Next() {
		var v ProductVariant
		var adjustment string
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.Value, &adjustment); err != nil {
			return nil, err
		}
		if v.PriceAdjustment, err = decimal.NewFromString(adjustment); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (r *repository) ingredientsFor(ctx context.Context, productID int64) ([]ProductIngredient, error) {
	rows, err := r.db.Query(ctx, `SELECT id, product_id, name FROM product_ingredients WHERE product_id=$1 ORDER BY id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ingredients []ProductIngredient
	for rows.Next() {
		var ing ProductIngredient
		if err := rows.Scan(&ing.ID, &ing.ProductID, &ing.Name); err != nil {
			return nil, err
		}
		ingredients = append(ingredients, ing)
	}
	return ingredients, rows.Err()
}

func (r *repository) GetVariant(ctx context.Context, id int64) (ProductVariant, error) {
	var v ProductVariant
	var adjustment string
	err := r.db.QueryRow(ctx, `SELECT id, product_id, name, value, price_adjustment::text FROM product_variants WHERE id=$1`, id).
		Scan(&v.ID, &v.ProductID, &v.Name, &v.Value, &adjustment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductVariant{}, shared.ErrNotFound
		}
		return ProductVariant{}, err
	}
	if v.PriceAdjustment, err = decimal.NewFromString(adjustment); err != nil {
		return ProductVariant{}, err
	}
	return v, nil
}

func (r *repository) CreateVariant(ctx context.Context, v ProductVariant) (ProductVariant, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO product_variants (product_id, name, value, price_adjustment) VALUES ($1,$2,$3,$4) RETURNING id`,
		v.ProductID, v.Name, v.Value, v.PriceAdjustment.String()).Scan(&v.ID)
	if err != nil {
		return ProductVariant{}, mapPgError(err)
	}
	return v, nil
}

func (r *repository) UpdateVariant(ctx context.Context, id int64, v ProductVariant) error {
	tag, err := r.db.Exec(ctx, `UPDATE product_variants SET name=$1, value=$2, price_adjustment=$3 WHERE id=$4`,
		v.Name, v.Value, v.PriceAdjustment.String(), id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) DeleteVariant(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM product_variants WHERE id=$1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) AddIngredient(ctx context.Context, ing ProductIngredient) (ProductIngredient, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO product_ingredients (product_id, name) VALUES ($1,$2) RETURNING id`,
		ing.ProductID, ing.Name).Scan(&ing.ID)
	if err != nil {
		return ProductIngredient{}, mapPgError(err)
	}
	return ing, nil
}

func (r *repository) DeleteIngredient(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM product_ingredients WHERE id=$1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

type productScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row productScanner) (Product, error) {
	var p Product
	var cost, selling string
	err := row.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.Description, &cost, &selling, &p.StockQuantity, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	if p.CostPrice, err = decimal.NewFromString(cost); err != nil {
		return Product{}, err
	}
	if p.SellingPrice, err = decimal.NewFromString(selling); err != nil {
		return Product{}, err
	}
	return p, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", shared.ErrConflict, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", shared.ErrConflict, pgErr.ConstraintName)
		}
	}
	return err
}

// Tx-scoped stock operations used inside the order engine's transaction.
// The catalog owns the stock counter; the order engine owns when it moves.

// LockStockForUpdate locks the given product rows and returns their current
// stock. IDs are locked in sorted order to keep concurrent checkouts from
// deadlocking each other.
func LockStockForUpdate(ctx context.Context, tx pgx.Tx, productIDs []int64) (map[int64]int, error) {
	ids := make([]int64, len(productIDs))
	copy(ids, productIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	stock := make(map[int64]int, len(ids))
	for _, id := range ids {
		var qty int
		err := tx.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id=$1 FOR UPDATE`, id).Scan(&qty)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
			}
			return nil, err
		}
		stock[id] = qty
	}
	return stock, nil
}

// DecrementStock reduces a product's stock, refusing to drive it below zero.
func DecrementStock(ctx context.Context, tx pgx.Tx, productID int64, qty int) error {
	tag, err := tx.Exec(ctx, `UPDATE products SET stock_quantity = stock_quantity - $1, updated_at = NOW() WHERE id = $2 AND stock_quantity >= $1`, qty, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// RestoreStock returns a cancelled order's quantity to a product.
func RestoreStock(ctx context.Context, tx pgx.Tx, productID int64, qty int) error {
	_, err := tx.Exec(ctx, `UPDATE products SET stock_quantity = stock_quantity + $1, updated_at = NOW() WHERE id = $2`, qty, productID)
	return err
}
