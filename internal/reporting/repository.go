package reporting

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository runs the aggregation queries.
type Repository interface {
	Summary(ctx context.Context, period Range) (*Summary, error)
	TopSellers(ctx context.Context, period Range, limit int) ([]TopSeller, error)
	LowStock(ctx context.Context, threshold int) ([]LowStockItem, error)
	DailyRevenue(ctx context.Context, period Range) ([]DailyRevenue, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// rangeClause appends created_at bounds for the orders alias o.
func rangeClause(period Range, args []interface{}) (string, []interface{}) {
	clause := ""
	if !period.From.IsZero() {
		args = append(args, period.From)
		clause += ` AND o.created_at >= $` + strconv.Itoa(len(args))
	}
	if !period.To.IsZero() {
		args = append(args, period.To)
		clause += ` AND o.created_at <= $` + strconv.Itoa(len(args))
	}
	return clause, args
}

// Summary aggregates revenue, cost and profit over non-cancelled orders.
// Revenue uses the unit prices frozen at checkout; cost joins the current
// product cost prices.
func (r *repository) Summary(ctx context.Context, period Range) (*Summary, error) {
	args := []interface{}{}
	clause, args := rangeClause(period, args)

	query := `SELECT COALESCE(SUM(oi.total_price), 0)::text,
       COALESCE(SUM(p.cost_price * oi.quantity), 0)::text,
       COUNT(DISTINCT o.id)
FROM orders o
JOIN order_items oi ON oi.order_id = o.id
JOIN products p ON p.id = oi.product_id
WHERE o.status <> 'cancelled'` + clause

	var revenueRaw, costRaw string
	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&revenueRaw, &costRaw, &count); err != nil {
		return nil, err
	}

	revenue, err := decimal.NewFromString(revenueRaw)
	if err != nil {
		return nil, err
	}
	cost, err := decimal.NewFromString(costRaw)
	if err != nil {
		return nil, err
	}

	return &Summary{
		Revenue:    revenue,
		Cost:       cost,
		Profit:     revenue.Sub(cost),
		OrderCount: count,
	}, nil
}

func (r *repository) TopSellers(ctx context.Context, period Range, limit int) ([]TopSeller, error) {
	args := []interface{}{}
	clause, args := rangeClause(period, args)
	args = append(args, limit)

	query := `SELECT oi.product_id, oi.product_name, SUM(oi.quantity), SUM(oi.total_price)::text
FROM orders o
JOIN order_items oi ON oi.order_id = o.id
WHERE o.status <> 'cancelled'` + clause + `
GROUP BY oi.product_id, oi.product_name
ORDER BY SUM(oi.quantity) DESC, oi.product_id
LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sellers []TopSeller
	for rows.Next() {
		var s TopSeller
		var revenue string
		if err := rows.Scan(&s.ProductID, &s.ProductName, &s.QuantitySold, &revenue); err != nil {
			return nil, err
		}
		if s.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, err
		}
		sellers = append(sellers, s)
	}
	return sellers, rows.Err()
}

func (r *repository) LowStock(ctx context.Context, threshold int) ([]LowStockItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, stock_quantity FROM products
WHERE is_available AND stock_quantity <= $1
ORDER BY stock_quantity, id`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LowStockItem
	for rows.Next() {
		var item LowStockItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.StockQuantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) DailyRevenue(ctx context.Context, period Range) ([]DailyRevenue, error) {
	args := []interface{}{}
	clause, args := rangeClause(period, args)

	query := `SELECT to_char(o.created_at::date, 'YYYY-MM-DD'), COALESCE(SUM(o.total_amount), 0)::text, COUNT(*)
FROM orders o
WHERE o.status <> 'cancelled'` + clause + `
GROUP BY o.created_at::date
ORDER BY o.created_at::date`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []DailyRevenue
	for rows.Next() {
		var d DailyRevenue
		var revenue string
		if err := rows.Scan(&d.Date, &revenue, &d.OrderCount); err != nil {
			return nil, err
		}
		if d.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, err
		}
		series = append(series, d)
	}
	return series, rows.Err()
}
