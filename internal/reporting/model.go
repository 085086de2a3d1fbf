// Package reporting aggregates sales and stock figures for the admin
// dashboard. Queries run against committed orders only, so the figures are
// consistent with what the engine actually sold.
package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary is the headline view over a date range.
type Summary struct {
	Revenue    decimal.Decimal `json:"revenue"`
	Cost       decimal.Decimal `json:"cost"`
	Profit     decimal.Decimal `json:"profit"`
	OrderCount int             `json:"order_count"`
}

// TopSeller is one row of the best-selling products table.
type TopSeller struct {
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	QuantitySold int             `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// LowStockItem flags a product at or below the reorder threshold.
type LowStockItem struct {
	ProductID     int64  `json:"product_id"`
	Name          string `json:"name"`
	StockQuantity int    `json:"stock_quantity"`
}

// DailyRevenue is one day of the revenue series.
type DailyRevenue struct {
	Date       string          `json:"date"`
	Revenue    decimal.Decimal `json:"revenue"`
	OrderCount int             `json:"order_count"`
}

// Range bounds a report period. Zero values mean unbounded.
type Range struct {
	From time.Time
	To   time.Time
}
