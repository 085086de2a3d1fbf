package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Product is a sellable catalog entry. StockQuantity is the single contended
// counter in the system; it is mutated here by admin CRUD and by the order
// engine's decrement/restore operations.
type Product struct {
	ID            int64               `json:"id"`
	CategoryID    int64               `json:"category_id"`
	Name          string              `json:"name"`
	Slug          string              `json:"slug"`
	Description   string              `json:"description,omitempty"`
	CostPrice     decimal.Decimal     `json:"cost_price"`
	SellingPrice  decimal.Decimal     `json:"selling_price"`
	StockQuantity int                 `json:"stock_quantity"`
	IsAvailable   bool                `json:"is_available"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Variants      []ProductVariant    `json:"variants,omitempty"`
	Ingredients   []ProductIngredient `json:"ingredients,omitempty"`
}

// ProductVariant is an option such as Size/Large. PriceAdjustment is added
// to the product's selling price and is never negative.
type ProductVariant struct {
	ID              int64           `json:"id"`
	ProductID       int64           `json:"product_id"`
	Name            string          `json:"name"`
	Value           string          `json:"value"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
}

// ProductIngredient is a display-only component of a product.
type ProductIngredient struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
}

// UnitPrice returns the effective price for a product with an optional
// variant applied.
func UnitPrice(sellingPrice, adjustment decimal.Decimal) decimal.Decimal {
	return sellingPrice.Add(adjustment)
}

var (
	// ErrPriceBelowCost indicates selling price fell under cost price.
	ErrPriceBelowCost = errors.New("catalog: selling price must not be below cost price")
	// ErrNegativeStock indicates a stock quantity below zero.
	ErrNegativeStock = errors.New("catalog: stock quantity must not be negative")
	// ErrNegativeAdjustment indicates a variant price adjustment below zero.
	ErrNegativeAdjustment = errors.New("catalog: price adjustment must not be negative")
	// ErrInsufficientStock is returned by a conditional stock decrement that
	// would drive the counter below zero.
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
)

// ListFilters narrows product listings.
type ListFilters struct {
	CategoryID  *int64
	Search      string
	IsAvailable *bool
	Limit       int
	Offset      int
}
