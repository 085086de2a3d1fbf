package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxQuantity bounds a single cart line.
const MaxQuantity = 100

// CartItem is one (user, product, variant) tuple. At most one row exists per
// combination; re-adding increments the quantity instead.
type CartItem struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	VariantID *int64    `json:"variant_id,omitempty"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Line is a snapshot row: a cart item joined with its product and variant as
// of a single read. It carries everything checkout needs to freeze prices.
type Line struct {
	ItemID          int64           `json:"item_id"`
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name"`
	VariantID       *int64          `json:"variant_id,omitempty"`
	VariantLabel    string          `json:"variant_label,omitempty"`
	Quantity        int             `json:"quantity"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
}

// UnitPrice is the product's selling price plus the variant adjustment.
func (l Line) UnitPrice() decimal.Decimal {
	return l.SellingPrice.Add(l.PriceAdjustment)
}

// LineTotal is quantity times unit price, decimal arithmetic throughout.
func (l Line) LineTotal() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Total sums line totals for a snapshot.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// StockShortfall reports one product whose requested quantity exceeds stock.
type StockShortfall struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

// ShortfallsFor compares a snapshot against current stock levels. Quantities
// are aggregated per product first, since several variant lines may draw on
// the same stock counter. Both the cart view and the checkout transaction run
// this exact check.
func ShortfallsFor(lines []Line, stock map[int64]int) []StockShortfall {
	requested := make(map[int64]int)
	names := make(map[int64]string)
	var order []int64
	for _, l := range lines {
		if _, seen := requested[l.ProductID]; !seen {
			order = append(order, l.ProductID)
		}
		requested[l.ProductID] += l.Quantity
		names[l.ProductID] = l.ProductName
	}

	var shortfalls []StockShortfall
	for _, productID := range order {
		available := stock[productID]
		if requested[productID] > available {
			shortfalls = append(shortfalls, StockShortfall{
				ProductID:   productID,
				ProductName: names[productID],
				Requested:   requested[productID],
				Available:   available,
			})
		}
	}
	return shortfalls
}
