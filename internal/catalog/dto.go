package catalog

import "github.com/shopspring/decimal"

type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type ProductRequest struct {
	CategoryID    int64           `json:"category_id" validate:"required,gt=0"`
	Name          string          `json:"name" validate:"required,max=150"`
	Description   string          `json:"description" validate:"max=2000"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	IsAvailable   bool            `json:"is_available"`
}

type VariantRequest struct {
	Name            string          `json:"name" validate:"required,max=50"`
	Value           string          `json:"value" validate:"required,max=50"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
}

type IngredientRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}
