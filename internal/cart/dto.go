package cart

type AddItemRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	VariantID *int64 `json:"variant_id,omitempty" validate:"omitempty,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=100"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1,lte=100"`
}
