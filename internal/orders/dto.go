package orders

// DeliveryInfo is the checkout input the order engine records verbatim.
type DeliveryInfo struct {
	PaymentMethod   string `json:"payment_method" validate:"required,oneof=cash transfer"`
	DeliveryAddress string `json:"delivery_address" validate:"required,max=500"`
	DeliveryPhone   string `json:"delivery_phone" validate:"required,min=8,max=20"`
	Notes           string `json:"notes" validate:"max=500"`
}

// CheckoutRequest is the HTTP payload: delivery info plus the one-time
// password that gates the transaction.
type CheckoutRequest struct {
	Code string `json:"code" validate:"required,len=6"`
	DeliveryInfo
}
