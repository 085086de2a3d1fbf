package orders

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kedaiku/kedaiku/internal/cart"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// transitions is the only source of truth for the state machine. Skip
// transitions are rejected; delivered is reachable solely from
// out_for_delivery, and cancellation only from pending or confirmed.
var transitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusOutForDelivery},
	StatusOutForDelivery: {StatusDelivered},
	StatusDelivered:      {},
	StatusCancelled:      {},
}

// CanTransitionTo reports whether the transition table permits the move.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// PaymentStatus tracks settlement; cash-on-delivery means it flips to paid
// exactly when the order is marked delivered.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Order is an immutable record created by the checkout transaction. Only the
// status-lifecycle fields change after creation.
type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	UserEmail       string          `json:"-"`
	OrderNumber     string          `json:"order_number"`
	Status          Status          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	DeliveryAddress string          `json:"delivery_address"`
	DeliveryPhone   string          `json:"delivery_phone"`
	Notes           string          `json:"notes,omitempty"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []OrderItem     `json:"items,omitempty"`
}

// OrderItem freezes a cart line at order-creation time. UnitPrice is captured
// once and never recalculated from the catalog, so later price edits cannot
// alter past orders.
type OrderItem struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"order_id"`
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	VariantID    *int64          `json:"variant_id,omitempty"`
	VariantLabel string          `json:"variant_label,omitempty"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
}

var (
	// ErrEmptyCart rejects checkout with no cart rows.
	ErrEmptyCart = errors.New("orders: cart is empty")
	// ErrCannotCancel rejects cancellation outside pending/confirmed.
	ErrCannotCancel = errors.New("orders: order can no longer be cancelled")
	// ErrInvalidTransition rejects a status move the table does not permit.
	ErrInvalidTransition = errors.New("orders: invalid status transition")
	// errNumberTaken signals an order-number collision inside the checkout
	// transaction; the caller regenerates and retries.
	errNumberTaken = errors.New("orders: order number taken")
)

// InsufficientStockError carries the per-product shortfalls of a rejected
// checkout for user display.
type InsufficientStockError struct {
	Items []cart.StockShortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, len(e.Items))
	for i, item := range e.Items {
		parts[i] = fmt.Sprintf("%s: requested %d, available %d", item.ProductName, item.Requested, item.Available)
	}
	return "orders: insufficient stock: " + strings.Join(parts, "; ")
}

// ListFilters narrows admin order listings.
type ListFilters struct {
	Status *Status
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
