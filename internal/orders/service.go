package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/kedaiku/kedaiku/internal/cart"
	"github.com/kedaiku/kedaiku/internal/shared"
)

// Notifier receives the events the engine raises; delivery is the caller's
// concern. A nil Notifier drops events.
type Notifier interface {
	OrderConfirmed(ctx context.Context, email, orderNumber string, total decimal.Decimal) error
}

// ReportCache is invalidated whenever an order commit changes the sales
// figures. A nil ReportCache is a no-op.
type ReportCache interface {
	Invalidate(ctx context.Context) error
}

// Service is the order engine: it owns the cart-to-order transaction, the
// status state machine and the stock restoration on cancellation.
type Service struct {
	repo     Repository
	notifier Notifier
	reports  ReportCache
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds the order engine.
func NewService(repo Repository, notifier Notifier, reports ReportCache, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		reports:  reports,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *Service) invalidateReports(ctx context.Context) {
	if s.reports == nil {
		return
	}
	if err := s.reports.Invalidate(ctx); err != nil && s.logger != nil {
		s.logger.Warn("invalidate report cache", slog.Any("error", err))
	}
}

// CreateFromCart converts the user's cart into an immutable order inside one
// transaction: snapshot, stock re-validation under row locks, price freeze,
// stock decrement and cart clearing all commit or roll back together. The OTP
// gate sits in front of this call; the engine itself assumes the caller has
// already verified.
func (s *Service) CreateFromCart(ctx context.Context, userID int64, info DeliveryInfo) (*Order, error) {
	if err := s.validate.Struct(info); err != nil {
		return nil, err
	}

	var orderID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, err := tx.CartSnapshot(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		requested := quantitiesByProduct(lines)
		stock, err := tx.LockStock(ctx, productIDsOf(lines))
		if err != nil {
			return err
		}
		if shortfalls := cart.ShortfallsFor(lines, stock); len(shortfalls) > 0 {
			return &InsufficientStockError{Items: shortfalls}
		}

		total := cart.Total(lines)
		if !total.IsPositive() {
			return fmt.Errorf("%w: order total must be positive", shared.ErrValidation)
		}

		order := Order{
			UserID:          userID,
			Status:          StatusPending,
			TotalAmount:     total,
			PaymentMethod:   info.PaymentMethod,
			PaymentStatus:   PaymentPending,
			DeliveryAddress: info.DeliveryAddress,
			DeliveryPhone:   info.DeliveryPhone,
			Notes:           info.Notes,
		}

		orderID, err = s.insertWithNumber(ctx, tx, order)
		if err != nil {
			return err
		}

		items := make([]OrderItem, len(lines))
		for i, l := range lines {
			unit := l.UnitPrice()
			items[i] = OrderItem{
				ProductID:    l.ProductID,
				ProductName:  l.ProductName,
				VariantID:    l.VariantID,
				VariantLabel: l.VariantLabel,
				Quantity:     l.Quantity,
				UnitPrice:    unit,
				TotalPrice:   unit.Mul(decimal.NewFromInt(int64(l.Quantity))),
			}
		}
		if err := tx.InsertItems(ctx, orderID, items); err != nil {
			return err
		}

		for productID, qty := range requested {
			if err := tx.DecrementStock(ctx, productID, qty); err != nil {
				return err
			}
		}

		return tx.ClearCart(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateReports(ctx)
	return s.repo.Get(ctx, orderID)
}

// insertWithNumber generates ORD-YYYYMMDD-NNNN and retries on collision up to
// the attempt budget.
func (s *Service) insertWithNumber(ctx context.Context, tx TxRepository, order Order) (int64, error) {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := newOrderNumber(s.now())
		if err != nil {
			return 0, err
		}
		order.OrderNumber = number

		id, err := tx.InsertOrder(ctx, order)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, errNumberTaken) {
			return 0, err
		}
		if s.logger != nil {
			s.logger.Warn("order number collision, retrying", slog.String("number", number))
		}
	}
	return 0, fmt.Errorf("%w: order number collisions exhausted retry budget", shared.ErrPersistence)
}

// Confirm moves pending to confirmed and raises the order-confirmed event.
func (s *Service) Confirm(ctx context.Context, id int64) (*Order, error) {
	order, err := s.transition(ctx, id, StatusConfirmed)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		if err := s.notifier.OrderConfirmed(ctx, order.UserEmail, order.OrderNumber, order.TotalAmount); err != nil && s.logger != nil {
			s.logger.Error("order confirmed notification", slog.Any("error", err))
		}
	}
	return order, nil
}

// MarkPreparing moves confirmed to preparing.
func (s *Service) MarkPreparing(ctx context.Context, id int64) (*Order, error) {
	return s.transition(ctx, id, StatusPreparing)
}

// MarkOutForDelivery moves preparing to out_for_delivery.
func (s *Service) MarkOutForDelivery(ctx context.Context, id int64) (*Order, error) {
	return s.transition(ctx, id, StatusOutForDelivery)
}

// MarkDelivered moves out_for_delivery to delivered; the repository stamps
// delivered_at and settles payment in the same update.
func (s *Service) MarkDelivered(ctx context.Context, id int64) (*Order, error) {
	return s.transition(ctx, id, StatusDelivered)
}

// Cancel is valid only from pending or confirmed. Stock restoration and the
// status change are one atomic unit.
func (s *Service) Cancel(ctx context.Context, id int64) (*Order, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(StatusCancelled) {
			return ErrCannotCancel
		}

		restored := make(map[int64]int)
		for _, item := range order.Items {
			restored[item.ProductID] += item.Quantity
		}
		for productID, qty := range restored {
			if err := tx.RestoreStock(ctx, productID, qty); err != nil {
				return err
			}
		}

		return tx.UpdateStatus(ctx, id, StatusCancelled)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateReports(ctx)
	return s.repo.Get(ctx, id)
}

func (s *Service) transition(ctx context.Context, id int64, target Status) (*Order, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
		}
		return tx.UpdateStatus(ctx, id, target)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Get returns an order without ownership checks (admin surface).
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// GetForUser returns an order only when it belongs to the user; otherwise it
// reports not-found rather than leaking existence.
func (s *Service) GetForUser(ctx context.Context, userID, id int64) (*Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, shared.ErrNotFound
	}
	return order, nil
}

// List returns orders for the admin surface.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Order, int, error) {
	return s.repo.List(ctx, filters)
}

// ListForUser returns the user's order history.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]Order, error) {
	return s.repo.ListForUser(ctx, userID)
}

func productIDsOf(lines []cart.Line) []int64 {
	seen := make(map[int64]bool, len(lines))
	var ids []int64
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	return ids
}

func quantitiesByProduct(lines []cart.Line) map[int64]int {
	quantities := make(map[int64]int)
	for _, l := range lines {
		quantities[l.ProductID] += l.Quantity
	}
	return quantities
}
