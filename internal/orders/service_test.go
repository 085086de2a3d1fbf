package orders

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kedaiku/kedaiku/internal/cart"
	"github.com/kedaiku/kedaiku/internal/shared"
)

type memRepo struct {
	lines       []cart.Line
	stock       map[int64]int
	orders      map[int64]*Order
	nextID      int64
	insertErrs  []error
	insertCalls int
	cartCleared bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		stock:  make(map[int64]int),
		orders: make(map[int64]*Order),
		nextID: 1,
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memTx{repo: m})
}

func (m *memRepo) Get(ctx context.Context, id int64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memRepo) GetByNumber(ctx context.Context, number string) (*Order, error) {
	for _, o := range m.orders {
		if o.OrderNumber == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memRepo) List(ctx context.Context, filters ListFilters) ([]Order, int, error) {
	var out []Order
	for _, o := range m.orders {
		if filters.Status != nil && o.Status != *filters.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (m *memRepo) ListForUser(ctx context.Context, userID int64) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

type memTx struct {
	repo *memRepo
}

func (t *memTx) CartSnapshot(ctx context.Context, userID int64) ([]cart.Line, error) {
	return t.repo.lines, nil
}

func (t *memTx) LockStock(ctx context.Context, productIDs []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(productIDs))
	for _, id := range productIDs {
		out[id] = t.repo.stock[id]
	}
	return out, nil
}

func (t *memTx) InsertOrder(ctx context.Context, o Order) (int64, error) {
	t.repo.insertCalls++
	if len(t.repo.insertErrs) > 0 {
		err := t.repo.insertErrs[0]
		t.repo.insertErrs = t.repo.insertErrs[1:]
		return 0, err
	}
	id := t.repo.nextID
	t.repo.nextID++
	o.ID = id
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	t.repo.orders[id] = &o
	return id, nil
}

func (t *memTx) InsertItems(ctx context.Context, orderID int64, items []OrderItem) error {
	o := t.repo.orders[orderID]
	for i := range items {
		items[i].OrderID = orderID
	}
	o.Items = items
	return nil
}

func (t *memTx) DecrementStock(ctx context.Context, productID int64, qty int) error {
	if t.repo.stock[productID] < qty {
		return errors.New("stock would go negative")
	}
	t.repo.stock[productID] -= qty
	return nil
}

func (t *memTx) RestoreStock(ctx context.Context, productID int64, qty int) error {
	t.repo.stock[productID] += qty
	return nil
}

func (t *memTx) ClearCart(ctx context.Context, userID int64) error {
	t.repo.lines = nil
	t.repo.cartCleared = true
	return nil
}

func (t *memTx) GetForUpdate(ctx context.Context, id int64) (*Order, error) {
	o, ok := t.repo.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (t *memTx) UpdateStatus(ctx context.Context, id int64, status Status) error {
	o := t.repo.orders[id]
	o.Status = status
	now := time.Now()
	switch status {
	case StatusConfirmed:
		o.ConfirmedAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
		o.PaymentStatus = PaymentPaid
	}
	o.UpdatedAt = now
	return nil
}

type recordingNotifier struct {
	confirmed []string
}

func (n *recordingNotifier) OrderConfirmed(ctx context.Context, email, orderNumber string, total decimal.Decimal) error {
	n.confirmed = append(n.confirmed, orderNumber)
	return nil
}

type countingCache struct {
	invalidations int
}

func (c *countingCache) Invalidate(ctx context.Context) error {
	c.invalidations++
	return nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(v int64) *int64 { return &v }

func testDeliveryInfo() DeliveryInfo {
	return DeliveryInfo{
		PaymentMethod:   "cash",
		DeliveryAddress: "Jl. Kenanga 12",
		DeliveryPhone:   "081234567890",
	}
}

func newTestService(repo *memRepo) (*Service, *recordingNotifier, *countingCache) {
	notifier := &recordingNotifier{}
	cache := &countingCache{}
	return NewService(repo, notifier, cache, nil), notifier, cache
}

func TestCheckoutCreatesOrder(t *testing.T) {
	repo := newMemRepo()
	repo.stock = map[int64]int{1: 10, 2: 5}
	repo.lines = []cart.Line{
		{ItemID: 1, ProductID: 1, ProductName: "Nasi Goreng", Quantity: 2, SellingPrice: d("25000"), PriceAdjustment: d("0")},
		{ItemID: 2, ProductID: 2, ProductName: "Es Teh", VariantID: ptr(7), VariantLabel: "Size: Large", Quantity: 3, SellingPrice: d("5000"), PriceAdjustment: d("2000")},
	}
	svc, _, cache := newTestService(repo)

	order, err := svc.CreateFromCart(context.Background(), 42, testDeliveryInfo())
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, PaymentPending, order.PaymentStatus)
	assert.True(t, d("71000").Equal(order.TotalAmount), "got %s", order.TotalAmount)
	assert.Regexp(t, regexp.MustCompile(`^ORD-\d{8}-\d{4}$`), order.OrderNumber)

	require.Len(t, order.Items, 2)
	assert.True(t, d("25000").Equal(order.Items[0].UnitPrice))
	assert.True(t, d("50000").Equal(order.Items[0].TotalPrice))
	assert.True(t, d("7000").Equal(order.Items[1].UnitPrice))
	assert.True(t, d("21000").Equal(order.Items[1].TotalPrice))
	assert.Equal(t, "Size: Large", order.Items[1].VariantLabel)

	assert.Equal(t, 8, repo.stock[1])
	assert.Equal(t, 2, repo.stock[2])
	assert.True(t, repo.cartCleared)
	assert.Equal(t, 1, cache.invalidations)
}

func TestCheckoutEmptyCart(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)

	_, err := svc.CreateFromCart(context.Background(), 42, testDeliveryInfo())
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	repo := newMemRepo()
	repo.stock = map[int64]int{1: 1}
	repo.lines = []cart.Line{
		{ItemID: 1, ProductID: 1, ProductName: "Nasi Goreng", Quantity: 3, SellingPrice: d("25000")},
	}
	svc, _, _ := newTestService(repo)

	_, err := svc.CreateFromCart(context.Background(), 42, testDeliveryInfo())

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Items, 1)
	assert.Equal(t, int64(1), stockErr.Items[0].ProductID)
	assert.Equal(t, 3, stockErr.Items[0].Requested)
	assert.Equal(t, 1, stockErr.Items[0].Available)

	assert.Equal(t, 1, repo.stock[1])
	assert.False(t, repo.cartCleared)
	assert.Empty(t, repo.orders)
}

func TestCheckoutAggregatesVariantLinesPerProduct(t *testing.T) {
	repo := newMemRepo()
	repo.stock = map[int64]int{1: 4}
	repo.lines = []cart.Line{
		{ItemID: 1, ProductID: 1, ProductName: "Kopi", VariantID: ptr(1), VariantLabel: "Size: Small", Quantity: 3, SellingPrice: d("15000")},
		{ItemID: 2, ProductID: 1, ProductName: "Kopi", VariantID: ptr(2), VariantLabel: "Size: Large", Quantity: 2, SellingPrice: d("15000"), PriceAdjustment: d("3000")},
	}
	svc, _, _ := newTestService(repo)

	_, err := svc.CreateFromCart(context.Background(), 42, testDeliveryInfo())

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Items, 1)
	assert.Equal(t, 5, stockErr.Items[0].Requested)
	assert.Equal(t, 4, stockErr.Items[0].Available)
}

func TestCheckoutRetriesNumberCollision(t *testing.T) {
	repo := newMemRepo()
	repo.stock = map[int64]int{1: 10}
	repo.lines = []cart.Line{
		{ItemID: 1, ProductID: 1, ProductName: "Nasi Goreng", Quantity: 1, SellingPrice: d("25000")},
	}
	repo.insertErrs = []error{errNumberTaken, errNumberTaken}
	svc, _, _ := newTestService(repo)

	order, err := svc.CreateFromCart(context.Background(), 42, testDeliveryInfo())
	require.NoError(t, err)
	assert.Equal(t, 3, repo.insertCalls)
	assert.Equal(t, StatusPending, order.Status)
}

func TestCheckoutNumberRetryExhausted(t *testing.T) {
	repo := newMemRepo()
	repo.stock = map[int64]int{1: 10}
	repo.lines = []cart.Line{
		{ItemID: 1, ProductID: 1, ProductName: "Nasi Goreng", Quantity: 1, SellingPrice: d("25000")},
	}
	for i := 0; i < maxNumberAttempts; i++ {
		repo.insertErrs = append(repo.insertErrs, errNumberTaken)
	}
	svc, _, _ := newTestService(repo)

	_, err := svc.CreateFromCart(context.Background(), 42, testDeliveryInfo())
	require.ErrorIs(t, err, shared.ErrPersistence)
	assert.Equal(t, maxNumberAttempts, repo.insertCalls)
}

func TestCheckoutValidatesDeliveryInfo(t *testing.T) {
	repo := newMemRepo()
	svc, _, _ := newTestService(repo)

	info := testDeliveryInfo()
	info.PaymentMethod = "barter"
	_, err := svc.CreateFromCart(context.Background(), 42, info)
	require.Error(t, err)
}

func seedOrder(repo *memRepo, status Status) *Order {
	id := repo.nextID
	repo.nextID++
	o := &Order{
		ID:          id,
		UserID:      42,
		UserEmail:   "budi@example.com",
		OrderNumber: "ORD-20260901-0042",
		Status:      status,
		TotalAmount: d("50000"),
		Items: []OrderItem{
			{ProductID: 1, ProductName: "Nasi Goreng", Quantity: 2, UnitPrice: d("25000"), TotalPrice: d("50000")},
		},
	}
	repo.orders[id] = o
	return o
}

func TestConfirmNotifies(t *testing.T) {
	repo := newMemRepo()
	o := seedOrder(repo, StatusPending)
	svc, notifier, _ := newTestService(repo)

	confirmed, err := svc.Confirm(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	assert.NotNil(t, confirmed.ConfirmedAt)
	require.Len(t, notifier.confirmed, 1)
	assert.Equal(t, o.OrderNumber, notifier.confirmed[0])
}

func TestStatusSkipRejected(t *testing.T) {
	repo := newMemRepo()
	o := seedOrder(repo, StatusPending)
	svc, _, _ := newTestService(repo)

	_, err := svc.MarkPreparing(context.Background(), o.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.MarkDelivered(context.Background(), o.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeliveryLifecycle(t *testing.T) {
	repo := newMemRepo()
	o := seedOrder(repo, StatusPending)
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Confirm(ctx, o.ID)
	require.NoError(t, err)
	_, err = svc.MarkOutForDelivery(ctx, o.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.MarkPreparing(ctx, o.ID)
	require.NoError(t, err)
	_, err = svc.MarkOutForDelivery(ctx, o.ID)
	require.NoError(t, err)

	delivered, err := svc.MarkDelivered(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, delivered.Status)
	assert.NotNil(t, delivered.DeliveredAt)
	assert.Equal(t, PaymentPaid, delivered.PaymentStatus)

	_, err = svc.MarkDelivered(ctx, o.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelRestoresStock(t *testing.T) {
	repo := newMemRepo()
	repo.stock = map[int64]int{1: 8}
	o := seedOrder(repo, StatusPending)
	svc, _, cache := newTestService(repo)

	cancelled, err := svc.Cancel(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 10, repo.stock[1])
	assert.Equal(t, 1, cache.invalidations)
}

func TestCancelAfterPreparing(t *testing.T) {
	repo := newMemRepo()
	repo.stock = map[int64]int{1: 8}
	o := seedOrder(repo, StatusPreparing)
	svc, _, _ := newTestService(repo)

	_, err := svc.Cancel(context.Background(), o.ID)
	require.ErrorIs(t, err, ErrCannotCancel)
	assert.Equal(t, 8, repo.stock[1])
}

func TestGetForUserOwnership(t *testing.T) {
	repo := newMemRepo()
	o := seedOrder(repo, StatusPending)
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	got, err := svc.GetForUser(ctx, 42, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = svc.GetForUser(ctx, 99, o.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOrderNumberFormat(t *testing.T) {
	now := time.Date(2026, 9, 1, 15, 4, 5, 0, time.UTC)
	number, err := newOrderNumber(now)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^ORD-20260901-\d{4}$`), number)
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusCancelled.Valid())
	assert.False(t, Status("shipped").Valid())
}
