package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kedaiku/kedaiku/internal/cart"
	"github.com/kedaiku/kedaiku/internal/otp"
	"github.com/kedaiku/kedaiku/internal/shared"
)

type capturingNotifier struct {
	recordingNotifier
	codes []string
}

func (n *capturingNotifier) OTPIssued(ctx context.Context, email, code string, ttl time.Duration) error {
	n.codes = append(n.codes, code)
	return nil
}

func newCheckoutRig(t *testing.T, repo *memRepo) (*chi.Mux, *capturingNotifier) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	notifier := &capturingNotifier{}
	svc := NewService(repo, &notifier.recordingNotifier, nil, nil)
	handler := NewHandler(svc, otp.NewStore(client, 5*time.Minute), notifier, nil)

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.ContextWithUser(r.Context(), shared.User{ID: 42, Email: "budi@example.com"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Route("/checkout", handler.MountCheckoutRoutes)
	return router, notifier
}

func stockedRepo() *memRepo {
	repo := newMemRepo()
	repo.stock = map[int64]int{1: 10}
	repo.lines = []cart.Line{
		{ItemID: 1, ProductID: 1, ProductName: "Nasi Goreng", Quantity: 2, SellingPrice: d("25000")},
	}
	return repo
}

func checkoutBody(code string) string {
	return `{"code":"` + code + `","payment_method":"cash","delivery_address":"Jl. Kenanga 12","delivery_phone":"081234567890"}`
}

func requestCode(t *testing.T, router *chi.Mux, notifier *capturingNotifier) string {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/request-code", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NotEmpty(t, notifier.codes)
	return notifier.codes[len(notifier.codes)-1]
}

func TestCheckoutWithValidCode(t *testing.T) {
	repo := stockedRepo()
	router, notifier := newCheckoutRig(t, repo)

	code := requestCode(t, router, notifier)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(checkoutBody(code)))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, 8, repo.stock[1])
}

func TestCheckoutCodeIsSingleUse(t *testing.T) {
	repo := stockedRepo()
	router, notifier := newCheckoutRig(t, repo)

	code := requestCode(t, router, notifier)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(checkoutBody(code))))
	require.Equal(t, http.StatusCreated, rec.Code)

	// Same code again: the entry was consumed.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(checkoutBody(code))))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Len(t, repo.orders, 1, "a replayed code must not create a second order")
}

func TestCheckoutWrongCode(t *testing.T) {
	repo := stockedRepo()
	router, notifier := newCheckoutRig(t, repo)

	requestCode(t, router, notifier)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(checkoutBody("nope00"))))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, repo.orders)
	assert.Equal(t, 10, repo.stock[1])
}

func TestCheckoutWithoutRequestedCode(t *testing.T) {
	repo := stockedRepo()
	router, _ := newCheckoutRig(t, repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(checkoutBody("aB3xY9"))))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, repo.orders)
}

func TestCheckoutShortfallPayload(t *testing.T) {
	repo := stockedRepo()
	repo.stock[1] = 1
	router, notifier := newCheckoutRig(t, repo)

	code := requestCode(t, router, notifier)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(checkoutBody(code))))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var problem struct {
		Title string `json:"title"`
		Extra struct {
			Items []cart.StockShortfall `json:"items"`
		} `json:"extra"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "Insufficient Stock", problem.Title)
	require.Len(t, problem.Extra.Items, 1)
	assert.Equal(t, 2, problem.Extra.Items[0].Requested)
	assert.Equal(t, 1, problem.Extra.Items[0].Available)
}

func TestCheckoutEmptyCartConflict(t *testing.T) {
	repo := newMemRepo()
	router, notifier := newCheckoutRig(t, repo)

	code := requestCode(t, router, notifier)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(checkoutBody(code))))
	require.Equal(t, http.StatusConflict, rec.Code)
}
