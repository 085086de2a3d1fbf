package orders

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kedaiku/kedaiku/internal/otp"
	"github.com/kedaiku/kedaiku/internal/platform/httpx"
	"github.com/kedaiku/kedaiku/internal/shared"
)

// OTPNotifier delivers the one-time code to the shopper.
type OTPNotifier interface {
	OTPIssued(ctx context.Context, email, code string, ttl time.Duration) error
}

// Handler exposes the checkout gate, the shopper's order history and the
// admin lifecycle endpoints.
type Handler struct {
	service  *Service
	codes    *otp.Store
	notifier OTPNotifier
	logger   *slog.Logger
}

// NewHandler constructs the orders handler.
func NewHandler(service *Service, codes *otp.Store, notifier OTPNotifier, logger *slog.Logger) *Handler {
	return &Handler{service: service, codes: codes, notifier: notifier, logger: logger}
}

// MountCheckoutRoutes attaches the OTP-gated checkout endpoints. The caller
// wires rate limiting on this subtree.
func (h *Handler) MountCheckoutRoutes(r chi.Router) {
	r.Post("/request-code", h.requestCode)
	r.Post("/", h.checkout)
}

// MountUserRoutes attaches the shopper's order history endpoints.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Get("/", h.listMine)
	r.Get("/{id}", h.showMine)
}

// MountAdminRoutes attaches the order management endpoints.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.show)
	r.Post("/{id}/confirm", h.statusChange(h.service.Confirm))
	r.Post("/{id}/preparing", h.statusChange(h.service.MarkPreparing))
	r.Post("/{id}/out-for-delivery", h.statusChange(h.service.MarkOutForDelivery))
	r.Post("/{id}/delivered", h.statusChange(h.service.MarkDelivered))
	r.Post("/{id}/cancel", h.statusChange(h.service.Cancel))
}

func (h *Handler) requestCode(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.UserFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	code, err := otp.Generate()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.codes.Put(r.Context(), user.ID, code); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if h.notifier != nil {
		if err := h.notifier.OTPIssued(r.Context(), user.Email, code, h.codes.TTL()); err != nil {
			h.logger.Error("deliver checkout code", slog.Any("error", err))
		}
	}

	httpx.JSON(w, http.StatusAccepted, map[string]any{
		"message":    "code sent",
		"expires_in": int(h.codes.TTL().Seconds()),
	})
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.UserFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	var req CheckoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}

	result, err := h.codes.Verify(r.Context(), user.ID, req.Code)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	switch result {
	case otp.ResultInvalid:
		httpx.Problem(w, http.StatusUnauthorized, "Invalid Code", "the code did not match")
		return
	case otp.ResultExpired:
		httpx.Problem(w, http.StatusUnauthorized, "Code Expired", "no active code, request a new one")
		return
	}

	order, err := h.service.CreateFromCart(r.Context(), user.ID, req.DeliveryInfo)
	if err != nil {
		var stockErr *InsufficientStockError
		switch {
		case errors.As(err, &stockErr):
			httpx.ProblemWith(w, http.StatusUnprocessableEntity, "Insufficient Stock", stockErr.Error(), map[string]any{"items": stockErr.Items})
		case errors.Is(err, ErrEmptyCart):
			httpx.Problem(w, http.StatusConflict, "Empty Cart", "the cart has no items to check out")
		default:
			httpx.RespondError(w, err)
		}
		return
	}

	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.UserFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	orders, err := h.service.ListForUser(r.Context(), user.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) showMine(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.UserFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid order id")
		return
	}

	order, err := h.service.GetForUser(r.Context(), user.ID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters, err := parseListFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}

	orders, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": orders, "total": total})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid order id")
		return
	}

	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) statusChange(op func(context.Context, int64) (*Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid order id")
			return
		}

		order, err := op(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidTransition):
				httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
			case errors.Is(err, ErrCannotCancel):
				httpx.Problem(w, http.StatusConflict, "Cannot Cancel", "only pending or confirmed orders can be cancelled")
			default:
				httpx.RespondError(w, err)
			}
			return
		}
		httpx.JSON(w, http.StatusOK, order)
	}
}

func parseListFilters(r *http.Request) (ListFilters, error) {
	var filters ListFilters
	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" {
		status := Status(raw)
		if !status.Valid() {
			return filters, errors.New("unknown status " + raw)
		}
		filters.Status = &status
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, errors.New("from must be RFC3339")
		}
		filters.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, errors.New("to must be RFC3339")
		}
		filters.To = &t
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filters, errors.New("limit must be a non-negative integer")
		}
		filters.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filters, errors.New("offset must be a non-negative integer")
		}
		filters.Offset = n
	}
	return filters, nil
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
