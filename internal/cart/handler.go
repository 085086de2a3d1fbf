package cart

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kedaiku/kedaiku/internal/platform/httpx"
	"github.com/kedaiku/kedaiku/internal/shared"
)

// Handler wires HTTP endpoints for the cart.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the cart handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers cart routes; the router guards them with RequireUser.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
	r.Post("/items", h.addItem)
	r.Put("/items/{id}", h.updateQuantity)
	r.Delete("/items/{id}", h.removeItem)
	r.Delete("/", h.clear)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	user, _ := shared.UserFromContext(r.Context())
	lines, err := h.service.Snapshot(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("cart snapshot", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	shortfalls, err := h.service.ValidateStock(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("cart stock validation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      lines,
		"total":      Total(lines),
		"shortfalls": shortfalls,
	})
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	user, _ := shared.UserFromContext(r.Context())
	var req AddItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	item, err := h.service.Add(r.Context(), user.ID, req)
	if err != nil {
		if errors.Is(err, ErrProductUnavailable) {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Product Unavailable", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) updateQuantity(w http.ResponseWriter, r *http.Request) {
	user, _ := shared.UserFromContext(r.Context())
	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req UpdateQuantityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.UpdateQuantity(r.Context(), user.ID, itemID, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	user, _ := shared.UserFromContext(r.Context())
	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.Remove(r.Context(), user.ID, itemID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	user, _ := shared.UserFromContext(r.Context())
	if err := h.service.Clear(r.Context(), user.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
