package reporting

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kedaiku/kedaiku/internal/platform/httpx"
)

// Handler exposes the admin reporting endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs the reporting handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// MountRoutes attaches the reporting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/summary", h.summary)
	r.Get("/top-sellers", h.topSellers)
	r.Get("/low-stock", h.lowStock)
	r.Get("/daily-revenue", h.dailyRevenue)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	period, err := parseRange(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}

	summary, err := h.service.Summary(r.Context(), period)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) topSellers(w http.ResponseWriter, r *http.Request) {
	period, err := parseRange(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "limit must be a non-negative integer")
			return
		}
	}

	sellers, err := h.service.TopSellers(r.Context(), period, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"top_sellers": sellers})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	threshold := 0
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		var err error
		if threshold, err = strconv.Atoi(raw); err != nil || threshold < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "threshold must be a non-negative integer")
			return
		}
	}

	items, err := h.service.LowStock(r.Context(), threshold)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"low_stock": items})
}

func (h *Handler) dailyRevenue(w http.ResponseWriter, r *http.Request) {
	period, err := parseRange(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}

	series, err := h.service.DailyRevenue(r.Context(), period)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"daily_revenue": series})
}

// parseRange reads from/to query params as YYYY-MM-DD dates; to is inclusive
// of its whole day.
func parseRange(r *http.Request) (Range, error) {
	const layout = "2006-01-02"
	var period Range
	q := r.URL.Query()

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(layout, raw)
		if err != nil {
			return period, err
		}
		period.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(layout, raw)
		if err != nil {
			return period, err
		}
		period.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	return period, nil
}
