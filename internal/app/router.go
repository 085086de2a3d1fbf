package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kedaiku/kedaiku/internal/auth"
	"github.com/kedaiku/kedaiku/internal/cart"
	"github.com/kedaiku/kedaiku/internal/catalog"
	"github.com/kedaiku/kedaiku/internal/orders"
	"github.com/kedaiku/kedaiku/internal/reporting"
	"github.com/kedaiku/kedaiku/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	AuthHandler      *auth.Handler
	CatalogHandler   *catalog.Handler
	CartHandler      *cart.Handler
	OrdersHandler    *orders.Handler
	ReportingHandler *reporting.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)

		r.Group(func(r chi.Router) {
			params.CatalogHandler.MountPublicRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(shared.RequireUser)

			r.Route("/cart", params.CartHandler.MountRoutes)

			r.Route("/checkout", func(r chi.Router) {
				r.Use(OTPRateLimit())
				params.OrdersHandler.MountCheckoutRoutes(r)
			})

			r.Route("/orders", params.OrdersHandler.MountUserRoutes)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(shared.RequireAdmin)

			r.Group(func(r chi.Router) {
				params.CatalogHandler.MountAdminRoutes(r)
			})
			r.Route("/orders", params.OrdersHandler.MountAdminRoutes)
			r.Route("/reports", params.ReportingHandler.MountRoutes)
		})
	})

	return r
}
