package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"salez/internal/common/auth"
	"salez/internal/common/httpx"
	"salez/internal/common/logger"
	"salez/internal/common/metrics"
	"salez/internal/domain"
)

type RouterConfig struct {
	MaxConcurrent int
	RatePerSec    float64
	Burst         int
}

var (
	anyRole = []domain.Role{domain.RoleCashier, domain.RoleChef, domain.RoleManager}
	till    = []domain.Role{domain.RoleCashier, domain.RoleManager}
	manager = []domain.Role{domain.RoleManager}
)

func Router(h *Handler, a *auth.Authenticator, cfg RouterConfig, lg *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.RequestID, httpx.AccessLog(lg))
	if cfg.RatePerSec > 0 {
		r.Use(httpx.NewRateLimiter(cfg.RatePerSec, cfg.Burst, lg).Handler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.MaxConcurrent > 0 {
			r.Use(httpx.MaxConcurrent(cfg.MaxConcurrent))
		}
		r.Use(a.Middleware)

		r.With(auth.Require(anyRole...)).Get("/categories", h.CatalogHandler.ListCategories)
		r.With(auth.Require(manager...)).Post("/categories", h.CatalogHandler.AddCategory)
		r.With(auth.Require(manager...)).Delete("/categories/{id}", h.CatalogHandler.DeleteCategory)

		r.Route("/food-items", func(r chi.Router) {
			r.With(auth.Require(anyRole...)).Get("/", h.CatalogHandler.ListFoodItems)
			r.With(auth.Require(anyRole...)).Get("/recommended", h.CatalogHandler.Recommended)
			r.With(auth.Require(manager...)).Get("/popular", h.CatalogHandler.Popular)
			r.With(auth.Require(anyRole...)).Get("/{id}", h.CatalogHandler.GetFoodItem)
			r.With(auth.Require(manager...)).Post("/", h.CatalogHandler.AddFoodItem)
			r.With(auth.Require(manager...)).Put("/{id}", h.CatalogHandler.UpdateFoodItem)
			r.With(auth.Require(manager...)).Delete("/{id}", h.CatalogHandler.DeleteFoodItem)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Require(till...))
			r.Get("/cart", h.CartHandler.Get)
			r.Delete("/cart", h.CartHandler.Clear)
			r.Post("/cart/items/{foodItemId}", h.CartHandler.AddItem)
			r.Post("/cart/items/{foodItemId}/decrement", h.CartHandler.DecrementItem)
			r.Post("/orders", h.OrderHandler.Checkout)
			r.Post("/closing/{date}", h.ClosingHandler.CloseDay)
		})

		r.With(auth.Require(anyRole...)).Get("/orders", h.OrderHandler.List)
		r.With(auth.Require(anyRole...)).Get("/orders/{id}", h.OrderHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(auth.Require(manager...))
			r.Get("/summaries/latest", h.ClosingHandler.Latest)
			r.Get("/summaries/{date}", h.ClosingHandler.ForDate)
			r.Get("/profile", h.ProfileHandler.Get)
			r.Put("/profile", h.ProfileHandler.Save)
		})
	})

	r.Route("/ws", func(r chi.Router) {
		r.Use(a.Middleware)
		r.With(auth.Require(till...)).Get("/cart", h.LiveHandler.Cart)
		r.With(auth.Require(anyRole...)).Get("/orders", h.LiveHandler.Orders)
	})
	return r
}
