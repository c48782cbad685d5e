package handlers

import (
	"net/http"

	"salez/internal/common/httpx"
	"salez/internal/domain"
	"salez/internal/microservices/pos/service"
)

type OrderHandler struct {
	service  service.OrderServiceInterface
	sessions sessions
	errs     errorWriter
}

func NewOrderHandler(s service.OrderServiceInterface, sess sessions, e errorWriter) *OrderHandler {
	return &OrderHandler{service: s, sessions: sess, errs: e}
}

// Checkout turns the session cart into an order.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.from(r)
	if err != nil {
		h.errs.badRequest(w, err.Error())
		return
	}
	var req domain.CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errs.badRequest(w, err.Error())
		return
	}
	order, err := h.service.CreateOrder(r.Context(), sess, req.CustomerName, req.PaymentMethod)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, order)
}

// List serves every order, or the orders of ?date=YYYY-MM-DD.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		orders []domain.Order
		err    error
	)
	if date := r.URL.Query().Get("date"); date != "" {
		orders, err = h.service.DailyOrders(r.Context(), date)
	} else {
		orders, err = h.service.ListOrders(r.Context())
	}
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), param(r, "id"))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}
