package handlers

import (
	"context"
	"errors"
	"net/http"

	"salez/internal/common/httpx"
	"salez/internal/common/logger"
	"salez/internal/docstore"
	"salez/internal/domain"
	"salez/internal/microservices/pos/service"
)

type Handler struct {
	CatalogHandler *CatalogHandler
	CartHandler    *CartHandler
	OrderHandler   *OrderHandler
	ClosingHandler *ClosingHandler
	ProfileHandler *ProfileHandler
	LiveHandler    *LiveHandler
}

// New builds the handlers. cartID is the cart used when a request does not
// name one.
func New(svc *service.Service, cartID string, lg *logger.Logger) *Handler {
	e := errorWriter{lg: lg}
	s := sessions{defaultCart: cartID}
	return &Handler{
		CatalogHandler: NewCatalogHandler(svc.CatalogService, e),
		CartHandler:    NewCartHandler(svc.CartService, s, e),
		OrderHandler:   NewOrderHandler(svc.OrderService, s, e),
		ClosingHandler: NewClosingHandler(svc.ClosingService, e),
		ProfileHandler: NewProfileHandler(svc.ProfileService, e),
		LiveHandler:    NewLiveHandler(svc.CartService, svc.OrderService, s, lg),
	}
}

type errorWriter struct {
	lg *logger.Logger
}

// write maps err onto a problem response. Business errors carry the message
// shown to the cashier.
func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	if be, ok := domain.IsBusiness(err); ok {
		code := http.StatusUnprocessableEntity
		if be.Conflict() {
			code = http.StatusConflict
		}
		httpx.WriteProblem(w, code, be.Code, be.Message)
		return
	}

	fields := map[string]any{
		"path":       r.URL.Path,
		"request_id": httpx.RequestIDFrom(r.Context()),
	}
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, docstore.ErrNotFound):
		httpx.WriteProblem(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, docstore.ErrConflict):
		e.lg.Warn("store_conflict", fields)
		httpx.WriteProblem(w, http.StatusConflict, "conflict", "data changed concurrently, try again")
	case docstore.IsDecodeError(err):
		e.lg.Error("malformed_document", err, fields)
		httpx.WriteProblem(w, http.StatusInternalServerError, "malformed_document", "stored data is malformed")
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		e.lg.Error("request_failed", err, fields)
		httpx.WriteProblem(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (e errorWriter) badRequest(w http.ResponseWriter, detail string) {
	httpx.WriteProblem(w, http.StatusBadRequest, "bad_request", detail)
}
