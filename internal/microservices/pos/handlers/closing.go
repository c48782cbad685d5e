package handlers

import (
	"net/http"

	"salez/internal/common/httpx"
	"salez/internal/microservices/pos/service"
)

type ClosingHandler struct {
	service service.ClosingServiceInterface
	errs    errorWriter
}

func NewClosingHandler(s service.ClosingServiceInterface, e errorWriter) *ClosingHandler {
	return &ClosingHandler{service: s, errs: e}
}

func (h *ClosingHandler) CloseDay(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r, "date")
	if err != nil {
		h.errs.badRequest(w, err.Error())
		return
	}
	summary, err := h.service.CloseDay(r.Context(), date)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, summary)
}

func (h *ClosingHandler) Latest(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.LatestSummary(r.Context())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, summary)
}

func (h *ClosingHandler) ForDate(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r, "date")
	if err != nil {
		h.errs.badRequest(w, err.Error())
		return
	}
	summary, err := h.service.SummaryFor(r.Context(), date)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, summary)
}
