package handlers

import (
	"net/http"

	"salez/internal/common/httpx"
	"salez/internal/microservices/pos/service"
)

type CartHandler struct {
	service  service.CartServiceInterface
	sessions sessions
	errs     errorWriter
}

func NewCartHandler(s service.CartServiceInterface, sess sessions, e errorWriter) *CartHandler {
	return &CartHandler{service: s, sessions: sess, errs: e}
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.from(r)
	if err != nil {
		h.errs.badRequest(w, err.Error())
		return
	}
	view, err := h.service.Lines(r.Context(), sess)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.from(r)
	if err != nil {
		h.errs.badRequest(w, err.Error())
		return
	}
	id, err := int64Param(r, "foodItemId")
	if err != nil {
		h.errs.badRequest(w, err.Error())
		return
	}
	view, err := h.service.AddItem(r.Context(), sess, id)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

func (h *CartHandler) DecrementItem(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.from(r)
	if err != nil {
		h.errs.badRequest(w, err.Error())
		return
	}
	id, err := int64Param(r, "foodItemId")
	if err != nil {
		h.errs.badRequest(w, err.Error())
		return
	}
	view, err := h.service.DecrementItem(r.Context(), sess, id)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.from(r)
	if err != nil {
		h.errs.badRequest(w, err.Error())
		return
	}
	if err := h.service.Clear(r.Context(), sess); err != nil {
		h.errs.write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
