package handlers

import (
	"net/http"

	"salez/internal/common/httpx"
	"salez/internal/domain"
	"salez/internal/microservices/pos/service"
)

type ProfileHandler struct {
	service service.ProfileServiceInterface
	errs    errorWriter
}

func NewProfileHandler(s service.ProfileServiceInterface, e errorWriter) *ProfileHandler {
	return &ProfileHandler{service: s, errs: e}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProfile(r.Context())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req domain.ProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errs.badRequest(w, err.Error())
		return
	}
	p, err := h.service.SaveProfile(r.Context(), req)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}
