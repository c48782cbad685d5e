package handlers

import (
	"net/http"

	"salez/internal/common/httpx"
	"salez/internal/domain"
	"salez/internal/microservices/pos/service"
)

type CatalogHandler struct {
	service service.CatalogServiceInterface
	errs    errorWriter
}

func NewCatalogHandler(s service.CatalogServiceInterface, e errorWriter) *CatalogHandler {
	return &CatalogHandler{service: s, errs: e}
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cats)
}

func (h *CatalogHandler) AddCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.AddCategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errs.badRequest(w, err.Error())
		return
	}
	cat, err := h.service.AddCategory(r.Context(), req.Name)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, cat)
}

func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCategory(r.Context(), param(r, "id")); err != nil {
		h.errs.write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFoodItems serves the full list, ?category=<name> or ?q=<keyword>.
func (h *CatalogHandler) ListFoodItems(w http.ResponseWriter, r *http.Request) {
	var (
		items []domain.FoodItem
		err   error
	)
	q := r.URL.Query()
	switch {
	case q.Has("q"):
		items, err = h.service.SearchFoodItems(r.Context(), q.Get("q"))
	case q.Has("category"):
		items, err = h.service.FoodItemsByCategory(r.Context(), q.Get("category"))
	default:
		items, err = h.service.ListFoodItems(r.Context())
	}
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *CatalogHandler) Recommended(w http.ResponseWriter, r *http.Request) {
	n := atoiDefault(r.URL.Query().Get("limit"), service.DefaultRecommended)
	items, err := h.service.RecommendedItems(r.Context(), n)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *CatalogHandler) Popular(w http.ResponseWriter, r *http.Request) {
	n := atoiDefault(r.URL.Query().Get("limit"), service.DefaultPopular)
	items, err := h.service.PopularFoodItems(r.Context(), n)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *CatalogHandler) GetFoodItem(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.errs.badRequest(w, err.Error())
		return
	}
	item, err := h.service.GetFoodItem(r.Context(), id)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, item)
}

func (h *CatalogHandler) AddFoodItem(w http.ResponseWriter, r *http.Request) {
	var req domain.FoodItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errs.badRequest(w, err.Error())
		return
	}
	item, err := h.service.AddFoodItem(r.Context(), req.FoodItem())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, item)
}

// UpdateFoodItem takes the id from the path; an id in the body must match.
func (h *CatalogHandler) UpdateFoodItem(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.errs.badRequest(w, err.Error())
		return
	}
	var req domain.FoodItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errs.badRequest(w, err.Error())
		return
	}
	if req.ID != 0 && req.ID != id {
		h.errs.badRequest(w, "id in body does not match path")
		return
	}
	req.ID = id
	item, err := h.service.UpdateFoodItem(r.Context(), req.FoodItem())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, item)
}

func (h *CatalogHandler) DeleteFoodItem(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.errs.badRequest(w, err.Error())
		return
	}
	if err := h.service.DeleteFoodItem(r.Context(), id); err != nil {
		h.errs.write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
