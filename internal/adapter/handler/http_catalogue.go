package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/rl1809/fulfilment/internal/core/domain"
)

type ProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

func (p ProductRequest) product() domain.Product {
	return domain.Product{
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		AvailableStock: p.Stock,
	}
}

type StoreRequest struct {
	Name                    string `json:"name"`
	QuantityProductsInStock *int   `json:"quantityProductsInStock"`
}

func (s StoreRequest) occupancy() int {
	if s.QuantityProductsInStock == nil {
		return 0
	}
	return *s.QuantityProductsInStock
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.int64Param(w, r, "id")
	if !ok {
		return
	}
	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	product, err := h.products.Create(r.Context(), req.product())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.int64Param(w, r, "id")
	if !ok {
		return
	}
	var req ProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	product, err := h.products.Update(r.Context(), id, req.product())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.int64Param(w, r, "id")
	if !ok {
		return
	}
	if err := h.products.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.stores.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stores)
}

func (h *HTTPHandler) GetStore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.int64Param(w, r, "id")
	if !ok {
		return
	}
	store, err := h.stores.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, store)
}

func (h *HTTPHandler) CreateStore(w http.ResponseWriter, r *http.Request) {
	var req StoreRequest
	if !h.decode(w, r, &req) {
		return
	}
	store, err := h.stores.Create(r.Context(), req.Name, req.occupancy())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, store)
}

func (h *HTTPHandler) UpdateStore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.int64Param(w, r, "id")
	if !ok {
		return
	}
	var req StoreRequest
	if !h.decode(w, r, &req) {
		return
	}
	store, err := h.stores.Update(r.Context(), id, req.Name, req.occupancy())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, store)
}

// PatchStore renames a store; occupancy is re-synchronized, never taken from the body.
func (h *HTTPHandler) PatchStore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.int64Param(w, r, "id")
	if !ok {
		return
	}
	var req StoreRequest
	if !h.decode(w, r, &req) {
		return
	}
	store, err := h.stores.Patch(r.Context(), id, req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, store)
}

func (h *HTTPHandler) DeleteStore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.int64Param(w, r, "id")
	if !ok {
		return
	}
	if err := h.stores.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ListStoreProducts(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.int64Param(w, r, "id"); ok {
		h.listAllocations(w, r, domain.StoreRef(id))
	}
}

func (h *HTTPHandler) UpsertStoreProduct(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.int64Param(w, r, "id"); ok {
		h.upsertAllocation(w, r, domain.StoreRef(id))
	}
}

func (h *HTTPHandler) RemoveStoreProduct(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.int64Param(w, r, "id"); ok {
		h.removeAllocation(w, r, domain.StoreRef(id))
	}
}
