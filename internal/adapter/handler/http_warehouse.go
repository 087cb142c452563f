package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rl1809/fulfilment/internal/core/domain"
	"github.com/rl1809/fulfilment/internal/core/service"
)

type WarehouseRequest struct {
	BusinessUnitCode string `json:"businessUnitCode"`
	Location         string `json:"location"`
	Capacity         int    `json:"capacity"`
	Stock            *int   `json:"stock"`
}

func (req WarehouseRequest) spec(code string) domain.WarehouseSpec {
	spec := domain.WarehouseSpec{
		BusinessUnitCode: code,
		Location:         req.Location,
		Capacity:         req.Capacity,
	}
	if req.Stock != nil {
		spec.Stock = *req.Stock
	}
	return spec
}

func (h *HTTPHandler) ListWarehouses(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.warehouses.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, warehouses)
}

func (h *HTTPHandler) GetWarehouse(w http.ResponseWriter, r *http.Request) {
	warehouse, err := h.warehouses.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeETag(w, warehouse)
	writeJSON(w, http.StatusOK, warehouse)
}

func (h *HTTPHandler) CreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req WarehouseRequest
	if !h.decode(w, r, &req) {
		return
	}
	warehouse, err := h.warehouses.Create(r.Context(), req.spec(req.BusinessUnitCode))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeETag(w, warehouse)
	writeJSON(w, http.StatusCreated, warehouse)
}

// ReplaceWarehouse takes the business unit code from the path; a code in the
// body is ignored.
func (h *HTTPHandler) ReplaceWarehouse(w http.ResponseWriter, r *http.Request) {
	version, ok := h.expectedVersion(w, r)
	if !ok {
		return
	}
	var req WarehouseRequest
	if !h.decode(w, r, &req) {
		return
	}
	warehouse, err := h.warehouses.Replace(r.Context(), req.spec(chi.URLParam(r, "code")), version)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeETag(w, warehouse)
	writeJSON(w, http.StatusOK, warehouse)
}

func (h *HTTPHandler) ArchiveWarehouse(w http.ResponseWriter, r *http.Request) {
	version, ok := h.expectedVersion(w, r)
	if !ok {
		return
	}
	if _, err := h.warehouses.Archive(r.Context(), chi.URLParam(r, "code"), version); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) SearchWarehouses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := service.SearchParams{
		Location:  strings.TrimSpace(q.Get("location")),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
		PageSize:  domain.DefaultPageSize,
	}

	ints := []struct {
		name string
		set  func(int)
	}{
		{"page", func(v int) { params.Page = v }},
		{"pageSize", func(v int) { params.PageSize = v }},
		{"minCapacity", func(v int) { params.MinCapacity = &v }},
		{"maxCapacity", func(v int) { params.MaxCapacity = &v }},
	}
	for _, p := range ints {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			h.badRequest(w, p.name+" is out of supported integer range")
			return
		}
		p.set(v)
	}

	warehouses, err := h.warehouses.Search(r.Context(), params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, warehouses)
}

func (h *HTTPHandler) ListWarehouseProducts(w http.ResponseWriter, r *http.Request) {
	h.listAllocations(w, r, domain.WarehouseRef(chi.URLParam(r, "code")))
}

func (h *HTTPHandler) UpsertWarehouseProduct(w http.ResponseWriter, r *http.Request) {
	h.upsertAllocation(w, r, domain.WarehouseRef(chi.URLParam(r, "code")))
}

func (h *HTTPHandler) RemoveWarehouseProduct(w http.ResponseWriter, r *http.Request) {
	h.removeAllocation(w, r, domain.WarehouseRef(chi.URLParam(r, "code")))
}

func writeETag(w http.ResponseWriter, warehouse *domain.Warehouse) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(warehouse.Version, 10)))
}
