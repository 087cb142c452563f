package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rl1809/fulfilment/internal/core/domain"
	"github.com/rl1809/fulfilment/internal/core/service"
)

// HTTPHandler exposes the catalogue, the warehouse lifecycle and the
// allocation ledger over JSON/HTTP.
type HTTPHandler struct {
	products   *service.ProductService
	stores     *service.StoreService
	warehouses *service.WarehouseService
	ledger     *service.AllocationService
	logger     *zap.Logger
}

type ErrorResponse struct {
	Code  int    `json:"code"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

type QuantityRequest struct {
	Quantity *int `json:"quantity"`
}

func NewHTTPHandler(
	products *service.ProductService,
	stores *service.StoreService,
	warehouses *service.WarehouseService,
	ledger *service.AllocationService,
	logger *zap.Logger,
) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		products:   products,
		stores:     stores,
		warehouses: warehouses,
		ledger:     ledger,
		logger:     logger,
	}
}

// NewRouter builds the service router. metrics may be nil.
func NewRouter(h *HTTPHandler, metrics http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	h.RegisterRoutes(r)
	return r
}

func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/product", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)
		r.Get("/{id}", h.GetProduct)
		r.Put("/{id}", h.UpdateProduct)
		r.Delete("/{id}", h.DeleteProduct)
	})

	r.Route("/store", func(r chi.Router) {
		r.Get("/", h.ListStores)
		r.Post("/", h.CreateStore)
		r.Get("/{id}", h.GetStore)
		r.Put("/{id}", h.UpdateStore)
		r.Patch("/{id}", h.PatchStore)
		r.Delete("/{id}", h.DeleteStore)

		r.Get("/{id}/products", h.ListStoreProducts)
		r.Put("/{id}/products/{productId}", h.UpsertStoreProduct)
		r.Delete("/{id}/products/{productId}", h.RemoveStoreProduct)
	})

	r.Route("/warehouse", func(r chi.Router) {
		r.Get("/", h.ListWarehouses)
		r.Post("/", h.CreateWarehouse)
		r.Get("/search", h.SearchWarehouses)
		r.Get("/{code}", h.GetWarehouse)
		r.Put("/{code}", h.ReplaceWarehouse)
		r.Delete("/{code}", h.ArchiveWarehouse)

		r.Get("/{code}/products", h.ListWarehouseProducts)
		r.Put("/{code}/products/{productId}", h.UpsertWarehouseProduct)
		r.Delete("/{code}/products/{productId}", h.RemoveWarehouseProduct)
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// allocation endpoints, shared by stores and warehouses

func (h *HTTPHandler) listAllocations(w http.ResponseWriter, r *http.Request, ref domain.ContainerRef) {
	views, err := h.ledger.List(r.Context(), ref)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) upsertAllocation(w http.ResponseWriter, r *http.Request, ref domain.ContainerRef) {
	productID, ok := h.int64Param(w, r, "productId")
	if !ok {
		return
	}
	var req QuantityRequest
	if !h.decode(w, r, &req) {
		return
	}
	quantity := 0
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	view, err := h.ledger.Upsert(r.Context(), ref, productID, quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) removeAllocation(w http.ResponseWriter, r *http.Request, ref domain.ContainerRef) {
	productID, ok := h.int64Param(w, r, "productId")
	if !ok {
		return
	}
	if err := h.ledger.Remove(r.Context(), ref, productID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StatusFor maps an error kind to its HTTP status. Anything that is not a
// domain error is a 500.
func StatusFor(err error) int {
	switch kind := domain.KindOf(err); {
	case kind == nil:
		return http.StatusInternalServerError
	case errors.Is(kind, domain.ErrNotFound), errors.Is(kind, domain.ErrAllocationNotFound):
		return http.StatusNotFound
	case errors.Is(kind, domain.ErrConcurrentModification),
		errors.Is(kind, domain.ErrContainerArchived),
		errors.Is(kind, domain.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(kind, domain.ErrInvalidQuantity),
		errors.Is(kind, domain.ErrInsufficientStock),
		errors.Is(kind, domain.ErrCapacityExceeded),
		errors.Is(kind, domain.ErrInvalidProduct),
		errors.Is(kind, domain.ErrInvalidStore):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	resp := ErrorResponse{Code: status, Kind: "internal", Error: "internal error"}

	if kind := domain.KindOf(err); kind != nil {
		resp.Kind = kind.Error()
		resp.Error = err.Error()
		if errors.Is(kind, domain.ErrConcurrentModification) {
			resp.Error = "The resource was modified by another request. Please reload and try again."
		}
	} else {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, resp)
}

func (h *HTTPHandler) badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Code:  http.StatusBadRequest,
		Kind:  "bad request",
		Error: message,
	})
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.badRequest(w, "invalid request body")
		return false
	}
	return true
}

func (h *HTTPHandler) int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		h.badRequest(w, name+" must be an integer")
		return 0, false
	}
	return id, true
}

// expectedVersion reads an optional If-Match header carrying a warehouse version.
func (h *HTTPHandler) expectedVersion(w http.ResponseWriter, r *http.Request) (*int64, bool) {
	raw := r.Header.Get("If-Match")
	if raw == "" {
		return nil, true
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.badRequest(w, "If-Match must carry a numeric version")
		return nil, false
	}
	return &version, true
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
