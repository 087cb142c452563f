package handler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/fulfilment/internal/core/domain"
	"github.com/rl1809/fulfilment/internal/core/service"
)

type ReplaceWarehouseRequest struct {
	WarehouseRequest
	ExpectedVersion *int64 `json:"expectedVersion,omitempty"`
}

type WarehouseCodeRequest struct {
	BusinessUnitCode string `json:"businessUnitCode"`
	ExpectedVersion  *int64 `json:"expectedVersion,omitempty"`
}

type SearchRequest struct {
	Location    string `json:"location"`
	MinCapacity *int   `json:"minCapacity,omitempty"`
	MaxCapacity *int   `json:"maxCapacity,omitempty"`
	SortBy      string `json:"sortBy"`
	SortOrder   string `json:"sortOrder"`
	Page        int    `json:"page"`
	PageSize    *int   `json:"pageSize,omitempty"`
}

type SearchReply struct {
	Warehouses []domain.Warehouse `json:"warehouses"`
}

type ContainerRequest struct {
	ContainerKind string `json:"containerKind"`
	ContainerID   string `json:"containerId"`
}

type AllocationRequest struct {
	ContainerRequest
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type AllocationList struct {
	Allocations []domain.AllocationView `json:"allocations"`
}

type Empty struct{}

type WarehouseServer interface {
	CreateWarehouse(ctx context.Context, req *WarehouseRequest) (*domain.Warehouse, error)
	ReplaceWarehouse(ctx context.Context, req *ReplaceWarehouseRequest) (*domain.Warehouse, error)
	ArchiveWarehouse(ctx context.Context, req *WarehouseCodeRequest) (*domain.Warehouse, error)
	GetWarehouse(ctx context.Context, req *WarehouseCodeRequest) (*domain.Warehouse, error)
	SearchWarehouses(ctx context.Context, req *SearchRequest) (*SearchReply, error)
}

type AllocationServer interface {
	UpsertAllocation(ctx context.Context, req *AllocationRequest) (*domain.AllocationView, error)
	RemoveAllocation(ctx context.Context, req *AllocationRequest) (*Empty, error)
	ListAllocations(ctx context.Context, req *ContainerRequest) (*AllocationList, error)
}

var WarehouseServiceDesc = grpc.ServiceDesc{
	ServiceName: "fulfilment.WarehouseService",
	HandlerType: (*WarehouseServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("fulfilment.WarehouseService", "Create", WarehouseServer.CreateWarehouse),
		unary("fulfilment.WarehouseService", "Replace", WarehouseServer.ReplaceWarehouse),
		unary("fulfilment.WarehouseService", "Archive", WarehouseServer.ArchiveWarehouse),
		unary("fulfilment.WarehouseService", "Get", WarehouseServer.GetWarehouse),
		unary("fulfilment.WarehouseService", "Search", WarehouseServer.SearchWarehouses),
	},
}

var AllocationServiceDesc = grpc.ServiceDesc{
	ServiceName: "fulfilment.AllocationService",
	HandlerType: (*AllocationServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("fulfilment.AllocationService", "Upsert", AllocationServer.UpsertAllocation),
		unary("fulfilment.AllocationService", "Remove", AllocationServer.RemoveAllocation),
		unary("fulfilment.AllocationService", "List", AllocationServer.ListAllocations),
	},
}

// unary adapts a typed server method to a grpc.MethodDesc.
func unary[S, Req, Resp any](serviceName, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			})
		},
	}
}

type GRPCHandler struct {
	warehouses *service.WarehouseService
	ledger     *service.AllocationService
	logger     *zap.Logger
}

func NewGRPCHandler(warehouses *service.WarehouseService, ledger *service.AllocationService, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{warehouses: warehouses, ledger: ledger, logger: logger}
}

// Register adds both fulfilment services to s.
func (h *GRPCHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&WarehouseServiceDesc, h)
	s.RegisterService(&AllocationServiceDesc, h)
}

func (h *GRPCHandler) CreateWarehouse(ctx context.Context, req *WarehouseRequest) (*domain.Warehouse, error) {
	warehouse, err := h.warehouses.Create(ctx, req.spec(req.BusinessUnitCode))
	if err != nil {
		return nil, h.statusError(err)
	}
	return warehouse, nil
}

func (h *GRPCHandler) ReplaceWarehouse(ctx context.Context, req *ReplaceWarehouseRequest) (*domain.Warehouse, error) {
	warehouse, err := h.warehouses.Replace(ctx, req.spec(req.BusinessUnitCode), req.ExpectedVersion)
	if err != nil {
		return nil, h.statusError(err)
	}
	return warehouse, nil
}

func (h *GRPCHandler) ArchiveWarehouse(ctx context.Context, req *WarehouseCodeRequest) (*domain.Warehouse, error) {
	warehouse, err := h.warehouses.Archive(ctx, req.BusinessUnitCode, req.ExpectedVersion)
	if err != nil {
		return nil, h.statusError(err)
	}
	return warehouse, nil
}

func (h *GRPCHandler) GetWarehouse(ctx context.Context, req *WarehouseCodeRequest) (*domain.Warehouse, error) {
	warehouse, err := h.warehouses.Get(ctx, req.BusinessUnitCode)
	if err != nil {
		return nil, h.statusError(err)
	}
	return warehouse, nil
}

func (h *GRPCHandler) SearchWarehouses(ctx context.Context, req *SearchRequest) (*SearchReply, error) {
	params := service.SearchParams{
		Location:    req.Location,
		MinCapacity: req.MinCapacity,
		MaxCapacity: req.MaxCapacity,
		SortBy:      req.SortBy,
		SortOrder:   req.SortOrder,
		Page:        req.Page,
		PageSize:    domain.DefaultPageSize,
	}
	if req.PageSize != nil {
		params.PageSize = *req.PageSize
	}

	warehouses, err := h.warehouses.Search(ctx, params)
	if err != nil {
		return nil, h.statusError(err)
	}
	return &SearchReply{Warehouses: warehouses}, nil
}

func (h *GRPCHandler) UpsertAllocation(ctx context.Context, req *AllocationRequest) (*domain.AllocationView, error) {
	ref, err := req.ref()
	if err != nil {
		return nil, err
	}
	view, err := h.ledger.Upsert(ctx, ref, req.ProductID, req.Quantity)
	if err != nil {
		return nil, h.statusError(err)
	}
	return &view, nil
}

func (h *GRPCHandler) RemoveAllocation(ctx context.Context, req *AllocationRequest) (*Empty, error) {
	ref, err := req.ref()
	if err != nil {
		return nil, err
	}
	if err := h.ledger.Remove(ctx, ref, req.ProductID); err != nil {
		return nil, h.statusError(err)
	}
	return &Empty{}, nil
}

func (h *GRPCHandler) ListAllocations(ctx context.Context, req *ContainerRequest) (*AllocationList, error) {
	ref, err := req.ref()
	if err != nil {
		return nil, err
	}
	views, err := h.ledger.List(ctx, ref)
	if err != nil {
		return nil, h.statusError(err)
	}
	return &AllocationList{Allocations: views}, nil
}

func (c ContainerRequest) ref() (domain.ContainerRef, error) {
	switch kind := domain.ContainerKind(c.ContainerKind); kind {
	case domain.ContainerStore, domain.ContainerWarehouse:
		return domain.ContainerRef{Kind: kind, Key: c.ContainerID}, nil
	default:
		return domain.ContainerRef{}, status.Errorf(codes.InvalidArgument,
			"containerKind must be either 'store' or 'warehouse', got %q", c.ContainerKind)
	}
}

// CodeFor maps an error kind to its gRPC status code.
func CodeFor(err error) codes.Code {
	switch kind := domain.KindOf(err); {
	case kind == nil:
		return codes.Internal
	case errors.Is(kind, domain.ErrNotFound), errors.Is(kind, domain.ErrAllocationNotFound):
		return codes.NotFound
	case errors.Is(kind, domain.ErrConcurrentModification):
		return codes.Aborted
	case errors.Is(kind, domain.ErrDuplicateCode), errors.Is(kind, domain.ErrDuplicateName):
		return codes.AlreadyExists
	case errors.Is(kind, domain.ErrInsufficientStock),
		errors.Is(kind, domain.ErrCapacityExceeded),
		errors.Is(kind, domain.ErrContainerArchived),
		errors.Is(kind, domain.ErrAlreadyArchived):
		return codes.FailedPrecondition
	default:
		return codes.InvalidArgument
	}
}

func (h *GRPCHandler) statusError(err error) error {
	code := CodeFor(err)
	if code == codes.Internal {
		h.logger.Error("rpc failed", zap.Error(err))
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}

// UnaryLoggingInterceptor logs every call with its status code.
func UnaryLoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("grpc request",
			zap.String("method", info.FullMethod),
			zap.Stringer("code", status.Code(err)),
			zap.Duration("elapsed", time.Since(start)),
		)
		return resp, err
	}
}
