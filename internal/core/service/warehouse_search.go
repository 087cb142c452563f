package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/fulfilment/internal/core/domain"
)

// SearchParams is an unvalidated warehouse search request. Empty SortBy and
// SortOrder default to createdAt ascending.
type SearchParams struct {
	Location    string
	MinCapacity *int
	MaxCapacity *int
	SortBy      string
	SortOrder   string
	Page        int
	PageSize    int
}

// Search lists active warehouses matching params. Archived warehouses are
// never returned.
func (s *WarehouseService) Search(ctx context.Context, params SearchParams) ([]domain.Warehouse, error) {
	query, err := params.Query()
	if err != nil {
		s.done(OpWarehouseSearch, err)
		return nil, err
	}

	warehouses, err := s.db.SearchWarehouses(ctx, query)
	if err != nil {
		err = fmt.Errorf("search warehouses: %w", err)
		s.done(OpWarehouseSearch, err)
		return nil, err
	}

	s.logger.Debug(OpWarehouseSearch,
		zap.String("sort_by", string(query.SortBy)),
		zap.String("sort_order", string(query.SortOrder)),
		zap.Int("page", query.Page),
		zap.Int("results", len(warehouses)),
	)
	if warehouses == nil {
		warehouses = []domain.Warehouse{}
	}
	return warehouses, nil
}

// Query validates the params and builds the repository query.
func (p SearchParams) Query() (domain.WarehouseQuery, error) {
	query := domain.WarehouseQuery{
		SortBy:    domain.SortField(p.SortBy),
		SortOrder: domain.SortOrder(p.SortOrder),
		Page:      p.Page,
		PageSize:  p.PageSize,
	}
	if query.SortBy == "" {
		query.SortBy = domain.SortByCreatedAt
	}
	if query.SortOrder == "" {
		query.SortOrder = domain.SortAsc
	}

	if query.SortBy != domain.SortByCreatedAt && query.SortBy != domain.SortByCapacity {
		return query, domain.Errorf(domain.ErrInvalidSort, "sortBy must be either 'createdAt' or 'capacity', got %q", p.SortBy)
	}
	if query.SortOrder != domain.SortAsc && query.SortOrder != domain.SortDesc {
		return query, domain.Errorf(domain.ErrInvalidSort, "sortOrder must be either 'asc' or 'desc', got %q", p.SortOrder)
	}
	if query.Page < 0 {
		return query, domain.Errorf(domain.ErrInvalidPage, "page must be >= 0, got %d", p.Page)
	}
	if query.PageSize < 1 || query.PageSize > domain.MaxPageSize {
		return query, domain.Errorf(domain.ErrInvalidPageSize, "pageSize must be between 1 and %d, got %d", domain.MaxPageSize, p.PageSize)
	}
	if p.MinCapacity != nil && *p.MinCapacity < 0 {
		return query, domain.Errorf(domain.ErrInvalidRange, "minCapacity must be >= 0, got %d", *p.MinCapacity)
	}
	if p.MaxCapacity != nil && *p.MaxCapacity < 0 {
		return query, domain.Errorf(domain.ErrInvalidRange, "maxCapacity must be >= 0, got %d", *p.MaxCapacity)
	}
	if p.MinCapacity != nil && p.MaxCapacity != nil && *p.MinCapacity > *p.MaxCapacity {
		return query, domain.Errorf(domain.ErrInvalidRange,
			"minCapacity (%d) must be <= maxCapacity (%d)", *p.MinCapacity, *p.MaxCapacity)
	}

	if p.Location != "" {
		location := p.Location
		query.Location = &location
	}
	query.MinCapacity = p.MinCapacity
	query.MaxCapacity = p.MaxCapacity
	return query, nil
}
