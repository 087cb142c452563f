package domain

// SortField is a warehouse search sort key.
type SortField string

const (
	SortByCreatedAt SortField = "createdAt"
	SortByCapacity  SortField = "capacity"
)

// SortOrder is a warehouse search direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

const MaxPageSize = 100

// WarehouseQuery is a validated search over active warehouses. Nil filters
// impose no constraint.
type WarehouseQuery struct {
	Location    *string
	MinCapacity *int
	MaxCapacity *int
	SortBy      SortField
	SortOrder   SortOrder
	Page        int
	PageSize    int
}

func (q WarehouseQuery) Offset() int { return q.Page * q.PageSize }

// DefaultPageSize applies when a caller does not ask for a page size.
const DefaultPageSize = 10
