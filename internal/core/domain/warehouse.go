package domain

import "time"

// WarehouseState is the lifecycle state of a warehouse. Archived is terminal.
type WarehouseState string

const (
	WarehouseActive   WarehouseState = "active"
	WarehouseArchived WarehouseState = "archived"
)

// Warehouse is a capacity-bounded container sited at a location.
type Warehouse struct {
	ID               int64      `db:"id" json:"id"`
	BusinessUnitCode string     `db:"business_unit_code" json:"businessUnitCode"`
	Location         string     `db:"location" json:"location"`
	Capacity         int        `db:"capacity" json:"capacity"`
	Occupancy        int        `db:"occupancy" json:"stock"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	ArchivedAt       *time.Time `db:"archived_at" json:"archivedAt,omitempty"`
	Version          int64      `db:"version" json:"version"` // optimistic locking
}

func (w Warehouse) Ref() ContainerRef { return WarehouseRef(w.BusinessUnitCode) }

func (w Warehouse) IsArchived() bool { return w.ArchivedAt != nil }

func (w Warehouse) State() WarehouseState {
	if w.IsArchived() {
		return WarehouseArchived
	}
	return WarehouseActive
}

// WarehouseSpec is the mutable part of a warehouse supplied on create and replace.
type WarehouseSpec struct {
	BusinessUnitCode string
	Location         string
	Capacity         int
	Stock            int
}
