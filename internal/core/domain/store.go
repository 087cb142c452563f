package domain

import (
	"strings"
	"time"
)

// OccupancyMode says where a store's occupancy comes from.
type OccupancyMode int

const (
	// OccupancyManual lets callers set occupancy directly. Only valid while the
	// store holds no allocations.
	OccupancyManual OccupancyMode = iota
	// OccupancyDerived recomputes occupancy from allocations and ignores supplied values.
	OccupancyDerived
)

// OccupancyModeFor returns the mode a store with allocationCount allocations is in.
func OccupancyModeFor(allocationCount int) OccupancyMode {
	if allocationCount > 0 {
		return OccupancyDerived
	}
	return OccupancyManual
}

func (m OccupancyMode) String() string {
	if m == OccupancyDerived {
		return "derived"
	}
	return "manual"
}

// Store is a retail container with unbounded capacity.
type Store struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Occupancy int       `db:"occupancy" json:"quantityProductsInStock"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

func (s Store) Ref() ContainerRef { return StoreRef(s.ID) }

func (s Store) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return Errorf(ErrInvalidStore, "store name must not be blank")
	}
	if s.Occupancy < 0 {
		return Errorf(ErrInvalidStore, "occupancy must not be negative, got %d", s.Occupancy)
	}
	return nil
}

// StoreEventType names a committed store mutation.
type StoreEventType string

const (
	StoreCreated StoreEventType = "created"
	StoreUpdated StoreEventType = "updated"
	StoreDeleted StoreEventType = "deleted"
)

// StoreEvent is emitted after a store mutation commits.
type StoreEvent struct {
	ID         string
	Type       StoreEventType
	Store      Store
	OccurredAt time.Time
}
