package domain

import (
	"fmt"
	"strconv"
)

// ContainerKind distinguishes the two container variants that can hold allocations.
type ContainerKind string

const (
	ContainerStore     ContainerKind = "store"
	ContainerWarehouse ContainerKind = "warehouse"
)

// ContainerRef addresses a container. Stores are keyed by their numeric id,
// warehouses by their business unit code.
type ContainerRef struct {
	Kind ContainerKind
	Key  string
}

func StoreRef(id int64) ContainerRef {
	return ContainerRef{Kind: ContainerStore, Key: strconv.FormatInt(id, 10)}
}

func WarehouseRef(businessUnitCode string) ContainerRef {
	return ContainerRef{Kind: ContainerWarehouse, Key: businessUnitCode}
}

// StoreID parses the key of a store reference.
func (r ContainerRef) StoreID() (int64, error) {
	if r.Kind != ContainerStore {
		return 0, fmt.Errorf("container %s is not a store", r)
	}
	id, err := strconv.ParseInt(r.Key, 10, 64)
	if err != nil {
		return 0, Errorf(ErrNotFound, "store %q does not exist", r.Key)
	}
	return id, nil
}

func (r ContainerRef) String() string {
	return string(r.Kind) + ":" + r.Key
}
