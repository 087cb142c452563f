package storage

import (
	"context"

	"github.com/rl1809/fulfilment/internal/core/domain"
)

// DefaultLocations is the built-in location reference data.
var DefaultLocations = []domain.Location{
	{Identifier: "ZWOLLE-001", MinCapacity: 1, MaxCapacity: 40},
	{Identifier: "ZWOLLE-002", MinCapacity: 2, MaxCapacity: 50},
	{Identifier: "AMSTERDAM-001", MinCapacity: 5, MaxCapacity: 100},
	{Identifier: "AMSTERDAM-002", MinCapacity: 3, MaxCapacity: 75},
	{Identifier: "TILBURG-001", MinCapacity: 1, MaxCapacity: 40},
	{Identifier: "HELMOND-001", MinCapacity: 1, MaxCapacity: 45},
	{Identifier: "EINDHOVEN-001", MinCapacity: 2, MaxCapacity: 70},
	{Identifier: "VETSBY-001", MinCapacity: 1, MaxCapacity: 90},
}

// StaticLocationResolver resolves locations from a fixed in-memory table.
type StaticLocationResolver struct {
	locations map[string]domain.Location
}

func NewStaticLocationResolver(locations []domain.Location) *StaticLocationResolver {
	index := make(map[string]domain.Location, len(locations))
	for _, location := range locations {
		index[location.Identifier] = location
	}
	return &StaticLocationResolver{locations: index}
}

func (r *StaticLocationResolver) Resolve(_ context.Context, identifier string) (*domain.Location, error) {
	location, ok := r.locations[identifier]
	if !ok {
		return nil, nil
	}
	return &location, nil
}
