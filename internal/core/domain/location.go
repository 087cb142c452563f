package domain

// Location is read-only reference data bounding the capacity of warehouses
// sited there. MinCapacity is carried but not enforced.
type Location struct {
	Identifier  string
	MinCapacity int
	MaxCapacity int
}
