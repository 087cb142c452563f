package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is; the concrete error may carry
// more context (see the typed errors below).
var (
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrCapacityExceeded       = errors.New("capacity exceeded")
	ErrAllocationNotFound     = errors.New("allocation not found")
	ErrContainerArchived      = errors.New("container archived")
	ErrDuplicateCode          = errors.New("duplicate business unit code")
	ErrInvalidLocation        = errors.New("invalid location")
	ErrCapacityOutOfRange     = errors.New("capacity out of range")
	ErrStockExceedsCapacity   = errors.New("stock exceeds capacity")
	ErrNotFound               = errors.New("not found")
	ErrAlreadyArchived        = errors.New("already archived")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrInvalidSort            = errors.New("invalid sort")
	ErrInvalidPage            = errors.New("invalid page")
	ErrInvalidPageSize        = errors.New("invalid page size")
	ErrInvalidRange           = errors.New("invalid capacity range")

	ErrInvalidProduct   = errors.New("invalid product")
	ErrInvalidStore     = errors.New("invalid store")
	ErrInvalidWarehouse = errors.New("invalid warehouse")
	ErrDuplicateName    = errors.New("duplicate name")
)

// Kinds lists every error kind in a stable order. Adapters use it to label
// failures without a type switch.
var Kinds = []error{
	ErrInvalidQuantity,
	ErrInsufficientStock,
	ErrCapacityExceeded,
	ErrAllocationNotFound,
	ErrContainerArchived,
	ErrDuplicateCode,
	ErrInvalidLocation,
	ErrCapacityOutOfRange,
	ErrStockExceedsCapacity,
	ErrNotFound,
	ErrAlreadyArchived,
	ErrConcurrentModification,
	ErrInvalidSort,
	ErrInvalidPage,
	ErrInvalidPageSize,
	ErrInvalidRange,
	ErrInvalidProduct,
	ErrInvalidStore,
	ErrInvalidWarehouse,
	ErrDuplicateName,
}

// KindOf returns the error kind err matches, or nil for infrastructure errors.
func KindOf(err error) error {
	for _, kind := range Kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// InsufficientStockError reports a pool that cannot cover a requested move.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for '%s'. Requested: %d, Available: %d",
		e.ProductName, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// CapacityExceededError reports a warehouse whose recomputed occupancy is over capacity.
type CapacityExceededError struct {
	BusinessUnitCode string
	Occupancy        int
	Capacity         int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("total product quantity (%d) exceeds capacity (%d) of warehouse %q",
		e.Occupancy, e.Capacity, e.BusinessUnitCode)
}

func (e *CapacityExceededError) Unwrap() error { return ErrCapacityExceeded }

// CapacityOutOfRangeError reports a warehouse capacity over its location's limit.
type CapacityOutOfRangeError struct {
	Location    string
	Capacity    int
	MaxCapacity int
}

func (e *CapacityOutOfRangeError) Error() string {
	return fmt.Sprintf("capacity %d exceeds location max capacity %d for %q",
		e.Capacity, e.MaxCapacity, e.Location)
}

func (e *CapacityOutOfRangeError) Unwrap() error { return ErrCapacityOutOfRange }

// StockExceedsCapacityError reports an initial or replacement stock over capacity.
type StockExceedsCapacityError struct {
	Stock    int
	Capacity int
}

func (e *StockExceedsCapacityError) Error() string {
	return fmt.Sprintf("stock %d exceeds warehouse capacity %d", e.Stock, e.Capacity)
}

func (e *StockExceedsCapacityError) Unwrap() error { return ErrStockExceedsCapacity }

// ConcurrentModificationError reports a failed version compare-and-swap.
type ConcurrentModificationError struct {
	BusinessUnitCode string
	Expected         int64
	Actual           int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("warehouse %q was modified concurrently (expected version %d, found %d)",
		e.BusinessUnitCode, e.Expected, e.Actual)
}

func (e *ConcurrentModificationError) Unwrap() error { return ErrConcurrentModification }

// Errorf builds an error of the given kind with a formatted context message.
func Errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{kind}, args...)...)
}