package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalogue item with a finite stock pool. AvailableStock holds
// only the unallocated units; allocated units live in Allocation rows.
type Product struct {
	ID             int64           `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Description    string          `db:"description" json:"description"`
	Price          decimal.Decimal `db:"price" json:"price"`
	AvailableStock int             `db:"available_stock" json:"stock"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
}

// Validate checks the scalar invariants of a product.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return Errorf(ErrInvalidProduct, "product name must not be blank")
	}
	if p.Price.IsNegative() {
		return Errorf(ErrInvalidProduct, "price must not be negative, got %s", p.Price)
	}
	if p.AvailableStock < 0 {
		return Errorf(ErrInvalidProduct, "stock must not be negative, got %d", p.AvailableStock)
	}
	return nil
}
