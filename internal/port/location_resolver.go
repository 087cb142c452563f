package port

import (
	"context"

	"github.com/rl1809/fulfilment/internal/core/domain"
)

type LocationResolver interface {
	// Resolve returns the location's capacity bounds, or nil if it is unknown
	Resolve(ctx context.Context, identifier string) (*domain.Location, error)
}
