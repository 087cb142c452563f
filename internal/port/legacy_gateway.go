package port

import (
	"context"

	"github.com/rl1809/fulfilment/internal/core/domain"
)

type StoreEventPublisher interface {
	// Publish hands a committed store event to the legacy sync pipeline without blocking on it
	Publish(event domain.StoreEvent)
}

type LegacyStoreGateway interface {
	// Sync pushes a store event to the legacy store management system
	Sync(ctx context.Context, event domain.StoreEvent) error
}
