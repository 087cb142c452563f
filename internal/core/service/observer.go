package service

import (
	"go.uber.org/zap"

	"github.com/rl1809/fulfilment/internal/core/domain"
	"github.com/rl1809/fulfilment/internal/port"
)

// Operation names reported to metrics and logs.
const (
	OpAllocationUpsert = "allocation.upsert"
	OpAllocationRemove = "allocation.remove"
	OpWarehouseCreate  = "warehouse.create"
	OpWarehouseReplace = "warehouse.replace"
	OpWarehouseArchive = "warehouse.archive"
	OpWarehouseSearch  = "warehouse.search"
	OpProductCreate    = "product.create"
	OpProductUpdate    = "product.update"
	OpProductDelete    = "product.delete"
	OpStoreCreate      = "store.create"
	OpStoreUpdate      = "store.update"
	OpStoreDelete      = "store.delete"
)

type nopMetrics struct{}

func (nopMetrics) RecordSuccess(string) {}
func (nopMetrics) RecordFailure(string, error) {}

// observer records the outcome of a service operation.
type observer struct {
	metrics port.Metrics
	logger  *zap.Logger
}

func newObserver(metrics port.Metrics, logger *zap.Logger) observer {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return observer{metrics: metrics, logger: logger}
}

func (o observer) done(op string, err error, fields ...zap.Field) {
	if err == nil {
		o.metrics.RecordSuccess(op)
		o.logger.Info(op, fields...)
		return
	}
	o.metrics.RecordFailure(op, err)
	fields = append(fields, zap.Error(err))
	if domain.KindOf(err) != nil {
		o.logger.Debug(op+" rejected", fields...)
		return
	}
	o.logger.Error(op+" failed", fields...)
}
