package legacy

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/fulfilment/internal/core/domain"
	"github.com/rl1809/fulfilment/internal/port"
)

const syncTimeout = 5 * time.Second

// SyncWorker implements port.StoreEventPublisher. Events go onto a bounded
// queue drained by a fixed pool of workers; a full or closed queue drops the
// event with a warning instead of blocking the caller.
type SyncWorker struct {
	gateway port.LegacyStoreGateway
	logger  *zap.Logger
	queue   chan domain.StoreEvent

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewSyncWorker(gateway port.LegacyStoreGateway, queueSize int, logger *zap.Logger) *SyncWorker {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &SyncWorker{
		gateway: gateway,
		logger:  logger,
		queue:   make(chan domain.StoreEvent, queueSize),
	}
}

// Start launches the worker pool. Workers exit once Close has been called
// and the queue is drained.
func (w *SyncWorker) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			w.workerLoop(id)
		}(i)
	}
	w.logger.Info("legacy sync workers started", zap.Int("workers", workers))
}

func (w *SyncWorker) Publish(event domain.StoreEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.logger.Warn("legacy sync stopped, dropping store event", zap.String("event_id", event.ID))
		return
	}
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("legacy sync queue full, dropping store event",
			zap.String("event_id", event.ID),
			zap.Int64("store_id", event.Store.ID),
		)
	}
}

// Close stops accepting events and waits for queued ones to be synced.
func (w *SyncWorker) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *SyncWorker) workerLoop(id int) {
	for event := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)

		if err := w.gateway.Sync(ctx, event); err != nil {
			w.logger.Error("legacy sync failed",
				zap.Int("worker", id),
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)),
				zap.Int64("store_id", event.Store.ID),
				zap.Error(err),
			)
		} else {
			w.logger.Debug("legacy sync done",
				zap.Int("worker", id),
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)),
			)
		}

		cancel()
	}
}
