package legacy

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/rl1809/fulfilment/internal/core/domain"
)

type mockGateway struct {
	mu     sync.Mutex
	events []domain.StoreEvent
	fail   bool
	calls  atomic.Int32
}

func (m *mockGateway) Sync(ctx context.Context, event domain.StoreEvent) error {
	m.calls.Add(1)
	if m.fail {
		return errors.New("legacy system down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func TestSyncWorker_DeliversQueuedEventsBeforeClose(t *testing.T) {
	gateway := &mockGateway{}
	worker := NewSyncWorker(gateway, 100, zap.NewNop())
	worker.Start(4)

	for i := 0; i < 50; i++ {
		worker.Publish(domain.StoreEvent{ID: "e", Type: domain.StoreCreated})
	}
	worker.Close()

	// Verify
	if len(gateway.events) != 50 {
		t.Errorf("expected 50 synced events, got %d", len(gateway.events))
	}
}

func TestSyncWorker_DropsAfterClose(t *testing.T) {
	gateway := &mockGateway{}
	worker := NewSyncWorker(gateway, 10, zap.NewNop())
	worker.Start(1)
	worker.Close()

	worker.Publish(domain.StoreEvent{ID: "late"})

	if gateway.calls.Load() != 0 {
		t.Errorf("expected no sync after close, got %d", gateway.calls.Load())
	}
}

func TestSyncWorker_DropsWhenQueueFull(t *testing.T) {
	gateway := &mockGateway{}
	worker := NewSyncWorker(gateway, 2, zap.NewNop())

	// no workers yet, so the queue fills up
	for i := 0; i < 5; i++ {
		worker.Publish(domain.StoreEvent{ID: "e"})
	}
	worker.Start(1)
	worker.Close()

	if len(gateway.events) != 2 {
		t.Errorf("expected 2 synced events, got %d", len(gateway.events))
	}
}

func TestSyncWorker_GatewayFailureIsSwallowed(t *testing.T) {
	gateway := &mockGateway{fail: true}
	worker := NewSyncWorker(gateway, 10, zap.NewNop())
	worker.Start(2)

	worker.Publish(domain.StoreEvent{ID: "a"})
	worker.Publish(domain.StoreEvent{ID: "b"})
	worker.Close()

	if gateway.calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", gateway.calls.Load())
	}
}

func TestFileGateway_WritesAndRemovesRecord(t *testing.T) {
	dir := t.TempDir()
	gateway := NewFileGateway(dir, zap.NewNop())

	event := domain.StoreEvent{
		ID:    "evt-1",
		Type:  domain.StoreUpdated,
		Store: domain.Store{ID: 1, Name: "TONSTAD/North", Occupancy: 10},
	}
	if err := gateway.Sync(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected record to be removed, found %d files", len(entries))
	}
}

func TestFileGateway_CancelledContext(t *testing.T) {
	gateway := NewFileGateway(t.TempDir(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := gateway.Sync(ctx, domain.StoreEvent{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRecord(t *testing.T) {
	got := Record(domain.StoreEvent{
		Type:  domain.StoreCreated,
		Store: domain.Store{Name: "KALLAX", Occupancy: 4},
	})
	want := "Store created. [ name =KALLAX ] [ items on stock =4]"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
