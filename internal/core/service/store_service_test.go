package service

import (
	"errors"
	"testing"

	"github.com/rl1809/fulfilment/internal/core/domain"
)

func TestCreateStore_PublishesEvent(t *testing.T) {
	f := newFixture(t)

	s, err := f.stores.Create(f.ctx, "TONSTAD", 10)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if s.Occupancy != 10 {
		t.Errorf("expected manual occupancy 10, got %d", s.Occupancy)
	}

	if len(f.publisher.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.publisher.events))
	}
	event := f.publisher.events[0]
	if event.Type != domain.StoreCreated || event.Store.ID != s.ID || event.ID == "" {
		t.Errorf("unexpected event %+v", event)
	}
}

func TestCreateStore_Rejected(t *testing.T) {
	f := newFixture(t)
	f.store("TAKEN", 0)

	tests := []struct {
		name      string
		storeName string
		occupancy int
		want      error
	}{
		{"blank name", "  ", 0, domain.ErrInvalidStore},
		{"negative occupancy", "A", -1, domain.ErrInvalidStore},
		{"duplicate name", "TAKEN", 0, domain.ErrDuplicateName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.stores.Create(f.ctx, tt.storeName, tt.occupancy)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got: %v", tt.want, err)
			}
		})
	}

	// only the seeded store was published
	if len(f.publisher.events) != 1 {
		t.Errorf("expected no events for rejected creates, got %d", len(f.publisher.events))
	}
}

func TestUpdateStore_ManualMode(t *testing.T) {
	f := newFixture(t)
	s := f.store("S", 5)

	updated, err := f.stores.Update(f.ctx, s.ID, "S2", 42)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != "S2" || updated.Occupancy != 42 {
		t.Errorf("expected S2 with 42, got %+v", updated)
	}
}

func TestUpdateStore_DerivedModeIgnoresSuppliedOccupancy(t *testing.T) {
	f := newFixture(t)
	s := f.store("S", 0)
	p := f.product("P", 10)
	f.ledger.Upsert(f.ctx, s.Ref(), p.ID, 4)

	updated, err := f.stores.Update(f.ctx, s.ID, "S", 999)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Occupancy != 4 {
		t.Errorf("expected derived occupancy 4, got %d", updated.Occupancy)
	}
}

func TestPatchStore_RenamesAndResyncs(t *testing.T) {
	f := newFixture(t)
	s := f.store("S", 7)

	patched, err := f.stores.Patch(f.ctx, s.ID, "Renamed")
	if err != nil {
		t.Fatalf("patch failed: %v", err)
	}
	if patched.Name != "Renamed" || patched.Occupancy != 7 {
		t.Errorf("expected manual occupancy kept, got %+v", patched)
	}

	p := f.product("P", 10)
	f.ledger.Upsert(f.ctx, s.Ref(), p.ID, 2)
	patched, err = f.stores.Patch(f.ctx, s.ID, "Again")
	if err != nil {
		t.Fatalf("patch failed: %v", err)
	}
	if patched.Occupancy != 2 {
		t.Errorf("expected derived occupancy 2, got %d", patched.Occupancy)
	}
}

func TestUpdateStore_Errors(t *testing.T) {
	f := newFixture(t)
	s := f.store("S", 0)
	f.store("OTHER", 0)

	if _, err := f.stores.Update(f.ctx, 999, "X", 0); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
	if _, err := f.stores.Update(f.ctx, s.ID, "OTHER", 0); !errors.Is(err, domain.ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got: %v", err)
	}
	if _, err := f.stores.Patch(f.ctx, s.ID, ""); !errors.Is(err, domain.ErrInvalidStore) {
		t.Errorf("expected ErrInvalidStore, got: %v", err)
	}
	if _, err := f.stores.Update(f.ctx, s.ID, "S", -4); !errors.Is(err, domain.ErrInvalidStore) {
		t.Errorf("expected ErrInvalidStore for negative occupancy, got: %v", err)
	}
}

func TestDeleteStore_ReturnsStockToPools(t *testing.T) {
	f := newFixture(t)
	s := f.store("S", 0)
	a := f.product("A", 10)
	b := f.product("B", 10)
	f.ledger.Upsert(f.ctx, s.Ref(), a.ID, 3)
	f.ledger.Upsert(f.ctx, s.Ref(), b.ID, 7)

	if err := f.stores.Delete(f.ctx, s.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	// Verify
	if got := f.pool(a.ID); got != 10 {
		t.Errorf("expected pool A 10, got %d", got)
	}
	if got := f.pool(b.ID); got != 10 {
		t.Errorf("expected pool B 10, got %d", got)
	}
	if _, err := f.stores.Get(f.ctx, s.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected store gone, got: %v", err)
	}

	want := []domain.StoreEventType{domain.StoreCreated, domain.StoreDeleted}
	got := f.publisher.types()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected events %v, got %v", want, got)
	}

	if err := f.stores.Delete(f.ctx, s.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got: %v", err)
	}
}
