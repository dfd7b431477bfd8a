package roster

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

type fakeOwner struct {
	addr string
}

func (o *fakeOwner) RemoteAddr() string { return o.addr }

// --- Unit Tests ---

func TestStore_UpsertDefaults(t *testing.T) {
	store := NewStore(clock.NewMock())
	owner := &fakeOwner{addr: "10.0.0.1:55123"}

	rec, displaced := store.Upsert("", "", "", owner)
	if displaced != nil {
		t.Errorf("displaced = %v, want nil", displaced)
	}
	if rec.ID == "" {
		t.Error("ID not generated")
	}
	if rec.Name != DefaultName {
		t.Errorf("Name = %q, want %q", rec.Name, DefaultName)
	}
	if rec.Location != "10.0.0.1:55123" {
		t.Errorf("Location = %q, want transport origin", rec.Location)
	}
	if !rec.LastSeen.Equal(rec.ConnectedAt) {
		t.Error("LastSeen != ConnectedAt on create")
	}
}

func TestStore_UpsertGeneratesUniqueIDs(t *testing.T) {
	store := NewStore(clock.NewMock())

	a, _ := store.Upsert("", "Alice", "NYC", &fakeOwner{addr: "a"})
	b, _ := store.Upsert("", "Bob", "LA", &fakeOwner{addr: "b"})
	if a.ID == b.ID {
		t.Errorf("generated ids collide: %q", a.ID)
	}
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
}

func TestStore_UpsertSameIDReplaces(t *testing.T) {
	mock := clock.NewMock()
	store := NewStore(mock)
	first := &fakeOwner{addr: "a"}
	second := &fakeOwner{addr: "b"}

	store.Upsert("p1", "Alice", "NYC", first)
	mock.Add(time.Minute)
	rec, displaced := store.Upsert("p1", "Alicia", "SF", second)

	if displaced != first {
		t.Errorf("displaced = %v, want first owner", displaced)
	}
	if rec.Name != "Alicia" || rec.Location != "SF" {
		t.Errorf("record not updated: %+v", rec)
	}
	if !rec.ConnectedAt.Equal(mock.Now()) {
		t.Error("ConnectedAt not reset on overwrite")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want exactly one record for the id", store.Len())
	}
}

func TestStore_UpsertSameOwnerNotDisplaced(t *testing.T) {
	store := NewStore(clock.NewMock())
	owner := &fakeOwner{addr: "a"}

	store.Upsert("p1", "Alice", "NYC", owner)
	_, displaced := store.Upsert("p1", "Alice", "NYC", owner)
	if displaced != nil {
		t.Errorf("re-register on same connection displaced = %v, want nil", displaced)
	}
}

func TestStore_Touch(t *testing.T) {
	mock := clock.NewMock()
	store := NewStore(mock)

	rec, _ := store.Upsert("p1", "Alice", "NYC", &fakeOwner{addr: "a"})
	connectedAt := rec.ConnectedAt

	mock.Add(3 * time.Second)
	if !store.Touch("p1") {
		t.Fatal("Touch() = false for live record")
	}

	snap := store.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Snapshot() len = %d", len(snap))
	}
	if got := snap[0].LastSeen.Sub(connectedAt); got != 3*time.Second {
		t.Errorf("LastSeen advanced by %v, want 3s", got)
	}
	if !snap[0].ConnectedAt.Equal(connectedAt) {
		t.Error("Touch must not move ConnectedAt")
	}
}

func TestStore_TouchUnknownID(t *testing.T) {
	store := NewStore(clock.NewMock())
	if store.Touch("nonexistent") {
		t.Error("Touch() = true for unknown id")
	}
}

func TestStore_RemoveByOwner(t *testing.T) {
	store := NewStore(clock.NewMock())
	a := &fakeOwner{addr: "a"}
	b := &fakeOwner{addr: "b"}

	store.Upsert("p1", "Alice", "NYC", a)
	store.Upsert("p2", "Bob", "LA", b)

	rec := store.RemoveByOwner(a)
	if rec == nil || rec.ID != "p1" {
		t.Fatalf("RemoveByOwner() = %+v, want p1", rec)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
	if store.RemoveByOwner(a) != nil {
		t.Error("second removal for same owner returned a record")
	}
}

func TestStore_IDByOwner(t *testing.T) {
	store := NewStore(clock.NewMock())
	a := &fakeOwner{addr: "a"}

	store.Upsert("p1", "Alice", "NYC", a)

	id, ok := store.IDByOwner(a)
	if !ok || id != "p1" {
		t.Errorf("IDByOwner() = %q, %v, want p1, true", id, ok)
	}
	if _, ok := store.IDByOwner(&fakeOwner{addr: "b"}); ok {
		t.Error("IDByOwner() = true for unbound connection")
	}
}

func TestStore_RemoveExpiredBoundary(t *testing.T) {
	timeout := 30 * time.Second
	mock := clock.NewMock()
	store := NewStore(mock)

	store.Upsert("fresh", "", "", &fakeOwner{addr: "a"})
	store.Upsert("stale", "", "", &fakeOwner{addr: "b"})

	// fresh heartbeats at T+2ms, stale never does.
	mock.Add(2 * time.Millisecond)
	store.Touch("fresh")

	// At T + timeout + 1ms: stale is idle timeout+1ms, fresh timeout-1ms.
	mock.Add(timeout - time.Millisecond)

	expired := store.RemoveExpired(timeout)
	if len(expired) != 1 || expired[0].ID != "stale" {
		t.Fatalf("RemoveExpired() = %+v, want only stale", expired)
	}

	snap := store.Snapshot()
	if len(snap) != 1 || snap[0].ID != "fresh" {
		t.Errorf("surviving records = %+v, want only fresh", snap)
	}
}

func TestStore_RemoveExpiredExactTimeoutRetained(t *testing.T) {
	timeout := 30 * time.Second
	mock := clock.NewMock()
	store := NewStore(mock)

	store.Upsert("p1", "", "", &fakeOwner{addr: "a"})
	mock.Add(timeout)

	// Idle for exactly the timeout is not strictly greater.
	if expired := store.RemoveExpired(timeout); len(expired) != 0 {
		t.Errorf("RemoveExpired() = %+v, want none at exact boundary", expired)
	}
}

func TestStore_SnapshotOrdering(t *testing.T) {
	mock := clock.NewMock()
	store := NewStore(mock)

	store.Upsert("z-first", "", "", &fakeOwner{addr: "a"})
	mock.Add(time.Second)
	store.Upsert("a-second", "", "", &fakeOwner{addr: "b"})

	snap := store.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() len = %d", len(snap))
	}
	if snap[0].ID != "z-first" || snap[1].ID != "a-second" {
		t.Errorf("order = [%s %s], want registration order", snap[0].ID, snap[1].ID)
	}
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	store := NewStore(clock.NewMock())
	store.Upsert("p1", "Alice", "NYC", &fakeOwner{addr: "a"})

	snap := store.Snapshot()
	snap[0].Name = "mutated"

	if store.Snapshot()[0].Name != "Alice" {
		t.Error("Snapshot exposed internal record")
	}
}
