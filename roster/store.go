package roster

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// DefaultName is used when a peer registers without a display name.
const DefaultName = "Anonymous"

// Owner identifies the transport connection a record is bound to. The
// store never writes to the connection; it compares owner identity on
// removal and reports the transport origin for location defaulting.
type Owner interface {
	RemoteAddr() string
}

// Record is one registered peer.
type Record struct {
	ID       string
	Name     string
	Location string

	// ConnectedAt is captured at registration and immutable until the id
	// is re-registered, which starts a fresh session.
	ConnectedAt time.Time

	// LastSeen advances on every accepted heartbeat, never backwards.
	LastSeen time.Time

	// Owner routes outbound messages and keys removal on disconnect.
	// Never serialized to peers.
	Owner Owner
}

// Store is the hub-owned peer record store. All mutations happen on the
// hub's event loop; the mutex exists so the HTTP query path can read
// concurrently.
type Store struct {
	mu      sync.RWMutex
	clock   clock.Clock
	records map[string]*Record
}

// NewStore creates an empty store. A nil clock uses wall time.
func NewStore(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.New()
	}
	return &Store{
		clock:   clk,
		records: make(map[string]*Record),
	}
}

// Upsert creates or overwrites the record for id and binds it to owner.
// An empty id gets a generated one; an empty name defaults to DefaultName;
// an empty location defaults to the owner's transport origin. Both create
// and overwrite start a fresh session: ConnectedAt = LastSeen = now.
//
// The second return value is the previous owner when the id was already
// registered from a different connection, nil otherwise. The caller
// decides what to do with the displaced connection.
func (s *Store) Upsert(id, name, location string, owner Owner) (*Record, Owner) {
	if id == "" {
		id = uuid.NewString()
	}
	if name == "" {
		name = DefaultName
	}
	if location == "" && owner != nil {
		location = owner.RemoteAddr()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var displaced Owner
	if prev, ok := s.records[id]; ok && prev.Owner != owner {
		displaced = prev.Owner
	}

	now := s.clock.Now()
	rec := &Record{
		ID:          id,
		Name:        name,
		Location:    location,
		ConnectedAt: now,
		LastSeen:    now,
		Owner:       owner,
	}
	s.records[id] = rec

	return rec, displaced
}

// Touch marks the record for id as seen now. Returns false when no record
// exists; a heartbeat for an unknown id is a no-op, not an error.
func (s *Store) Touch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return false
	}
	rec.LastSeen = s.clock.Now()
	return true
}

// RemoveByOwner removes the record bound to owner, if any, and returns it.
// At most one record is bound to a given connection.
func (s *Store) RemoveByOwner(owner Owner) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.records {
		if rec.Owner == owner {
			delete(s.records, id)
			return rec
		}
	}
	return nil
}

// IDByOwner returns the id of the record bound to owner, if any.
func (s *Store) IDByOwner(owner Owner) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, rec := range s.records {
		if rec.Owner == owner {
			return id, true
		}
	}
	return "", false
}

// RemoveExpired removes and returns every record idle for strictly longer
// than timeout.
func (s *Store) RemoveExpired(timeout time.Duration) []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var expired []*Record
	for id, rec := range s.records {
		if now.Sub(rec.LastSeen) > timeout {
			delete(s.records, id)
			expired = append(expired, rec)
		}
	}
	return expired
}

// Snapshot returns copies of all current records, ordered by registration
// time then id so repeated roster views are stable for observers.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ConnectedAt.Before(out[j].ConnectedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of live records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Now exposes the store's clock, so callers computing uptimes use the
// same time source the records were stamped with.
func (s *Store) Now() time.Time {
	return s.clock.Now()
}
