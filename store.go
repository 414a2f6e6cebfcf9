package flightlink

import (
	"time"
)

// Store holds the single authoritative Record. Readers and writers take the
// same lock, so every Read observes a complete prior commit.
type Store struct {
	mu      mutex
	record  Record
	updated time.Time
}

func NewStore() *Store {
	return &Store{}
}

// Read returns a deep copy of the current record.
func (s *Store) Read() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Clone()
}

// Mutate applies fn to a private copy of the record and commits it once fn
// returns. A panicking fn leaves the stored record untouched and the lock
// released. fn must not block.
func (s *Store) Mutate(fn func(r *Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.record.Clone()
	fn(&next)
	s.record = next
	s.updated = time.Now()
}

// Publish merges the known fields of r into the store.
func (s *Store) Publish(r Record) {
	s.Mutate(func(cur *Record) {
		cur.Merge(r)
	})
}

// LastUpdate is the time of the last commit, zero if nothing was written.
func (s *Store) LastUpdate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated
}
