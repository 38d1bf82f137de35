package recon

import (
	"sort"
	"sync"
)

// RecordStore holds the two keyed record collections for one reconciliation
// run. Ingestion happens before a run starts; during a run the store is
// locked and its contents are treated as a read-only snapshot.
type RecordStore struct {
	mu       sync.RWMutex
	locked   bool
	internal map[string]InternalRecord
	external map[string]ExternalRecord
}

// NewRecordStore creates an empty record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		internal: make(map[string]InternalRecord),
		external: make(map[string]ExternalRecord),
	}
}

// AddInternal ingests a batch of internal records. Records failing basic
// validation are dropped, not errored. Returns (accepted, dropped).
// Returns ErrIngestLocked while a run is in progress.
func (s *RecordStore) AddInternal(records []InternalRecord) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return 0, 0, ErrIngestLocked
	}
	accepted, dropped := 0, 0
	for _, r := range records {
		if err := r.Validate(); err != nil {
			dropped++
			continue
		}
		s.internal[r.TransactionID] = r
		accepted++
	}
	return accepted, dropped, nil
}

// AddExternal ingests a batch of external records, mirroring AddInternal.
func (s *RecordStore) AddExternal(records []ExternalRecord) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return 0, 0, ErrIngestLocked
	}
	accepted, dropped := 0, 0
	for _, r := range records {
		if err := r.Validate(); err != nil {
			dropped++
			continue
		}
		s.external[r.ReferenceID] = r
		accepted++
	}
	return accepted, dropped, nil
}

// Lock freezes the store for the duration of a run. Ingestion calls fail
// with ErrIngestLocked until Unlock.
func (s *RecordStore) Lock() {
	s.mu.Lock()
	s.locked = true
	s.mu.Unlock()
}

// Unlock re-opens the store for ingestion.
func (s *RecordStore) Unlock() {
	s.mu.Lock()
	s.locked = false
	s.mu.Unlock()
}

// Clear drops all records, preparing the store for the next run's snapshot.
func (s *RecordStore) Clear() {
	s.mu.Lock()
	s.internal = make(map[string]InternalRecord)
	s.external = make(map[string]ExternalRecord)
	s.mu.Unlock()
}

// ClearAndUnlock drops the consumed snapshot and re-opens the store in one
// step. Records ingested after the unlock are never wiped.
func (s *RecordStore) ClearAndUnlock() {
	s.mu.Lock()
	s.internal = make(map[string]InternalRecord)
	s.external = make(map[string]ExternalRecord)
	s.locked = false
	s.mu.Unlock()
}

// InternalSnapshot returns the internal records sorted by transaction ID
// for deterministic downstream processing.
func (s *RecordStore) InternalSnapshot() []InternalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]InternalRecord, 0, len(s.internal))
	for _, r := range s.internal {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return out
}

// ExternalSnapshot returns the external records sorted by reference ID.
func (s *RecordStore) ExternalSnapshot() []ExternalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ExternalRecord, 0, len(s.external))
	for _, r := range s.external {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReferenceID < out[j].ReferenceID })
	return out
}

// Counts returns the current internal and external record counts.
func (s *RecordStore) Counts() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.internal), len(s.external)
}
