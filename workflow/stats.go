package workflow

import "sync"

// Store holds the statistics computed during a run, keyed by statistic name.
// It is append-only per run and owned exclusively by the Workflow: operators
// receive a read view and return computed deltas which the Workflow merges.
type Store struct {
	lock   sync.Mutex
	values map[string]interface{}
}

func newStore() *Store {
	return &Store{values: make(map[string]interface{})}
}

// Get returns the named statistic, if present
func (s *Store) Get(name string) (interface{}, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	value, ok := s.values[name]
	return value, ok
}

// Merge records a batch of computed statistics
func (s *Store) Merge(stats map[string]interface{}) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for name, value := range stats {
		s.values[name] = value
	}
}

// Len returns the number of recorded statistics
func (s *Store) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.values)
}

// Clear removes all recorded statistics
func (s *Store) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.values = make(map[string]interface{})
}

// Export returns a copy of all recorded statistics
func (s *Store) Export() map[string]interface{} {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make(map[string]interface{}, len(s.values))
	for name, value := range s.values {
		out[name] = value
	}
	return out
}

// Import replaces the store contents with a snapshot
func (s *Store) Import(stats map[string]interface{}) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.values = make(map[string]interface{}, len(stats))
	for name, value := range stats {
		s.values[name] = value
	}
}
