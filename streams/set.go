package streams

import "sync"

// Set is the client's desired subscription set. Membership is keyed by
// canonical wire name, insertion order is preserved, and all methods are
// safe for concurrent use.
type Set struct {
	mu    sync.Mutex
	index map[string]int
	order []Spec
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{index: make(map[string]int)}
}

// Add inserts specs not already present and reports how many were new.
// Re-adding an existing spec is a no-op.
func (s *Set) Add(specs ...Spec) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, spec := range specs {
		if !spec.Valid() {
			continue
		}
		if _, ok := s.index[spec.Name()]; ok {
			continue
		}
		s.index[spec.Name()] = len(s.order)
		s.order = append(s.order, spec)
		added++
	}
	return added
}

// Remove deletes specs from the set and reports how many were present.
// Removing an absent spec is a no-op.
func (s *Set) Remove(specs ...Spec) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, spec := range specs {
		idx, ok := s.index[spec.Name()]
		if !ok {
			continue
		}
		s.order = append(s.order[:idx], s.order[idx+1:]...)
		delete(s.index, spec.Name())
		for i := idx; i < len(s.order); i++ {
			s.index[s.order[i].Name()] = i
		}
		removed++
	}
	return removed
}

// Contains reports membership by canonical name.
func (s *Set) Contains(spec Spec) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[spec.Name()]
	return ok
}

// Len returns the number of subscribed streams.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Snapshot returns the current membership in insertion order. The slice
// is a copy; later mutations do not affect it.
func (s *Set) Snapshot() []Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Spec, len(s.order))
	copy(out, s.order)
	return out
}

// Names returns Snapshot as wire names.
func (s *Set) Names() []string {
	snap := s.Snapshot()
	names := make([]string, len(snap))
	for i, spec := range snap {
		names[i] = spec.Name()
	}
	return names
}
