package present

// seenSet remembers the most recently presented event ids. When the capacity
// is exceeded the oldest id is evicted.
type seenSet struct {
	capacity int
	ids      map[string]struct{}
	order    []string
}

func newSeenSet(capacity int) *seenSet {
	return &seenSet{
		capacity: capacity,
		ids:      make(map[string]struct{}, capacity),
	}
}

// Add records the id and reports whether it was already present.
func (s *seenSet) Add(id string) bool {
	if _, ok := s.ids[id]; ok {
		return true
	}
	if len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.ids, oldest)
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	return false
}

func (s *seenSet) Len() int {
	return len(s.order)
}
