package detect

// SeenSet is a bounded, newest-first set of item ids.
// Membership is a map lookup; the slice keeps eviction order.
type SeenSet struct {
	limit int
	order []string
	index map[string]struct{}
}

// NewSeenSet builds a set from ids ordered newest-first, keeping at most limit entries.
func NewSeenSet(limit int, ids []string) *SeenSet {
	if limit < 1 {
		limit = 1
	}
	s := &SeenSet{
		limit: limit,
		order: make([]string, 0, min(limit, len(ids))),
		index: make(map[string]struct{}, min(limit, len(ids))),
	}
	for _, id := range ids {
		if len(s.order) == limit {
			break
		}
		s.appendOld(id)
	}
	return s
}

func (s *SeenSet) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

func (s *SeenSet) Len() int { return len(s.order) }

// IDs returns a copy, newest first.
func (s *SeenSet) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Merge puts ids (newest-first) in front of what is already recorded,
// dropping duplicates and evicting the oldest entries past the limit.
func (s *SeenSet) Merge(ids []string) {
	next := NewSeenSet(s.limit, nil)
	for _, id := range ids {
		if len(next.order) == next.limit {
			break
		}
		next.appendOld(id)
	}
	for _, id := range s.order {
		if len(next.order) == next.limit {
			break
		}
		next.appendOld(id)
	}
	s.order, s.index = next.order, next.index
}

func (s *SeenSet) appendOld(id string) {
	if id == "" {
		return
	}
	if _, dup := s.index[id]; dup {
		return
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
}
