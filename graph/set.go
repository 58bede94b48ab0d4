package graph

import "sort"

// IDSet is an unordered set of user IDs.
type IDSet map[int64]struct{}

// NewIDSet returns a set containing the provided IDs.
func NewIDSet(ids ...int64) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts ids into the set.
func (s IDSet) Add(ids ...int64) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Has reports whether id belongs to the set.
func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Union adds every member of other to the set.
func (s IDSet) Union(other IDSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// IDs returns the members of the set in ascending order.
func (s IDSet) IDs() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(l, r int) bool { return ids[l] < ids[r] })
	return ids
}
