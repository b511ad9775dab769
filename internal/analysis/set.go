package analysis

// Set is a value-equality set used for cross-source comparisons.
type Set[T comparable] map[T]struct{}

func NewSet[T comparable](values ...T) Set[T] {
	s := make(Set[T], len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

func (s Set[T]) Add(v T) {
	s[v] = struct{}{}
}

func (s Set[T]) Has(v T) bool {
	_, ok := s[v]
	return ok
}

func (s Set[T]) Len() int {
	return len(s)
}

func (s Set[T]) Values() []T {
	out := make([]T, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	return out
}

// Equal reports membership equality (order and duplicates are irrelevant
// by construction).
func (s Set[T]) Equal(other Set[T]) bool {
	if len(s) != len(other) {
		return false
	}
	for v := range s {
		if !other.Has(v) {
			return false
		}
	}
	return true
}

// AllEqual reports whether every set has the same membership as the first.
// A single source (or none) can never show disagreement.
func AllEqual[T comparable](sets []Set[T]) bool {
	if len(sets) < 2 {
		return true
	}
	for _, s := range sets[1:] {
		if !sets[0].Equal(s) {
			return false
		}
	}
	return true
}
