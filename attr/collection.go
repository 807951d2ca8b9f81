package attr

import (
	"maps"
	"slices"
)

// Tracked is implemented by every resource that can be member of a deep
// collection.
type Tracked interface {
	Diverged() bool
}

type Collection interface {
	Len() int
	Members() []Tracked
	CloneCollection() Collection
}

type List[T Tracked] []T

func (l List[T]) Len() int {
	return len(l)
}

func (l List[T]) Members() []Tracked {
	members := make([]Tracked, 0, len(l))
	for _, item := range l {
		members = append(members, item)
	}
	return members
}

func (l List[T]) CloneCollection() Collection {
	return slices.Clone(l)
}

type Map[K comparable, T Tracked] map[K]T

func (m Map[K, T]) Len() int {
	return len(m)
}

func (m Map[K, T]) Members() []Tracked {
	members := make([]Tracked, 0, len(m))
	for _, item := range m {
		members = append(members, item)
	}
	return members
}

func (m Map[K, T]) CloneCollection() Collection {
	return maps.Clone(m)
}
