package model

// Entity is the capability shared by everything the stores persist.
type Entity interface {
	GetID() uint
	GetName() string
}

// EntityPtr constrains generic stores and caches to pointer-to-entity types
// that can copy themselves and absorb another value of the same kind.
type EntityPtr[T any] interface {
	*T
	Entity
	Clone() *T
	MergeFrom(other *T)
}
