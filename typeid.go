package fruit

import (
	"reflect"

	"github.com/venscn/fruit/internal/typeid"
)

// TypeId is an opaque, totally-ordered, hashable identifier uniquely naming
// an (annotated) injectable type. Two TypeIds are equal iff they name the
// same annotated type; the registry interns one instance per pair, so TypeIds
// compare with ==.
type TypeId = typeid.TypeId

// TypeOf returns the TypeId for the plain type T.
func TypeOf[T any]() *TypeId {
	return typeid.Of(reflect.TypeOf((*T)(nil)).Elem())
}

// NamedTypeOf returns the TypeId for T carrying the given annotation. Named
// and plain TypeIds for the same Go type are distinct.
func NamedTypeOf[T any](name string) *TypeId {
	return typeid.Annotated(reflect.TypeOf((*T)(nil)).Elem(), name)
}
