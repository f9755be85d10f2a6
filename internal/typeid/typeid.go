package typeid

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// TypeId uniquely identifies an injectable type together with its annotation.
// Two TypeIds compare equal (as pointers) if and only if they name the same
// annotated type: the registry interns one instance per distinct pair.
//
// TypeIds are created during registration and never mutated afterwards, so
// they are safe to use as map keys from any goroutine.
type TypeId struct {
	rtype      reflect.Type
	annotation string
	seq        uint64
}

type registryKey struct {
	rtype      reflect.Type
	annotation string
}

// registry is the process-wide TypeId interning table. Append-only.
var registry sync.Map // map[registryKey]*TypeId

var seqCounter uint64

// Of returns the TypeId for an unannotated type.
func Of(t reflect.Type) *TypeId {
	return Annotated(t, "")
}

// Annotated returns the TypeId for a type carrying the given annotation.
// The empty annotation names the plain type.
func Annotated(t reflect.Type, annotation string) *TypeId {
	if t == nil {
		return nil
	}

	key := registryKey{rtype: t, annotation: annotation}
	if cached, ok := registry.Load(key); ok {
		return cached.(*TypeId)
	}

	id := &TypeId{
		rtype:      t,
		annotation: annotation,
		seq:        atomic.AddUint64(&seqCounter, 1),
	}

	actual, _ := registry.LoadOrStore(key, id)
	return actual.(*TypeId)
}

// Type returns the reflected type this TypeId names.
func (id *TypeId) Type() reflect.Type {
	return id.rtype
}

// Annotation returns the annotation, or the empty string for plain types.
func (id *TypeId) Annotation() string {
	return id.annotation
}

// Less provides the total order over TypeIds (registration order).
func (id *TypeId) Less(other *TypeId) bool {
	if id == nil || other == nil {
		return other != nil
	}

	return id.seq < other.seq
}

// Size returns the in-memory size of one instance of the named type.
func (id *TypeId) Size() uintptr {
	return id.rtype.Size()
}

// Align returns the alignment requirement of the named type.
func (id *TypeId) Align() uintptr {
	return uintptr(id.rtype.Align())
}

func (id *TypeId) String() string {
	if id == nil {
		return "<nil>"
	}

	if id.annotation != "" {
		return fmt.Sprintf("%s[%s]", formatType(id.rtype), id.annotation)
	}

	return formatType(id.rtype)
}

// formatType formats a reflect.Type for diagnostics.
func formatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer:
		return "*" + formatType(t.Elem())
	case reflect.Slice:
		return "[]" + formatType(t.Elem())
	default:
		return t.String()
	}
}
