package storage

import (
	"reflect"

	"github.com/venscn/fruit/internal/typeid"
)

// Kind discriminates the variants of Entry.
type Kind int

const (
	// KindInvalid is the zero Kind; it never appears in a well-formed stream.
	KindInvalid Kind = iota

	// KindConstructedObject binds a type to an already-existing instance.
	KindConstructedObject

	// KindObjectToConstruct binds a type to a create thunk invoked on first
	// injection.
	KindObjectToConstruct

	// KindCompressedBinding is a hint that an interface type aliases a
	// concrete type, making the pair a candidate for binding compression.
	KindCompressedBinding

	// KindMultibinding contributes one element to a multibinding set.
	KindMultibinding

	// KindMultibindingVectorCreator materializes the final ordered slice for
	// a multibinding set. Always adjacent to a KindMultibinding entry.
	KindMultibindingVectorCreator

	// KindLazyComponent references a sub-component to expand on demand.
	KindLazyComponent

	// KindEndMarker brackets the expansion of a lazy component.
	KindEndMarker

	// KindReplacedLazyComponent declares that a lazy component must be
	// substituted by another before it is first expanded.
	KindReplacedLazyComponent
)

func (k Kind) String() string {
	switch k {
	case KindConstructedObject:
		return "ConstructedObject"
	case KindObjectToConstruct:
		return "ObjectToConstruct"
	case KindCompressedBinding:
		return "CompressedBinding"
	case KindMultibinding:
		return "Multibinding"
	case KindMultibindingVectorCreator:
		return "MultibindingVectorCreator"
	case KindLazyComponent:
		return "LazyComponent"
	case KindEndMarker:
		return "EndMarker"
	case KindReplacedLazyComponent:
		return "ReplacedLazyComponent"
	default:
		return "Invalid"
	}
}

// Resolver supplies dependencies to create thunks during injection.
// The injector implements it; normalization never invokes thunks.
type Resolver interface {
	// Resolve returns the instance bound to the given TypeId, constructing
	// it first if necessary.
	Resolve(id *typeid.TypeId) (any, error)

	// ResolveOptional is like Resolve but reports absence instead of
	// failing when no binding exists.
	ResolveOptional(id *typeid.TypeId) (any, bool, error)

	// ResolveMultibindings returns the materialized slice for a
	// multibinding set, typed by its vector creator.
	ResolveMultibindings(id *typeid.TypeId) (any, error)
}

// CreateFn constructs one instance, resolving dependencies through r.
type CreateFn func(r Resolver) (any, error)

// VectorFn materializes the typed slice for a multibinding set from its
// constructed elements, in arrival order.
type VectorFn func(elems []any) any

// Entry is one element of the component storage stream: a tagged union over
// the variants the normalization core recognizes. Which fields are meaningful
// depends on Kind.
type Entry struct {
	Kind Kind

	// Type is the bound TypeId for binding, compressed-binding, and
	// multibinding variants.
	Type *typeid.TypeId

	// Object is the instance payload of a ConstructedObject entry.
	Object any

	// Create is the construction thunk of ObjectToConstruct and
	// Multibinding entries.
	Create CreateFn

	// CreateID identifies the construction logic behind Create, so that two
	// entries registering the same constructor compare equal even though
	// their closures differ. Zero for ConstructedObject entries.
	CreateID uintptr

	// Deps are the TypeIds Create resolves unconditionally.
	Deps []*typeid.TypeId

	// SoftDeps are TypeIds Create resolves only when bound (optional
	// dependencies). They do not participate in graph validation but do
	// inhibit compression of their targets.
	SoftDeps []*typeid.TypeId

	// NeedsAllocation reports whether constructing this binding allocates
	// a fresh object (as opposed to forwarding an existing one).
	NeedsAllocation bool

	// Impl is the concrete TypeId of a CompressedBinding entry; Type holds
	// the interface TypeId.
	Impl *typeid.TypeId

	// VectorCreate is the materialization thunk of a
	// MultibindingVectorCreator entry.
	VectorCreate VectorFn

	// Lazy is the component of LazyComponent and EndMarker entries, and the
	// replacement target of ReplacedLazyComponent entries.
	Lazy *LazyComponent

	// Replacement is the substitute component of a ReplacedLazyComponent
	// entry.
	Replacement *LazyComponent
}

// SameBinding reports whether two resolved binding entries are equivalent, so
// that registering both is idempotent rather than a conflict.
func SameBinding(a, b Entry) bool {
	if a.Kind != b.Kind {
		return false
	}

	switch a.Kind {
	case KindConstructedObject:
		return sameObject(a.Object, b.Object)
	case KindObjectToConstruct:
		return a.CreateID == b.CreateID
	default:
		return false
	}
}

// sameObject compares two bound instances without panicking on uncomparable
// dynamic types; distinct uncomparable values are always a conflict.
func sameObject(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	if ta != nil && !ta.Comparable() {
		return false
	}

	return a == b
}
