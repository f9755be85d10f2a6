package fruit

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/venscn/fruit/internal/graph"
	"github.com/venscn/fruit/internal/normalization"
	"github.com/venscn/fruit/internal/storage"
	"github.com/venscn/fruit/internal/typeid"
)

// NormalizedComponent is a component whose bindings have already been
// normalized. Normalizing once and overlaying small per-request components
// with NewInjectorWithBase is much cheaper than re-normalizing the full
// component for every injector.
type NormalizedComponent struct {
	storage *normalization.Storage
}

// NewNormalizedComponent normalizes a component for later use as a base.
// Pass UndoableCompression when overlay components may reference types that
// binding compression would otherwise collapse away.
func NewNormalizedComponent(c *Component, opts ...BuildOption) (*NormalizedComponent, error) {
	options := applyBuildOptions(opts)

	st, err := normalizeComponent(c, options, nil)
	if err != nil {
		return nil, err
	}

	return &NormalizedComponent{storage: st}, nil
}

// Injector constructs and owns object instances for a normalized component.
// Each type is constructed at most once; repeated resolutions return the same
// instance. Lookups are guarded by a mutex, so an injector may be shared, but
// construction itself runs single-threaded.
type Injector struct {
	id string

	mu   sync.Mutex
	own  *normalization.Storage
	base *normalization.Storage

	instances map[*TypeId]any
	multis    map[*TypeId]any

	// resolving tracks the in-progress construction path for loop
	// detection.
	resolving []*TypeId
}

// NewInjector normalizes the component and builds an injector over it.
// Binding compression is applied permanently.
func NewInjector(c *Component, opts ...BuildOption) (*Injector, error) {
	options := applyBuildOptions(opts)

	st, err := normalizeComponent(c, options, nil)
	if err != nil {
		return nil, err
	}

	return newInjector(st, nil, options)
}

// NewInjectorWithBase normalizes the overlay component against an existing
// normalized base and builds an injector over both. Compressions recorded by
// the base (in undoable mode) are reversed for any compressed-away type the
// overlay references.
func NewInjectorWithBase(base *NormalizedComponent, overlay *Component, opts ...BuildOption) (*Injector, error) {
	if base == nil {
		return nil, ErrComponentNil
	}

	options := applyBuildOptions(opts)

	if overlay == nil {
		overlay = NewComponent("overlay")
	}

	st, err := normalizeComponent(overlay, options, base.storage)
	if err != nil {
		return nil, err
	}

	undoCompressions(st, base.storage, options.exposed)

	return newInjector(st, base.storage, options)
}

// normalizeComponent flattens a component into the reversed entry stream and
// runs binding normalization on it.
func normalizeComponent(c *Component, options *buildOptions, base *normalization.Storage) (*normalization.Storage, error) {
	entries, err := c.storageEntries()
	if err != nil {
		return nil, err
	}

	// The normalizer consumes a stack; reversing here makes popping yield
	// declaration order.
	reversed := make([]storage.Entry, len(entries))
	for i, entry := range entries {
		reversed[len(entries)-1-i] = entry
	}

	normOpts := normalization.Options{
		ExposedTypes: options.exposed,
		Undoable:     options.undoable,
	}
	if base != nil {
		normOpts.Base = base
	}

	return normalization.Normalize(reversed, normOpts)
}

// undoCompressions restores base-compressed binding pairs for every
// compressed-away type the overlay references: as a dependency of one of its
// bindings or multibinding elements, or as an exposed root.
func undoCompressions(own, base *normalization.Storage, exposed []*TypeId) {
	var referenced []*TypeId

	own.Bindings(func(_ *typeid.TypeId, e storage.Entry) bool {
		referenced = append(referenced, e.Deps...)
		referenced = append(referenced, e.SoftDeps...)
		return true
	})

	own.MultibindingSets(func(_ *typeid.TypeId, set *normalization.MultibindingSet) bool {
		for _, elem := range set.Elements {
			referenced = append(referenced, elem.Deps...)
			referenced = append(referenced, elem.SoftDeps...)
		}
		return true
	})

	referenced = append(referenced, exposed...)

	for _, id := range referenced {
		if _, ok := own.Binding(id); ok {
			continue
		}

		if _, ok := base.Binding(id); ok {
			continue
		}

		if info, ok := base.UndoInfo(id); ok {
			own.RestoreCompressed(id, info)
		}
	}
}

func newInjector(own, base *normalization.Storage, options *buildOptions) (*Injector, error) {
	for _, id := range options.exposed {
		if !boundIn(id, own, base) {
			return nil, UnboundExposedTypeError{Type: id}
		}
	}

	if options.validate {
		if err := validateGraph(own, base); err != nil {
			return nil, err
		}
	}

	sizing := own.Sizing()
	numTypes := sizing.NumTypes
	if base != nil {
		numTypes += base.Sizing().NumTypes
	}

	return &Injector{
		id:        uuid.NewString(),
		own:       own,
		base:      base,
		instances: make(map[*TypeId]any, numTypes),
		multis:    make(map[*TypeId]any),
	}, nil
}

func boundIn(id *TypeId, own, base *normalization.Storage) bool {
	if _, ok := own.Binding(id); ok {
		return true
	}

	if base != nil {
		if _, ok := base.Binding(id); ok {
			return true
		}
	}

	return false
}

// validateGraph checks the combined dependency graph eagerly: every required
// dependency of every binding and multibinding element must be bound, and the
// binding graph must be acyclic.
func validateGraph(own, base *normalization.Storage) error {
	g := graph.New()

	addNode := func(id *typeid.TypeId, e storage.Entry) bool {
		if e.Kind == storage.KindObjectToConstruct {
			g.AddNode(id, e.Deps)
		} else {
			g.AddNode(id, nil)
		}
		return true
	}

	if base != nil {
		base.Bindings(addNode)
	}
	own.Bindings(addNode)

	var missing []graph.MissingDependency
	missing = append(missing, g.MissingDependencies(nil)...)

	checkElems := func(id *typeid.TypeId, set *normalization.MultibindingSet) bool {
		for _, elem := range set.Elements {
			for _, dep := range elem.Deps {
				if !boundIn(dep, own, base) {
					missing = append(missing, graph.MissingDependency{Dependent: id, Dependency: dep})
				}
			}
		}
		return true
	}

	own.MultibindingSets(checkElems)
	if base != nil {
		base.MultibindingSets(checkElems)
	}

	if len(missing) > 0 {
		return MissingDependencyError{Missing: missing}
	}

	return g.DetectCycles()
}

// ID returns the unique ID of this injector.
func (inj *Injector) ID() string {
	return inj.id
}

// NumBindings returns the number of bindings visible to this injector. Base
// bindings shadowed by the overlay count once.
func (inj *Injector) NumBindings() int {
	n := inj.own.NumBindings()

	if inj.base != nil {
		inj.base.Bindings(func(id *typeid.TypeId, _ storage.Entry) bool {
			if _, ok := inj.own.Binding(id); !ok {
				n++
			}
			return true
		})
	}

	return n
}

// Resolve returns the instance bound to the given TypeId, constructing it
// (and its dependency closure) on first use.
func (inj *Injector) Resolve(id *TypeId) (any, error) {
	if id == nil {
		return nil, ErrBindingNotFound
	}

	inj.mu.Lock()
	defer inj.mu.Unlock()

	return inj.resolve(id)
}

// ResolveMultibindings materializes the multibinding set for the given
// TypeId as its typed slice. Returns nil when no multibinding was registered.
func (inj *Injector) ResolveMultibindings(id *TypeId) (any, error) {
	if id == nil {
		return nil, ErrBindingNotFound
	}

	inj.mu.Lock()
	defer inj.mu.Unlock()

	return inj.resolveMultibindings(id)
}

// injectorResolver is the unlocked resolver handed to create thunks, which
// run while the injector's mutex is already held.
type injectorResolver struct {
	inj *Injector
}

func (r injectorResolver) Resolve(id *typeid.TypeId) (any, error) {
	return r.inj.resolve(id)
}

func (r injectorResolver) ResolveOptional(id *typeid.TypeId) (any, bool, error) {
	if _, ok := r.inj.lookupBinding(id); !ok {
		return nil, false, nil
	}

	value, err := r.inj.resolve(id)
	return value, err == nil, err
}

func (r injectorResolver) ResolveMultibindings(id *typeid.TypeId) (any, error) {
	return r.inj.resolveMultibindings(id)
}

func (inj *Injector) lookupBinding(id *TypeId) (storage.Entry, bool) {
	if entry, ok := inj.own.Binding(id); ok {
		return entry, true
	}

	if inj.base != nil {
		return inj.base.Binding(id)
	}

	return storage.Entry{}, false
}

func (inj *Injector) resolve(id *TypeId) (any, error) {
	if instance, ok := inj.instances[id]; ok {
		return instance, nil
	}

	entry, ok := inj.lookupBinding(id)
	if !ok {
		return nil, ResolutionError{Type: id, Cause: ErrBindingNotFound}
	}

	switch entry.Kind {
	case storage.KindConstructedObject:
		inj.instances[id] = entry.Object
		return entry.Object, nil

	case storage.KindObjectToConstruct:
		for i, active := range inj.resolving {
			if active == id {
				path := append(slices.Clone(inj.resolving[i:]), id)
				return nil, SelfLoopError{Path: path}
			}
		}

		inj.resolving = append(inj.resolving, id)
		value, err := entry.Create(injectorResolver{inj: inj})
		inj.resolving = inj.resolving[:len(inj.resolving)-1]

		if err != nil {
			return nil, wrapResolutionError(id, err)
		}

		inj.instances[id] = value
		return value, nil

	default:
		return nil, ResolutionError{Type: id, Cause: fmt.Errorf("unexpected binding kind %s", entry.Kind)}
	}
}

// wrapResolutionError adds the failing TypeId unless the error already
// carries resolution context from deeper in the chain.
func wrapResolutionError(id *TypeId, err error) error {
	var resErr ResolutionError
	var loopErr SelfLoopError

	if errors.As(err, &resErr) || errors.As(err, &loopErr) {
		return err
	}

	return ResolutionError{Type: id, Cause: err}
}

func (inj *Injector) resolveMultibindings(id *TypeId) (any, error) {
	if materialized, ok := inj.multis[id]; ok {
		return materialized, nil
	}

	var elements []storage.Entry
	var creator storage.VectorFn

	if inj.base != nil {
		if set, ok := inj.base.Multibindings(id); ok {
			elements = append(elements, set.Elements...)
			creator = set.VectorCreator
		}
	}

	if set, ok := inj.own.Multibindings(id); ok {
		elements = append(elements, set.Elements...)
		creator = set.VectorCreator
	}

	if creator == nil {
		return nil, nil
	}

	values := make([]any, 0, len(elements))
	for _, elem := range elements {
		value, err := elem.Create(injectorResolver{inj: inj})
		if err != nil {
			return nil, wrapResolutionError(id, err)
		}

		values = append(values, value)
	}

	materialized := creator(values)
	inj.multis[id] = materialized

	return materialized, nil
}

// Resolve returns the instance bound to T, constructing it on first use.
func Resolve[T any](inj *Injector) (T, error) {
	return resolveAs[T](inj, TypeOf[T]())
}

// ResolveNamed returns the instance bound to T under the given annotation.
func ResolveNamed[T any](inj *Injector, name string) (T, error) {
	return resolveAs[T](inj, NamedTypeOf[T](name))
}

func resolveAs[T any](inj *Injector, id *TypeId) (T, error) {
	var zero T

	if inj == nil {
		return zero, ErrInjectorNil
	}

	value, err := inj.Resolve(id)
	if err != nil {
		return zero, err
	}

	if value == nil {
		return zero, nil
	}

	typed, ok := value.(T)
	if !ok {
		return zero, ResolutionError{
			Type:  id,
			Cause: fmt.Errorf("bound value of type %T is not assignable to %s", value, id),
		}
	}

	return typed, nil
}

// ResolveMultibindings returns every element contributed to the multibinding
// set of T, in registration order. Returns an empty slice when nothing was
// contributed.
func ResolveMultibindings[T any](inj *Injector) ([]T, error) {
	return resolveMultibindingsAs[T](inj, TypeOf[T]())
}

// ResolveNamedMultibindings is ResolveMultibindings for an annotated group.
func ResolveNamedMultibindings[T any](inj *Injector, name string) ([]T, error) {
	return resolveMultibindingsAs[T](inj, NamedTypeOf[T](name))
}

func resolveMultibindingsAs[T any](inj *Injector, id *TypeId) ([]T, error) {
	if inj == nil {
		return nil, ErrInjectorNil
	}

	materialized, err := inj.ResolveMultibindings(id)
	if err != nil {
		return nil, err
	}

	if materialized == nil {
		return []T{}, nil
	}

	typed, ok := materialized.([]T)
	if !ok {
		return nil, ResolutionError{
			Type:  id,
			Cause: fmt.Errorf("multibinding set has type %T, not []%s", materialized, id),
		}
	}

	return typed, nil
}
