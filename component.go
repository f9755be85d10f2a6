package fruit

import (
	"fmt"
	"reflect"

	"github.com/venscn/fruit/internal/storage"
	"github.com/venscn/fruit/internal/typeid"
)

// ComponentOption represents one declaration within a component: a binding,
// a multibinding, a sub-component installation, or a replacement.
type ComponentOption func(*Component) error

// ComponentFunc is a factory for a component with no arguments. Installing
// the same ComponentFunc twice is idempotent: its identity is the function
// itself.
type ComponentFunc func() *Component

// Component is a user-authored collection of bindings plus sub-component
// installations. Components are assembled once with NewComponent and consumed
// by NewInjector or NewNormalizedComponent.
//
// Example:
//
//	func DatabaseComponent() *fruit.Component {
//	    return fruit.NewComponent("database",
//	        fruit.Bind[Store, *SQLStore](),
//	        fruit.Provide(NewSQLStore),
//	    )
//	}
//
//	func AppComponent() *fruit.Component {
//	    return fruit.NewComponent("app",
//	        fruit.Install(DatabaseComponent),
//	        fruit.Provide(NewServer),
//	    )
//	}
func NewComponent(name string, opts ...ComponentOption) *Component {
	c := &Component{name: name}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(c); err != nil {
			c.err = ComponentError{Component: name, Cause: err}
			break
		}
	}

	return c
}

// Component holds the declared entries in declaration order. The zero value
// is not usable; construct with NewComponent.
type Component struct {
	name    string
	entries []storage.Entry
	err     error
}

// Name returns the component's name, used in error messages.
func (c *Component) Name() string {
	return c.name
}

// Err returns the first registration error, if any. The error is also
// surfaced when the component is normalized.
func (c *Component) Err() error {
	return c.err
}

// storageEntries returns the component's entries in declaration order, or
// the registration error if one occurred.
func (c *Component) storageEntries() ([]storage.Entry, error) {
	if c == nil {
		return nil, ErrComponentNil
	}

	if c.err != nil {
		return nil, c.err
	}

	return c.entries, nil
}

// Bind declares that injecting the interface type I produces the bound
// implementation C. C must have its own binding (a provider or instance).
//
// When nothing else in the component observes C directly, the normalizer
// compresses the pair into a single binding, eliminating the intermediate
// forwarder.
func Bind[I, C any]() ComponentOption {
	return func(c *Component) error {
		iType := reflect.TypeOf((*I)(nil)).Elem()
		cType := reflect.TypeOf((*C)(nil)).Elem()

		if iType.Kind() != reflect.Interface {
			return fmt.Errorf("Bind: %s is not an interface", iType)
		}

		if !cType.Implements(iType) {
			return fmt.Errorf("Bind: %s does not implement %s", cType, iType)
		}

		iid := typeid.Of(iType)
		cid := typeid.Of(cType)

		c.entries = append(c.entries,
			storage.Entry{
				Kind: storage.KindObjectToConstruct,
				Type: iid,
				Create: func(r storage.Resolver) (any, error) {
					return r.Resolve(cid)
				},
				// The forwarder's identity is the implementation TypeId:
				// binding the same pair twice is idempotent.
				CreateID:        reflect.ValueOf(cid).Pointer(),
				Deps:            []*typeid.TypeId{cid},
				NeedsAllocation: false,
			},
			storage.Entry{
				Kind: storage.KindCompressedBinding,
				Type: iid,
				Impl: cid,
			},
		)

		return nil
	}
}

// BindInstance binds T to an already-constructed instance. The injector
// returns the instance as-is; it is never disposed or copied.
//
// Two BindInstance registrations for the same type conflict unless they bind
// the same value.
func BindInstance[T any](instance T, opts ...ProvideOption) ComponentOption {
	return func(c *Component) error {
		v := reflect.ValueOf(instance)
		if !v.IsValid() {
			return ErrInstanceNil
		}

		switch v.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			if v.IsNil() {
				return ErrInstanceNil
			}
		}

		options := applyProvideOptions(opts)

		c.entries = append(c.entries, storage.Entry{
			Kind:   storage.KindConstructedObject,
			Type:   typeid.Annotated(reflect.TypeOf((*T)(nil)).Elem(), options.name),
			Object: instance,
		})

		return nil
	}
}

// Install registers a sub-component for expansion. Components are expanded at
// most once per injector: installing the same ComponentFunc from several
// places is idempotent, and install cycles are reported as errors.
func Install(fn ComponentFunc) ComponentOption {
	return func(c *Component) error {
		if fn == nil {
			return ErrComponentNil
		}

		lazy, err := newLazyComponent(fn, nil)
		if err != nil {
			return err
		}

		c.entries = append(c.entries, storage.Entry{
			Kind: storage.KindLazyComponent,
			Lazy: lazy,
		})

		return nil
	}
}

// InstallArgs registers a parameterized sub-component: fn must be a function
// taking exactly the given arguments and returning *Component. Identity is
// structural: installing the same function with equal arguments is
// idempotent, while different arguments expand separately.
func InstallArgs(fn any, args ...any) ComponentOption {
	return func(c *Component) error {
		lazy, err := newLazyComponent(fn, args)
		if err != nil {
			return err
		}

		c.entries = append(c.entries, storage.Entry{
			Kind: storage.KindLazyComponent,
			Lazy: lazy,
		})

		return nil
	}
}

// ReplacementBuilder pairs a replacement target with its substitute.
// Construct with Replace or ReplaceArgs.
type ReplacementBuilder struct {
	target *storage.LazyComponent
	err    error
}

// Replace starts a replacement declaration for a component installed without
// arguments. The replacement must be declared before the target is first
// installed; a replacement whose target never gets installed is silently
// dropped.
//
//	fruit.Replace(DatabaseComponent).With(FakeDatabaseComponent)
func Replace(fn ComponentFunc) *ReplacementBuilder {
	if fn == nil {
		return &ReplacementBuilder{err: ErrComponentNil}
	}

	lazy, err := newLazyComponent(fn, nil)
	return &ReplacementBuilder{target: lazy, err: err}
}

// ReplaceArgs starts a replacement declaration for a parameterized component
// installed with exactly the given arguments.
func ReplaceArgs(fn any, args ...any) *ReplacementBuilder {
	lazy, err := newLazyComponent(fn, args)
	return &ReplacementBuilder{target: lazy, err: err}
}

// With completes the replacement with a component installed without
// arguments.
func (b *ReplacementBuilder) With(fn ComponentFunc) ComponentOption {
	return func(c *Component) error {
		if b.err != nil {
			return b.err
		}

		if fn == nil {
			return ErrComponentNil
		}

		replacement, err := newLazyComponent(fn, nil)
		if err != nil {
			return err
		}

		c.entries = append(c.entries, storage.Entry{
			Kind:        storage.KindReplacedLazyComponent,
			Lazy:        b.target,
			Replacement: replacement,
		})

		return nil
	}
}

// WithArgs completes the replacement with a parameterized component.
func (b *ReplacementBuilder) WithArgs(fn any, args ...any) ComponentOption {
	return func(c *Component) error {
		if b.err != nil {
			return b.err
		}

		replacement, err := newLazyComponent(fn, args)
		if err != nil {
			return err
		}

		c.entries = append(c.entries, storage.Entry{
			Kind:        storage.KindReplacedLazyComponent,
			Lazy:        b.target,
			Replacement: replacement,
		})

		return nil
	}
}

// AddInstanceMultibinding contributes an existing instance to the
// multibinding set of T. Unlike bindings, multibindings are not idempotent:
// adding the same instance n times yields n elements.
func AddInstanceMultibinding[T any](instance T, opts ...ProvideOption) ComponentOption {
	return func(c *Component) error {
		options := applyProvideOptions(opts)
		tid := typeid.Annotated(reflect.TypeOf((*T)(nil)).Elem(), options.name)

		c.entries = append(c.entries,
			storage.Entry{
				Kind: storage.KindMultibinding,
				Type: tid,
				Create: func(storage.Resolver) (any, error) {
					return instance, nil
				},
				NeedsAllocation: false,
			},
			storage.Entry{
				Kind:         storage.KindMultibindingVectorCreator,
				Type:         tid,
				VectorCreate: makeVector[T],
			},
		)

		return nil
	}
}

// AddMultibindingProvider contributes a constructed element to the
// multibinding set of T. The constructor's return type must be assignable to
// T; its parameters are resolved like any provider's.
func AddMultibindingProvider[T any](constructor any, opts ...ProvideOption) ComponentOption {
	return func(c *Component) error {
		options := applyProvideOptions(opts)
		tType := reflect.TypeOf((*T)(nil)).Elem()
		tid := typeid.Annotated(tType, options.name)

		info, err := defaultAnalyzer.Analyze(constructor)
		if err != nil {
			return err
		}

		if info.IsResultObject {
			return fmt.Errorf("multibinding providers cannot return result objects")
		}

		provided := info.Returns[0].Type
		if !assignableTo(provided, tType) {
			return fmt.Errorf("multibinding provider returns %s, which is not assignable to %s", provided, tType)
		}

		call, deps, softDeps, err := buildCall(info)
		if err != nil {
			return err
		}

		c.entries = append(c.entries,
			storage.Entry{
				Kind: storage.KindMultibinding,
				Type: tid,
				Create: func(r storage.Resolver) (any, error) {
					outs, err := call(r)
					if err != nil {
						return nil, err
					}
					return outs[0].Interface(), nil
				},
				CreateID:        info.Value.Pointer(),
				Deps:            deps,
				SoftDeps:        softDeps,
				NeedsAllocation: true,
			},
			storage.Entry{
				Kind:         storage.KindMultibindingVectorCreator,
				Type:         tid,
				VectorCreate: makeVector[T],
			},
		)

		return nil
	}
}

// newLazyComponent validates a component factory and wraps it with its
// expansion thunk. args is nil for no-argument components.
func newLazyComponent(fn any, args []any) (*storage.LazyComponent, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, ErrComponentNil
	}

	t := v.Type()
	if t.NumOut() != 1 || t.Out(0) != reflect.TypeOf((*Component)(nil)) {
		return nil, fmt.Errorf("%w: %s must return *fruit.Component", ErrNotComponentFunc, t)
	}

	if t.NumIn() != len(args) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrNotComponentFunc, t, t.NumIn(), len(args))
	}

	argValues := make([]reflect.Value, len(args))
	for i, arg := range args {
		av := reflect.ValueOf(arg)
		if !av.IsValid() || !av.Type().AssignableTo(t.In(i)) {
			return nil, fmt.Errorf("%w: argument %d is not assignable to %s", ErrNotComponentFunc, i, t.In(i))
		}
		argValues[i] = av
	}

	produce := func() ([]storage.Entry, error) {
		out := v.Call(argValues)

		comp, _ := out[0].Interface().(*Component)
		return comp.storageEntries()
	}

	return storage.NewLazyComponent(fn, args, produce), nil
}

// makeVector materializes the typed slice for a multibinding set.
func makeVector[T any](elems []any) any {
	out := make([]T, 0, len(elems))
	for _, elem := range elems {
		out = append(out, elem.(T))
	}

	return out
}

// assignableTo also accepts implementations of interface targets.
func assignableTo(from, to reflect.Type) bool {
	if from.AssignableTo(to) {
		return true
	}

	return to.Kind() == reflect.Interface && from.Implements(to)
}
