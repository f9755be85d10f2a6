package fruit

import "fmt"

// A ProvideOption modifies the default behavior of Provide, BindInstance,
// and the multibinding registration functions.
type ProvideOption interface {
	applyProvideOption(*provideOptions)
}

type provideOptions struct {
	name string
}

func applyProvideOptions(opts []ProvideOption) *provideOptions {
	options := &provideOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyProvideOption(options)
		}
	}

	return options
}

// Named annotates the registered type: the value is bound under the
// annotated TypeId instead of the plain one, and is resolved with
// ResolveNamed (or a `name` tag on a parameter-object field).
//
//	fruit.NewComponent("connections",
//	    fruit.Provide(NewReadOnlyConnection, fruit.Named("ro")),
//	    fruit.Provide(NewReadWriteConnection, fruit.Named("rw")),
//	)
func Named(name string) ProvideOption {
	return namedOption(name)
}

type namedOption string

func (o namedOption) String() string {
	return fmt.Sprintf("Named(%q)", string(o))
}

func (o namedOption) applyProvideOption(opts *provideOptions) {
	opts.name = string(o)
}

// A BuildOption modifies injector or normalized-component construction.
type BuildOption interface {
	applyBuildOption(*buildOptions)
}

type buildOptions struct {
	exposed  []*TypeId
	undoable bool
	validate bool
}

func applyBuildOptions(opts []BuildOption) *buildOptions {
	options := &buildOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyBuildOption(options)
		}
	}

	return options
}

type buildOptionFunc func(*buildOptions)

func (f buildOptionFunc) applyBuildOption(opts *buildOptions) {
	f(opts)
}

// Expose declares T as a root of injection: it must have a binding, and it is
// never compressed away.
func Expose[T any]() BuildOption {
	return buildOptionFunc(func(opts *buildOptions) {
		opts.exposed = append(opts.exposed, TypeOf[T]())
	})
}

// ExposeNamed is Expose for an annotated type.
func ExposeNamed[T any](name string) BuildOption {
	return buildOptionFunc(func(opts *buildOptions) {
		opts.exposed = append(opts.exposed, NamedTypeOf[T](name))
	})
}

// UndoableCompression makes the normalizer record undo information for every
// applied binding compression, so overlay components that reference a
// compressed-away type can reverse the fold. Slightly more expensive than the
// default permanent compression; only useful with NewNormalizedComponent.
func UndoableCompression() BuildOption {
	return buildOptionFunc(func(opts *buildOptions) {
		opts.undoable = true
	})
}

// ValidateOnBuild makes injector construction verify the whole dependency
// graph eagerly: every dependency of every binding must be satisfiable, and
// the graph must be acyclic. Without it, missing bindings and dependency
// loops surface on first resolution.
func ValidateOnBuild() BuildOption {
	return buildOptionFunc(func(opts *buildOptions) {
		opts.validate = true
	})
}
