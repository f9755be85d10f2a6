// Package fruit provides a dependency-injection container whose injectors
// are built by normalizing a declared graph of bindings: components are
// expanded, deduplicated, checked for conflicts and cycles, and compressed
// into an immutable binding table before the first object is constructed.
//
// # Overview
//
// The library provides:
//   - Interface-to-implementation bindings with automatic binding compression
//   - Constructor providers with reflective dependency analysis
//   - Instance bindings for already-constructed values
//   - Multibindings: ordered collections contributed to from many components
//   - Lazy sub-components, deduplicated and expanded on demand
//   - Component replacement for testing, validated against install order
//   - At-most-once construction per type, with lazy loop detection
//
// # Basic Usage
//
// Declare a component, build an injector, and resolve:
//
//	func FileComponent() *fruit.Component {
//	    return fruit.NewComponent("file",
//	        fruit.Bind[Reader, *File](),
//	        fruit.Provide(NewFile),
//	    )
//	}
//
//	injector, err := fruit.NewInjector(FileComponent(), fruit.Expose[Reader]())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	reader, err := fruit.Resolve[Reader](injector)
//
// # Components
//
// A Component groups bindings and sub-component installations. Components
// install each other with Install (and InstallArgs for parameterized
// component functions); installing the same component function twice is
// idempotent, and install cycles are reported with the offending path.
//
// # Providers
//
// Constructors declare dependencies through their parameters:
//
//	func NewUserService(db *Database, logger Logger) *UserService { ... }
//
// Constructors with many dependencies can take a parameter object embedding
// fruit.In, and constructors producing several services can return a result
// object embedding fruit.Out. The `name`, `group`, and `optional` struct tags
// carry annotations, multibinding groups, and optional dependencies.
//
// # Binding Compression
//
// A Bind[I, C] plus a provider for C normally costs one forwarder and one
// object per injection of I. When nothing else in the component observes C,
// the normalizer fuses the pair into a single binding I -> constructor,
// eliminating the intermediate object. NewNormalizedComponent with
// UndoableCompression keeps undo records so a later overlay component that
// references C transparently reverses the fold.
//
// # Replacements
//
// For testing, a component's installs can be redirected:
//
//	fruit.Replace(DatabaseComponent).With(FakeDatabaseComponent)
//
// Replacements must be declared before the target is first installed.
package fruit
