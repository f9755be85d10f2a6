// Package normalization implements the core of the injector build: it takes
// the reversed entry stream produced by the component builder, expands lazy
// sub-components while honoring replacements and deduplication, folds the
// result into an immutable binding table and multibinding sets, and applies
// binding compression.
package normalization

import (
	"github.com/venscn/fruit/internal/storage"
	"github.com/venscn/fruit/internal/typeid"
)

// BaseLookup gives normalization access to a pre-normalized base component,
// so that an overlay component can be normalized against it.
type BaseLookup interface {
	Binding(id *typeid.TypeId) (storage.Entry, bool)
}

// Options configure one normalization run.
type Options struct {
	// ExposedTypes are the root TypeIds the caller will resolve directly.
	// Exposed types are never compressed away.
	ExposedTypes []*typeid.TypeId

	// Undoable makes the compressor record undo information for every
	// applied compression, so overlays can reverse them later.
	Undoable bool

	// Base, when set, is consulted for bindings already present in a
	// pre-normalized base component. Compression is skipped on the overlay
	// path: the combined table is managed by the injector.
	Base BaseLookup
}

type multibindingPair struct {
	elem    storage.Entry
	creator storage.Entry
}

// context carries the working state of one normalization run, threaded by
// reference through the entry handlers.
type context struct {
	// entriesToProcess is a stack: the input is reversed, so popping yields
	// declaration order.
	entriesToProcess []storage.Entry

	bindingDataMap map[*typeid.TypeId]storage.Entry

	// fullyExpanded holds lazy components whose expansion has completed;
	// inProgress holds those whose end marker has not been reached yet.
	fullyExpanded *storage.LazySet
	inProgress    *storage.LazySet

	// replacements maps target components to their replacement entries.
	// Mappings are kept after use so a later re-install of the target still
	// resolves to the (already expanded) replacement.
	replacements *storage.LazyMap

	multibindings []multibindingPair

	// compressedBindings maps each concrete TypeId to the interface TypeId
	// that aliases it, collected from CompressedBinding hints.
	compressedBindings map[*typeid.TypeId]*typeid.TypeId

	base BaseLookup
}

// Normalize consumes toplevel entries (in reversed order, per the storage
// protocol) and produces the normalized storage. It returns the first fatal
// inconsistency found.
func Normalize(toplevel []storage.Entry, opts Options) (*Storage, error) {
	ctx := &context{
		entriesToProcess:   toplevel,
		bindingDataMap:     make(map[*typeid.TypeId]storage.Entry),
		fullyExpanded:      storage.NewLazySet(),
		inProgress:         storage.NewLazySet(),
		replacements:       storage.NewLazyMap(),
		compressedBindings: make(map[*typeid.TypeId]*typeid.TypeId),
		base:               opts.Base,
	}

	if err := ctx.run(); err != nil {
		return nil, err
	}

	result := &Storage{
		bindings:      ctx.bindingDataMap,
		multibindings: foldMultibindings(ctx.multibindings),
	}

	// Compression only runs when normalizing a self-contained component.
	// Overlays are combined with their base by the injector, which needs
	// the uncompressed shape to resolve against the base table.
	if opts.Base == nil {
		undo := performCompression(ctx, opts.ExposedTypes)
		if opts.Undoable {
			result.undo = undo
		}
	}

	result.sizing = computeSizing(result.bindings, result.multibindings)

	return result, nil
}

func (ctx *context) run() error {
	for len(ctx.entriesToProcess) > 0 {
		entry := ctx.pop()

		var err error
		switch entry.Kind {
		case storage.KindConstructedObject, storage.KindObjectToConstruct:
			err = ctx.handleBinding(entry)
		case storage.KindCompressedBinding:
			ctx.handleCompressedBinding(entry)
		case storage.KindMultibinding:
			err = ctx.handleMultibinding(entry)
		case storage.KindMultibindingVectorCreator:
			err = ctx.handleMultibindingVectorCreator(entry)
		case storage.KindLazyComponent:
			err = ctx.handleLazyComponent(entry)
		case storage.KindEndMarker:
			err = ctx.handleEndMarker(entry)
		case storage.KindReplacedLazyComponent:
			err = ctx.handleReplacedLazyComponent(entry)
		default:
			err = StreamError{Detail: "unknown entry kind"}
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (ctx *context) pop() storage.Entry {
	entry := ctx.entriesToProcess[len(ctx.entriesToProcess)-1]
	ctx.entriesToProcess = ctx.entriesToProcess[:len(ctx.entriesToProcess)-1]
	return entry
}

func (ctx *context) push(entry storage.Entry) {
	ctx.entriesToProcess = append(ctx.entriesToProcess, entry)
}

// handleBinding inserts a resolved binding into the working map, treating
// identical re-registrations as idempotent and conflicting ones as errors.
// Bindings already present in the base component behave the same way.
func (ctx *context) handleBinding(entry storage.Entry) error {
	if ctx.base != nil {
		if baseEntry, ok := ctx.base.Binding(entry.Type); ok {
			if storage.SameBinding(baseEntry, entry) {
				return nil
			}
			return MultipleBindingsError{Type: entry.Type}
		}
	}

	if existing, ok := ctx.bindingDataMap[entry.Type]; ok {
		if storage.SameBinding(existing, entry) {
			return nil
		}
		return MultipleBindingsError{Type: entry.Type}
	}

	ctx.bindingDataMap[entry.Type] = entry
	return nil
}

// handleCompressedBinding records the I aliases C hint. The hint itself never
// enters the binding table. When several interfaces alias the same concrete
// type only the last hint is kept; the dependency scan in the compressor
// vetoes that candidate anyway.
func (ctx *context) handleCompressedBinding(entry storage.Entry) {
	ctx.compressedBindings[entry.Impl] = entry.Type
}

// handleMultibinding consumes a multibinding element together with its
// adjacent vector-creator entry.
func (ctx *context) handleMultibinding(elem storage.Entry) error {
	if len(ctx.entriesToProcess) == 0 {
		return StreamError{Detail: "multibinding entry without adjacent vector creator"}
	}

	creator := ctx.pop()
	if creator.Kind != storage.KindMultibindingVectorCreator || creator.Type != elem.Type {
		return StreamError{Detail: "multibinding entry without adjacent vector creator"}
	}

	ctx.multibindings = append(ctx.multibindings, multibindingPair{elem: elem, creator: creator})
	return nil
}

// handleMultibindingVectorCreator accepts the reverse adjacency order.
func (ctx *context) handleMultibindingVectorCreator(creator storage.Entry) error {
	if len(ctx.entriesToProcess) == 0 {
		return StreamError{Detail: "vector creator entry without adjacent multibinding"}
	}

	elem := ctx.pop()
	if elem.Kind != storage.KindMultibinding || elem.Type != creator.Type {
		return StreamError{Detail: "vector creator entry without adjacent multibinding"}
	}

	ctx.multibindings = append(ctx.multibindings, multibindingPair{elem: elem, creator: creator})
	return nil
}

// handleLazyComponent expands a sub-component reference: skipping it when
// already expanded, substituting its replacement when one was declared, and
// reporting a loop when it is still mid-expansion.
func (ctx *context) handleLazyComponent(entry storage.Entry) error {
	lazy, err := ctx.resolveReplacementChain(entry.Lazy)
	if err != nil {
		return err
	}

	if ctx.fullyExpanded.Contains(lazy) {
		return nil
	}

	if ctx.inProgress.Contains(lazy) {
		return InstallationLoopError{Path: ctx.installationLoopPath(lazy)}
	}

	produced, err := lazy.Produce()
	if err != nil {
		return err
	}

	ctx.push(storage.Entry{Kind: storage.KindEndMarker, Lazy: lazy})

	// Produced entries are in declaration order; push reversed so popping
	// restores it.
	for i := len(produced) - 1; i >= 0; i-- {
		ctx.push(produced[i])
	}

	ctx.inProgress.Insert(lazy)
	return nil
}

// resolveReplacementChain follows declared replacements from target to a
// fixed point. A cycle among replacements is reported as an installation
// loop over the chain.
func (ctx *context) resolveReplacementChain(target *storage.LazyComponent) (*storage.LazyComponent, error) {
	current := target
	var chain []*storage.LazyComponent

	for {
		replacement, ok := ctx.replacements.Get(current)
		if !ok {
			return current, nil
		}

		chain = append(chain, current)
		next := replacement.Replacement

		for _, seen := range chain {
			if seen.Equal(next) {
				return nil, InstallationLoopError{Path: append(chain, next)}
			}
		}

		current = next
	}
}

// installationLoopPath reconstructs the install path for diagnostics: the end
// markers still on the stack, from the outermost occurrence of the repeated
// component, closed with the component itself.
func (ctx *context) installationLoopPath(repeated *storage.LazyComponent) []*storage.LazyComponent {
	var path []*storage.LazyComponent

	for _, entry := range ctx.entriesToProcess {
		if entry.Kind != storage.KindEndMarker {
			continue
		}

		if len(path) == 0 && !entry.Lazy.Equal(repeated) {
			continue
		}

		path = append(path, entry.Lazy)
	}

	return append(path, repeated)
}

// handleEndMarker moves a component from in-progress to fully expanded.
func (ctx *context) handleEndMarker(entry storage.Entry) error {
	if !ctx.inProgress.Remove(entry.Lazy) {
		return StreamError{Detail: "end marker without matching expansion in progress"}
	}

	ctx.fullyExpanded.Insert(entry.Lazy)
	return nil
}

// handleReplacedLazyComponent registers a target-to-replacement mapping.
func (ctx *context) handleReplacedLazyComponent(entry storage.Entry) error {
	if existing, ok := ctx.replacements.Get(entry.Lazy); ok {
		if existing.Replacement.Equal(entry.Replacement) {
			return nil
		}

		return IncompatibleReplacementsError{
			Target:       entry.Lazy,
			ReplacementA: existing.Replacement,
			ReplacementB: entry.Replacement,
		}
	}

	if ctx.fullyExpanded.Contains(entry.Lazy) {
		return ReplacementAfterExpansionError{
			Target:      entry.Lazy,
			Replacement: entry.Replacement,
		}
	}

	ctx.replacements.Put(entry.Lazy, entry)
	return nil
}

// foldMultibindings folds the collected (element, creator) pairs into
// per-TypeId sets. Ordering inside each set is order of first appearance;
// when several creators are emitted for one TypeId the last wins, since the
// surface layer guarantees they are equivalent thunks.
func foldMultibindings(pairs []multibindingPair) map[*typeid.TypeId]*MultibindingSet {
	multis := make(map[*typeid.TypeId]*MultibindingSet)

	for _, pair := range pairs {
		set, ok := multis[pair.elem.Type]
		if !ok {
			set = &MultibindingSet{}
			multis[pair.elem.Type] = set
		}

		set.Elements = append(set.Elements, pair.elem)
		set.VectorCreator = pair.creator.VectorCreate
	}

	return multis
}
