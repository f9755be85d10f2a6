package normalization

import (
	"github.com/venscn/fruit/internal/storage"
	"github.com/venscn/fruit/internal/typeid"
)

// MultibindingSet holds every multibinding registered for one TypeId, in the
// order they first appeared during expansion, plus the thunk that
// materializes the final typed slice. Duplicates are intentionally retained.
type MultibindingSet struct {
	Elements      []storage.Entry
	VectorCreator storage.VectorFn
}

// CompressionUndoInfo records one applied binding compression so it can be
// reversed later: the original binding of the interface type and the original
// binding of the concrete type that was collapsed away.
type CompressionUndoInfo struct {
	IfaceType    *typeid.TypeId
	IfaceBinding storage.Entry
	ImplBinding  storage.Entry
}

// AllocatorSizing aggregates the allocation requirements of every binding
// that constructs a fresh object, so the injector can size its instance
// storage up front.
type AllocatorSizing struct {
	NumTypes   int
	TotalBytes uintptr
	MaxAlign   uintptr
}

func (s *AllocatorSizing) add(id *typeid.TypeId) {
	s.NumTypes++
	s.TotalBytes += id.Size()
	if a := id.Align(); a > s.MaxAlign {
		s.MaxAlign = a
	}
}

// Storage is the immutable result of binding normalization: the deduplicated
// binding table, the accumulated multibinding sets, the allocator sizing, and
// (in undoable mode) the records needed to reverse binding compressions.
type Storage struct {
	bindings      map[*typeid.TypeId]storage.Entry
	multibindings map[*typeid.TypeId]*MultibindingSet
	sizing        AllocatorSizing

	// undo is keyed by the compressed-away concrete TypeId. Nil unless the
	// normalization ran in undoable mode.
	undo map[*typeid.TypeId]CompressionUndoInfo
}

// Binding returns the binding for the given TypeId, if present.
func (s *Storage) Binding(id *typeid.TypeId) (storage.Entry, bool) {
	e, ok := s.bindings[id]
	return e, ok
}

// Multibindings returns the multibinding set for the given TypeId, if any.
func (s *Storage) Multibindings(id *typeid.TypeId) (*MultibindingSet, bool) {
	m, ok := s.multibindings[id]
	return m, ok
}

// Sizing returns the aggregated allocation requirements.
func (s *Storage) Sizing() AllocatorSizing {
	return s.sizing
}

// UndoInfo returns the compression undo record for a compressed-away concrete
// TypeId, if the storage was normalized in undoable mode and the type was
// compressed.
func (s *Storage) UndoInfo(id *typeid.TypeId) (CompressionUndoInfo, bool) {
	info, ok := s.undo[id]
	return info, ok
}

// NumBindings returns the number of entries in the binding table.
func (s *Storage) NumBindings() int {
	return len(s.bindings)
}

// NumMultibindingSets returns the number of distinct multibinding TypeIds.
func (s *Storage) NumMultibindingSets() int {
	return len(s.multibindings)
}

// Bindings iterates the binding table. Iteration order is unspecified.
func (s *Storage) Bindings(yield func(id *typeid.TypeId, e storage.Entry) bool) {
	for id, e := range s.bindings {
		if !yield(id, e) {
			return
		}
	}
}

// MultibindingSets iterates the multibinding sets. Iteration order is
// unspecified.
func (s *Storage) MultibindingSets(yield func(id *typeid.TypeId, set *MultibindingSet) bool) {
	for id, set := range s.multibindings {
		if !yield(id, set) {
			return
		}
	}
}

// RestoreCompressed reinstates a compressed binding pair: the concrete
// binding under impl and the original interface forwarder under the recorded
// interface TypeId. Used when an overlay component references a type the base
// component had compressed away. Idempotent.
func (s *Storage) RestoreCompressed(impl *typeid.TypeId, info CompressionUndoInfo) {
	if _, ok := s.bindings[impl]; !ok {
		s.bindings[impl] = info.ImplBinding
	}

	s.bindings[info.IfaceType] = info.IfaceBinding
	s.sizing = computeSizing(s.bindings, s.multibindings)
}

// computeSizing derives the allocator sizing from the final binding table and
// multibinding sets.
func computeSizing(bindings map[*typeid.TypeId]storage.Entry, multis map[*typeid.TypeId]*MultibindingSet) AllocatorSizing {
	var sizing AllocatorSizing

	for id, e := range bindings {
		if e.Kind == storage.KindObjectToConstruct && e.NeedsAllocation {
			sizing.add(id)
		}
	}

	for id, set := range multis {
		for _, elem := range set.Elements {
			if elem.NeedsAllocation {
				sizing.add(id)
			}
		}
	}

	return sizing
}
