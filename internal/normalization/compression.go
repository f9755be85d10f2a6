package normalization

import (
	"sort"

	"github.com/venscn/fruit/internal/storage"
	"github.com/venscn/fruit/internal/typeid"
)

// performCompression rewrites I->C plus C->create(deps) into I->create(deps),
// removing the intermediate concrete binding and its allocation. Candidates
// come from the CompressedBinding hints collected during expansion; a
// candidate survives only when collapsing the concrete type cannot be
// observed by anything else in the component.
//
// Returns the undo records, keyed by the compressed-away concrete TypeId.
func performCompression(ctx *context, exposedTypes []*typeid.TypeId) map[*typeid.TypeId]CompressionUndoInfo {
	exposed := make(map[*typeid.TypeId]bool, len(exposedTypes))
	for _, id := range exposedTypes {
		exposed[id] = true
	}

	// Candidates are processed in TypeId order so chained compressions
	// resolve the same way on every run.
	candidates := make([]*typeid.TypeId, 0, len(ctx.compressedBindings))
	for impl := range ctx.compressedBindings {
		candidates = append(candidates, impl)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Less(candidates[j])
	})

	undo := make(map[*typeid.TypeId]CompressionUndoInfo)

	for _, impl := range candidates {
		iface := ctx.compressedBindings[impl]

		if !ctx.compressible(iface, impl, exposed) {
			continue
		}

		ifaceBinding := ctx.bindingDataMap[iface]
		implBinding := ctx.bindingDataMap[impl]

		fused := implBinding
		fused.Type = iface

		ctx.bindingDataMap[iface] = fused
		delete(ctx.bindingDataMap, impl)

		undo[impl] = CompressionUndoInfo{
			IfaceType:    iface,
			IfaceBinding: ifaceBinding,
			ImplBinding:  implBinding,
		}
	}

	return undo
}

// compressible applies the veto rules for one (iface, impl) candidate.
func (ctx *context) compressible(iface, impl *typeid.TypeId, exposed map[*typeid.TypeId]bool) bool {
	// The user explicitly requested the concrete type.
	if exposed[impl] {
		return false
	}

	ifaceBinding, ok := ctx.bindingDataMap[iface]
	if !ok || ifaceBinding.Kind != storage.KindObjectToConstruct {
		return false
	}

	implBinding, ok := ctx.bindingDataMap[impl]
	if !ok || implBinding.Kind != storage.KindObjectToConstruct {
		return false
	}

	// Some binding other than the interface forwarder still injects the
	// concrete type directly.
	for id, entry := range ctx.bindingDataMap {
		if id == iface {
			continue
		}

		if entryReferences(entry, impl) {
			return false
		}
	}

	// The concrete type participates in multibindings, either as the set's
	// type or as a dependency of an element.
	for _, pair := range ctx.multibindings {
		if pair.elem.Type == impl {
			return false
		}

		if entryReferences(pair.elem, impl) {
			return false
		}
	}

	return true
}

func entryReferences(entry storage.Entry, id *typeid.TypeId) bool {
	for _, dep := range entry.Deps {
		if dep == id {
			return true
		}
	}

	for _, dep := range entry.SoftDeps {
		if dep == id {
			return true
		}
	}

	return false
}
