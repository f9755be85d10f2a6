package normalization

import (
	"fmt"
	"strings"

	"github.com/venscn/fruit/internal/storage"
	"github.com/venscn/fruit/internal/typeid"
)

var (
	_ error = MultipleBindingsError{}
	_ error = InstallationLoopError{}
	_ error = IncompatibleReplacementsError{}
	_ error = ReplacementAfterExpansionError{}
	_ error = StreamError{}
)

// MultipleBindingsError indicates two non-equivalent bindings were registered
// for the same type.
type MultipleBindingsError struct {
	Type *typeid.TypeId
}

func (e MultipleBindingsError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("multiple bindings for %s\n\n", e.Type))

	b.WriteString("The same type was bound twice with different values or constructors.\n")
	b.WriteString("A type can have at most one binding per injector.\n\n")

	b.WriteString("To resolve this:\n")
	b.WriteString("  • Remove one of the bindings\n")
	b.WriteString("  • Use an annotation to register both under distinct names\n")
	b.WriteString("  • Use a multibinding if you want to collect several values\n")

	return b.String()
}

// InstallationLoopError indicates a cycle in the component install graph:
// a lazy component was encountered again while its own expansion was still in
// progress. Path lists the component identities from the repeat point.
type InstallationLoopError struct {
	Path []*storage.LazyComponent
}

func (e InstallationLoopError) Error() string {
	var b strings.Builder
	b.WriteString("component installation loop detected:\n\n")

	for i, c := range e.Path {
		b.WriteString(fmt.Sprintf("    %s\n", c))
		if i < len(e.Path)-1 {
			b.WriteString("      installs\n")
		}
	}

	b.WriteString("\nTo resolve this:\n")
	b.WriteString("  • Break the cycle by extracting the shared bindings into a third component\n")
	b.WriteString("  • Install the shared component from both places instead of each other\n")

	return b.String()
}

// IncompatibleReplacementsError indicates two distinct replacements were
// declared for the same target component.
type IncompatibleReplacementsError struct {
	Target       *storage.LazyComponent
	ReplacementA *storage.LazyComponent
	ReplacementB *storage.LazyComponent
}

func (e IncompatibleReplacementsError) Error() string {
	return fmt.Sprintf(
		"incompatible replacements for component %s: already replaced by %s, cannot also replace by %s",
		e.Target, e.ReplacementA, e.ReplacementB)
}

// ReplacementAfterExpansionError indicates a replacement was declared for a
// component that had already been fully expanded. Replacements must be
// installed before the component they replace.
type ReplacementAfterExpansionError struct {
	Target      *storage.LazyComponent
	Replacement *storage.LazyComponent
}

func (e ReplacementAfterExpansionError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("component %s was already expanded when the replacement %s was declared\n\n",
		e.Target, e.Replacement))

	b.WriteString("Replacements only take effect for components installed after them.\n\n")

	b.WriteString("To resolve this:\n")
	b.WriteString("  • Declare the replacement before the first install of the target\n")

	return b.String()
}

// StreamError indicates the entry stream violated the storage protocol
// (unbalanced end markers, broken multibinding adjacency). These point at a
// builder bug, not at user configuration.
type StreamError struct {
	Detail string
}

func (e StreamError) Error() string {
	return fmt.Sprintf("malformed component storage stream: %s", e.Detail)
}
