package fruit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/venscn/fruit/internal/graph"
	"github.com/venscn/fruit/internal/normalization"
)

// ========================================
// Core Error Values (Sentinel Errors)
// ========================================
// These are base errors that typed errors wrap; match them with errors.Is.

var (
	// Registration errors.
	ErrConstructorNil   = errors.New("constructor cannot be nil")
	ErrComponentNil     = errors.New("component cannot be nil")
	ErrInstanceNil      = errors.New("instance cannot be nil")
	ErrNotComponentFunc = errors.New("not a component function")

	// Resolution errors.
	ErrBindingNotFound = errors.New("no binding for type")
	ErrInjectorNil     = errors.New("injector cannot be nil")
)

var (
	_ error = ComponentError{}
	_ error = ResolutionError{}
	_ error = SelfLoopError{}
	_ error = UnboundExposedTypeError{}
)

// Type aliases for the normalization and graph error types, so callers can
// match them with errors.As without importing internal packages.

// MultipleBindingsError indicates two non-equivalent bindings were registered
// for the same type.
type MultipleBindingsError = normalization.MultipleBindingsError

// InstallationLoopError indicates a cycle in the component install graph.
type InstallationLoopError = normalization.InstallationLoopError

// IncompatibleReplacementsError indicates two distinct replacements were
// declared for the same target component.
type IncompatibleReplacementsError = normalization.IncompatibleReplacementsError

// ReplacementAfterExpansionError indicates a replacement was declared after
// its target had already been expanded.
type ReplacementAfterExpansionError = normalization.ReplacementAfterExpansionError

// CircularDependencyError indicates a dependency cycle found during eager
// graph validation.
type CircularDependencyError = graph.CircularDependencyError

// MissingDependencyError indicates bindings whose dependencies have no
// binding anywhere the injector can see.
type MissingDependencyError = graph.MissingDependencyError

// ComponentError wraps errors from component registration.
type ComponentError struct {
	Component string
	Cause     error
}

func (e ComponentError) Error() string {
	return fmt.Sprintf("component %q: %v", e.Component, e.Cause)
}

func (e ComponentError) Unwrap() error {
	return e.Cause
}

// ResolutionError wraps errors that occur while resolving a type from an
// injector.
type ResolutionError struct {
	Type  *TypeId
	Cause error
}

func (e ResolutionError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("failed to resolve %s", e.Type))

	if e.Cause != nil && !errors.Is(e.Cause, ErrBindingNotFound) {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
		return b.String()
	}

	b.WriteString(": no binding\n\nMake sure the type is bound in the injector's component or its base.")
	return b.String()
}

func (e ResolutionError) Unwrap() error {
	return e.Cause
}

// SelfLoopError indicates a binding whose dependency closure reached itself
// during construction. Path lists the TypeIds from the repeated type back
// around to itself.
type SelfLoopError struct {
	Path []*TypeId
}

func (e SelfLoopError) Error() string {
	var b strings.Builder
	b.WriteString("dependency loop while constructing:\n\n")

	for i, id := range e.Path {
		b.WriteString(fmt.Sprintf("    %s\n", id))
		if i < len(e.Path)-1 {
			b.WriteString("      ↓\n")
		}
	}

	b.WriteString("\nTo resolve this:\n")
	b.WriteString("  • Break the loop with an interface or a provider that defers the lookup\n")

	return b.String()
}

// UnboundExposedTypeError indicates a type declared exposed at injector
// construction has no binding.
type UnboundExposedTypeError struct {
	Type *TypeId
}

func (e UnboundExposedTypeError) Error() string {
	return fmt.Sprintf("exposed type %s has no binding in the component or its base", e.Type)
}
