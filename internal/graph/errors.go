package graph

import (
	"fmt"
	"strings"

	"github.com/venscn/fruit/internal/typeid"
)

// CircularDependencyError represents a cycle in the binding dependency graph.
type CircularDependencyError struct {
	Path []*typeid.TypeId
}

func (e CircularDependencyError) Error() string {
	var b strings.Builder
	b.WriteString("circular dependency detected:\n\n")

	for i, id := range e.Path {
		b.WriteString(fmt.Sprintf("    %s\n", id))
		if i < len(e.Path)-1 {
			b.WriteString("      ↓\n")
		}
	}

	b.WriteString("\nTo resolve this:\n")
	b.WriteString("  • Use an interface to break the dependency\n")
	b.WriteString("  • Restructure the constructors to remove the circular relationship\n")

	return b.String()
}

// MissingDependencyError reports bindings whose dependencies have no binding
// anywhere the injector can see.
type MissingDependencyError struct {
	Missing []MissingDependency
}

func (e MissingDependencyError) Error() string {
	var b strings.Builder
	b.WriteString("unsatisfied dependencies:\n\n")

	for _, m := range e.Missing {
		b.WriteString(fmt.Sprintf("    %s requires %s, which has no binding\n", m.Dependent, m.Dependency))
	}

	b.WriteString("\nMake sure every dependency is bound in this component or its base.\n")

	return b.String()
}
