package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/venscn/fruit"
)

// InjectorBuilder provides a fluent interface for building test injectors.
type InjectorBuilder struct {
	t         *testing.T
	name      string
	opts      []fruit.ComponentOption
	buildOpts []fruit.BuildOption
}

// NewInjectorBuilder creates a builder for a component named "test".
func NewInjectorBuilder(t *testing.T) *InjectorBuilder {
	return &InjectorBuilder{t: t, name: "test"}
}

// With appends component declarations.
func (b *InjectorBuilder) With(opts ...fruit.ComponentOption) *InjectorBuilder {
	b.opts = append(b.opts, opts...)
	return b
}

// WithBuildOptions appends injector build options.
func (b *InjectorBuilder) WithBuildOptions(opts ...fruit.BuildOption) *InjectorBuilder {
	b.buildOpts = append(b.buildOpts, opts...)
	return b
}

// Component assembles the component without building an injector.
func (b *InjectorBuilder) Component() *fruit.Component {
	return fruit.NewComponent(b.name, b.opts...)
}

// Build builds the injector, failing the test on error.
func (b *InjectorBuilder) Build() *fruit.Injector {
	injector, err := fruit.NewInjector(b.Component(), b.buildOpts...)
	require.NoError(b.t, err, "failed to build injector")
	return injector
}

// BuildError builds the injector expecting failure and returns the error.
func (b *InjectorBuilder) BuildError() error {
	_, err := fruit.NewInjector(b.Component(), b.buildOpts...)
	require.Error(b.t, err, "expected injector build to fail")
	return err
}
