package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venscn/fruit/internal/storage"
)

func componentAlpha() {}
func componentBeta()  {}

func noEntries() ([]storage.Entry, error) { return nil, nil }

func TestLazyComponent_NoArgsIdentity(t *testing.T) {
	a := storage.NewLazyComponent(componentAlpha, nil, noEntries)
	b := storage.NewLazyComponent(componentAlpha, nil, noEntries)
	c := storage.NewLazyComponent(componentBeta, nil, noEntries)

	assert.True(t, a.Equal(b), "same function must compare equal")
	assert.False(t, a.Equal(c), "different functions must differ")
	assert.Equal(t, a.HashCode(), b.HashCode())
}

func TestLazyComponent_ArgsIdentity(t *testing.T) {
	a := storage.NewLazyComponent(componentAlpha, []any{1, "x"}, noEntries)
	b := storage.NewLazyComponent(componentAlpha, []any{1, "x"}, noEntries)
	c := storage.NewLazyComponent(componentAlpha, []any{2, "x"}, noEntries)

	assert.True(t, a.Equal(b), "equal args must compare equal")
	assert.Equal(t, a.HashCode(), b.HashCode())
	assert.False(t, a.Equal(c), "different args must differ")
}

func TestLazyComponent_ArgsVsNoArgs(t *testing.T) {
	withArgs := storage.NewLazyComponent(componentAlpha, []any{1}, noEntries)
	noArgs := storage.NewLazyComponent(componentAlpha, nil, noEntries)

	assert.True(t, withArgs.HasArgs())
	assert.False(t, noArgs.HasArgs())
	assert.False(t, withArgs.Equal(noArgs))
}

func TestLazyComponent_String(t *testing.T) {
	c := storage.NewLazyComponent(componentAlpha, []any{7}, noEntries)

	s := c.String()
	assert.Contains(t, s, "componentAlpha")
	assert.Contains(t, s, "7")
}

func TestLazySet(t *testing.T) {
	set := storage.NewLazySet()

	a := storage.NewLazyComponent(componentAlpha, nil, noEntries)
	aAgain := storage.NewLazyComponent(componentAlpha, nil, noEntries)
	b := storage.NewLazyComponent(componentBeta, nil, noEntries)

	assert.False(t, set.Contains(a))

	set.Insert(a)
	assert.True(t, set.Contains(a))
	assert.True(t, set.Contains(aAgain), "membership is structural, not pointer-based")
	assert.False(t, set.Contains(b))

	// Double insert stays a single member.
	set.Insert(aAgain)
	require.True(t, set.Remove(a))
	assert.False(t, set.Contains(a))
	assert.False(t, set.Remove(a))
}

func TestLazyMap(t *testing.T) {
	m := storage.NewLazyMap()

	a := storage.NewLazyComponent(componentAlpha, []any{1}, noEntries)
	aAgain := storage.NewLazyComponent(componentAlpha, []any{1}, noEntries)

	_, ok := m.Get(a)
	assert.False(t, ok)

	m.Put(a, storage.Entry{Kind: storage.KindLazyComponent})
	got, ok := m.Get(aAgain)
	require.True(t, ok)
	assert.Equal(t, storage.KindLazyComponent, got.Kind)

	// Overwrite keeps a single mapping.
	m.Put(aAgain, storage.Entry{Kind: storage.KindEndMarker})
	got, ok = m.Get(a)
	require.True(t, ok)
	assert.Equal(t, storage.KindEndMarker, got.Kind)
}

func TestSameBinding(t *testing.T) {
	x := &struct{ n int }{n: 1}
	y := &struct{ n int }{n: 1}

	tests := []struct {
		name string
		a, b storage.Entry
		want bool
	}{
		{
			name: "same instance",
			a:    storage.Entry{Kind: storage.KindConstructedObject, Object: x},
			b:    storage.Entry{Kind: storage.KindConstructedObject, Object: x},
			want: true,
		},
		{
			name: "distinct instances conflict",
			a:    storage.Entry{Kind: storage.KindConstructedObject, Object: x},
			b:    storage.Entry{Kind: storage.KindConstructedObject, Object: y},
			want: false,
		},
		{
			name: "uncomparable instances conflict",
			a:    storage.Entry{Kind: storage.KindConstructedObject, Object: []int{1}},
			b:    storage.Entry{Kind: storage.KindConstructedObject, Object: []int{1}},
			want: false,
		},
		{
			name: "same create identity",
			a:    storage.Entry{Kind: storage.KindObjectToConstruct, CreateID: 42},
			b:    storage.Entry{Kind: storage.KindObjectToConstruct, CreateID: 42},
			want: true,
		},
		{
			name: "different create identity",
			a:    storage.Entry{Kind: storage.KindObjectToConstruct, CreateID: 42},
			b:    storage.Entry{Kind: storage.KindObjectToConstruct, CreateID: 43},
			want: false,
		},
		{
			name: "kind mismatch",
			a:    storage.Entry{Kind: storage.KindConstructedObject, Object: x},
			b:    storage.Entry{Kind: storage.KindObjectToConstruct, CreateID: 42},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, storage.SameBinding(tt.a, tt.b))
		})
	}
}
