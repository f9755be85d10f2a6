package typeid_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venscn/fruit/internal/typeid"
)

type widget struct{ n int }
type gadget struct{ s string }

func TestTypeId_Interning(t *testing.T) {
	a := typeid.Of(reflect.TypeOf(widget{}))
	b := typeid.Of(reflect.TypeOf(widget{}))

	require.NotNil(t, a)
	assert.Same(t, a, b, "same type must intern to the same TypeId")
}

func TestTypeId_DistinctTypes(t *testing.T) {
	a := typeid.Of(reflect.TypeOf(widget{}))
	b := typeid.Of(reflect.TypeOf(gadget{}))

	assert.NotSame(t, a, b)
}

func TestTypeId_AnnotationDistinguishes(t *testing.T) {
	plain := typeid.Of(reflect.TypeOf(widget{}))
	named := typeid.Annotated(reflect.TypeOf(widget{}), "primary")
	namedAgain := typeid.Annotated(reflect.TypeOf(widget{}), "primary")
	other := typeid.Annotated(reflect.TypeOf(widget{}), "secondary")

	assert.NotSame(t, plain, named)
	assert.Same(t, named, namedAgain)
	assert.NotSame(t, named, other)

	assert.Equal(t, "primary", named.Annotation())
	assert.Empty(t, plain.Annotation())
}

func TestTypeId_TotalOrder(t *testing.T) {
	type first struct{}
	type second struct{}

	a := typeid.Of(reflect.TypeOf(first{}))
	b := typeid.Of(reflect.TypeOf(second{}))

	assert.True(t, a.Less(b) || b.Less(a), "distinct TypeIds must be ordered")
	assert.False(t, a.Less(a), "order must be irreflexive")
}

func TestTypeId_UsableAsMapKey(t *testing.T) {
	m := map[*typeid.TypeId]int{}

	a := typeid.Of(reflect.TypeOf(widget{}))
	m[a] = 1
	m[typeid.Of(reflect.TypeOf(widget{}))] = 2

	assert.Len(t, m, 1)
	assert.Equal(t, 2, m[a])
}

func TestTypeId_String(t *testing.T) {
	plain := typeid.Of(reflect.TypeOf(&widget{}))
	assert.Contains(t, plain.String(), "widget")

	named := typeid.Annotated(reflect.TypeOf(widget{}), "ro")
	assert.Contains(t, named.String(), "ro")
}

func TestTypeId_Sizing(t *testing.T) {
	id := typeid.Of(reflect.TypeOf(widget{}))

	assert.Equal(t, reflect.TypeOf(widget{}).Size(), id.Size())
	assert.Equal(t, uintptr(reflect.TypeOf(widget{}).Align()), id.Align())
}

func TestTypeId_ConcurrentInterning(t *testing.T) {
	type racy struct{}
	rt := reflect.TypeOf(racy{})

	results := make(chan *typeid.TypeId, 32)
	for i := 0; i < 32; i++ {
		go func() {
			results <- typeid.Of(rt)
		}()
	}

	first := <-results
	for i := 1; i < 32; i++ {
		assert.Same(t, first, <-results)
	}
}
