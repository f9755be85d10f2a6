package storage

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"reflect"
	"runtime"
	"strings"
)

// LazyComponent is a sub-component referenced by a factory function instead
// of inlined entries. Components without arguments are identified by the
// factory's code pointer; components with arguments are identified
// structurally by the (function, arguments) pair.
type LazyComponent struct {
	fn   reflect.Value
	fnPC uintptr
	args []any
	hash uint64

	// produce invokes the factory and returns the component's entries in
	// declaration order.
	produce func() ([]Entry, error)
}

// NewLazyComponent wraps a component factory function. args is nil for
// no-argument components. produce must invoke fn with args and flatten the
// resulting component into entries.
func NewLazyComponent(fn any, args []any, produce func() ([]Entry, error)) *LazyComponent {
	v := reflect.ValueOf(fn)

	c := &LazyComponent{
		fn:      v,
		fnPC:    v.Pointer(),
		args:    args,
		produce: produce,
	}
	c.hash = c.computeHash()

	return c
}

// HasArgs reports whether this component carries an argument tuple.
func (c *LazyComponent) HasArgs() bool {
	return c.args != nil
}

// HashCode returns the structural hash of (fn, args).
func (c *LazyComponent) HashCode() uint64 {
	return c.hash
}

// Equal reports structural identity: same factory function and, for
// components with arguments, equal argument tuples.
func (c *LazyComponent) Equal(other *LazyComponent) bool {
	if c == nil || other == nil {
		return c == other
	}

	if c.fnPC != other.fnPC || len(c.args) != len(other.args) {
		return false
	}

	for i := range c.args {
		if !reflect.DeepEqual(c.args[i], other.args[i]) {
			return false
		}
	}

	return true
}

// Produce expands the component into its entries, in declaration order.
func (c *LazyComponent) Produce() ([]Entry, error) {
	return c.produce()
}

func (c *LazyComponent) computeHash() uint64 {
	h := fnv.New64a()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(c.fnPC))
	h.Write(buf[:])

	for _, arg := range c.args {
		fmt.Fprintf(h, "%T=%v;", arg, arg)
	}

	return h.Sum64()
}

// String names the component for diagnostics: the factory function's name
// plus its arguments, if any.
func (c *LazyComponent) String() string {
	name := "<unknown>"
	if f := runtime.FuncForPC(c.fnPC); f != nil {
		name = f.Name()
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
	}

	if len(c.args) == 0 {
		return name
	}

	parts := make([]string, len(c.args))
	for i, arg := range c.args {
		parts[i] = fmt.Sprintf("%v", arg)
	}

	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}

// LazySet is a hash set of lazy components using their structural identity.
// Buckets hold the rare hash collisions.
type LazySet struct {
	buckets map[uint64][]*LazyComponent
}

// NewLazySet creates an empty set.
func NewLazySet() *LazySet {
	return &LazySet{buckets: make(map[uint64][]*LazyComponent)}
}

// Contains reports membership by structural identity.
func (s *LazySet) Contains(c *LazyComponent) bool {
	for _, member := range s.buckets[c.HashCode()] {
		if member.Equal(c) {
			return true
		}
	}

	return false
}

// Insert adds c; inserting an already-present component is a no-op.
func (s *LazySet) Insert(c *LazyComponent) {
	if s.Contains(c) {
		return
	}

	s.buckets[c.HashCode()] = append(s.buckets[c.HashCode()], c)
}

// Remove deletes c from the set and reports whether it was present.
func (s *LazySet) Remove(c *LazyComponent) bool {
	bucket := s.buckets[c.HashCode()]
	for i, member := range bucket {
		if member.Equal(c) {
			s.buckets[c.HashCode()] = append(bucket[:i], bucket[i+1:]...)
			return true
		}
	}

	return false
}

// LazyMap maps lazy components (by structural identity) to entries. Used for
// the replacement tables.
type LazyMap struct {
	buckets map[uint64][]lazyMapPair
}

type lazyMapPair struct {
	key   *LazyComponent
	value Entry
}

// NewLazyMap creates an empty map.
func NewLazyMap() *LazyMap {
	return &LazyMap{buckets: make(map[uint64][]lazyMapPair)}
}

// Get returns the entry mapped to c, if any.
func (m *LazyMap) Get(c *LazyComponent) (Entry, bool) {
	for _, pair := range m.buckets[c.HashCode()] {
		if pair.key.Equal(c) {
			return pair.value, true
		}
	}

	return Entry{}, false
}

// Put maps c to value, overwriting any previous mapping.
func (m *LazyMap) Put(c *LazyComponent, value Entry) {
	bucket := m.buckets[c.HashCode()]
	for i, pair := range bucket {
		if pair.key.Equal(c) {
			bucket[i].value = value
			return
		}
	}

	m.buckets[c.HashCode()] = append(bucket, lazyMapPair{key: c, value: value})
}
