// Package reflection analyzes provider constructors: it extracts the
// provided type, the dependency list, and the dig.In / dig.Out param- and
// result-object shapes the surface API accepts.
package reflection

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/dig"
)

var (
	inType  = reflect.TypeOf(dig.In{})
	outType = reflect.TypeOf(dig.Out{})
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// Analyzer performs reflection-based analysis of constructors and caches the
// results per function pointer.
type Analyzer struct {
	mu    sync.RWMutex
	cache map[uintptr]*ConstructorInfo
}

// ConstructorInfo contains the analyzed shape of a constructor function.
type ConstructorInfo struct {
	Type  reflect.Type
	Value reflect.Value

	Parameters []ParameterInfo
	Returns    []ReturnInfo

	// IsParamObject is true when the constructor takes a single struct
	// parameter embedding dig.In.
	IsParamObject bool

	// IsResultObject is true when the first return embeds dig.Out.
	IsResultObject bool

	// HasErrorReturn is true when the last return value is an error.
	HasErrorReturn bool
}

// ParameterInfo describes a constructor parameter or a field in a dig.In
// struct.
type ParameterInfo struct {
	Type     reflect.Type
	Name     string // field name for param objects
	Index    int    // parameter index or field index
	Optional bool   // from optional:"true"
	Group    string // from group:"name"
	Key      string // from name:"key"
}

// ReturnInfo describes a constructor return value or a field in a dig.Out
// struct.
type ReturnInfo struct {
	Type  reflect.Type
	Name  string // field name for result objects
	Index int    // return index or field index
	Group string // from group:"name"
	Key   string // from name:"key"
}

// New creates a new Analyzer.
func New() *Analyzer {
	return &Analyzer{cache: make(map[uintptr]*ConstructorInfo)}
}

// Analyze extracts dependency and result information from a constructor
// function.
func (a *Analyzer) Analyze(constructor any) (*ConstructorInfo, error) {
	if constructor == nil {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	val := reflect.ValueOf(constructor)
	if !val.IsValid() || val.Kind() != reflect.Func || val.IsNil() {
		return nil, fmt.Errorf("constructor must be a non-nil function, got %T", constructor)
	}

	cacheKey := val.Pointer()

	a.mu.RLock()
	if cached, ok := a.cache[cacheKey]; ok {
		a.mu.RUnlock()
		return cached, nil
	}
	a.mu.RUnlock()

	info := &ConstructorInfo{
		Type:  val.Type(),
		Value: val,
	}

	if err := a.analyzeParameters(info); err != nil {
		return nil, fmt.Errorf("failed to analyze parameters: %w", err)
	}

	if err := a.analyzeReturns(info); err != nil {
		return nil, fmt.Errorf("failed to analyze returns: %w", err)
	}

	a.mu.Lock()
	a.cache[cacheKey] = info
	a.mu.Unlock()

	return info, nil
}

// analyzeParameters analyzes function parameters or dig.In struct fields.
func (a *Analyzer) analyzeParameters(info *ConstructorInfo) error {
	fnType := info.Type

	if fnType.NumIn() == 1 && hasEmbedded(fnType.In(0), inType) {
		info.IsParamObject = true
		return a.analyzeParamObject(info, fnType.In(0))
	}

	for i := 0; i < fnType.NumIn(); i++ {
		paramType := fnType.In(i)
		if hasEmbedded(paramType, inType) {
			return fmt.Errorf("parameter objects must be the only parameter, found one at position %d of %d", i, fnType.NumIn())
		}

		info.Parameters = append(info.Parameters, ParameterInfo{
			Type:  paramType,
			Index: i,
		})
	}

	return nil
}

func (a *Analyzer) analyzeParamObject(info *ConstructorInfo, paramType reflect.Type) error {
	for i := 0; i < paramType.NumField(); i++ {
		field := paramType.Field(i)

		if field.Anonymous && field.Type == inType {
			continue
		}

		if !field.IsExported() {
			continue
		}

		param := ParameterInfo{
			Type:     field.Type,
			Name:     field.Name,
			Index:    i,
			Optional: field.Tag.Get("optional") == "true",
			Group:    field.Tag.Get("group"),
			Key:      field.Tag.Get("name"),
		}

		if param.Group != "" {
			if param.Key != "" {
				return fmt.Errorf("field %s cannot use both name and group tags", field.Name)
			}
			if field.Type.Kind() != reflect.Slice {
				return fmt.Errorf("field %s has a group tag but is not a slice", field.Name)
			}
		}

		info.Parameters = append(info.Parameters, param)
	}

	return nil
}

// analyzeReturns analyzes function return values or dig.Out struct fields.
func (a *Analyzer) analyzeReturns(info *ConstructorInfo) error {
	fnType := info.Type

	if fnType.NumOut() == 0 {
		return fmt.Errorf("constructor must return at least one value")
	}

	first := fnType.Out(0)
	if hasEmbedded(first, outType) {
		info.IsResultObject = true

		switch fnType.NumOut() {
		case 1:
		case 2:
			if !fnType.Out(1).Implements(errType) {
				return fmt.Errorf("the second return of a result-object constructor must be error, got %s", fnType.Out(1))
			}
			info.HasErrorReturn = true
		default:
			return fmt.Errorf("result-object constructors may return at most (result, error)")
		}

		return a.analyzeResultObject(info, first)
	}

	switch fnType.NumOut() {
	case 1:
		if first.Implements(errType) {
			return fmt.Errorf("constructor must provide a value, not just an error")
		}
	case 2:
		if !fnType.Out(1).Implements(errType) {
			return fmt.Errorf("the second return must be error, got %s", fnType.Out(1))
		}
		info.HasErrorReturn = true
	default:
		return fmt.Errorf("constructor may return at most (value, error), got %d returns", fnType.NumOut())
	}

	info.Returns = append(info.Returns, ReturnInfo{Type: first, Index: 0})
	return nil
}

func (a *Analyzer) analyzeResultObject(info *ConstructorInfo, resultType reflect.Type) error {
	for i := 0; i < resultType.NumField(); i++ {
		field := resultType.Field(i)

		if field.Anonymous && field.Type == outType {
			continue
		}

		if !field.IsExported() {
			continue
		}

		ret := ReturnInfo{
			Type:  field.Type,
			Name:  field.Name,
			Index: i,
			Group: field.Tag.Get("group"),
			Key:   field.Tag.Get("name"),
		}

		if ret.Group != "" && ret.Key != "" {
			return fmt.Errorf("field %s cannot use both name and group tags", field.Name)
		}

		info.Returns = append(info.Returns, ret)
	}

	if len(info.Returns) == 0 {
		return fmt.Errorf("result object %s has no exported fields to provide", resultType)
	}

	return nil
}

// hasEmbedded reports whether t is a struct anonymously embedding marker.
func hasEmbedded(t reflect.Type, marker reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && field.Type == marker {
			return true
		}
	}

	return false
}
