package fruit

import (
	"fmt"
	"reflect"

	"github.com/venscn/fruit/internal/reflection"
	"github.com/venscn/fruit/internal/storage"
	"github.com/venscn/fruit/internal/typeid"
)

// defaultAnalyzer caches constructor analysis across all components.
var defaultAnalyzer = reflection.New()

// Provide registers a constructor. The constructor's parameters are resolved
// as dependencies and its return value becomes the binding for the returned
// type; an optional trailing error return aborts injection.
//
// A constructor may instead accept a single parameter object embedding
// fruit.In, or return a result object embedding fruit.Out; see those types
// for the tag protocol. Result-object constructors run at most once per
// injector no matter how many of their fields are injected.
func Provide(constructor any, opts ...ProvideOption) ComponentOption {
	return func(c *Component) error {
		if constructor == nil {
			return ErrConstructorNil
		}

		options := applyProvideOptions(opts)

		info, err := defaultAnalyzer.Analyze(constructor)
		if err != nil {
			return err
		}

		call, deps, softDeps, err := buildCall(info)
		if err != nil {
			return err
		}

		if !info.IsResultObject {
			provided := info.Returns[0]
			c.entries = append(c.entries, storage.Entry{
				Kind: storage.KindObjectToConstruct,
				Type: typeid.Annotated(provided.Type, options.name),
				Create: func(r storage.Resolver) (any, error) {
					outs, err := call(r)
					if err != nil {
						return nil, err
					}
					return outs[0].Interface(), nil
				},
				CreateID:        info.Value.Pointer(),
				Deps:            deps,
				SoftDeps:        softDeps,
				NeedsAllocation: true,
			})

			return nil
		}

		if options.name != "" {
			return fmt.Errorf("Named cannot be used with result-object constructors; use name tags on the fields")
		}

		return provideResultObject(c, info, call, deps, softDeps)
	}
}

// provideResultObject registers one binding per result-object field. The
// constructor invocation itself is bound under a hidden TypeId so the
// injector's at-most-once semantics make all fields share a single call.
func provideResultObject(c *Component, info *reflection.ConstructorInfo, call callFn, deps, softDeps []*typeid.TypeId) error {
	resultType := info.Type.Out(0)
	callID := typeid.Annotated(resultType, fmt.Sprintf("#call:%x", info.Value.Pointer()))

	c.entries = append(c.entries, storage.Entry{
		Kind: storage.KindObjectToConstruct,
		Type: callID,
		Create: func(r storage.Resolver) (any, error) {
			outs, err := call(r)
			if err != nil {
				return nil, err
			}
			return outs[0].Interface(), nil
		},
		CreateID:        info.Value.Pointer(),
		Deps:            deps,
		SoftDeps:        softDeps,
		NeedsAllocation: true,
	})

	for _, ret := range info.Returns {
		fieldIndex := ret.Index

		extract := func(r storage.Resolver) (any, error) {
			result, err := r.Resolve(callID)
			if err != nil {
				return nil, err
			}
			return reflect.ValueOf(result).Field(fieldIndex).Interface(), nil
		}

		if ret.Group != "" {
			tid := typeid.Annotated(ret.Type, ret.Group)
			c.entries = append(c.entries,
				storage.Entry{
					Kind:            storage.KindMultibinding,
					Type:            tid,
					Create:          extract,
					CreateID:        fieldIdentity(ret.Type, info.Value.Pointer(), fieldIndex),
					Deps:            []*typeid.TypeId{callID},
					NeedsAllocation: false,
				},
				storage.Entry{
					Kind:         storage.KindMultibindingVectorCreator,
					Type:         tid,
					VectorCreate: makeReflectVector(ret.Type),
				},
			)

			continue
		}

		c.entries = append(c.entries, storage.Entry{
			Kind:            storage.KindObjectToConstruct,
			Type:            typeid.Annotated(ret.Type, ret.Key),
			Create:          extract,
			CreateID:        fieldIdentity(ret.Type, info.Value.Pointer(), fieldIndex),
			Deps:            []*typeid.TypeId{callID},
			NeedsAllocation: false,
		})
	}

	return nil
}

// fieldIdentity derives a stable identity for one result-object field, so
// re-registering the same constructor is idempotent while two constructors
// providing the same type still conflict. The identity is the interned
// pointer of a reserved-annotation TypeId.
func fieldIdentity(t reflect.Type, fnPC uintptr, fieldIndex int) uintptr {
	id := typeid.Annotated(t, fmt.Sprintf("#field:%x:%d", fnPC, fieldIndex))
	return reflect.ValueOf(id).Pointer()
}

// callFn invokes a constructor with resolved dependencies, returning its raw
// results. The trailing error return, if declared, has already been checked.
type callFn func(r storage.Resolver) ([]reflect.Value, error)

// buildCall compiles a constructor's analyzed shape into an invocation thunk
// plus its dependency lists. Required dependencies go to deps; optional
// fields go to softDeps (they inhibit compression of their target but are
// not validated).
func buildCall(info *reflection.ConstructorInfo) (call callFn, deps, softDeps []*typeid.TypeId, err error) {
	type paramPlan struct {
		param reflection.ParameterInfo
		id    *typeid.TypeId // nil for group parameters
		multi *typeid.TypeId // set for group parameters
	}

	plans := make([]paramPlan, 0, len(info.Parameters))
	for _, param := range info.Parameters {
		plan := paramPlan{param: param}

		if param.Group != "" {
			plan.multi = typeid.Annotated(param.Type.Elem(), param.Group)
		} else {
			plan.id = typeid.Annotated(param.Type, param.Key)
			if param.Optional {
				softDeps = append(softDeps, plan.id)
			} else {
				deps = append(deps, plan.id)
			}
		}

		plans = append(plans, plan)
	}

	resolveParam := func(r storage.Resolver, plan paramPlan) (reflect.Value, error) {
		if plan.multi != nil {
			elems, err := r.ResolveMultibindings(plan.multi)
			if err != nil {
				return reflect.Value{}, err
			}
			if elems == nil {
				return reflect.MakeSlice(plan.param.Type, 0, 0), nil
			}
			return reflect.ValueOf(elems), nil
		}

		if plan.param.Optional {
			value, ok, err := r.ResolveOptional(plan.id)
			if err != nil {
				return reflect.Value{}, err
			}
			if !ok {
				return reflect.Zero(plan.param.Type), nil
			}
			return reflect.ValueOf(value), nil
		}

		value, err := r.Resolve(plan.id)
		if err != nil {
			return reflect.Value{}, err
		}
		if value == nil {
			return reflect.Zero(plan.param.Type), nil
		}
		return reflect.ValueOf(value), nil
	}

	if info.IsParamObject {
		paramType := info.Type.In(0)

		call = func(r storage.Resolver) ([]reflect.Value, error) {
			arg := reflect.New(paramType).Elem()
			for _, plan := range plans {
				value, err := resolveParam(r, plan)
				if err != nil {
					return nil, err
				}
				arg.Field(plan.param.Index).Set(value)
			}

			return invoke(info, []reflect.Value{arg})
		}

		return call, deps, softDeps, nil
	}

	call = func(r storage.Resolver) ([]reflect.Value, error) {
		args := make([]reflect.Value, len(plans))
		for i, plan := range plans {
			value, err := resolveParam(r, plan)
			if err != nil {
				return nil, err
			}
			args[i] = value
		}

		return invoke(info, args)
	}

	return call, deps, softDeps, nil
}

// invoke calls the constructor and separates a declared trailing error.
func invoke(info *reflection.ConstructorInfo, args []reflect.Value) ([]reflect.Value, error) {
	outs := info.Value.Call(args)

	if info.HasErrorReturn {
		if errValue := outs[len(outs)-1]; !errValue.IsNil() {
			return nil, errValue.Interface().(error)
		}
		outs = outs[:len(outs)-1]
	}

	return outs, nil
}

// makeReflectVector is the reflection-based counterpart of makeVector, used
// where the element type is only known as a reflect.Type.
func makeReflectVector(elemType reflect.Type) storage.VectorFn {
	return func(elems []any) any {
		out := reflect.MakeSlice(reflect.SliceOf(elemType), 0, len(elems))
		for _, elem := range elems {
			out = reflect.Append(out, reflect.ValueOf(elem))
		}

		return out.Interface()
	}
}
