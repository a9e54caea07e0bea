package vm

import (
	"fmt"

	"github.com/wasmcore/vm/api"
	"github.com/wasmcore/vm/internal/interpreter"
	"github.com/wasmcore/vm/internal/wasm"
)

// FuncHandle is a callable bound to one function in one store. Call takes
// no store argument and always runs against the store the handle was minted
// from; the store id recorded at minting is compared with that same store's
// id, so a handle cannot be presented to a different store.
type FuncHandle struct {
	store   *Store
	mi      *wasm.ModuleInstance
	fn      *wasm.FunctionInstance
	storeID uint64
}

// Type returns the function's signature.
func (h *FuncHandle) Type() api.FunctionType { return h.fn.Type }

// Call invokes the function with args, driving the interpreter to
// completion or to a trap. args must match the function's parameter arity
// and types exactly; see interpreter.CallFunction.
func (h *FuncHandle) Call(args []api.Value) ([]api.Value, error) {
	if h.storeID != h.store.ID() {
		return nil, &StoreMismatchError{Want: h.storeID, Got: h.store.ID()}
	}
	return interpreter.CallFunction(h.store.inner, h.store.cfg, h.fn, h.mi, args)
}

// StoreMismatchError reports a FuncHandle used against a store other than
// the one that minted it.
type StoreMismatchError struct{ Want, Got uint64 }

func (e *StoreMismatchError) Error() string {
	return fmt.Sprintf("vm: handle minted against store %d, used against %d", e.Want, e.Got)
}

// TypedFuncHandle wraps a FuncHandle with Go-native argument and single
// result conversion. Go has no tuple generics, so args are passed
// positionally as `any` and checked against the declared signature at call
// time rather than at handle construction (recorded in DESIGN.md).
type TypedFuncHandle[R any] struct {
	handle *FuncHandle
}

// GetTypedFunc looks up an exported function and wraps it for typed calls.
func GetTypedFunc[R any](mi *ModuleInstance, name string) (*TypedFuncHandle[R], bool) {
	h, ok := mi.GetFunc(name)
	if !ok {
		return nil, false
	}
	return &TypedFuncHandle[R]{handle: h}, true
}

// Call converts args to api.Value via toValue, invokes the function, and
// converts its first result to R via fromValue. A function with zero
// results returns the zero value of R alongside a nil error.
func (h *TypedFuncHandle[R]) Call(args ...any) (R, error) {
	var zero R
	params := h.handle.fn.Type.Params
	if len(args) != len(params) {
		return zero, &interpreter.TypeError{Reason: fmt.Sprintf("expected %d arguments, got %d", len(params), len(args))}
	}
	vals := make([]api.Value, len(args))
	for i, a := range args {
		v, err := toValue(a, params[i])
		if err != nil {
			return zero, err
		}
		vals[i] = v
	}
	results, err := h.handle.Call(vals)
	if err != nil {
		return zero, err
	}
	if len(results) == 0 {
		return zero, nil
	}
	return fromValue[R](results[0])
}

func toValue(a any, want api.ValueType) (api.Value, error) {
	switch v := a.(type) {
	case api.Value:
		return v, nil
	case int32:
		return api.I32(v), nil
	case int64:
		return api.I64(v), nil
	case float32:
		return api.F32(v), nil
	case float64:
		return api.F64(v), nil
	default:
		return api.Value{}, &interpreter.TypeError{Reason: fmt.Sprintf("unsupported argument type %T for %s parameter", a, api.ValueTypeName(want))}
	}
}

func fromValue[R any](v api.Value) (R, error) {
	var out any
	switch v.Type {
	case api.ValueTypeI32:
		out = v.I32()
	case api.ValueTypeI64:
		out = v.I64()
	case api.ValueTypeF32:
		out = v.F32()
	case api.ValueTypeF64:
		out = v.F64()
	default:
		out = v
	}
	r, ok := out.(R)
	if !ok {
		var zero R
		return zero, &interpreter.TypeError{Reason: fmt.Sprintf("result type %s does not convert to requested Go type", api.ValueTypeName(v.Type))}
	}
	return r, nil
}
