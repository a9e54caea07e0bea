package wasm

import (
	"github.com/wasmcore/vm/api"
	"github.com/wasmcore/vm/internal/ir"
)

// EvalConst evaluates a constant expression: i32/i64/f32/f64 const,
// global.get (previously-initialized only), ref.null, ref.func. Any other
// operator fails. The same evaluator runs for global initializers, element
// items, and active-segment offsets.
func EvalConst(ops []ir.Operator, mi *ModuleInstance) (api.Value, error) {
	var result api.Value
	got := false
	for _, op := range ops {
		switch op.Op {
		case ir.OpEnd:
			if !got {
				return api.Value{}, &InvalidConstantExpressionError{Reason: "empty constant expression"}
			}
			return result, nil
		case ir.OpConstI32:
			result, got = api.I32(op.I32), true
		case ir.OpConstI64:
			result, got = api.I64(op.I64), true
		case ir.OpConstF32:
			result, got = api.F32Bits(op.F32), true
		case ir.OpConstF64:
			result, got = api.F64Bits(op.F64), true
		case ir.OpGlobalGet:
			addr, err := mi.ResolveGlobalAddr(op.Index)
			if err != nil {
				return api.Value{}, err
			}
			v, err := mi.Store.GetGlobalVal(addr)
			if err != nil {
				return api.Value{}, err
			}
			result, got = v, true
		case ir.OpRefNull:
			result, got = api.NullRef(op.ValType), true
		case ir.OpRefFunc:
			addr, err := mi.ResolveFuncAddr(op.Index)
			if err != nil {
				return api.Value{}, err
			}
			result, got = api.FuncRef(uint32(addr)), true
		default:
			return api.Value{}, &ir.UnsupportedOperatorError{Op: op.Op}
		}
	}
	if !got {
		return api.Value{}, &InvalidConstantExpressionError{Reason: "missing end"}
	}
	return result, nil
}

// EvalConstI32 evaluates a constant expression and requires an i32 result,
// used for element/data segment offsets.
func EvalConstI32(ops []ir.Operator, mi *ModuleInstance) (uint32, error) {
	v, err := EvalConst(ops, mi)
	if err != nil {
		return 0, err
	}
	if v.Type != api.ValueTypeI32 {
		return 0, &InvalidConstantExpressionError{Reason: "offset expression is not i32"}
	}
	return uint32(v.I32()), nil
}

// EvalConstRef evaluates a constant expression and requires a reference
// result, used for element items.
func EvalConstRef(ops []ir.Operator, mi *ModuleInstance) (Reference, error) {
	v, err := EvalConst(ops, mi)
	if err != nil {
		return Reference{}, err
	}
	if !api.IsReference(v.Type) {
		return Reference{}, &InvalidConstantExpressionError{Reason: "item expression is not a reference"}
	}
	if v.IsNull() {
		return NullRef(), nil
	}
	return RefTo(v.RefAddr()), nil
}
