package interpreter

import (
	"context"

	"github.com/wasmcore/vm/api"
	"github.com/wasmcore/vm/internal/ir"
	"github.com/wasmcore/vm/internal/trap"
	"github.com/wasmcore/vm/internal/wasm"
)

func (e *engine) callDirect(cf *callFrame, funcIdx uint32) {
	addr, err := cf.module.ResolveFuncAddr(funcIdx)
	if err != nil {
		panic(trap.New(trap.Unreachable))
	}
	fn, err := e.store.GetFunc(addr)
	if err != nil {
		panic(trap.New(trap.Unreachable))
	}
	cf.instrPtr++
	e.invoke(fn)
}

// callIndirect implements call_indirect: a null slot traps Uninitialized,
// out-of-range traps Undefined (via TableInstance bounds), and a structural
// type mismatch between the declared signature and the callee's actual
// type traps TypeMismatch.
func (e *engine) callIndirect(cf *callFrame, instr *ir.Instruction) {
	elemIdx := e.vs.pop32()
	cf.instrPtr++

	tableAddr, err := cf.module.ResolveTableAddr(instr.TableIndex)
	if err != nil {
		panic(trap.New(trap.Unreachable))
	}
	table, err := e.store.GetTable(tableAddr)
	if err != nil {
		panic(trap.New(trap.Unreachable))
	}
	ref, ok := table.GetElem(elemIdx)
	if !ok {
		panic(trap.Undefined(elemIdx))
	}
	if ref.Null {
		panic(trap.Uninitialized(elemIdx))
	}

	fn, err := e.store.GetFunc(wasm.FuncAddr(ref.Addr))
	if err != nil {
		panic(trap.New(trap.Unreachable))
	}
	want := cf.module.Types[instr.TypeIndex]
	if !fn.Type.Equal(&want) {
		panic(trap.TypeMismatch(fn.Type.String(), want.String()))
	}
	e.invoke(fn)
}

// invoke runs fn to completion: a host function is called inline (no new
// interpreter frame is needed since it never touches the value stack); a
// wasm function gets a fresh callFrame pushed and control returns to run()'s
// loop, which resumes the caller once the callee's OpcodeReturn fires.
func (e *engine) invoke(fn *wasm.FunctionInstance) {
	if fn.IsHost {
		args := e.popArgsAsValues(fn.Type.Params)
		for _, r := range fn.Host.Func(context.Background(), args) {
			e.pushValue(r)
		}
		return
	}

	if e.cs.depth() >= e.cfg.MaxCallStackDepth {
		panic(trap.New(trap.CallStackOverflow))
	}

	mi, err := e.store.GetInstance(fn.Owner)
	if err != nil {
		panic(trap.New(trap.Unreachable))
	}

	params := countTypes(fn.Type.Params)
	base := e.vs.height()
	base.S32 -= params.S32
	base.S64 -= params.S64
	base.S128 -= params.S128
	base.SRef -= params.SRef

	ncf := newCallFrame(fn, mi, e.bs.depth())
	ncf.stackPtr = base
	e.popArgsIntoLocals(ncf, fn.Type.Params)
	e.cs.push(ncf)
}

// popArgsIntoLocals pops len(paramTypes) values off the value stack (in
// reverse, since the last param is on top) into ncf's locals at the offsets
// ir.Lower assigned them (parameters are placed
// directly into locals, never pushed onto the value stack).
func (e *engine) popArgsIntoLocals(ncf *callFrame, paramTypes []api.ValueType) {
	offsets := make([]uint32, len(paramTypes))
	var n32, n64, n128, nref uint32
	for i, t := range paramTypes {
		switch api.ClassOf(t) {
		case api.SizeClass32:
			offsets[i] = n32
			n32++
		case api.SizeClass64:
			offsets[i] = n64
			n64++
		case api.SizeClass128:
			offsets[i] = n128
			n128++
		default:
			offsets[i] = nref
			nref++
		}
	}
	for i := len(paramTypes) - 1; i >= 0; i-- {
		switch api.ClassOf(paramTypes[i]) {
		case api.SizeClass32:
			ncf.locals32[offsets[i]] = e.vs.pop32()
		case api.SizeClass64:
			ncf.locals64[offsets[i]] = e.vs.pop64()
		case api.SizeClass128:
			ncf.locals128[offsets[i]] = e.vs.pop128()
		default:
			ncf.localsRef[offsets[i]] = e.vs.popRef()
		}
	}
}

// popArgsAsValues pops len(paramTypes) values off the value stack into
// typed api.Value args, used for the host-function call boundary.
func (e *engine) popArgsAsValues(paramTypes []api.ValueType) []api.Value {
	out := make([]api.Value, len(paramTypes))
	for i := len(paramTypes) - 1; i >= 0; i-- {
		t := paramTypes[i]
		switch api.ClassOf(t) {
		case api.SizeClass32:
			raw := e.vs.pop32()
			if t == api.ValueTypeF32 {
				out[i] = api.F32Bits(raw)
			} else {
				out[i] = api.I32(int32(raw))
			}
		case api.SizeClass64:
			raw := e.vs.pop64()
			if t == api.ValueTypeF64 {
				out[i] = api.F64Bits(raw)
			} else {
				out[i] = api.I64(int64(raw))
			}
		default:
			r := e.vs.popRef()
			if r.Null {
				out[i] = api.NullRef(t)
			} else if t == api.ValueTypeFuncref {
				out[i] = api.FuncRef(r.Addr)
			} else {
				out[i] = api.ExternRef(r.Addr)
			}
		}
	}
	return out
}
