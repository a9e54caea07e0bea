package interpreter

import (
	"context"
	"fmt"

	"github.com/wasmcore/vm/api"
	"github.com/wasmcore/vm/internal/ir"
	"github.com/wasmcore/vm/internal/trap"
	"github.com/wasmcore/vm/internal/wasm"
)

// TypeError reports an argument-arity or value-type mismatch at a call
// boundary.
type TypeError struct{ Reason string }

func (e *TypeError) Error() string { return "wasm: " + e.Reason }

// StoreMismatchError reports a handle used against the wrong store.
type StoreMismatchError struct{ Want, Got uint64 }

func (e *StoreMismatchError) Error() string {
	return fmt.Sprintf("wasm: invalid store: handle minted against store %d, used against %d", e.Want, e.Got)
}

// engine is one interpreter invocation's mutable state: the call stack, the
// block stack (shared across all frames, bounded by each frame's blockPtr),
// and the four value stacks.
type engine struct {
	store *wasm.Store
	cfg   Config
	vs    *valueStacks
	bs    blockStack
	cs    callStack
}

// CallFunction implements the FuncHandle.Call contract: validates
// arity/types, dispatches host vs. wasm, drives the interpreter to
// completion, and extracts typed results.
func CallFunction(s *wasm.Store, cfg Config, fn *wasm.FunctionInstance, mi *wasm.ModuleInstance, args []api.Value) (results []api.Value, err error) {
	if err := checkArgs(fn.Type.Params, args); err != nil {
		return nil, err
	}

	if fn.IsHost {
		return fn.Host.Func(context.Background(), args), nil
	}

	e := &engine{store: s, cfg: cfg, vs: newValueStacks()}
	defer func() {
		if r := recover(); r != nil {
			if t, ok := r.(*trap.Trap); ok {
				err = t
				return
			}
			panic(r)
		}
	}()

	cf := newCallFrame(fn, mi, 0)
	placeArgsIntoLocals(cf, args)
	e.cs.push(cf)
	e.run()

	return e.popResults(fn.Type.Results), nil
}

func checkArgs(params []api.ValueType, args []api.Value) error {
	if len(args) != len(params) {
		return &TypeError{Reason: fmt.Sprintf("expected %d arguments, got %d", len(params), len(args))}
	}
	for i, p := range params {
		if args[i].Type != p {
			return &TypeError{Reason: fmt.Sprintf("argument %d: expected %s, got %s", i, api.ValueTypeName(p), api.ValueTypeName(args[i].Type))}
		}
	}
	return nil
}

func placeArgsIntoLocals(cf *callFrame, args []api.Value) {
	var n32, n64, n128, nref uint32
	for _, v := range args {
		switch api.ClassOf(v.Type) {
		case api.SizeClass32:
			cf.locals32[n32] = uint32(v.Bits())
			n32++
		case api.SizeClass64:
			cf.locals64[n64] = v.Bits()
			n64++
		case api.SizeClass128:
			n128++
		default:
			if v.IsNull() {
				cf.localsRef[nref] = wasm.NullRef()
			} else {
				cf.localsRef[nref] = wasm.RefTo(v.RefAddr())
			}
			nref++
		}
	}
}

func (e *engine) pushValue(v api.Value) {
	switch api.ClassOf(v.Type) {
	case api.SizeClass32:
		e.vs.push32(uint32(v.Bits()))
	case api.SizeClass64:
		e.vs.push64(v.Bits())
	default:
		if v.IsNull() {
			e.vs.pushRef(wasm.NullRef())
		} else {
			e.vs.pushRef(wasm.RefTo(v.RefAddr()))
		}
	}
}

func (e *engine) popResults(types []api.ValueType) []api.Value {
	out := make([]api.Value, len(types))
	for i := len(types) - 1; i >= 0; i-- {
		t := types[i]
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

// run is the fetch/dispatch loop (Dispatch): it reads the
// current instruction, dispatches on opcode, and advances instrPtr by one on
// the common path; control-flow opcodes write instrPtr directly.
func (e *engine) run() {
	for e.cs.depth() > 0 {
		cf := e.cs.top()
		instrs := cf.code().Instructions
		if cf.instrPtr >= len(instrs) {
			e.doReturn()
			continue
		}
		instr := &instrs[cf.instrPtr]
		e.step(cf, instr)
	}
}

func (e *engine) step(cf *callFrame, instr *ir.Instruction) {
	switch instr.Opcode {
	case ir.OpcodeUnreachable:
		trap.Throw(trap.New(trap.Unreachable))

	case ir.OpcodeNop:
		cf.instrPtr++

	case ir.OpcodeBlock, ir.OpcodeLoop, ir.OpcodeIf:
		e.enterBlock(cf, instr)

	case ir.OpcodeElse:
		// Reached only when the then-branch fell through naturally (the
		// cond==0 path jumps straight past ElseOffset in enterBlock). Exit
		// the then-branch like a normal block end, then skip the
		// else-branch entirely using the if's own recorded EndOffset.
		bf := e.bs.pop()
		e.truncateForExit(bf)
		cf.instrPtr = bf.instrPtr + int(bf.endInstrOffset) + 1

	case ir.OpcodeEndBlockFrame:
		e.exitBlock()
		cf.instrPtr++

	case ir.OpcodeReturn:
		e.doReturn()

	case ir.OpcodeBr:
		e.branch(cf, instr.LabelIndex)

	case ir.OpcodeBrIf:
		cond := e.vs.pop32()
		if cond != 0 {
			e.branch(cf, instr.LabelIndex)
		} else {
			cf.instrPtr++
		}

	case ir.OpcodeBrTable:
		idx := e.vs.pop32()
		n := instr.BrTableLen
		var label uint32
		if idx < n {
			label = cf.code().Instructions[cf.instrPtr+1+int(idx)].LabelIndex
		} else {
			label = instr.LabelIndex
		}
		e.branch(cf, label)

	case ir.OpcodeCall:
		e.callDirect(cf, instr.FuncIndex)

	case ir.OpcodeCallIndirect:
		e.callIndirect(cf, instr)

	case ir.OpcodeDrop32:
		e.vs.pop32()
		cf.instrPtr++
	case ir.OpcodeDrop64:
		e.vs.pop64()
		cf.instrPtr++
	case ir.OpcodeDrop128:
		e.vs.pop128()
		cf.instrPtr++
	case ir.OpcodeDropRef:
		e.vs.popRef()
		cf.instrPtr++

	case ir.OpcodeSelect32:
		cond := e.vs.pop32()
		b, a := e.vs.pop32(), e.vs.pop32()
		if cond != 0 {
			e.vs.push32(a)
		} else {
			e.vs.push32(b)
		}
		cf.instrPtr++
	case ir.OpcodeSelect64:
		cond := e.vs.pop32()
		b, a := e.vs.pop64(), e.vs.pop64()
		if cond != 0 {
			e.vs.push64(a)
		} else {
			e.vs.push64(b)
		}
		cf.instrPtr++
	case ir.OpcodeSelectRef:
		cond := e.vs.pop32()
		b, a := e.vs.popRef(), e.vs.popRef()
		if cond != 0 {
			e.vs.pushRef(a)
		} else {
			e.vs.pushRef(b)
		}
		cf.instrPtr++

	case ir.OpcodeLocalGet32:
		e.vs.push32(cf.locals32[instr.Index])
		cf.instrPtr++
	case ir.OpcodeLocalGet64:
		e.vs.push64(cf.locals64[instr.Index])
		cf.instrPtr++
	case ir.OpcodeLocalGetRef:
		e.vs.pushRef(cf.localsRef[instr.Index])
		cf.instrPtr++
	case ir.OpcodeLocalSet32:
		cf.locals32[instr.Index] = e.vs.pop32()
		cf.instrPtr++
	case ir.OpcodeLocalSet64:
		cf.locals64[instr.Index] = e.vs.pop64()
		cf.instrPtr++
	case ir.OpcodeLocalSetRef:
		cf.localsRef[instr.Index] = e.vs.popRef()
		cf.instrPtr++
	case ir.OpcodeLocalTee32:
		v := e.vs.s32[len(e.vs.s32)-1]
		cf.locals32[instr.Index] = v
		cf.instrPtr++
	case ir.OpcodeLocalTee64:
		v := e.vs.s64[len(e.vs.s64)-1]
		cf.locals64[instr.Index] = v
		cf.instrPtr++
	case ir.OpcodeLocalTeeRef:
		v := e.vs.sref[len(e.vs.sref)-1]
		cf.localsRef[instr.Index] = v
		cf.instrPtr++

	case ir.OpcodeGlobalGet:
		addr, err := cf.module.ResolveGlobalAddr(instr.Index)
		if err != nil {
			panic(trap.New(trap.Unreachable))
		}
		v, err := e.store.GetGlobalVal(addr)
		if err != nil {
			panic(trap.New(trap.Unreachable))
		}
		e.pushValue(v)
		cf.instrPtr++
	case ir.OpcodeGlobalSet:
		addr, err := cf.module.ResolveGlobalAddr(instr.Index)
		if err != nil {
			panic(trap.New(trap.Unreachable))
		}
		g, err := e.store.GetGlobal(addr)
		if err != nil {
			panic(trap.New(trap.Unreachable))
		}
		t := g.Type
		var v api.Value
		switch api.ClassOf(t) {
		case api.SizeClass32:
			raw := e.vs.pop32()
			if t == api.ValueTypeF32 {
				v = api.F32Bits(raw)
			} else {
				v = api.I32(int32(raw))
			}
		case api.SizeClass64:
			raw := e.vs.pop64()
			if t == api.ValueTypeF64 {
				v = api.F64Bits(raw)
			} else {
				v = api.I64(int64(raw))
			}
		default:
			r := e.vs.popRef()
			if r.Null {
				v = api.NullRef(t)
			} else if t == api.ValueTypeFuncref {
				v = api.FuncRef(r.Addr)
			} else {
				v = api.ExternRef(r.Addr)
			}
		}
		g.Set(v)
		cf.instrPtr++

	case ir.OpcodeTableGet, ir.OpcodeTableSet, ir.OpcodeTableSize, ir.OpcodeTableGrow,
		ir.OpcodeTableFill, ir.OpcodeTableCopy, ir.OpcodeTableInit, ir.OpcodeElemDrop:
		e.stepTable(cf, instr)

	case ir.OpcodeLoad, ir.OpcodeStore, ir.OpcodeMemorySize, ir.OpcodeMemoryGrow,
		ir.OpcodeMemoryFill, ir.OpcodeMemoryCopy, ir.OpcodeMemoryInit, ir.OpcodeDataDrop:
		e.stepMemory(cf, instr)

	case ir.OpcodeRefNull:
		e.vs.pushRef(wasm.NullRef())
		cf.instrPtr++
	case ir.OpcodeRefIsNull:
		r := e.vs.popRef()
		if r.Null {
			e.vs.push32(1)
		} else {
			e.vs.push32(0)
		}
		cf.instrPtr++
	case ir.OpcodeRefFunc:
		addr, err := cf.module.ResolveFuncAddr(instr.Index)
		if err != nil {
			panic(trap.New(trap.Unreachable))
		}
		e.vs.pushRef(wasm.RefTo(uint32(addr)))
		cf.instrPtr++

	case ir.OpcodeConstI32:
		e.vs.push32(uint32(instr.I32))
		cf.instrPtr++
	case ir.OpcodeConstI64:
		e.vs.push64(uint64(instr.I64))
		cf.instrPtr++
	case ir.OpcodeConstF32:
		e.vs.push32(instr.F32)
		cf.instrPtr++
	case ir.OpcodeConstF64:
		e.vs.push64(instr.F64)
		cf.instrPtr++

	case ir.OpcodeNumeric:
		e.stepNumeric(instr.Numeric)
		cf.instrPtr++

	default:
		panic(fmt.Sprintf("interpreter: unhandled opcode %d", instr.Opcode))
	}
}

func blockSignature(mi *wasm.ModuleInstance, bt ir.BlockType) (params, results StackHeight) {
	if bt.Empty {
		return StackHeight{}, StackHeight{}
	}
	if bt.HasValue {
		return StackHeight{}, countOf(bt.ValueType)
	}
	ft := mi.Types[bt.TypeIndex]
	return countTypes(ft.Params), countTypes(ft.Results)
}

func countOf(t api.ValueType) StackHeight {
	switch api.ClassOf(t) {
	case api.SizeClass32:
		return StackHeight{S32: 1}
	case api.SizeClass64:
		return StackHeight{S64: 1}
	case api.SizeClass128:
		return StackHeight{S128: 1}
	default:
		return StackHeight{SRef: 1}
	}
}

func countTypes(ts []api.ValueType) StackHeight {
	var h StackHeight
	for _, t := range ts {
		c := countOf(t)
		h.S32 += c.S32
		h.S64 += c.S64
		h.S128 += c.S128
		h.SRef += c.SRef
	}
	return h
}

func (e *engine) enterBlock(cf *callFrame, instr *ir.Instruction) {
	kind := blockKindBlock
	switch instr.Opcode {
	case ir.OpcodeLoop:
		kind = blockKindLoop
	case ir.OpcodeIf:
		kind = blockKindIf
	}
	params, results := blockSignature(cf.module, instr.Block)

	if instr.Opcode == ir.OpcodeIf {
		cond := e.vs.pop32()
		if cond == 0 {
			if instr.ElseOffset != 0 {
				e.bs.push(blockFrame{
					instrPtr: cf.instrPtr, endInstrOffset: instr.EndOffset,
					stackPtr: e.vs.height(), params: params, results: results, kind: blockKindIf,
				})
				cf.instrPtr += int(instr.ElseOffset) + 1
				return
			}
			cf.instrPtr += int(instr.EndOffset) + 1
			return
		}
	}

	e.bs.push(blockFrame{
		instrPtr: cf.instrPtr, endInstrOffset: instr.EndOffset,
		stackPtr: e.vs.height(), params: params, results: results, kind: kind,
	})
	cf.instrPtr++
}

// truncateForExit truncates the value stack to bf's params-replaced-by-
// results height, keeping the topmost result values of each class.
func (e *engine) truncateForExit(bf blockFrame) {
	base := bf.stackPtr
	base.S32 -= bf.params.S32
	base.S64 -= bf.params.S64
	base.S128 -= bf.params.S128
	base.SRef -= bf.params.SRef
	e.relocateTop(base, bf.results)
}

// exitBlock pops the current innermost block and truncates the value stack
// to its params-replaced-by-results height.
func (e *engine) exitBlock() {
	bf := e.bs.pop()
	e.truncateForExit(bf)
}

// doReturn unwinds the current call frame: it discards its blocks, then
// relocates the top of the value stack (the function's results, however
// deep inside nested blocks execution was when it returned) down onto the
// frame's entry height.
func (e *engine) doReturn() {
	cf := e.cs.pop()
	if e.bs.depth() > cf.blockPtr {
		e.bs.truncate(cf.blockPtr)
	}
	e.relocateTop(cf.stackPtr, countTypes(cf.fn.Type.Results))
}

// relocateTop preserves the top `keep` values of each class, truncates the
// stack down to target, then re-pushes the preserved values — used to strip
// whatever a frame or block leaves behind below its actual results.
func (e *engine) relocateTop(target, keep StackHeight) {
	s32 := append([]uint32(nil), e.vs.s32[len(e.vs.s32)-int(keep.S32):]...)
	s64 := append([]uint64(nil), e.vs.s64[len(e.vs.s64)-int(keep.S64):]...)
	s128 := append([]Cell128(nil), e.vs.s128[len(e.vs.s128)-int(keep.S128):]...)
	sref := append([]wasm.Reference(nil), e.vs.sref[len(e.vs.sref)-int(keep.SRef):]...)
	e.vs.truncate(target)
	e.vs.s32 = append(e.vs.s32, s32...)
	e.vs.s64 = append(e.vs.s64, s64...)
	e.vs.s128 = append(e.vs.s128, s128...)
	e.vs.sref = append(e.vs.sref, sref...)
}

// branch resolves a relative label index against the current frame's
// blocks. If k exceeds the frame's own blocks, the branch falls off the
// function and behaves like return.
func (e *engine) branch(cf *callFrame, k uint32) {
	if int(k) >= e.bs.depth()-cf.blockPtr {
		e.doReturn()
		return
	}
	bf := *e.bs.at(k)
	newDepth := e.bs.depth() - 1 - int(k)

	if bf.kind == blockKindLoop {
		base := bf.stackPtr
		base.S32 -= bf.params.S32
		base.S64 -= bf.params.S64
		base.S128 -= bf.params.S128
		base.SRef -= bf.params.SRef
		// A loop's label carries its params.
		e.relocateTop(base, bf.params)
		e.bs.truncate(newDepth + 1) // keep the loop frame itself
		cf.instrPtr = bf.instrPtr + 1
		return
	}

	e.truncateForExit(bf)
	e.bs.truncate(newDepth)
	cf.instrPtr = bf.instrPtr + int(bf.endInstrOffset) + 1
}
