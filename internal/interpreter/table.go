package interpreter

import (
	"github.com/wasmcore/vm/internal/ir"
	"github.com/wasmcore/vm/internal/trap"
	"github.com/wasmcore/vm/internal/wasm"
)

func (e *engine) table(cf *callFrame, idx uint32) *wasm.TableInstance {
	addr, err := cf.module.ResolveTableAddr(idx)
	if err != nil {
		panic(trap.New(trap.Unreachable))
	}
	t, err := e.store.GetTable(addr)
	if err != nil {
		panic(trap.New(trap.Unreachable))
	}
	return t
}

// stepTable dispatches every table-related opcode.
func (e *engine) stepTable(cf *callFrame, instr *ir.Instruction) {
	switch instr.Opcode {
	case ir.OpcodeTableGet:
		t := e.table(cf, instr.Index)
		idx := e.vs.pop32()
		ref, ok := t.GetElem(idx)
		if !ok {
			panic(trap.OutOfBoundsTable(uint64(idx), 1, uint64(t.Size())))
		}
		e.vs.pushRef(ref)

	case ir.OpcodeTableSet:
		t := e.table(cf, instr.Index)
		ref := e.vs.popRef()
		idx := e.vs.pop32()
		if !t.SetElem(idx, ref) {
			panic(trap.OutOfBoundsTable(uint64(idx), 1, uint64(t.Size())))
		}

	case ir.OpcodeTableSize:
		t := e.table(cf, instr.Index)
		e.vs.push32(t.Size())

	case ir.OpcodeTableGrow:
		t := e.table(cf, instr.Index)
		n := e.vs.pop32()
		fill := e.vs.popRef()
		old, ok := t.Grow(n, fill, e.cfg.MaxTableSize)
		if !ok {
			e.vs.push32(^uint32(0))
		} else {
			e.vs.push32(old)
		}

	case ir.OpcodeTableFill:
		t := e.table(cf, instr.Index)
		n := e.vs.pop32()
		fill := e.vs.popRef()
		off := e.vs.pop32()
		if !t.Fill(off, fill, n) {
			panic(trap.OutOfBoundsTable(uint64(off), uint64(n), uint64(t.Size())))
		}

	case ir.OpcodeTableCopy:
		dst := e.table(cf, instr.Index)
		src := e.table(cf, instr.Index2)
		n := e.vs.pop32()
		srcOff := e.vs.pop32()
		dstOff := e.vs.pop32()
		var ok bool
		if dst == src {
			ok = dst.CopyWithin(dstOff, srcOff, n)
		} else {
			ok = dst.CopyFrom(dstOff, src, srcOff, n)
		}
		if !ok {
			panic(trap.OutOfBoundsTable(uint64(srcOff), uint64(n), uint64(src.Size())))
		}

	case ir.OpcodeTableInit:
		e.doTableInit(cf, instr)

	case ir.OpcodeElemDrop:
		elemAddr, err := cf.module.ResolveElemAddr(instr.Index)
		if err != nil {
			panic(trap.New(trap.Unreachable))
		}
		el, err := e.store.GetElement(elemAddr)
		if err != nil {
			panic(trap.New(trap.Unreachable))
		}
		el.Drop()
	}
	cf.instrPtr++
}

func (e *engine) doTableInit(cf *callFrame, instr *ir.Instruction) {
	n := e.vs.pop32()
	srcOff := e.vs.pop32()
	dstOff := e.vs.pop32()

	elemAddr, err := cf.module.ResolveElemAddr(instr.Index)
	if err != nil {
		panic(trap.New(trap.Unreachable))
	}
	el, err := e.store.GetElement(elemAddr)
	if err != nil {
		panic(trap.New(trap.Unreachable))
	}
	t := e.table(cf, instr.Index2)
	items := el.Get()
	if !t.InitFrom(dstOff, items, srcOff, n) {
		panic(trap.OutOfBoundsTable(uint64(srcOff), uint64(n), uint64(len(items))))
	}
}
