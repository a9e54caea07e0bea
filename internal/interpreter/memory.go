package interpreter

import (
	"github.com/wasmcore/vm/internal/ir"
	"github.com/wasmcore/vm/internal/trap"
	"github.com/wasmcore/vm/internal/wasm"
)

func (e *engine) mem0(cf *callFrame) *wasm.MemoryInstance {
	addr, err := cf.module.ResolveMemAddr(0)
	if err != nil {
		panic(trap.New(trap.Unreachable))
	}
	m, err := e.store.GetMemory(addr)
	if err != nil {
		panic(trap.New(trap.Unreachable))
	}
	return m
}

// stepMemory dispatches every memory-related opcode. Every module has at
// most a single linear memory.
func (e *engine) stepMemory(cf *callFrame, instr *ir.Instruction) {
	m := e.mem0(cf)

	switch instr.Opcode {
	case ir.OpcodeLoad:
		e.doLoad(m, instr)
	case ir.OpcodeStore:
		e.doStore(m, instr)

	case ir.OpcodeMemorySize:
		e.vs.push32(uint32(m.Len() / wasm.PageSize))

	case ir.OpcodeMemoryGrow:
		n := e.vs.pop32()
		old, ok := m.Grow(n, e.cfg.MaxMemoryPages)
		if !ok {
			e.vs.push32(^uint32(0))
		} else {
			e.vs.push32(old)
		}

	case ir.OpcodeMemoryFill:
		n := e.vs.pop32()
		val := byte(e.vs.pop32())
		off := e.vs.pop32()
		if !m.Fill(uint64(off), val, uint64(n)) {
			panic(trap.OutOfBoundsMemory(uint64(off), uint64(n), m.Len()))
		}

	case ir.OpcodeMemoryCopy:
		n := e.vs.pop32()
		src := e.vs.pop32()
		dst := e.vs.pop32()
		if !m.CopyWithin(uint64(dst), uint64(src), uint64(n)) {
			panic(trap.OutOfBoundsMemory(uint64(src), uint64(n), m.Len()))
		}

	case ir.OpcodeMemoryInit:
		e.doMemoryInit(cf, m, instr)

	case ir.OpcodeDataDrop:
		dataAddr, err := cf.module.ResolveDataAddr(instr.Index)
		if err != nil {
			panic(trap.New(trap.Unreachable))
		}
		d, err := e.store.GetData(dataAddr)
		if err != nil {
			panic(trap.New(trap.Unreachable))
		}
		d.Drop()
	}
	cf.instrPtr++
}

func (e *engine) doMemoryInit(cf *callFrame, m *wasm.MemoryInstance, instr *ir.Instruction) {
	n := e.vs.pop32()
	src := e.vs.pop32()
	dst := e.vs.pop32()

	dataAddr, err := cf.module.ResolveDataAddr(instr.Index)
	if err != nil {
		panic(trap.New(trap.Unreachable))
	}
	d, err := e.store.GetData(dataAddr)
	if err != nil {
		panic(trap.New(trap.Unreachable))
	}
	bytes := d.Get()
	if uint64(src)+uint64(n) > uint64(len(bytes)) {
		panic(trap.OutOfBoundsMemory(uint64(src), uint64(n), uint64(len(bytes))))
	}
	if !m.WriteAt(uint64(dst), bytes[src:uint64(src)+uint64(n)]) {
		panic(trap.OutOfBoundsMemory(uint64(dst), uint64(n), m.Len()))
	}
}

func (e *engine) doLoad(m *wasm.MemoryInstance, instr *ir.Instruction) {
	addr32 := e.vs.pop32()
	off := uint64(addr32) + uint64(instr.Memarg.Offset)

	width := loadWidth(instr.Mem)
	raw, ok := m.ReadAt(off, width)
	if !ok {
		panic(trap.OutOfBoundsMemory(off, width, m.Len()))
	}

	switch instr.Mem {
	case ir.MemLoadI32:
		e.vs.push32(leU32(raw))
	case ir.MemLoadF32:
		e.vs.push32(leU32(raw))
	case ir.MemLoadI64:
		e.vs.push64(leU64(raw))
	case ir.MemLoadF64:
		e.vs.push64(leU64(raw))
	case ir.MemLoad8S32:
		e.vs.push32(uint32(int32(int8(raw[0]))))
	case ir.MemLoad8U32:
		e.vs.push32(uint32(raw[0]))
	case ir.MemLoad16S32:
		e.vs.push32(uint32(int32(int16(leU16(raw)))))
	case ir.MemLoad16U32:
		e.vs.push32(uint32(leU16(raw)))
	case ir.MemLoad8S64:
		e.vs.push64(uint64(int64(int8(raw[0]))))
	case ir.MemLoad8U64:
		e.vs.push64(uint64(raw[0]))
	case ir.MemLoad16S64:
		e.vs.push64(uint64(int64(int16(leU16(raw)))))
	case ir.MemLoad16U64:
		e.vs.push64(uint64(leU16(raw)))
	case ir.MemLoad32S64:
		e.vs.push64(uint64(int64(int32(leU32(raw)))))
	case ir.MemLoad32U64:
		e.vs.push64(uint64(leU32(raw)))
	}
}

func (e *engine) doStore(m *wasm.MemoryInstance, instr *ir.Instruction) {
	var raw []byte
	switch instr.Mem {
	case ir.MemStoreI32, ir.MemStoreF32:
		raw = le32(e.vs.pop32())
	case ir.MemStoreI64, ir.MemStoreF64:
		raw = le64(e.vs.pop64())
	case ir.MemStore8_32:
		raw = []byte{byte(e.vs.pop32())}
	case ir.MemStore16_32:
		raw = le16(uint16(e.vs.pop32()))
	case ir.MemStore8_64:
		raw = []byte{byte(e.vs.pop64())}
	case ir.MemStore16_64:
		raw = le16(uint16(e.vs.pop64()))
	case ir.MemStore32_64:
		raw = le32(uint32(e.vs.pop64()))
	}

	addr32 := e.vs.pop32()
	off := uint64(addr32) + uint64(instr.Memarg.Offset)
	if !m.WriteAt(off, raw) {
		panic(trap.OutOfBoundsMemory(off, uint64(len(raw)), m.Len()))
	}
}

func loadWidth(op ir.MemOp) uint64 {
	switch op {
	case ir.MemLoadI32, ir.MemLoadF32:
		return 4
	case ir.MemLoadI64, ir.MemLoadF64:
		return 8
	case ir.MemLoad8S32, ir.MemLoad8U32, ir.MemLoad8S64, ir.MemLoad8U64:
		return 1
	case ir.MemLoad16S32, ir.MemLoad16U32, ir.MemLoad16S64, ir.MemLoad16U64:
		return 2
	case ir.MemLoad32S64, ir.MemLoad32U64:
		return 4
	default:
		return 0
	}
}

func leU16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func leU64(b []byte) uint64 {
	return uint64(leU32(b[:4])) | uint64(leU32(b[4:8]))<<32
}
func le16(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }
func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
func le64(v uint64) []byte {
	b := make([]byte, 8)
	copy(b[:4], le32(uint32(v)))
	copy(b[4:], le32(uint32(v>>32)))
	return b
}
