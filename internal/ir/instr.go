package ir

import "github.com/wasmcore/vm/api"

// Opcode is the lowered bytecode's operator set. Unlike Op, local.get/set/tee
// are split by size class so the interpreter never has to
// re-check a value's type at dispatch time, and structured control carries
// pre-resolved instruction-count offsets instead of being looked up at
// runtime.
type Opcode int

const (
	OpcodeUnreachable Opcode = iota
	OpcodeNop
	OpcodeBlock    // signature carried; EndOffset resolved
	OpcodeLoop     // signature carried; EndOffset resolved (branches re-enter at own start)
	OpcodeIf       // signature carried; EndOffset resolved; ElseOffset set if an else exists
	OpcodeElse
	OpcodeEndBlockFrame // pops a block frame, truncates the value stack
	OpcodeReturn
	OpcodeBr
	OpcodeBrIf
	OpcodeBrTable // LabelIndex = default label, BrTableLen = count of br_label records that follow
	OpcodeBrLabel // one per br_table target; never reached by fetch/dispatch directly
	OpcodeCall
	OpcodeCallIndirect
	OpcodeDrop32
	OpcodeDrop64
	OpcodeDrop128
	OpcodeDropRef
	OpcodeSelect32
	OpcodeSelect64
	OpcodeSelect128
	OpcodeSelectRef
	OpcodeLocalGet32
	OpcodeLocalGet64
	OpcodeLocalGet128
	OpcodeLocalGetRef
	OpcodeLocalSet32
	OpcodeLocalSet64
	OpcodeLocalSet128
	OpcodeLocalSetRef
	OpcodeLocalTee32
	OpcodeLocalTee64
	OpcodeLocalTee128
	OpcodeLocalTeeRef
	OpcodeGlobalGet
	OpcodeGlobalSet
	OpcodeTableGet
	OpcodeTableSet
	OpcodeLoad
	OpcodeStore
	OpcodeMemorySize
	OpcodeMemoryGrow
	OpcodeMemoryFill
	OpcodeMemoryCopy
	OpcodeMemoryInit
	OpcodeDataDrop
	OpcodeTableSize
	OpcodeTableGrow
	OpcodeTableFill
	OpcodeTableCopy
	OpcodeTableInit
	OpcodeElemDrop
	OpcodeRefNull
	OpcodeRefIsNull
	OpcodeRefFunc
	OpcodeConstI32
	OpcodeConstI64
	OpcodeConstF32
	OpcodeConstF64
	OpcodeNumeric
	// Peephole fusion opcodes, optional and currently unused by the
	// lowerer, kept so the opcode space has a stable slot for them if a
	// future pass enables fusion.
	OpcodeLocalGet2
	OpcodeI64XorConstRotl
)

// Instruction is a fixed-width lowered bytecode record. Fields are reused
// across opcodes; see each opcode's construction site in lower.go for which
// fields are meaningful.
type Instruction struct {
	Opcode Opcode

	// Structured control.
	EndOffset  int32 // block/loop/if: instruction-count distance to matching end
	ElseOffset int32 // if: instruction-count distance to the else branch, 0 if none
	Block      BlockType

	// br / br_if / br_table.
	LabelIndex uint32
	BrTableLen uint32 // br_table: number of trailing OpcodeBrLabel records

	// call / call_indirect.
	FuncIndex  uint32
	TypeIndex  uint32
	TableIndex uint32

	// local/global/table index, memory index for memory.size/grow.
	Index  uint32
	Index2 uint32

	Memarg Memarg
	Mem    MemOp

	Numeric NumericOp
	ValType api.ValueType

	I32 int32
	I64 int64
	F32 uint32
	F64 uint64
}

// Code is the lowering output for one function body: the lowered
// instructions plus the local declarations (parameters followed by
// default-initialized declared locals), split by size class.
type Code struct {
	Instructions []Instruction
	NumLocals32  uint32
	NumLocals64  uint32
	NumLocals128 uint32
	NumLocalsRef uint32
	// LocalClasses records, per module-relative local index (including
	// params), which size class it belongs to, so the call-frame builder can
	// place an argument Value into the right locals array at the right
	// offset.
	LocalClasses []api.SizeClass
}
