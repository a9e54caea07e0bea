// Package ir implements instruction lowering: it turns a flat operator
// stream decoded from the wasm binary into a compact internal instruction
// array with pre-resolved structured-control offsets and split opcodes per
// operand size class.
package ir

import "github.com/wasmcore/vm/api"

// Op enumerates the operators a decoder can hand to the lowerer. This is the
// pre-lowering vocabulary: one Op per source wasm instruction, carrying
// whichever immediate fields apply to it. It intentionally does not yet
// split local.get/set by size class or resolve block offsets — that's the
// lowerer's job.
type Op int

const (
	OpUnreachable Op = iota
	OpNop
	OpBlock
	OpLoop
	OpIf
	OpElse
	OpEnd
	OpBr
	OpBrIf
	OpBrTable
	OpReturn
	OpCall
	OpCallIndirect
	OpDrop
	OpSelect
	OpLocalGet
	OpLocalSet
	OpLocalTee
	OpGlobalGet
	OpGlobalSet
	OpTableGet
	OpTableSet
	OpLoad   // Mem picks width/signedness; Memarg carries align/offset
	OpStore
	OpMemorySize
	OpMemoryGrow
	OpMemoryFill
	OpMemoryCopy
	OpMemoryInit
	OpDataDrop
	OpTableSize
	OpTableGrow
	OpTableFill
	OpTableCopy
	OpTableInit
	OpElemDrop
	OpRefNull
	OpRefIsNull
	OpRefFunc
	OpConstI32
	OpConstI64
	OpConstF32
	OpConstF64
	OpNumeric // Numeric picks the exact numeric operator
)

// NumericOp enumerates every numeric/comparison/conversion operator. Grouped
// separately from Op because there are 136 of them and they all share the
// same "pop operands, push result" shape.
type NumericOp int

const (
	NumEqzI32 NumericOp = iota
	NumEqI32
	NumNeI32
	NumLtS32
	NumLtU32
	NumGtS32
	NumGtU32
	NumLeS32
	NumLeU32
	NumGeS32
	NumGeU32
	NumEqzI64
	NumEqI64
	NumNeI64
	NumLtS64
	NumLtU64
	NumGtS64
	NumGtU64
	NumLeS64
	NumLeU64
	NumGeS64
	NumGeU64
	NumEqF32
	NumNeF32
	NumLtF32
	NumGtF32
	NumLeF32
	NumGeF32
	NumEqF64
	NumNeF64
	NumLtF64
	NumGtF64
	NumLeF64
	NumGeF64
	NumClzI32
	NumCtzI32
	NumPopcntI32
	NumAddI32
	NumSubI32
	NumMulI32
	NumDivS32
	NumDivU32
	NumRemS32
	NumRemU32
	NumAndI32
	NumOrI32
	NumXorI32
	NumShlI32
	NumShrS32
	NumShrU32
	NumRotlI32
	NumRotrI32
	NumClzI64
	NumCtzI64
	NumPopcntI64
	NumAddI64
	NumSubI64
	NumMulI64
	NumDivS64
	NumDivU64
	NumRemS64
	NumRemU64
	NumAndI64
	NumOrI64
	NumXorI64
	NumShlI64
	NumShrS64
	NumShrU64
	NumRotlI64
	NumRotrI64
	NumAbsF32
	NumNegF32
	NumCeilF32
	NumFloorF32
	NumTruncF32
	NumNearestF32
	NumSqrtF32
	NumAddF32
	NumSubF32
	NumMulF32
	NumDivF32
	NumMinF32
	NumMaxF32
	NumCopysignF32
	NumAbsF64
	NumNegF64
	NumCeilF64
	NumFloorF64
	NumTruncF64
	NumNearestF64
	NumSqrtF64
	NumAddF64
	NumSubF64
	NumMulF64
	NumDivF64
	NumMinF64
	NumMaxF64
	NumCopysignF64
	NumWrapI64ToI32
	NumTruncF32ToI32S
	NumTruncF32ToI32U
	NumTruncF64ToI32S
	NumTruncF64ToI32U
	NumExtendI32ToI64S
	NumExtendI32ToI64U
	NumTruncF32ToI64S
	NumTruncF32ToI64U
	NumTruncF64ToI64S
	NumTruncF64ToI64U
	NumConvertI32ToF32S
	NumConvertI32ToF32U
	NumConvertI64ToF32S
	NumConvertI64ToF32U
	NumDemoteF64ToF32
	NumConvertI32ToF64S
	NumConvertI32ToF64U
	NumConvertI64ToF64S
	NumConvertI64ToF64U
	NumPromoteF32ToF64
	NumReinterpretF32ToI32
	NumReinterpretF64ToI64
	NumReinterpretI32ToF32
	NumReinterpretI64ToF64
	NumExtend8S32
	NumExtend16S32
	NumExtend8S64
	NumExtend16S64
	NumExtend32S64
	NumTruncSatF32ToI32S
	NumTruncSatF32ToI32U
	NumTruncSatF64ToI32S
	NumTruncSatF64ToI32U
	NumTruncSatF32ToI64S
	NumTruncSatF32ToI64U
	NumTruncSatF64ToI64S
	NumTruncSatF64ToI64U
)

// MemOp identifies the exact width/signedness of a load or store.
type MemOp int

const (
	MemLoadI32 MemOp = iota
	MemLoadI64
	MemLoadF32
	MemLoadF64
	MemLoad8S32
	MemLoad8U32
	MemLoad16S32
	MemLoad16U32
	MemLoad8S64
	MemLoad8U64
	MemLoad16S64
	MemLoad16U64
	MemLoad32S64
	MemLoad32U64
	MemStoreI32
	MemStoreI64
	MemStoreF32
	MemStoreF64
	MemStore8_32
	MemStore16_32
	MemStore8_64
	MemStore16_64
	MemStore32_64
)

// BlockType describes a structured-control signature: either the empty
// type, a single value type result, or a reference into the module's type
// section for multi-value block signatures.
type BlockType struct {
	Empty     bool
	ValueType api.ValueType
	TypeIndex uint32 // valid when neither Empty nor a single ValueType
	HasValue  bool
}

// Memarg is the alignment/offset pair carried by every load/store.
type Memarg struct {
	Align  uint32
	Offset uint32
	MemIdx uint32
}

// Operator is one decoded wasm instruction, prior to lowering.
type Operator struct {
	Op      Op
	Numeric NumericOp

	Index  uint32 // local/global/func/table/elem/data index, context-dependent
	Index2 uint32 // second index (e.g. call_indirect's table index, table.copy's src)
	Memarg Memarg
	Mem    MemOp
	Block  BlockType
	Targets []uint32 // br_table: len(Targets) labels plus the trailing default in Index
	ValType api.ValueType // select t*, ref.null

	I32 int32
	I64 int64
	F32 uint32 // bit pattern
	F64 uint64 // bit pattern
}
