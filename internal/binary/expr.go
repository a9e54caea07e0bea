package binary

import (
	"fmt"

	"github.com/wasmcore/vm/api"
	"github.com/wasmcore/vm/internal/ir"
)

// decodeBlockType decodes a structured-control signature: 0x40 for empty, a
// bare value-type byte for a single result, or a signed LEB128 type index
// otherwise.
func decodeBlockType(r *reader) (ir.BlockType, error) {
	b, err := r.byte()
	if err != nil {
		return ir.BlockType{}, err
	}
	if b == 0x40 {
		return ir.BlockType{Empty: true}, nil
	}
	switch api.ValueType(b) {
	case api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64,
		api.ValueTypeFuncref, api.ValueTypeExternref:
		return ir.BlockType{HasValue: true, ValueType: api.ValueType(b)}, nil
	}
	r.pos-- // blocktype is an s33; re-read the first byte as part of the varint
	idx, err := r.varInt(33)
	if err != nil {
		return ir.BlockType{}, err
	}
	if idx < 0 {
		return ir.BlockType{}, fmt.Errorf("%w: negative block type index", ErrMalformed)
	}
	return ir.BlockType{TypeIndex: uint32(idx)}, nil
}

func decodeMemarg(r *reader) (ir.Memarg, error) {
	align, err := r.u32()
	if err != nil {
		return ir.Memarg{}, err
	}
	offset, err := r.u32()
	if err != nil {
		return ir.Memarg{}, err
	}
	return ir.Memarg{Align: align, Offset: offset}, nil
}

// decodeExpr decodes operators up to and including the `end` that closes the
// expression at depth 0 (the function body's own `end`, or a const
// expression's single top-level `end`).
func decodeExpr(r *reader) ([]ir.Operator, error) {
	var ops []ir.Operator
	depth := 0
	for {
		op, opcode, err := decodeOp(r)
		if err != nil {
			return nil, err
		}
		if opcode == 0x02 || opcode == 0x03 || opcode == 0x04 {
			depth++
		}
		if opcode == 0x0B {
			if depth == 0 {
				ops = append(ops, op)
				return ops, nil
			}
			depth--
		}
		ops = append(ops, op)
	}
}

// decodeConstExpr decodes a constant expression: global initializers,
// element/data segment offsets, and element items.
func decodeConstExpr(r *reader) ([]ir.Operator, error) {
	return decodeExpr(r)
}

// decodeOp decodes a single operator and returns the raw opcode byte too,
// since decodeExpr needs it to track nesting without re-deriving it from op.Op.
func decodeOp(r *reader) (ir.Operator, byte, error) {
	b, err := r.byte()
	if err != nil {
		return ir.Operator{}, 0, err
	}
	switch b {
	case 0x00:
		return ir.Operator{Op: ir.OpUnreachable}, b, nil
	case 0x01:
		return ir.Operator{Op: ir.OpNop}, b, nil
	case 0x02, 0x03, 0x04:
		bt, err := decodeBlockType(r)
		if err != nil {
			return ir.Operator{}, 0, err
		}
		op := ir.OpBlock
		if b == 0x03 {
			op = ir.OpLoop
		} else if b == 0x04 {
			op = ir.OpIf
		}
		return ir.Operator{Op: op, Block: bt}, b, nil
	case 0x05:
		return ir.Operator{Op: ir.OpElse}, b, nil
	case 0x0B:
		return ir.Operator{Op: ir.OpEnd}, b, nil
	case 0x0C:
		idx, err := r.u32()
		return ir.Operator{Op: ir.OpBr, Index: idx}, b, err
	case 0x0D:
		idx, err := r.u32()
		return ir.Operator{Op: ir.OpBrIf, Index: idx}, b, err
	case 0x0E:
		n, err := r.u32()
		if err != nil {
			return ir.Operator{}, 0, err
		}
		targets := make([]uint32, n)
		for i := range targets {
			if targets[i], err = r.u32(); err != nil {
				return ir.Operator{}, 0, err
			}
		}
		def, err := r.u32()
		return ir.Operator{Op: ir.OpBrTable, Targets: targets, Index: def}, b, err
	case 0x0F:
		return ir.Operator{Op: ir.OpReturn}, b, nil
	case 0x10:
		idx, err := r.u32()
		return ir.Operator{Op: ir.OpCall, Index: idx}, b, err
	case 0x11:
		typeIdx, err := r.u32()
		if err != nil {
			return ir.Operator{}, 0, err
		}
		tableIdx, err := r.u32()
		return ir.Operator{Op: ir.OpCallIndirect, Index: typeIdx, Index2: tableIdx}, b, err
	case 0x1A:
		return ir.Operator{Op: ir.OpDrop}, b, nil
	case 0x1B:
		return ir.Operator{Op: ir.OpSelect}, b, nil
	case 0x1C:
		n, err := r.u32()
		if err != nil {
			return ir.Operator{}, 0, err
		}
		var vt api.ValueType
		for i := uint32(0); i < n; i++ {
			if vt, err = decodeValueType(r); err != nil {
				return ir.Operator{}, 0, err
			}
		}
		return ir.Operator{Op: ir.OpSelect, ValType: vt}, b, nil
	case 0x20:
		idx, err := r.u32()
		return ir.Operator{Op: ir.OpLocalGet, Index: idx}, b, err
	case 0x21:
		idx, err := r.u32()
		return ir.Operator{Op: ir.OpLocalSet, Index: idx}, b, err
	case 0x22:
		idx, err := r.u32()
		return ir.Operator{Op: ir.OpLocalTee, Index: idx}, b, err
	case 0x23:
		idx, err := r.u32()
		return ir.Operator{Op: ir.OpGlobalGet, Index: idx}, b, err
	case 0x24:
		idx, err := r.u32()
		return ir.Operator{Op: ir.OpGlobalSet, Index: idx}, b, err
	case 0x25:
		idx, err := r.u32()
		return ir.Operator{Op: ir.OpTableGet, Index: idx}, b, err
	case 0x26:
		idx, err := r.u32()
		return ir.Operator{Op: ir.OpTableSet, Index: idx}, b, err

	case 0x28, 0x29, 0x2A, 0x2B, 0x2C, 0x2D, 0x2E, 0x2F,
		0x30, 0x31, 0x32, 0x33, 0x34, 0x35:
		ma, err := decodeMemarg(r)
		if err != nil {
			return ir.Operator{}, 0, err
		}
		return ir.Operator{Op: ir.OpLoad, Memarg: ma, Mem: loadMemOp(b)}, b, nil
	case 0x36, 0x37, 0x38, 0x39, 0x3A, 0x3B, 0x3C, 0x3D, 0x3E:
		ma, err := decodeMemarg(r)
		if err != nil {
			return ir.Operator{}, 0, err
		}
		return ir.Operator{Op: ir.OpStore, Memarg: ma, Mem: storeMemOp(b)}, b, nil
	case 0x3F:
		if _, err := r.byte(); err != nil { // reserved memidx byte (MVP: always 0)
			return ir.Operator{}, 0, err
		}
		return ir.Operator{Op: ir.OpMemorySize}, b, nil
	case 0x40:
		if _, err := r.byte(); err != nil {
			return ir.Operator{}, 0, err
		}
		return ir.Operator{Op: ir.OpMemoryGrow}, b, nil

	case 0x41:
		v, err := r.varInt32()
		return ir.Operator{Op: ir.OpConstI32, I32: v}, b, err
	case 0x42:
		v, err := r.varInt64()
		return ir.Operator{Op: ir.OpConstI64, I64: v}, b, err
	case 0x43:
		v, err := r.f32()
		return ir.Operator{Op: ir.OpConstF32, F32: v}, b, err
	case 0x44:
		v, err := r.f64()
		return ir.Operator{Op: ir.OpConstF64, F64: v}, b, err

	case 0xD0:
		vt, err := decodeValueType(r)
		return ir.Operator{Op: ir.OpRefNull, ValType: vt}, b, err
	case 0xD1:
		return ir.Operator{Op: ir.OpRefIsNull}, b, nil
	case 0xD2:
		idx, err := r.u32()
		return ir.Operator{Op: ir.OpRefFunc, Index: idx}, b, err

	case 0xFC:
		return decodeFCOp(r)

	default:
		if n, ok := numericOps[b]; ok {
			return ir.Operator{Op: ir.OpNumeric, Numeric: n}, b, nil
		}
		return ir.Operator{}, 0, fmt.Errorf("%w: unsupported opcode %#x", ErrMalformed, b)
	}
}

// decodeFCOp decodes the 0xFC-prefixed multi-byte opcode space (sat-trunc
// conversions plus bulk-memory/table operations), reporting the prefix byte
// back to decodeExpr so end/block nesting tracking is unaffected by it.
func decodeFCOp(r *reader) (ir.Operator, byte, error) {
	sub, err := r.u32()
	if err != nil {
		return ir.Operator{}, 0, err
	}
	switch sub {
	case 0, 1, 2, 3, 4, 5, 6, 7:
		return ir.Operator{Op: ir.OpNumeric, Numeric: satTruncOps[sub]}, 0xFC, nil
	case 8: // memory.init x
		dataIdx, err := r.u32()
		if err != nil {
			return ir.Operator{}, 0, err
		}
		if _, err := r.byte(); err != nil { // reserved memidx
			return ir.Operator{}, 0, err
		}
		return ir.Operator{Op: ir.OpMemoryInit, Index: dataIdx}, 0xFC, nil
	case 9: // data.drop x
		idx, err := r.u32()
		return ir.Operator{Op: ir.OpDataDrop, Index: idx}, 0xFC, err
	case 10: // memory.copy
		if _, err := r.byte(); err != nil {
			return ir.Operator{}, 0, err
		}
		if _, err := r.byte(); err != nil {
			return ir.Operator{}, 0, err
		}
		return ir.Operator{Op: ir.OpMemoryCopy}, 0xFC, nil
	case 11: // memory.fill
		if _, err := r.byte(); err != nil {
			return ir.Operator{}, 0, err
		}
		return ir.Operator{Op: ir.OpMemoryFill}, 0xFC, nil
	case 12: // table.init x y
		elemIdx, err := r.u32()
		if err != nil {
			return ir.Operator{}, 0, err
		}
		tableIdx, err := r.u32()
		return ir.Operator{Op: ir.OpTableInit, Index: elemIdx, Index2: tableIdx}, 0xFC, err
	case 13: // elem.drop x
		idx, err := r.u32()
		return ir.Operator{Op: ir.OpElemDrop, Index: idx}, 0xFC, err
	case 14: // table.copy x y
		dst, err := r.u32()
		if err != nil {
			return ir.Operator{}, 0, err
		}
		src, err := r.u32()
		return ir.Operator{Op: ir.OpTableCopy, Index: dst, Index2: src}, 0xFC, err
	case 15: // table.grow x
		idx, err := r.u32()
		return ir.Operator{Op: ir.OpTableGrow, Index: idx}, 0xFC, err
	case 16: // table.size x
		idx, err := r.u32()
		return ir.Operator{Op: ir.OpTableSize, Index: idx}, 0xFC, err
	case 17: // table.fill x
		idx, err := r.u32()
		return ir.Operator{Op: ir.OpTableFill, Index: idx}, 0xFC, err
	default:
		return ir.Operator{}, 0, fmt.Errorf("%w: unsupported 0xFC opcode %d", ErrMalformed, sub)
	}
}

func loadMemOp(opcode byte) ir.MemOp {
	switch opcode {
	case 0x28:
		return ir.MemLoadI32
	case 0x29:
		return ir.MemLoadI64
	case 0x2A:
		return ir.MemLoadF32
	case 0x2B:
		return ir.MemLoadF64
	case 0x2C:
		return ir.MemLoad8S32
	case 0x2D:
		return ir.MemLoad8U32
	case 0x2E:
		return ir.MemLoad16S32
	case 0x2F:
		return ir.MemLoad16U32
	case 0x30:
		return ir.MemLoad8S64
	case 0x31:
		return ir.MemLoad8U64
	case 0x32:
		return ir.MemLoad16S64
	case 0x33:
		return ir.MemLoad16U64
	case 0x34:
		return ir.MemLoad32S64
	default: // 0x35
		return ir.MemLoad32U64
	}
}

func storeMemOp(opcode byte) ir.MemOp {
	switch opcode {
	case 0x36:
		return ir.MemStoreI32
	case 0x37:
		return ir.MemStoreI64
	case 0x38:
		return ir.MemStoreF32
	case 0x39:
		return ir.MemStoreF64
	case 0x3A:
		return ir.MemStore8_32
	case 0x3B:
		return ir.MemStore16_32
	case 0x3C:
		return ir.MemStore8_64
	case 0x3D:
		return ir.MemStore16_64
	default: // 0x3E
		return ir.MemStore32_64
	}
}

// numericOps maps the single-byte numeric/comparison/conversion opcodes
// (0x45-0xC4) to their NumericOp. Built as a table rather than a giant switch
// arm: its 128 operators share the same (pop operands, compute,
// push) shape, as internal/ir/operator.go documents.
var numericOps = map[byte]ir.NumericOp{
	0x45: ir.NumEqzI32, 0x46: ir.NumEqI32, 0x47: ir.NumNeI32,
	0x48: ir.NumLtS32, 0x49: ir.NumLtU32, 0x4A: ir.NumGtS32, 0x4B: ir.NumGtU32,
	0x4C: ir.NumLeS32, 0x4D: ir.NumLeU32, 0x4E: ir.NumGeS32, 0x4F: ir.NumGeU32,
	0x50: ir.NumEqzI64, 0x51: ir.NumEqI64, 0x52: ir.NumNeI64,
	0x53: ir.NumLtS64, 0x54: ir.NumLtU64, 0x55: ir.NumGtS64, 0x56: ir.NumGtU64,
	0x57: ir.NumLeS64, 0x58: ir.NumLeU64, 0x59: ir.NumGeS64, 0x5A: ir.NumGeU64,
	0x5B: ir.NumEqF32, 0x5C: ir.NumNeF32, 0x5D: ir.NumLtF32, 0x5E: ir.NumGtF32,
	0x5F: ir.NumLeF32, 0x60: ir.NumGeF32,
	0x61: ir.NumEqF64, 0x62: ir.NumNeF64, 0x63: ir.NumLtF64, 0x64: ir.NumGtF64,
	0x65: ir.NumLeF64, 0x66: ir.NumGeF64,
	0x67: ir.NumClzI32, 0x68: ir.NumCtzI32, 0x69: ir.NumPopcntI32,
	0x6A: ir.NumAddI32, 0x6B: ir.NumSubI32, 0x6C: ir.NumMulI32,
	0x6D: ir.NumDivS32, 0x6E: ir.NumDivU32, 0x6F: ir.NumRemS32, 0x70: ir.NumRemU32,
	0x71: ir.NumAndI32, 0x72: ir.NumOrI32, 0x73: ir.NumXorI32,
	0x74: ir.NumShlI32, 0x75: ir.NumShrS32, 0x76: ir.NumShrU32,
	0x77: ir.NumRotlI32, 0x78: ir.NumRotrI32,
	0x79: ir.NumClzI64, 0x7A: ir.NumCtzI64, 0x7B: ir.NumPopcntI64,
	0x7C: ir.NumAddI64, 0x7D: ir.NumSubI64, 0x7E: ir.NumMulI64,
	0x7F: ir.NumDivS64, 0x80: ir.NumDivU64, 0x81: ir.NumRemS64, 0x82: ir.NumRemU64,
	0x83: ir.NumAndI64, 0x84: ir.NumOrI64, 0x85: ir.NumXorI64,
	0x86: ir.NumShlI64, 0x87: ir.NumShrS64, 0x88: ir.NumShrU64,
	0x89: ir.NumRotlI64, 0x8A: ir.NumRotrI64,
	0x8B: ir.NumAbsF32, 0x8C: ir.NumNegF32, 0x8D: ir.NumCeilF32, 0x8E: ir.NumFloorF32,
	0x8F: ir.NumTruncF32, 0x90: ir.NumNearestF32, 0x91: ir.NumSqrtF32,
	0x92: ir.NumAddF32, 0x93: ir.NumSubF32, 0x94: ir.NumMulF32, 0x95: ir.NumDivF32,
	0x96: ir.NumMinF32, 0x97: ir.NumMaxF32, 0x98: ir.NumCopysignF32,
	0x99: ir.NumAbsF64, 0x9A: ir.NumNegF64, 0x9B: ir.NumCeilF64, 0x9C: ir.NumFloorF64,
	0x9D: ir.NumTruncF64, 0x9E: ir.NumNearestF64, 0x9F: ir.NumSqrtF64,
	0xA0: ir.NumAddF64, 0xA1: ir.NumSubF64, 0xA2: ir.NumMulF64, 0xA3: ir.NumDivF64,
	0xA4: ir.NumMinF64, 0xA5: ir.NumMaxF64, 0xA6: ir.NumCopysignF64,
	0xA7: ir.NumWrapI64ToI32,
	0xA8: ir.NumTruncF32ToI32S, 0xA9: ir.NumTruncF32ToI32U,
	0xAA: ir.NumTruncF64ToI32S, 0xAB: ir.NumTruncF64ToI32U,
	0xAC: ir.NumExtendI32ToI64S, 0xAD: ir.NumExtendI32ToI64U,
	0xAE: ir.NumTruncF32ToI64S, 0xAF: ir.NumTruncF32ToI64U,
	0xB0: ir.NumTruncF64ToI64S, 0xB1: ir.NumTruncF64ToI64U,
	0xB2: ir.NumConvertI32ToF32S, 0xB3: ir.NumConvertI32ToF32U,
	0xB4: ir.NumConvertI64ToF32S, 0xB5: ir.NumConvertI64ToF32U,
	0xB6: ir.NumDemoteF64ToF32,
	0xB7: ir.NumConvertI32ToF64S, 0xB8: ir.NumConvertI32ToF64U,
	0xB9: ir.NumConvertI64ToF64S, 0xBA: ir.NumConvertI64ToF64U,
	0xBB: ir.NumPromoteF32ToF64,
	0xBC: ir.NumReinterpretF32ToI32, 0xBD: ir.NumReinterpretF64ToI64,
	0xBE: ir.NumReinterpretI32ToF32, 0xBF: ir.NumReinterpretI64ToF64,
	0xC0: ir.NumExtend8S32, 0xC1: ir.NumExtend16S32,
	0xC2: ir.NumExtend8S64, 0xC3: ir.NumExtend16S64, 0xC4: ir.NumExtend32S64,
}

var satTruncOps = map[uint32]ir.NumericOp{
	0: ir.NumTruncSatF32ToI32S, 1: ir.NumTruncSatF32ToI32U,
	2: ir.NumTruncSatF64ToI32S, 3: ir.NumTruncSatF64ToI32U,
	4: ir.NumTruncSatF32ToI64S, 5: ir.NumTruncSatF32ToI64U,
	6: ir.NumTruncSatF64ToI64S, 7: ir.NumTruncSatF64ToI64U,
}
