package ir

import (
	"fmt"

	"github.com/wasmcore/vm/api"
)

// UnsupportedOperatorError is returned when an operator falls outside the
// lowerer's supported subset.
type UnsupportedOperatorError struct {
	Op Op
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("ir: unsupported operator %d", e.Op)
}

type labelKind int

const (
	labelBlock labelKind = iota
	labelLoop
	labelIf
)

type label struct {
	pos  int // index in the growing instruction array of the opening opcode
	kind labelKind
}

// Lower converts a flat operator stream plus a function's declared locals
// into a lowered Code. paramTypes and localTypes are in module-declaration
// order; the returned Code's LocalClasses covers both, in that order
// (parameters first, consistent with the call frame's local layout).
func Lower(paramTypes, localTypes []api.ValueType, ops []Operator) (*Code, error) {
	allLocals := make([]api.ValueType, 0, len(paramTypes)+len(localTypes))
	allLocals = append(allLocals, paramTypes...)
	allLocals = append(allLocals, localTypes...)

	classes := make([]api.SizeClass, len(allLocals))
	offsets := make([]uint32, len(allLocals))
	var n32, n64, n128, nref uint32
	for i, t := range allLocals {
		c := api.ClassOf(t)
		classes[i] = c
		switch c {
		case api.SizeClass32:
			offsets[i] = n32
			n32++
		case api.SizeClass64:
			offsets[i] = n64
			n64++
		case api.SizeClass128:
			offsets[i] = n128
			n128++
		case api.SizeClassRef:
			offsets[i] = nref
			nref++
		}
	}

	lw := &lowerer{classes: classes, offsets: offsets}
	for _, op := range ops {
		if err := lw.step(op); err != nil {
			return nil, err
		}
	}
	// A well-formed function body ends with an `end` operator that the loop
	// above already turned into OpcodeReturn; nothing further to append.

	return &Code{
		Instructions: lw.out,
		NumLocals32:  n32,
		NumLocals64:  n64,
		NumLocals128: n128,
		NumLocalsRef: nref,
		LocalClasses: classes,
	}, nil
}

type lowerer struct {
	out     []Instruction
	labels  []label
	classes []api.SizeClass
	offsets []uint32
}

func (lw *lowerer) emit(i Instruction) int {
	lw.out = append(lw.out, i)
	return len(lw.out) - 1
}

func (lw *lowerer) pos() int { return len(lw.out) }

func (lw *lowerer) localClass(idx uint32) (api.SizeClass, uint32, error) {
	if int(idx) >= len(lw.classes) {
		return 0, 0, fmt.Errorf("ir: local index %d out of range", idx)
	}
	return lw.classes[idx], lw.offsets[idx], nil
}

func (lw *lowerer) step(op Operator) error {
	switch op.Op {
	case OpUnreachable:
		lw.emit(Instruction{Opcode: OpcodeUnreachable})
	case OpNop:
		lw.emit(Instruction{Opcode: OpcodeNop})

	case OpBlock, OpLoop, OpIf:
		kind := labelBlock
		opcode := OpcodeBlock
		switch op.Op {
		case OpLoop:
			kind, opcode = labelLoop, OpcodeLoop
		case OpIf:
			kind, opcode = labelIf, OpcodeIf
		}
		p := lw.emit(Instruction{Opcode: opcode, Block: op.Block})
		lw.labels = append(lw.labels, label{pos: p, kind: kind})

	case OpElse:
		if len(lw.labels) == 0 {
			return fmt.Errorf("ir: else without matching if")
		}
		top := lw.labels[len(lw.labels)-1]
		if top.kind != labelIf {
			return fmt.Errorf("ir: else without matching if")
		}
		elsePos := lw.pos()
		lw.out[top.pos].ElseOffset = int32(elsePos - top.pos)
		lw.emit(Instruction{Opcode: OpcodeElse})
		// Keep the label open (same pos) so `end` still patches the `if`
		// instruction's EndOffset.

	case OpEnd:
		if len(lw.labels) == 0 {
			// Function top-level `end` lowers to `return`.
			lw.emit(Instruction{Opcode: OpcodeReturn})
			return nil
		}
		top := lw.labels[len(lw.labels)-1]
		lw.labels = lw.labels[:len(lw.labels)-1]
		lw.out[top.pos].EndOffset = int32(lw.pos() - top.pos)
		lw.emit(Instruction{Opcode: OpcodeEndBlockFrame})

	case OpBr:
		lw.emit(Instruction{Opcode: OpcodeBr, LabelIndex: op.Index})
	case OpBrIf:
		lw.emit(Instruction{Opcode: OpcodeBrIf, LabelIndex: op.Index})
	case OpBrTable:
		lw.emit(Instruction{Opcode: OpcodeBrTable, LabelIndex: op.Index, BrTableLen: uint32(len(op.Targets))})
		for _, t := range op.Targets {
			lw.emit(Instruction{Opcode: OpcodeBrLabel, LabelIndex: t})
		}
	case OpReturn:
		lw.emit(Instruction{Opcode: OpcodeReturn})

	case OpCall:
		lw.emit(Instruction{Opcode: OpcodeCall, FuncIndex: op.Index})
	case OpCallIndirect:
		lw.emit(Instruction{Opcode: OpcodeCallIndirect, TypeIndex: op.Index, TableIndex: op.Index2})

	case OpDrop:
		lw.emit(Instruction{Opcode: classOpcode(op.ValType, OpcodeDrop32, OpcodeDrop64, OpcodeDrop128, OpcodeDropRef)})
	case OpSelect:
		lw.emit(Instruction{Opcode: classOpcode(op.ValType, OpcodeSelect32, OpcodeSelect64, OpcodeSelect128, OpcodeSelectRef)})

	case OpLocalGet, OpLocalSet, OpLocalTee:
		class, offset, err := lw.localClass(op.Index)
		if err != nil {
			return err
		}
		var opcode Opcode
		switch op.Op {
		case OpLocalGet:
			opcode = classOpcodeByClass(class, OpcodeLocalGet32, OpcodeLocalGet64, OpcodeLocalGet128, OpcodeLocalGetRef)
		case OpLocalSet:
			opcode = classOpcodeByClass(class, OpcodeLocalSet32, OpcodeLocalSet64, OpcodeLocalSet128, OpcodeLocalSetRef)
		case OpLocalTee:
			opcode = classOpcodeByClass(class, OpcodeLocalTee32, OpcodeLocalTee64, OpcodeLocalTee128, OpcodeLocalTeeRef)
		}
		lw.emit(Instruction{Opcode: opcode, Index: offset})

	case OpGlobalGet:
		lw.emit(Instruction{Opcode: OpcodeGlobalGet, Index: op.Index})
	case OpGlobalSet:
		lw.emit(Instruction{Opcode: OpcodeGlobalSet, Index: op.Index})

	case OpTableGet:
		lw.emit(Instruction{Opcode: OpcodeTableGet, Index: op.Index})
	case OpTableSet:
		lw.emit(Instruction{Opcode: OpcodeTableSet, Index: op.Index})
	case OpTableSize:
		lw.emit(Instruction{Opcode: OpcodeTableSize, Index: op.Index})
	case OpTableGrow:
		lw.emit(Instruction{Opcode: OpcodeTableGrow, Index: op.Index})
	case OpTableFill:
		lw.emit(Instruction{Opcode: OpcodeTableFill, Index: op.Index})
	case OpTableCopy:
		lw.emit(Instruction{Opcode: OpcodeTableCopy, Index: op.Index, Index2: op.Index2})
	case OpTableInit:
		lw.emit(Instruction{Opcode: OpcodeTableInit, Index: op.Index, Index2: op.Index2})
	case OpElemDrop:
		lw.emit(Instruction{Opcode: OpcodeElemDrop, Index: op.Index})

	case OpLoad:
		lw.emit(Instruction{Opcode: OpcodeLoad, Memarg: op.Memarg, Mem: op.Mem})
	case OpStore:
		lw.emit(Instruction{Opcode: OpcodeStore, Memarg: op.Memarg, Mem: op.Mem})
	case OpMemorySize:
		lw.emit(Instruction{Opcode: OpcodeMemorySize, Index: op.Index})
	case OpMemoryGrow:
		lw.emit(Instruction{Opcode: OpcodeMemoryGrow, Index: op.Index})
	case OpMemoryFill:
		lw.emit(Instruction{Opcode: OpcodeMemoryFill, Index: op.Index})
	case OpMemoryCopy:
		lw.emit(Instruction{Opcode: OpcodeMemoryCopy, Index: op.Index, Index2: op.Index2})
	case OpMemoryInit:
		lw.emit(Instruction{Opcode: OpcodeMemoryInit, Index: op.Index, Index2: op.Index2})
	case OpDataDrop:
		lw.emit(Instruction{Opcode: OpcodeDataDrop, Index: op.Index})

	case OpRefNull:
		lw.emit(Instruction{Opcode: OpcodeRefNull, ValType: op.ValType})
	case OpRefIsNull:
		lw.emit(Instruction{Opcode: OpcodeRefIsNull})
	case OpRefFunc:
		lw.emit(Instruction{Opcode: OpcodeRefFunc, Index: op.Index})

	case OpConstI32:
		lw.emit(Instruction{Opcode: OpcodeConstI32, I32: op.I32})
	case OpConstI64:
		lw.emit(Instruction{Opcode: OpcodeConstI64, I64: op.I64})
	case OpConstF32:
		lw.emit(Instruction{Opcode: OpcodeConstF32, F32: op.F32})
	case OpConstF64:
		lw.emit(Instruction{Opcode: OpcodeConstF64, F64: op.F64})

	case OpNumeric:
		lw.emit(Instruction{Opcode: OpcodeNumeric, Numeric: op.Numeric})

	default:
		return &UnsupportedOperatorError{Op: op.Op}
	}
	return nil
}

// classOpcode picks the size-class-specialized opcode for t.
func classOpcode(t api.ValueType, o32, o64, o128, oref Opcode) Opcode {
	return classOpcodeByClass(api.ClassOf(t), o32, o64, o128, oref)
}

func classOpcodeByClass(c api.SizeClass, o32, o64, o128, oref Opcode) Opcode {
	switch c {
	case api.SizeClass32:
		return o32
	case api.SizeClass64:
		return o64
	case api.SizeClass128:
		return o128
	default:
		return oref
	}
}
