// Package api holds the value types and constants shared by every layer of the
// virtual machine: the binary decoder, the instruction lowerer, the store, and
// the interpreter. Keeping these in one leaf package avoids import cycles
// between the layers that otherwise all need to talk about "what kind of wasm
// value is this".
package api

import (
	"fmt"
	"math"
)

// ValueType is one of the six value types wasm supports at the public
// boundary. Internally, the interpreter's stacks are untyped and split by
// cell size (see internal/interpreter) — ValueType only matters at
// FuncHandle.Call, constant evaluation, and the binary decoder.
type ValueType byte

const (
	ValueTypeI32       ValueType = 0x7f
	ValueTypeI64       ValueType = 0x7e
	ValueTypeF32       ValueType = 0x7d
	ValueTypeF64       ValueType = 0x7c
	ValueTypeFuncref   ValueType = 0x70
	ValueTypeExternref ValueType = 0x6f
)

// ValueTypeName returns the wasm text-format name of t, or "unknown(<hex>)".
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeFuncref:
		return "funcref"
	case ValueTypeExternref:
		return "externref"
	default:
		return fmt.Sprintf("unknown(%#x)", byte(t))
	}
}

// IsReference reports whether t is a reference type (funcref/externref).
func IsReference(t ValueType) bool {
	return t == ValueTypeFuncref || t == ValueTypeExternref
}

// SizeClass groups a ValueType into one of the four cell-size buckets the
// interpreter's parallel stacks use.
type SizeClass int

const (
	SizeClass32 SizeClass = iota
	SizeClass64
	SizeClass128
	SizeClassRef
)

// ClassOf returns the stack size-class backing t.
func ClassOf(t ValueType) SizeClass {
	switch t {
	case ValueTypeI32, ValueTypeF32:
		return SizeClass32
	case ValueTypeI64, ValueTypeF64:
		return SizeClass64
	case ValueTypeFuncref, ValueTypeExternref:
		return SizeClassRef
	default:
		return SizeClass64
	}
}

// FunctionType is an ordered sequence of parameter and result value types.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// Equal reports structural equality, used for call_indirect type checks and
// import/export linking.
func (t *FunctionType) Equal(o *FunctionType) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	return sliceEqual(t.Params, o.Params) && sliceEqual(t.Results, o.Results)
}

func sliceEqual(a, b []ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (t *FunctionType) String() string {
	return fmt.Sprintf("%v -> %v", t.Params, t.Results)
}

// Value is the tagged union exposed at the public boundary (FuncHandle.Call
// arguments/results, constant-expression results). Floats are stored by bit
// pattern; Ref is a store address (function or extern) with Null indicating
// the wasm "null" reference.
type Value struct {
	Type ValueType
	bits uint64
	Ref  uint32
	Null bool
}

func I32(v int32) Value  { return Value{Type: ValueTypeI32, bits: uint64(uint32(v))} }
func I64(v int64) Value  { return Value{Type: ValueTypeI64, bits: uint64(v)} }
func F32(v float32) Value { return Value{Type: ValueTypeF32, bits: uint64(math.Float32bits(v))} }
func F64(v float64) Value { return Value{Type: ValueTypeF64, bits: math.Float64bits(v)} }

// F32Bits and F64Bits build float values directly from their bit pattern,
// used by the constant evaluator and decoder so float constants never pass
// through an intermediate float conversion.
func F32Bits(bits uint32) Value { return Value{Type: ValueTypeF32, bits: uint64(bits)} }
func F64Bits(bits uint64) Value { return Value{Type: ValueTypeF64, bits: bits} }

// FuncRef builds a non-null funcref value referencing the given store
// function address.
func FuncRef(addr uint32) Value { return Value{Type: ValueTypeFuncref, Ref: addr} }

// ExternRef builds a non-null externref value referencing the given store
// extern address.
func ExternRef(addr uint32) Value { return Value{Type: ValueTypeExternref, Ref: addr} }

// NullRef builds a null reference value of the given reference type.
func NullRef(t ValueType) Value { return Value{Type: t, Null: true} }

func (v Value) I32() int32     { return int32(uint32(v.bits)) }
func (v Value) I64() int64     { return int64(v.bits) }
func (v Value) F32() float32   { return math.Float32frombits(uint32(v.bits)) }
func (v Value) F64() float64   { return math.Float64frombits(v.bits) }
func (v Value) IsNull() bool   { return v.Null }
func (v Value) RefAddr() uint32 { return v.Ref }

// Bits returns the raw 32/64-bit cell backing an i32/i64/f32/f64 value. It is
// used internally to seed the interpreter's untyped stacks; embedders should
// use the typed accessors above instead.
func (v Value) Bits() uint64 { return v.bits }

func (v Value) String() string {
	switch v.Type {
	case ValueTypeI32:
		return fmt.Sprintf("i32:%d", v.I32())
	case ValueTypeI64:
		return fmt.Sprintf("i64:%d", v.I64())
	case ValueTypeF32:
		return fmt.Sprintf("f32:%v", v.F32())
	case ValueTypeF64:
		return fmt.Sprintf("f64:%v", v.F64())
	case ValueTypeFuncref, ValueTypeExternref:
		if v.Null {
			return fmt.Sprintf("%s:null", ValueTypeName(v.Type))
		}
		return fmt.Sprintf("%s:%d", ValueTypeName(v.Type), v.Ref)
	default:
		return "invalid"
	}
}
