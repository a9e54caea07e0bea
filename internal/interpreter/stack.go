// Package interpreter implements the fetch/dispatch loop over lowered
// bytecode, using panic/recover to propagate traps back to the call
// boundary and a value stack split by operand size class.
package interpreter

import "github.com/wasmcore/vm/internal/wasm"

// Cell128 is a 128-bit stack cell, reserved for a future SIMD value type.
// No lowered instruction ever pushes or pops one today.
type Cell128 struct{ Lo, Hi uint64 }

// StackHeight is the "coordinate" block frames record and truncation
// restores, one counter per value-stack size class.
type StackHeight struct {
	S32, S64, S128, SRef uint32
}

const (
	initialCap32  = 1 << 13
	initialCap64  = 1 << 13
	initialCap128 = 1 << 10
	initialCapRef = 1 << 10
)

// valueStacks holds the four parallel untyped stacks (Value-stack sizing).
type valueStacks struct {
	s32  []uint32
	s64  []uint64
	s128 []Cell128
	sref []wasm.Reference
}

func newValueStacks() *valueStacks {
	return &valueStacks{
		s32:  make([]uint32, 0, initialCap32),
		s64:  make([]uint64, 0, initialCap64),
		s128: make([]Cell128, 0, initialCap128),
		sref: make([]wasm.Reference, 0, initialCapRef),
	}
}

func (v *valueStacks) height() StackHeight {
	return StackHeight{
		S32: uint32(len(v.s32)), S64: uint32(len(v.s64)),
		S128: uint32(len(v.s128)), SRef: uint32(len(v.sref)),
	}
}

func (v *valueStacks) truncate(h StackHeight) {
	v.s32 = v.s32[:h.S32]
	v.s64 = v.s64[:h.S64]
	v.s128 = v.s128[:h.S128]
	v.sref = v.sref[:h.SRef]
}

func (v *valueStacks) push32(x uint32) { v.s32 = append(v.s32, x) }
func (v *valueStacks) pop32() uint32 {
	n := len(v.s32) - 1
	x := v.s32[n]
	v.s32 = v.s32[:n]
	return x
}

func (v *valueStacks) push64(x uint64) { v.s64 = append(v.s64, x) }
func (v *valueStacks) pop64() uint64 {
	n := len(v.s64) - 1
	x := v.s64[n]
	v.s64 = v.s64[:n]
	return x
}

func (v *valueStacks) pushRef(r wasm.Reference) { v.sref = append(v.sref, r) }
func (v *valueStacks) popRef() wasm.Reference {
	n := len(v.sref) - 1
	r := v.sref[n]
	v.sref = v.sref[:n]
	return r
}

func (v *valueStacks) push128(c Cell128) { v.s128 = append(v.s128, c) }
func (v *valueStacks) pop128() Cell128 {
	n := len(v.s128) - 1
	c := v.s128[n]
	v.s128 = v.s128[:n]
	return c
}
