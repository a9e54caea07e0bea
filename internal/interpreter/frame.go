package interpreter

import (
	"github.com/wasmcore/vm/internal/ir"
	"github.com/wasmcore/vm/internal/wasm"
)

type blockKind int

const (
	blockKindBlock blockKind = iota
	blockKindLoop
	blockKindIf
	blockKindElse
)

// blockFrame is the runtime record for one active structured-control
// construct. instrPtr is the position of the construct's own opening opcode
// (block/loop/if); endInstrOffset is that instruction's pre-resolved
// EndOffset, so its end is at instrPtr+endInstrOffset and "jump past end" is
// instrPtr+endInstrOffset+1.
type blockFrame struct {
	instrPtr       int
	endInstrOffset int32
	stackPtr       StackHeight
	params         StackHeight
	results        StackHeight
	kind           blockKind
}

// blockStack is a single shared stack of blockFrames; callFrame.blockPtr
// records its depth at frame entry so branches/returns know how far into
// the current function's own blocks they may reach.
type blockStack struct {
	frames []blockFrame
}

func (b *blockStack) depth() int { return len(b.frames) }

func (b *blockStack) push(f blockFrame) { b.frames = append(b.frames, f) }

func (b *blockStack) top() *blockFrame { return &b.frames[len(b.frames)-1] }

func (b *blockStack) pop() blockFrame {
	n := len(b.frames) - 1
	f := b.frames[n]
	b.frames = b.frames[:n]
	return f
}

func (b *blockStack) truncate(depth int) { b.frames = b.frames[:depth] }

// at returns the k-th enclosing block counting from the top (k==0 is the
// innermost), used by br/br_if/br_table label resolution.
func (b *blockStack) at(k uint32) *blockFrame {
	return &b.frames[len(b.frames)-1-int(k)]
}

// callFrame is the runtime record for one active function invocation.
type callFrame struct {
	instrPtr int
	blockPtr int         // blockStack depth at frame entry
	stackPtr StackHeight // value-stack height at frame entry (after popping args)

	fn     *wasm.FunctionInstance
	module *wasm.ModuleInstance

	locals32  []uint32
	locals64  []uint64
	locals128 []Cell128
	localsRef []wasm.Reference
}

func newCallFrame(fn *wasm.FunctionInstance, mi *wasm.ModuleInstance, blockPtr int) *callFrame {
	code := fn.Code
	return &callFrame{
		blockPtr:  blockPtr,
		fn:        fn,
		module:    mi,
		locals32:  make([]uint32, code.NumLocals32),
		locals64:  make([]uint64, code.NumLocals64),
		locals128: make([]Cell128, code.NumLocals128),
		localsRef: make([]wasm.Reference, code.NumLocalsRef),
	}
}

func (cf *callFrame) code() *ir.Code { return cf.fn.Code }

type callStack struct {
	frames []*callFrame
}

func (c *callStack) depth() int { return len(c.frames) }

func (c *callStack) push(f *callFrame) { c.frames = append(c.frames, f) }

func (c *callStack) top() *callFrame { return c.frames[len(c.frames)-1] }

func (c *callStack) pop() *callFrame {
	n := len(c.frames) - 1
	f := c.frames[n]
	c.frames = c.frames[:n]
	return f
}
