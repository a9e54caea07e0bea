package wasm

import (
	"context"
	"sync"

	"github.com/wasmcore/vm/api"
	"github.com/wasmcore/vm/internal/ir"
)

// HostFunction is an embedder-supplied callable bound to a function import.
type HostFunction struct {
	Type api.FunctionType
	Func func(ctx context.Context, args []api.Value) []api.Value
}

// FunctionInstance is either a lowered wasm function or a host function,
// tagged with its owning module instance.
type FunctionInstance struct {
	Type  api.FunctionType
	Owner ModuleInstanceAddr

	IsHost bool
	Host   HostFunction

	// Populated when !IsHost.
	Code      *ir.Code
	TypeIndex uint32
}

// TableInstance holds a mutable slice of references. Guarded by mu since it
// may be shared across module instances via imports; execution is
// single-threaded per store so this is a formality rather than contention
// mitigation.
type TableInstance struct {
	mu sync.Mutex

	ElemType api.ValueType
	Min      uint32
	Max      *uint32
	Elements []Reference

	Owner ModuleInstanceAddr
}

func (t *TableInstance) Size() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uint32(len(t.Elements))
}

func (t *TableInstance) GetElem(idx uint32) (Reference, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if uint64(idx) >= uint64(len(t.Elements)) {
		return Reference{}, false
	}
	return t.Elements[idx], true
}

func (t *TableInstance) SetElem(idx uint32, r Reference) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if uint64(idx) >= uint64(len(t.Elements)) {
		return false
	}
	t.Elements[idx] = r
	return true
}

// Grow appends n copies of fill, subject to Max and the implementation cap.
// It returns the size before growth and whether it succeeded (table.grow).
func (t *TableInstance) Grow(n uint32, fill Reference, cap uint32) (uint32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := uint32(len(t.Elements))
	newSize := uint64(old) + uint64(n)
	if newSize > uint64(cap) {
		return old, false
	}
	if t.Max != nil && newSize > uint64(*t.Max) {
		return old, false
	}
	grown := make([]Reference, n)
	for i := range grown {
		grown[i] = fill
	}
	t.Elements = append(t.Elements, grown...)
	return old, true
}

func (t *TableInstance) Fill(offset uint32, r Reference, n uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if uint64(offset)+uint64(n) > uint64(len(t.Elements)) {
		return false
	}
	for i := uint32(0); i < n; i++ {
		t.Elements[offset+i] = r
	}
	return true
}

// CopyWithin implements table.copy for a single table (dst and src may be
// the same table; overlap is handled via an intermediate copy).
func (t *TableInstance) CopyWithin(dst, src, n uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if uint64(dst)+uint64(n) > uint64(len(t.Elements)) || uint64(src)+uint64(n) > uint64(len(t.Elements)) {
		return false
	}
	tmp := make([]Reference, n)
	copy(tmp, t.Elements[src:src+n])
	copy(t.Elements[dst:dst+n], tmp)
	return true
}

// CopyFrom implements table.copy between distinct tables.
func (dst *TableInstance) CopyFrom(dstOff uint32, src *TableInstance, srcOff, n uint32) bool {
	src.mu.Lock()
	if uint64(srcOff)+uint64(n) > uint64(len(src.Elements)) {
		src.mu.Unlock()
		return false
	}
	tmp := make([]Reference, n)
	copy(tmp, src.Elements[srcOff:srcOff+n])
	src.mu.Unlock()

	dst.mu.Lock()
	defer dst.mu.Unlock()
	if uint64(dstOff)+uint64(n) > uint64(len(dst.Elements)) {
		return false
	}
	copy(dst.Elements[dstOff:dstOff+n], tmp)
	return true
}

// InitFrom implements table.init, copying from an element segment's
// (possibly already-dropped) item slice.
func (t *TableInstance) InitFrom(dstOff uint32, items []Reference, srcOff, n uint32) bool {
	if uint64(srcOff)+uint64(n) > uint64(len(items)) {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if uint64(dstOff)+uint64(n) > uint64(len(t.Elements)) {
		return false
	}
	copy(t.Elements[dstOff:dstOff+n], items[srcOff:srcOff+n])
	return true
}

// TableCap is the hard implementation cap on table size.
const TableCap = 10_000_000

// PageSize is 64 KiB, the unit memories grow by.
const PageSize = 65536

// MemoryCap is the maximum page count any memory may hold.
const MemoryCap = 65536

// MemoryInstance is linear byte storage in 64 KiB pages.
type MemoryInstance struct {
	mu sync.Mutex

	Bytes   []byte
	MinPage uint32
	MaxPage *uint32

	Owner ModuleInstanceAddr
}

func (m *MemoryInstance) PageCount() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint32(len(m.Bytes) / PageSize)
}

func (m *MemoryInstance) Len() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.Bytes))
}

// ReadAt copies n bytes starting at off; ok is false if the range is out of
// bounds (the caller traps OutOfBoundsMemory).
func (m *MemoryInstance) ReadAt(off, n uint64) (out []byte, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off+n > uint64(len(m.Bytes)) {
		return nil, false
	}
	out = make([]byte, n)
	copy(out, m.Bytes[off:off+n])
	return out, true
}

func (m *MemoryInstance) WriteAt(off uint64, data []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off+uint64(len(data)) > uint64(len(m.Bytes)) {
		return false
	}
	copy(m.Bytes[off:], data)
	return true
}

// Grow appends n pages, subject to MaxPage and cap (memory.grow).
func (m *MemoryInstance) Grow(n, cap uint32) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := uint32(len(m.Bytes) / PageSize)
	newPages := uint64(old) + uint64(n)
	if newPages > uint64(cap) {
		return old, false
	}
	if m.MaxPage != nil && newPages > uint64(*m.MaxPage) {
		return old, false
	}
	m.Bytes = append(m.Bytes, make([]byte, uint64(n)*PageSize)...)
	return old, true
}

func (m *MemoryInstance) Fill(off uint64, b byte, n uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off+n > uint64(len(m.Bytes)) {
		return false
	}
	for i := uint64(0); i < n; i++ {
		m.Bytes[off+i] = b
	}
	return true
}

// CopyWithin implements memory.copy on a single memory, overlap-safe.
func (m *MemoryInstance) CopyWithin(dst, src, n uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dst+n > uint64(len(m.Bytes)) || src+n > uint64(len(m.Bytes)) {
		return false
	}
	tmp := make([]byte, n)
	copy(tmp, m.Bytes[src:src+n])
	copy(m.Bytes[dst:dst+n], tmp)
	return true
}

// GlobalInstance is a single mutable or immutable cell.
type GlobalInstance struct {
	mu sync.Mutex

	Type    api.ValueType
	Mutable bool
	value   api.Value

	Owner ModuleInstanceAddr
}

func (g *GlobalInstance) Get() api.Value {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

func (g *GlobalInstance) Set(v api.Value) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

// ElementInstance holds the resolved items of an element segment until
// elem.drop clears them.
type ElementInstance struct {
	mu    sync.Mutex
	Items []Reference // nil after elem.drop
}

func (e *ElementInstance) Drop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Items = nil
}

func (e *ElementInstance) Get() []Reference {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Items
}

// DataInstance holds a data segment's bytes until data.drop clears them.
type DataInstance struct {
	mu    sync.Mutex
	Bytes []byte // nil after data.drop
}

func (d *DataInstance) Drop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Bytes = nil
}

func (d *DataInstance) Get() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Bytes
}
