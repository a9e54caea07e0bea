package wasm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/vm/api"
	"github.com/wasmcore/vm/internal/wasm"
)

func TestTableInstanceGrow(t *testing.T) {
	tbl := &wasm.TableInstance{ElemType: api.ValueTypeFuncref, Elements: make([]wasm.Reference, 2)}

	old, ok := tbl.Grow(3, wasm.RefTo(7), wasm.TableCap)
	require.True(t, ok)
	require.Equal(t, uint32(2), old)
	require.Equal(t, uint32(5), tbl.Size())

	for i := uint32(2); i < 5; i++ {
		elem, ok := tbl.GetElem(i)
		require.True(t, ok)
		require.Equal(t, uint32(7), elem.Addr)
	}
}

func TestTableInstanceGrowRespectsMax(t *testing.T) {
	max := uint32(4)
	tbl := &wasm.TableInstance{ElemType: api.ValueTypeFuncref, Elements: make([]wasm.Reference, 3), Max: &max}

	_, ok := tbl.Grow(5, wasm.NullRef(), wasm.TableCap)
	require.False(t, ok)
	require.Equal(t, uint32(3), tbl.Size())

	_, ok = tbl.Grow(1, wasm.NullRef(), wasm.TableCap)
	require.True(t, ok)
	require.Equal(t, uint32(4), tbl.Size())
}

func TestTableInstanceFillOutOfBounds(t *testing.T) {
	tbl := &wasm.TableInstance{ElemType: api.ValueTypeFuncref, Elements: make([]wasm.Reference, 4)}
	require.False(t, tbl.Fill(2, wasm.RefTo(1), 10))
	require.True(t, tbl.Fill(2, wasm.RefTo(1), 2))
}

func TestTableInstanceCopyWithinOverlap(t *testing.T) {
	tbl := &wasm.TableInstance{ElemType: api.ValueTypeFuncref, Elements: []wasm.Reference{
		wasm.RefTo(0), wasm.RefTo(1), wasm.RefTo(2), wasm.RefTo(3), wasm.RefTo(4),
	}}
	require.True(t, tbl.CopyWithin(1, 0, 3))
	want := []uint32{0, 0, 1, 2, 4}
	for i, w := range want {
		e, ok := tbl.GetElem(uint32(i))
		require.True(t, ok)
		require.Equal(t, w, e.Addr)
	}
}

func TestMemoryInstanceGrow(t *testing.T) {
	mem := &wasm.MemoryInstance{Bytes: make([]byte, wasm.PageSize)}

	old, ok := mem.Grow(2, wasm.MemoryCap)
	require.True(t, ok)
	require.Equal(t, uint32(1), old)
	require.Equal(t, uint32(3), mem.PageCount())
}

func TestMemoryInstanceGrowAtCapFails(t *testing.T) {
	maxPage := uint32(1)
	mem := &wasm.MemoryInstance{Bytes: make([]byte, wasm.PageSize), MaxPage: &maxPage}

	_, ok := mem.Grow(1, wasm.MemoryCap)
	require.False(t, ok)
	require.Equal(t, uint32(1), mem.PageCount())
}

func TestMemoryInstanceReadWriteBounds(t *testing.T) {
	mem := &wasm.MemoryInstance{Bytes: make([]byte, wasm.PageSize)}

	require.True(t, mem.WriteAt(10, []byte{1, 2, 3}))
	got, ok := mem.ReadAt(10, 3)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, got)

	_, ok = mem.ReadAt(wasm.PageSize-1, 10)
	require.False(t, ok)
	require.False(t, mem.WriteAt(wasm.PageSize-1, []byte{1, 2, 3}))
}

func TestMemoryInstanceCopyWithinOverlap(t *testing.T) {
	mem := &wasm.MemoryInstance{Bytes: []byte{1, 2, 3, 4, 5}}
	require.True(t, mem.CopyWithin(1, 0, 3))
	require.Equal(t, []byte{1, 1, 2, 3, 5}, mem.Bytes)

	require.False(t, mem.CopyWithin(0, 0, 100))
}

func TestGlobalInstanceGetSet(t *testing.T) {
	g := &wasm.GlobalInstance{Type: api.ValueTypeI32, Mutable: true}
	g.Set(api.I32(42))
	require.Equal(t, int32(42), g.Get().I32())
}

func TestElementInstanceDrop(t *testing.T) {
	e := &wasm.ElementInstance{Items: []wasm.Reference{wasm.RefTo(1)}}
	require.NotNil(t, e.Get())
	e.Drop()
	require.Nil(t, e.Get())
}

func TestDataInstanceDrop(t *testing.T) {
	d := &wasm.DataInstance{Bytes: []byte{1, 2, 3}}
	require.NotNil(t, d.Get())
	d.Drop()
	require.Nil(t, d.Get())
}
