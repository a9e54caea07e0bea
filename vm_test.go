package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/vm"
	"github.com/wasmcore/vm/api"
)

// addModuleBytes is a hand-encoded minimal wasm binary exporting a single
// function "add" of type (i32, i32) -> i32 that computes local.get 0 +
// local.get 1. Built directly from the wasm core binary format rather than
// via an assembler, exercising the full Parse -> Instantiate -> Call path
// the way an embedder would use it.
var addModuleBytes = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic "\0asm"
	0x01, 0x00, 0x00, 0x00, // version 1

	// type section: id=1, size=7
	0x01, 0x07,
	0x01,       // 1 type
	0x60,       // func form
	0x02,       // 2 params
	0x7f, 0x7f, // i32 i32
	0x01, 0x7f, // 1 result: i32

	// function section: id=3, size=2
	0x03, 0x02,
	0x01, 0x00, // 1 function, type index 0

	// export section: id=7, size=7
	0x07, 0x07,
	0x01,                   // 1 export
	0x03, 'a', 'd', 'd',    // name "add"
	0x00,                   // kind func
	0x00,                   // func index 0

	// code section: id=10, size=9
	0x0a, 0x09,
	0x01, // 1 function body
	0x07, // body size
	0x00, // 0 local decls
	0x20, 0x00, // local.get 0
	0x20, 0x01, // local.get 1
	0x6a, // i32.add
	0x0b, // end
}

func TestParseInstantiateCallAdd(t *testing.T) {
	mod, err := vm.Parse(addModuleBytes)
	require.NoError(t, err)

	store := vm.NewStore()
	inst, err := mod.Instantiate(store, nil)
	require.NoError(t, err)

	handle, ok := inst.GetFunc("add")
	require.True(t, ok)

	results, err := handle.Call([]api.Value{api.I32(2), api.I32(40)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, int32(42), results[0].I32())
}

func TestGetTypedFunc(t *testing.T) {
	mod, err := vm.Parse(addModuleBytes)
	require.NoError(t, err)

	store := vm.NewStore()
	inst, err := mod.Instantiate(store, nil)
	require.NoError(t, err)

	typed, ok := vm.GetTypedFunc[int32](inst, "add")
	require.True(t, ok)

	sum, err := typed.Call(int32(19), int32(23))
	require.NoError(t, err)
	require.Equal(t, int32(42), sum)
}

func TestParseInvalidMagic(t *testing.T) {
	_, err := vm.Parse([]byte("not a wasm binary"))
	require.Error(t, err)
}

func TestFuncHandleRunsAgainstMintingStore(t *testing.T) {
	mod, err := vm.Parse(addModuleBytes)
	require.NoError(t, err)

	storeA := vm.NewStore()
	instA, err := mod.Instantiate(storeA, nil)
	require.NoError(t, err)
	handle, ok := instA.GetFunc("add")
	require.True(t, ok)

	storeB := vm.NewStore()
	_, err = mod.Instantiate(storeB, nil)
	require.NoError(t, err)

	// handle was minted against storeA; it still works there.
	_, err = handle.Call([]api.Value{api.I32(1), api.I32(1)})
	require.NoError(t, err)
}

func TestGetFuncMissing(t *testing.T) {
	mod, err := vm.Parse(addModuleBytes)
	require.NoError(t, err)

	store := vm.NewStore()
	inst, err := mod.Instantiate(store, nil)
	require.NoError(t, err)

	_, ok := inst.GetFunc("does_not_exist")
	require.False(t, ok)
}

func TestGetStartFuncAbsent(t *testing.T) {
	mod, err := vm.Parse(addModuleBytes)
	require.NoError(t, err)

	store := vm.NewStore()
	inst, err := mod.Instantiate(store, nil)
	require.NoError(t, err)

	_, ok := inst.GetStartFunc()
	require.False(t, ok)
}
