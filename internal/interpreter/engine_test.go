package interpreter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/vm/api"
	"github.com/wasmcore/vm/internal/binary"
	"github.com/wasmcore/vm/internal/interpreter"
	"github.com/wasmcore/vm/internal/ir"
	"github.com/wasmcore/vm/internal/trap"
	"github.com/wasmcore/vm/internal/wasm"
)

// instantiateBinary compiles a syntactic binary.Module and instantiates it
// against a fresh store with no imports: build the Module in Go, skip the
// textual/binary round trip.
func instantiateBinary(t *testing.T, bm *binary.Module) (*wasm.Store, *wasm.ModuleInstance) {
	t.Helper()
	m, err := wasm.Compile(bm)
	require.NoError(t, err)

	s := wasm.NewStore()
	inst, deferredTrap, err := wasm.Instantiate(s, m, nil)
	require.NoError(t, err)
	require.Nil(t, deferredTrap)
	return s, inst
}

func i32i32ToI32() []api.FunctionType {
	return []api.FunctionType{{
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
	}}
}

func TestCallFunctionAdd(t *testing.T) {
	bm := &binary.Module{
		Version:         1,
		Types:           i32i32ToI32(),
		FuncTypeIndices: []uint32{0},
		Exports:         []binary.Export{{Name: "add", Kind: binary.ExportKindFunc, Index: 0}},
		Functions: []binary.FunctionBody{{Ops: []ir.Operator{
			{Op: ir.OpLocalGet, Index: 0},
			{Op: ir.OpLocalGet, Index: 1},
			{Op: ir.OpNumeric, Numeric: ir.NumAddI32},
			{Op: ir.OpEnd},
		}}},
	}
	s, inst := instantiateBinary(t, bm)
	addr, ok := inst.ExportedFunc("add")
	require.True(t, ok)
	fn, err := s.GetFunc(addr)
	require.NoError(t, err)

	results, err := interpreter.CallFunction(s, interpreter.DefaultConfig(), fn, inst, []api.Value{api.I32(2), api.I32(40)})
	require.NoError(t, err)
	require.Equal(t, []api.Value{api.I32(42)}, results)
}

func TestCallFunctionArityMismatch(t *testing.T) {
	bm := &binary.Module{
		Version:         1,
		Types:           i32i32ToI32(),
		FuncTypeIndices: []uint32{0},
		Exports:         []binary.Export{{Name: "add", Kind: binary.ExportKindFunc, Index: 0}},
		Functions: []binary.FunctionBody{{Ops: []ir.Operator{
			{Op: ir.OpLocalGet, Index: 0},
			{Op: ir.OpLocalGet, Index: 1},
			{Op: ir.OpNumeric, Numeric: ir.NumAddI32},
			{Op: ir.OpEnd},
		}}},
	}
	s, inst := instantiateBinary(t, bm)
	addr, ok := inst.ExportedFunc("add")
	require.True(t, ok)
	fn, err := s.GetFunc(addr)
	require.NoError(t, err)

	_, err = interpreter.CallFunction(s, interpreter.DefaultConfig(), fn, inst, []api.Value{api.I32(1)})
	require.Error(t, err)
}

func TestCallFunctionDivByZeroTraps(t *testing.T) {
	bm := &binary.Module{
		Version:         1,
		Types:           i32i32ToI32(),
		FuncTypeIndices: []uint32{0},
		Exports:         []binary.Export{{Name: "div", Kind: binary.ExportKindFunc, Index: 0}},
		Functions: []binary.FunctionBody{{Ops: []ir.Operator{
			{Op: ir.OpLocalGet, Index: 0},
			{Op: ir.OpLocalGet, Index: 1},
			{Op: ir.OpNumeric, Numeric: ir.NumDivS32},
			{Op: ir.OpEnd},
		}}},
	}
	s, inst := instantiateBinary(t, bm)
	addr, ok := inst.ExportedFunc("div")
	require.True(t, ok)
	fn, err := s.GetFunc(addr)
	require.NoError(t, err)

	_, err = interpreter.CallFunction(s, interpreter.DefaultConfig(), fn, inst, []api.Value{api.I32(1), api.I32(0)})
	require.Error(t, err)
	var tr *trap.Trap
	require.ErrorAs(t, err, &tr)
	require.Equal(t, trap.IntegerDivideByZero, tr.Kind)
}

func TestCallFunctionDivOverflowTraps(t *testing.T) {
	bm := &binary.Module{
		Version:         1,
		Types:           i32i32ToI32(),
		FuncTypeIndices: []uint32{0},
		Exports:         []binary.Export{{Name: "div", Kind: binary.ExportKindFunc, Index: 0}},
		Functions: []binary.FunctionBody{{Ops: []ir.Operator{
			{Op: ir.OpLocalGet, Index: 0},
			{Op: ir.OpLocalGet, Index: 1},
			{Op: ir.OpNumeric, Numeric: ir.NumDivS32},
			{Op: ir.OpEnd},
		}}},
	}
	s, inst := instantiateBinary(t, bm)
	addr, ok := inst.ExportedFunc("div")
	require.True(t, ok)
	fn, err := s.GetFunc(addr)
	require.NoError(t, err)

	_, err = interpreter.CallFunction(s, interpreter.DefaultConfig(), fn, inst, []api.Value{api.I32(-2147483648), api.I32(-1)})
	require.Error(t, err)
	var tr *trap.Trap
	require.ErrorAs(t, err, &tr)
	require.Equal(t, trap.IntegerOverflow, tr.Kind)
}

// TestCallFunctionStackOverflow recurses a self-calling function against a
// tiny MaxCallStackDepth so the trap fires quickly.
func TestCallFunctionStackOverflow(t *testing.T) {
	bm := &binary.Module{
		Version: 1,
		Types: []api.FunctionType{{
			Results: []api.ValueType{api.ValueTypeI32},
		}},
		FuncTypeIndices: []uint32{0},
		Exports:         []binary.Export{{Name: "loop", Kind: binary.ExportKindFunc, Index: 0}},
		Functions: []binary.FunctionBody{{Ops: []ir.Operator{
			{Op: ir.OpCall, Index: 0},
			{Op: ir.OpEnd},
		}}},
	}
	s, inst := instantiateBinary(t, bm)
	addr, ok := inst.ExportedFunc("loop")
	require.True(t, ok)
	fn, err := s.GetFunc(addr)
	require.NoError(t, err)

	cfg := interpreter.DefaultConfig()
	cfg.MaxCallStackDepth = 8

	_, err = interpreter.CallFunction(s, cfg, fn, inst, nil)
	require.Error(t, err)
	var tr *trap.Trap
	require.ErrorAs(t, err, &tr)
	require.Equal(t, trap.CallStackOverflow, tr.Kind)
}

func TestCallFunctionHostImport(t *testing.T) {
	bm := &binary.Module{
		Version: 1,
		Types: []api.FunctionType{{
			Params:  []api.ValueType{api.ValueTypeI32},
			Results: []api.ValueType{api.ValueTypeI32},
		}},
		Imports: []binary.Import{{Module: "env", Name: "double", Kind: binary.ImportKindFunc, DescFunc: 0}},
		FuncTypeIndices: []uint32{0},
		Exports:         []binary.Export{{Name: "call_double", Kind: binary.ExportKindFunc, Index: 1}},
		Functions: []binary.FunctionBody{{Ops: []ir.Operator{
			{Op: ir.OpLocalGet, Index: 0},
			{Op: ir.OpCall, Index: 0},
			{Op: ir.OpEnd},
		}}},
	}
	m, err := wasm.Compile(bm)
	require.NoError(t, err)

	imports := wasm.NewImports()
	imports.Define("env", "double", wasm.Extern{Func: &wasm.HostFunction{
		Type: api.FunctionType{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}},
		Func: func(_ context.Context, args []api.Value) []api.Value {
			return []api.Value{api.I32(args[0].I32() * 2)}
		},
	}})

	s := wasm.NewStore()
	inst, deferredTrap, err := wasm.Instantiate(s, m, imports)
	require.NoError(t, err)
	require.Nil(t, deferredTrap)

	addr, ok := inst.ExportedFunc("call_double")
	require.True(t, ok)
	fn, err := s.GetFunc(addr)
	require.NoError(t, err)

	results, err := interpreter.CallFunction(s, interpreter.DefaultConfig(), fn, inst, []api.Value{api.I32(21)})
	require.NoError(t, err)
	require.Equal(t, []api.Value{api.I32(42)}, results)
}
