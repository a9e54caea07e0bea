package wasm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/vm/api"
	"github.com/wasmcore/vm/internal/binary"
	"github.com/wasmcore/vm/internal/interpreter"
	"github.com/wasmcore/vm/internal/ir"
	"github.com/wasmcore/vm/internal/wasm"
)

func TestEvalConstI32Literal(t *testing.T) {
	s := wasm.NewStore()
	mi := &wasm.ModuleInstance{Store: s}

	v, err := wasm.EvalConst([]ir.Operator{{Op: ir.OpConstI32, I32: 42}, {Op: ir.OpEnd}}, mi)
	require.NoError(t, err)
	require.Equal(t, int32(42), v.I32())
}

func TestEvalConstEmptyExpressionFails(t *testing.T) {
	s := wasm.NewStore()
	mi := &wasm.ModuleInstance{Store: s}

	_, err := wasm.EvalConst([]ir.Operator{{Op: ir.OpEnd}}, mi)
	require.Error(t, err)
}

func TestEvalConstGlobalGetReadsPriorGlobal(t *testing.T) {
	bm := &binary.Module{
		Version: 1,
		Globals: []binary.GlobalDecl{
			{Type: binary.GlobalType{ValType: api.ValueTypeI32, Mutable: false}, Init: []ir.Operator{
				{Op: ir.OpConstI32, I32: 7}, {Op: ir.OpEnd},
			}},
			{Type: binary.GlobalType{ValType: api.ValueTypeI32, Mutable: false}, Init: []ir.Operator{
				{Op: ir.OpGlobalGet, Index: 0}, {Op: ir.OpEnd},
			}},
		},
	}
	m, err := wasm.Compile(bm)
	require.NoError(t, err)

	s := wasm.NewStore()
	inst, deferred, err := wasm.Instantiate(s, m, nil)
	require.NoError(t, err)
	require.Nil(t, deferred)

	addr, err := inst.ResolveGlobalAddr(1)
	require.NoError(t, err)
	v, err := s.GetGlobalVal(addr)
	require.NoError(t, err)
	require.Equal(t, int32(7), v.I32())
}

// TestLinkModuleSatisfiesImportFromExport exercises cross-module linking: a
// provider module exports a function, and a consumer module imports it by
// linking the provider instance into its Imports rather than a direct
// Define.
func TestLinkModuleSatisfiesImportFromExport(t *testing.T) {
	providerBM := &binary.Module{
		Version: 1,
		Types: []api.FunctionType{{
			Params:  []api.ValueType{api.ValueTypeI32},
			Results: []api.ValueType{api.ValueTypeI32},
		}},
		FuncTypeIndices: []uint32{0},
		Exports:         []binary.Export{{Name: "inc", Kind: binary.ExportKindFunc, Index: 0}},
		Functions: []binary.FunctionBody{{Ops: []ir.Operator{
			{Op: ir.OpLocalGet, Index: 0},
			{Op: ir.OpConstI32, I32: 1},
			{Op: ir.OpNumeric, Numeric: ir.NumAddI32},
			{Op: ir.OpEnd},
		}}},
	}
	providerM, err := wasm.Compile(providerBM)
	require.NoError(t, err)

	s := wasm.NewStore()
	providerInst, deferred, err := wasm.Instantiate(s, providerM, nil)
	require.NoError(t, err)
	require.Nil(t, deferred)

	consumerBM := &binary.Module{
		Version: 1,
		Types: []api.FunctionType{{
			Params:  []api.ValueType{api.ValueTypeI32},
			Results: []api.ValueType{api.ValueTypeI32},
		}},
		Imports:         []binary.Import{{Module: "provider", Name: "inc", Kind: binary.ImportKindFunc, DescFunc: 0}},
		FuncTypeIndices: []uint32{0},
		Exports:         []binary.Export{{Name: "inc_twice", Kind: binary.ExportKindFunc, Index: 1}},
		Functions: []binary.FunctionBody{{Ops: []ir.Operator{
			{Op: ir.OpLocalGet, Index: 0},
			{Op: ir.OpCall, Index: 0},
			{Op: ir.OpCall, Index: 0},
			{Op: ir.OpEnd},
		}}},
	}
	consumerM, err := wasm.Compile(consumerBM)
	require.NoError(t, err)

	imports := wasm.NewImports()
	imports.LinkModule("provider", providerInst)

	consumerInst, deferred, err := wasm.Instantiate(s, consumerM, imports)
	require.NoError(t, err)
	require.Nil(t, deferred)

	addr, ok := consumerInst.ExportedFunc("inc_twice")
	require.True(t, ok)
	fn, err := s.GetFunc(addr)
	require.NoError(t, err)

	results, err := interpreter.CallFunction(s, interpreter.DefaultConfig(), fn, consumerInst, []api.Value{api.I32(40)})
	require.NoError(t, err)
	require.Equal(t, []api.Value{api.I32(42)}, results)
}
