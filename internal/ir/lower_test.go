package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/vm/api"
	"github.com/wasmcore/vm/internal/ir"
)

func TestLowerTopLevelEndEmitsReturn(t *testing.T) {
	code, err := ir.Lower(nil, nil, []ir.Operator{{Op: ir.OpEnd}})
	require.NoError(t, err)
	require.Len(t, code.Instructions, 1)
	require.Equal(t, ir.OpcodeReturn, code.Instructions[0].Opcode)
}

func TestLowerSplitsLocalsBySizeClass(t *testing.T) {
	params := []api.ValueType{api.ValueTypeI32, api.ValueTypeI64}
	locals := []api.ValueType{api.ValueTypeF32, api.ValueTypeFuncref}

	code, err := ir.Lower(params, locals, []ir.Operator{{Op: ir.OpEnd}})
	require.NoError(t, err)
	require.Equal(t, uint32(2), code.NumLocals32) // i32 param + f32 local
	require.Equal(t, uint32(1), code.NumLocals64)
	require.Equal(t, uint32(1), code.NumLocalsRef)
	require.Len(t, code.LocalClasses, 4)
}

func TestLowerLocalGetSplitsByClass(t *testing.T) {
	params := []api.ValueType{api.ValueTypeI32, api.ValueTypeI64}
	code, err := ir.Lower(params, nil, []ir.Operator{
		{Op: ir.OpLocalGet, Index: 0},
		{Op: ir.OpLocalGet, Index: 1},
		{Op: ir.OpEnd},
	})
	require.NoError(t, err)
	require.Equal(t, ir.OpcodeLocalGet32, code.Instructions[0].Opcode)
	require.Equal(t, ir.OpcodeLocalGet64, code.Instructions[1].Opcode)
	require.Equal(t, ir.OpcodeReturn, code.Instructions[2].Opcode)
}

func TestLowerBlockEndOffsetSkipsBody(t *testing.T) {
	code, err := ir.Lower(nil, nil, []ir.Operator{
		{Op: ir.OpBlock, Block: ir.BlockType{Empty: true}},
		{Op: ir.OpNop},
		{Op: ir.OpEnd}, // closes the block
		{Op: ir.OpEnd}, // top-level
	})
	require.NoError(t, err)
	require.Equal(t, ir.OpcodeBlock, code.Instructions[0].Opcode)
	// EndOffset is the instruction-count distance from the block op to its
	// matching OpcodeEndBlockFrame: one nop between them.
	require.Equal(t, int32(2), code.Instructions[0].EndOffset)
	require.Equal(t, ir.OpcodeEndBlockFrame, code.Instructions[2].Opcode)
	require.Equal(t, ir.OpcodeReturn, code.Instructions[3].Opcode)
}

func TestLowerIfElseSetsElseOffset(t *testing.T) {
	code, err := ir.Lower(nil, nil, []ir.Operator{
		{Op: ir.OpIf, Block: ir.BlockType{Empty: true}},
		{Op: ir.OpNop},
		{Op: ir.OpElse},
		{Op: ir.OpNop},
		{Op: ir.OpEnd},
		{Op: ir.OpEnd},
	})
	require.NoError(t, err)
	require.Equal(t, ir.OpcodeIf, code.Instructions[0].Opcode)
	require.Greater(t, code.Instructions[0].ElseOffset, int32(0))
}

func TestLowerNumericOperator(t *testing.T) {
	code, err := ir.Lower(
		[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		nil,
		[]ir.Operator{
			{Op: ir.OpLocalGet, Index: 0},
			{Op: ir.OpLocalGet, Index: 1},
			{Op: ir.OpNumeric, Numeric: ir.NumAddI32},
			{Op: ir.OpEnd},
		},
	)
	require.NoError(t, err)
	require.Equal(t, ir.OpcodeNumeric, code.Instructions[2].Opcode)
	require.Equal(t, ir.NumAddI32, code.Instructions[2].Numeric)
}
