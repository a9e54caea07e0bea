package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/vm/api"
)

func TestParseArgI32(t *testing.T) {
	v, err := parseArg("i32:42")
	require.NoError(t, err)
	require.Equal(t, int32(42), v.I32())
}

func TestParseArgF64(t *testing.T) {
	v, err := parseArg("f64:3.5")
	require.NoError(t, err)
	require.Equal(t, 3.5, v.F64())
}

func TestParseArgRejectsUnknownType(t *testing.T) {
	_, err := parseArg("weird:1")
	require.Error(t, err)
}

func TestParseArgRejectsMissingColon(t *testing.T) {
	_, err := parseArg("42")
	require.Error(t, err)
}

func TestParseArgsPreservesOrder(t *testing.T) {
	vals, err := parseArgs([]string{"i32:1", "i32:2", "i32:3"})
	require.NoError(t, err)
	require.Equal(t, []api.Value{api.I32(1), api.I32(2), api.I32(3)}, vals)
}

func TestSplitOnce(t *testing.T) {
	before, after, ok := splitOnce("i32:42", ':')
	require.True(t, ok)
	require.Equal(t, "i32", before)
	require.Equal(t, "42", after)

	_, _, ok = splitOnce("noseparator", ':')
	require.False(t, ok)
}
