package archive_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/vm/api"
	"github.com/wasmcore/vm/archive"
	"github.com/wasmcore/vm/internal/binary"
	"github.com/wasmcore/vm/internal/ir"
	"github.com/wasmcore/vm/internal/wasm"
)

func sampleModule(t *testing.T) *wasm.Module {
	t.Helper()
	bm := &binary.Module{
		Version:         1,
		Types:           []api.FunctionType{{Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}},
		FuncTypeIndices: []uint32{0},
		Exports:        []binary.Export{{Name: "add", Kind: binary.ExportKindFunc, Index: 0}},
		Functions: []binary.FunctionBody{
			{Locals: nil, Ops: []ir.Operator{
				{Op: ir.OpLocalGet, Index: 0},
				{Op: ir.OpLocalGet, Index: 1},
				{Op: ir.OpNumeric, Numeric: ir.NumAddI32},
				{Op: ir.OpEnd},
			}},
		},
	}
	m, err := wasm.Compile(bm)
	require.NoError(t, err)
	return m
}

func TestSerializeLoadRoundTrip(t *testing.T) {
	m := sampleModule(t)

	b, err := archive.Serialize(m)
	require.NoError(t, err)
	require.Greater(t, len(b), 0)

	got, err := archive.Load(b)
	require.NoError(t, err)
	require.Equal(t, m.Exports, got.Exports)
	require.Equal(t, m.Types, got.Types)
	require.Equal(t, m.FuncTypeIndices, got.FuncTypeIndices)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	m := sampleModule(t)
	b, err := archive.Serialize(m)
	require.NoError(t, err)

	corrupt := append([]byte(nil), b...)
	corrupt[0] = 'X'

	_, err = archive.Load(corrupt)
	require.Error(t, err)
	var magicErr *archive.InvalidMagicError
	require.ErrorAs(t, err, &magicErr)
}

func TestLoadRejectsBadVersion(t *testing.T) {
	m := sampleModule(t)
	b, err := archive.Serialize(m)
	require.NoError(t, err)

	corrupt := append([]byte(nil), b...)
	corrupt[4] = '9'
	corrupt[5] = '9'

	_, err = archive.Load(corrupt)
	require.Error(t, err)
	var versionErr *archive.InvalidVersionError
	require.ErrorAs(t, err, &versionErr)
}

func TestLoadRejectsBadPadding(t *testing.T) {
	m := sampleModule(t)
	b, err := archive.Serialize(m)
	require.NoError(t, err)

	corrupt := append([]byte(nil), b...)
	corrupt[6] = 0xFF

	_, err = archive.Load(corrupt)
	require.Error(t, err)
	var paddingErr *archive.InvalidPaddingError
	require.ErrorAs(t, err, &paddingErr)
}

func TestLoadRejectsCorruptPayload(t *testing.T) {
	m := sampleModule(t)
	b, err := archive.Serialize(m)
	require.NoError(t, err)

	corrupt := append([]byte(nil), b...)
	corrupt[len(corrupt)-1] ^= 0xFF

	_, err = archive.Load(corrupt)
	require.Error(t, err)
	var archiveErr *archive.InvalidArchiveError
	require.ErrorAs(t, err, &archiveErr)
}

func TestLoadRejectsTruncated(t *testing.T) {
	_, err := archive.Load([]byte("too short"))
	require.Error(t, err)
}
