// Package binary implements the syntactic wasm binary decoder: it turns a
// byte slice into typed sections and, per function, a flat ir.Operator
// stream decoded straight off the bytecode rather than built up as an AST.
package binary

import (
	"github.com/wasmcore/vm/api"
	"github.com/wasmcore/vm/internal/ir"
)

const (
	ImportKindFunc byte = iota
	ImportKindTable
	ImportKindMemory
	ImportKindGlobal
)

const (
	ExportKindFunc byte = iota
	ExportKindTable
	ExportKindMemory
	ExportKindGlobal
)

type TableType struct {
	ElemType api.ValueType
	Min      uint32
	Max      *uint32
}

type MemoryType struct {
	Min  uint32
	Max  *uint32
	Is64 bool
}

type GlobalType struct {
	ValType api.ValueType
	Mutable bool
}

type Import struct {
	Module, Name string
	Kind         byte
	DescFunc     uint32
	DescTable    TableType
	DescMemory   MemoryType
	DescGlobal   GlobalType
}

type GlobalDecl struct {
	Type GlobalType
	Init []ir.Operator
}

type Export struct {
	Name  string
	Kind  byte
	Index uint32
}

const (
	ElemModeActive byte = iota
	ElemModePassive
	ElemModeDeclared
)

type ElementDecl struct {
	Mode       byte
	TableIndex uint32
	Offset     []ir.Operator
	Type       api.ValueType
	Items      [][]ir.Operator
}

const (
	DataModeActive byte = iota
	DataModePassive
)

type DataDecl struct {
	Mode      byte
	MemIndex  uint32
	Offset    []ir.Operator
	Bytes     []byte
}

type FunctionBody struct {
	Locals []api.ValueType
	Ops    []ir.Operator
}

// Module is the syntactic result of decoding a wasm binary: sections typed
// and an operator stream per function body, but not yet lowered or linked
// against a store.
type Module struct {
	Version uint32

	Types           []api.FunctionType
	Imports         []Import
	FuncTypeIndices []uint32 // one per module-defined function
	Tables          []TableType
	Memories        []MemoryType
	Globals         []GlobalDecl
	Exports         []Export
	Start           *uint32
	Elements        []ElementDecl
	Datas           []DataDecl
	Functions       []FunctionBody
	DataCount       *uint32
}
