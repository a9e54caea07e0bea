package wasm

import (
	"fmt"

	"github.com/wasmcore/vm/api"
	"github.com/wasmcore/vm/internal/binary"
	"github.com/wasmcore/vm/internal/ir"
)

// Import, Export mirror the binary package's decoded shapes one-to-one;
// Module keeps its own copies rather than embedding binary.Module. Table,
// memory and global types are binary's own TableType, MemoryType and
// GlobalType.
type ImportKind = byte
type ExportKind = byte

const (
	ImportKindFunc   ImportKind = binary.ImportKindFunc
	ImportKindTable  ImportKind = binary.ImportKindTable
	ImportKindMemory ImportKind = binary.ImportKindMemory
	ImportKindGlobal ImportKind = binary.ImportKindGlobal
)

const (
	ExportKindFunc   ExportKind = binary.ExportKindFunc
	ExportKindTable  ExportKind = binary.ExportKindTable
	ExportKindMemory ExportKind = binary.ExportKindMemory
	ExportKindGlobal ExportKind = binary.ExportKindGlobal
)

const (
	ElemModeActive   = binary.ElemModeActive
	ElemModePassive  = binary.ElemModePassive
	ElemModeDeclared = binary.ElemModeDeclared
)

const (
	DataModeActive  = binary.DataModeActive
	DataModePassive = binary.DataModePassive
)

type Import struct {
	Module, Name string
	Kind         ImportKind
	DescFunc     uint32
	DescTable    binary.TableType
	DescMemory   binary.MemoryType
	DescGlobal   binary.GlobalType
}

type Export struct {
	Name  string
	Kind  ExportKind
	Index uint32
}

type ElementSegment struct {
	Mode       byte
	TableIndex uint32
	Offset     []ir.Operator
	Type       api.ValueType
	Items      [][]ir.Operator
}

type DataSegment struct {
	Mode     byte
	MemIndex uint32
	Offset   []ir.Operator
	Bytes    []byte
}

type GlobalDef struct {
	Type    api.ValueType
	Mutable bool
	Init    []ir.Operator
}

// Module is the immutable compiled representation: types, lowered function
// bodies, imports, exports, tables, memories, globals, elements, data,
// start function. Produced by Compile, consumed by Instantiate.
type Module struct {
	Types []api.FunctionType

	Imports []Import

	// FuncTypeIndices / Codes are parallel, module-defined-function-index
	// ordered (imports are not included; they are resolved separately at
	// instantiation).
	FuncTypeIndices []uint32
	Codes           []*ir.Code

	Tables   []binary.TableType
	Memories []binary.MemoryType
	Globals  []GlobalDef

	Exports []Export
	Start   *uint32

	Elements []ElementSegment
	Datas    []DataSegment
}

// Compile lowers every function body in a decoded binary.Module and
// produces the immutable Module ready for instantiation.
func Compile(bm *binary.Module) (*Module, error) {
	m := &Module{
		Types:           bm.Types,
		FuncTypeIndices: bm.FuncTypeIndices,
		Tables:          toTableTypes(bm.Tables),
		Memories:        toMemoryTypes(bm.Memories),
		Start:           bm.Start,
	}

	for _, imp := range bm.Imports {
		m.Imports = append(m.Imports, Import{
			Module: imp.Module, Name: imp.Name, Kind: imp.Kind,
			DescFunc: imp.DescFunc, DescTable: imp.DescTable,
			DescMemory: imp.DescMemory, DescGlobal: imp.DescGlobal,
		})
	}
	for _, exp := range bm.Exports {
		m.Exports = append(m.Exports, Export{Name: exp.Name, Kind: exp.Kind, Index: exp.Index})
	}
	for _, g := range bm.Globals {
		m.Globals = append(m.Globals, GlobalDef{Type: g.Type.ValType, Mutable: g.Type.Mutable, Init: g.Init})
	}
	for _, e := range bm.Elements {
		m.Elements = append(m.Elements, ElementSegment{
			Mode: e.Mode, TableIndex: e.TableIndex, Offset: e.Offset, Type: e.Type, Items: e.Items,
		})
	}
	for _, d := range bm.Datas {
		m.Datas = append(m.Datas, DataSegment{Mode: d.Mode, MemIndex: d.MemIndex, Offset: d.Offset, Bytes: d.Bytes})
	}

	if len(bm.Functions) != len(bm.FuncTypeIndices) {
		return nil, fmt.Errorf("wasm: function/code count mismatch")
	}
	m.Codes = make([]*ir.Code, len(bm.Functions))
	for i, fn := range bm.Functions {
		typeIdx := bm.FuncTypeIndices[i]
		if int(typeIdx) >= len(m.Types) {
			return nil, fmt.Errorf("wasm: function %d references out-of-range type %d", i, typeIdx)
		}
		ft := m.Types[typeIdx]
		code, err := ir.Lower(ft.Params, fn.Locals, fn.Ops)
		if err != nil {
			return nil, fmt.Errorf("wasm: lowering function %d: %w", i, err)
		}
		m.Codes[i] = code
	}
	return m, nil
}

func toTableTypes(in []binary.TableType) []binary.TableType {
	out := make([]binary.TableType, len(in))
	copy(out, in)
	return out
}

func toMemoryTypes(in []binary.MemoryType) []binary.MemoryType {
	out := make([]binary.MemoryType, len(in))
	copy(out, in)
	return out
}

func (m *Module) numImportedFuncs() int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Kind == ImportKindFunc {
			n++
		}
	}
	return n
}
