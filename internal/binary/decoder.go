package binary

import (
	"fmt"

	"github.com/wasmcore/vm/api"
)

const (
	magic          = "\x00asm"
	sectionCustom  = 0
	sectionType    = 1
	sectionImport  = 2
	sectionFunction = 3
	sectionTable   = 4
	sectionMemory  = 5
	sectionGlobal  = 6
	sectionExport  = 7
	sectionStart   = 8
	sectionElement = 9
	sectionCode    = 10
	sectionData    = 11
	sectionDataCount = 12
)

// Decode parses a wasm binary into its syntactic Module representation,
// streaming it through the decoder section by section and collecting each
// section exactly once.
func Decode(b []byte) (*Module, error) {
	r := &reader{b: b}
	if len(b) < 8 {
		return nil, fmt.Errorf("%w: too short", ErrMalformed)
	}
	magicBytes, _ := r.bytes(4)
	if string(magicBytes) != magic {
		return nil, ErrInvalidMagic
	}
	versionBytes, _ := r.bytes(4)
	version := uint32(versionBytes[0]) | uint32(versionBytes[1])<<8 | uint32(versionBytes[2])<<16 | uint32(versionBytes[3])<<24

	m := &Module{Version: version}
	seen := map[byte]bool{}
	reachedEnd := false

	for !r.eof() {
		id, err := r.byte()
		if err != nil {
			return nil, err
		}
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		sectionBytes, err := r.bytes(int(size))
		if err != nil {
			return nil, err
		}
		if id == sectionCustom {
			continue // custom sections carry no semantics for this loader
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: section id %d", ErrDuplicateSection, id)
		}
		seen[id] = true

		sr := &reader{b: sectionBytes}
		switch id {
		case sectionType:
			if err := decodeTypeSection(sr, m); err != nil {
				return nil, err
			}
		case sectionImport:
			if err := decodeImportSection(sr, m); err != nil {
				return nil, err
			}
		case sectionFunction:
			if err := decodeFunctionSection(sr, m); err != nil {
				return nil, err
			}
		case sectionTable:
			if err := decodeTableSection(sr, m); err != nil {
				return nil, err
			}
		case sectionMemory:
			if err := decodeMemorySection(sr, m); err != nil {
				return nil, err
			}
		case sectionGlobal:
			if err := decodeGlobalSection(sr, m); err != nil {
				return nil, err
			}
		case sectionExport:
			if err := decodeExportSection(sr, m); err != nil {
				return nil, err
			}
		case sectionStart:
			idx, err := sr.u32()
			if err != nil {
				return nil, err
			}
			m.Start = &idx
		case sectionElement:
			if err := decodeElementSection(sr, m); err != nil {
				return nil, err
			}
		case sectionDataCount:
			n, err := sr.u32()
			if err != nil {
				return nil, err
			}
			m.DataCount = &n
		case sectionCode:
			if err := decodeCodeSection(sr, m); err != nil {
				return nil, err
			}
		case sectionData:
			if err := decodeDataSection(sr, m); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedSection, id)
		}
		if !sr.eof() {
			return nil, fmt.Errorf("%w: trailing bytes in section %d", ErrMalformed, id)
		}
		reachedEnd = true
	}
	if !reachedEnd && len(b) > 8 {
		return nil, ErrEndNotReached
	}
	if len(m.Functions) != len(m.FuncTypeIndices) {
		return nil, fmt.Errorf("%w: function and code section count mismatch", ErrMalformed)
	}
	return m, nil
}

func decodeValueType(r *reader) (api.ValueType, error) {
	b, err := r.byte()
	if err != nil {
		return 0, err
	}
	switch api.ValueType(b) {
	case api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64,
		api.ValueTypeFuncref, api.ValueTypeExternref:
		return api.ValueType(b), nil
	default:
		return 0, fmt.Errorf("%w: invalid value type %#x", ErrMalformed, b)
	}
}

func decodeTypeSection(r *reader, m *Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	m.Types = make([]api.FunctionType, count)
	for i := range m.Types {
		form, err := r.byte()
		if err != nil {
			return err
		}
		if form != 0x60 {
			return fmt.Errorf("%w: invalid functype form %#x", ErrMalformed, form)
		}
		nParams, err := r.u32()
		if err != nil {
			return err
		}
		params := make([]api.ValueType, nParams)
		for j := range params {
			if params[j], err = decodeValueType(r); err != nil {
				return err
			}
		}
		nResults, err := r.u32()
		if err != nil {
			return err
		}
		results := make([]api.ValueType, nResults)
		for j := range results {
			if results[j], err = decodeValueType(r); err != nil {
				return err
			}
		}
		m.Types[i] = api.FunctionType{Params: params, Results: results}
	}
	return nil
}

// decodeLimits reads a limits record. Bit 0 of the flag byte marks a
// present maximum; bit 2 marks 64-bit (memory64) addressing.
func decodeLimits(r *reader) (min uint32, max *uint32, is64 bool, err error) {
	flag, err := r.byte()
	if err != nil {
		return 0, nil, false, err
	}
	is64 = flag&0x04 != 0
	min, err = r.u32()
	if err != nil {
		return 0, nil, false, err
	}
	if flag&0x01 != 0 {
		v, err := r.u32()
		if err != nil {
			return 0, nil, false, err
		}
		max = &v
	}
	return min, max, is64, nil
}

func decodeTableType(r *reader) (TableType, error) {
	et, err := decodeValueType(r)
	if err != nil {
		return TableType{}, err
	}
	min, max, _, err := decodeLimits(r)
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: et, Min: min, Max: max}, nil
}

func decodeGlobalType(r *reader) (GlobalType, error) {
	vt, err := decodeValueType(r)
	if err != nil {
		return GlobalType{}, err
	}
	mutByte, err := r.byte()
	if err != nil {
		return GlobalType{}, err
	}
	return GlobalType{ValType: vt, Mutable: mutByte == 1}, nil
}

func decodeImportSection(r *reader, m *Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	m.Imports = make([]Import, count)
	for i := range m.Imports {
		mod, err := r.string()
		if err != nil {
			return err
		}
		name, err := r.string()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		imp := Import{Module: mod, Name: name, Kind: kind}
		switch kind {
		case ImportKindFunc:
			imp.DescFunc, err = r.u32()
		case ImportKindTable:
			imp.DescTable, err = decodeTableType(r)
		case ImportKindMemory:
			imp.DescMemory.Min, imp.DescMemory.Max, imp.DescMemory.Is64, err = decodeLimits(r)
		case ImportKindGlobal:
			imp.DescGlobal, err = decodeGlobalType(r)
		default:
			return fmt.Errorf("%w: invalid import kind %#x", ErrMalformed, kind)
		}
		if err != nil {
			return err
		}
		m.Imports[i] = imp
	}
	return nil
}

func decodeFunctionSection(r *reader, m *Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	m.FuncTypeIndices = make([]uint32, count)
	for i := range m.FuncTypeIndices {
		if m.FuncTypeIndices[i], err = r.u32(); err != nil {
			return err
		}
	}
	return nil
}

func decodeTableSection(r *reader, m *Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	m.Tables = make([]TableType, count)
	for i := range m.Tables {
		if m.Tables[i], err = decodeTableType(r); err != nil {
			return err
		}
	}
	return nil
}

func decodeMemorySection(r *reader, m *Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	m.Memories = make([]MemoryType, count)
	for i := range m.Memories {
		if m.Memories[i].Min, m.Memories[i].Max, m.Memories[i].Is64, err = decodeLimits(r); err != nil {
			return err
		}
	}
	return nil
}

func decodeGlobalSection(r *reader, m *Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	m.Globals = make([]GlobalDecl, count)
	for i := range m.Globals {
		gt, err := decodeGlobalType(r)
		if err != nil {
			return err
		}
		init, err := decodeConstExpr(r)
		if err != nil {
			return err
		}
		m.Globals[i] = GlobalDecl{Type: gt, Init: init}
	}
	return nil
}

func decodeExportSection(r *reader, m *Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	m.Exports = make([]Export, count)
	for i := range m.Exports {
		name, err := r.string()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		idx, err := r.u32()
		if err != nil {
			return err
		}
		m.Exports[i] = Export{Name: name, Kind: kind, Index: idx}
	}
	return nil
}

func decodeDataSection(r *reader, m *Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	m.Datas = make([]DataDecl, count)
	for i := range m.Datas {
		mode, err := r.u32()
		if err != nil {
			return err
		}
		d := DataDecl{}
		switch mode {
		case 0:
			d.Mode = DataModeActive
			d.Offset, err = decodeConstExpr(r)
		case 1:
			d.Mode = DataModePassive
		case 2:
			d.Mode = DataModeActive
			d.MemIndex, err = r.u32()
			if err == nil {
				d.Offset, err = decodeConstExpr(r)
			}
		default:
			return fmt.Errorf("%w: invalid data segment mode %d", ErrMalformed, mode)
		}
		if err != nil {
			return err
		}
		n, err := r.u32()
		if err != nil {
			return err
		}
		d.Bytes, err = r.bytes(int(n))
		if err != nil {
			return err
		}
		m.Datas[i] = d
	}
	return nil
}
