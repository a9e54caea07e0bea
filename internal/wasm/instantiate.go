package wasm

import (
	"fmt"

	"github.com/wasmcore/vm/api"
	"github.com/wasmcore/vm/internal/trap"
)

// Instantiate allocates a fresh ModuleInstance for m against s, resolving
// imports from im. It does not invoke the start function:
// that requires driving the interpreter, which would create an import cycle
// (internal/interpreter already depends on internal/wasm); the caller
// (the root vm package, which imports both) invokes Start after a
// successful Instantiate. A non-nil *trap.Trap returned alongside a non-nil
// instance means instantiation itself completed and the instance is
// published, but an active element/data segment failed partway through
// (deferred trap).
func Instantiate(s *Store, m *Module, im *Imports) (*ModuleInstance, *trap.Trap, error) {
	if im == nil {
		im = NewImports()
	}

	mi := &ModuleInstance{
		Store:   s,
		Addr:    s.nextModuleInstanceAddr(),
		Types:   m.Types,
		Exports: map[string]Export{},
		Start:   m.Start,
	}

	// 1-2. Resolve imports first (they occupy the low indices of each
	// address space), then append the module's own functions.
	for _, imp := range m.Imports {
		switch imp.Kind {
		case ImportKindFunc:
			ft := m.Types[imp.DescFunc]
			addr, err := linkFunc(s, im, imp, &ft)
			if err != nil {
				return nil, nil, err
			}
			mi.FuncAddrs = append(mi.FuncAddrs, addr)
		case ImportKindTable:
			addr, err := linkTable(s, im, imp)
			if err != nil {
				return nil, nil, err
			}
			mi.TableAddrs = append(mi.TableAddrs, addr)
		case ImportKindMemory:
			if imp.DescMemory.Is64 {
				return nil, nil, &UnsupportedFeatureError{Feature: "64-bit memory"}
			}
			addr, err := linkMemory(s, im, imp)
			if err != nil {
				return nil, nil, err
			}
			mi.MemAddrs = append(mi.MemAddrs, addr)
		case ImportKindGlobal:
			addr, err := linkGlobal(s, im, imp)
			if err != nil {
				return nil, nil, err
			}
			mi.GlobalAddrs = append(mi.GlobalAddrs, addr)
		}
	}

	for i, code := range m.Codes {
		ft := m.Types[m.FuncTypeIndices[i]]
		addr := s.initFunc(&FunctionInstance{
			Type: ft, Owner: mi.Addr, Code: code, TypeIndex: m.FuncTypeIndices[i],
		})
		mi.FuncAddrs = append(mi.FuncAddrs, addr)
	}

	// 3. Allocate own tables and memories.
	for _, t := range m.Tables {
		elems := make([]Reference, t.Min)
		for i := range elems {
			elems[i] = NullRef()
		}
		addr := s.initTable(&TableInstance{ElemType: t.ElemType, Min: t.Min, Max: t.Max, Elements: elems, Owner: mi.Addr})
		mi.TableAddrs = append(mi.TableAddrs, addr)
	}
	for _, mt := range m.Memories {
		if mt.Is64 {
			return nil, nil, &UnsupportedFeatureError{Feature: "64-bit memory"}
		}
		addr := s.initMemory(&MemoryInstance{
			Bytes: make([]byte, uint64(mt.Min)*PageSize), MinPage: mt.Min, MaxPage: mt.Max, Owner: mi.Addr,
		})
		mi.MemAddrs = append(mi.MemAddrs, addr)
	}

	// 4. Evaluate own globals in order.
	for _, g := range m.Globals {
		v, err := EvalConst(g.Init, mi)
		if err != nil {
			return nil, nil, err
		}
		addr := s.initGlobal(&GlobalInstance{Type: g.Type, Mutable: g.Mutable, Owner: mi.Addr})
		if err := s.SetGlobalVal(addr, v); err != nil {
			return nil, nil, err
		}
		mi.GlobalAddrs = append(mi.GlobalAddrs, addr)
	}

	// 5-6. Apply element/data segments; defer the first trap encountered.
	var deferred *trap.Trap
	for _, e := range m.Elements {
		items := make([]Reference, len(e.Items))
		for i, expr := range e.Items {
			ref, err := EvalConstRef(expr, mi)
			if err != nil {
				return nil, nil, err
			}
			items[i] = ref
		}
		addr := s.initElement(&ElementInstance{Items: items})
		mi.ElemAddrs = append(mi.ElemAddrs, addr)

		switch e.Mode {
		case ElemModeDeclared:
			// Only reachable via ref.func; drop immediately.
			elemInst, _ := s.GetElement(addr)
			elemInst.Drop()
		case ElemModeActive:
			if deferred != nil {
				continue
			}
			offset, err := EvalConstI32(e.Offset, mi)
			if err != nil {
				return nil, nil, err
			}
			tableAddr, err := mi.ResolveTableAddr(e.TableIndex)
			if err != nil {
				return nil, nil, err
			}
			table, err := s.GetTable(tableAddr)
			if err != nil {
				return nil, nil, err
			}
			if t := writeTableRange(table, offset, items); t != nil {
				deferred = t
				continue
			}
			elemInst, _ := s.GetElement(addr)
			elemInst.Drop()
		}
	}

	for _, d := range m.Datas {
		bytesCopy := make([]byte, len(d.Bytes))
		copy(bytesCopy, d.Bytes)
		addr := s.initData(&DataInstance{Bytes: bytesCopy})
		mi.DataAddrs = append(mi.DataAddrs, addr)

		if d.Mode != DataModeActive {
			continue
		}
		if deferred != nil {
			continue
		}
		offset, err := EvalConstI32(d.Offset, mi)
		if err != nil {
			return nil, nil, err
		}
		memAddr, err := mi.ResolveMemAddr(d.MemIndex)
		if err != nil {
			return nil, nil, err
		}
		mem, err := s.GetMemory(memAddr)
		if err != nil {
			return nil, nil, err
		}
		if t := writeMemoryRange(mem, offset, bytesCopy); t != nil {
			deferred = t
			continue
		}
		dataInst, _ := s.GetData(addr)
		dataInst.Drop()
	}

	// 7. Publish exports and the instance.
	for _, exp := range m.Exports {
		mi.Exports[exp.Name] = exp
	}
	s.addInstance(mi)

	// 8 (start invocation) is the caller's responsibility; see doc comment.
	return mi, deferred, nil
}

func writeTableRange(t *TableInstance, offset uint32, items []Reference) *trap.Trap {
	size := t.Size()
	if uint64(offset)+uint64(len(items)) > uint64(size) {
		return trap.OutOfBoundsTable(uint64(offset), uint64(len(items)), uint64(size))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	copy(t.Elements[offset:], items)
	return nil
}

func writeMemoryRange(m *MemoryInstance, offset uint32, data []byte) *trap.Trap {
	m.mu.Lock()
	defer m.mu.Unlock()
	size := uint64(len(m.Bytes))
	if uint64(offset)+uint64(len(data)) > size {
		return trap.OutOfBoundsMemory(uint64(offset), uint64(len(data)), size)
	}
	copy(m.Bytes[offset:], data)
	return nil
}

func linkFunc(s *Store, im *Imports, imp Import, want *api.FunctionType) (FuncAddr, error) {
	e, ok := im.lookup(imp.Module, imp.Name)
	if !ok {
		return 0, &LinkError{Kind: LinkMissingImport, Module: imp.Module, Name: imp.Name}
	}
	if e.Func != nil {
		if !e.Func.Type.Equal(want) {
			return 0, &LinkError{Kind: LinkTypeMismatch, Module: imp.Module, Name: imp.Name,
				Detail: fmt.Sprintf("want %s, host provides %s", want, &e.Func.Type)}
		}
		return s.initFunc(&FunctionInstance{Type: *want, IsHost: true, Host: *e.Func}), nil
	}
	if e.FuncAddr == nil {
		return 0, &LinkError{Kind: LinkKindMismatch, Module: imp.Module, Name: imp.Name, Detail: "expected function"}
	}
	fn, err := s.GetFunc(*e.FuncAddr)
	if err != nil {
		return 0, err
	}
	if !fn.Type.Equal(want) {
		return 0, &LinkError{Kind: LinkTypeMismatch, Module: imp.Module, Name: imp.Name,
			Detail: fmt.Sprintf("want %s, got %s", want, &fn.Type)}
	}
	return *e.FuncAddr, nil
}

func linkTable(s *Store, im *Imports, imp Import) (TableAddr, error) {
	e, ok := im.lookup(imp.Module, imp.Name)
	if !ok {
		return 0, &LinkError{Kind: LinkMissingImport, Module: imp.Module, Name: imp.Name}
	}
	if e.TableAddr == nil {
		return 0, &LinkError{Kind: LinkKindMismatch, Module: imp.Module, Name: imp.Name, Detail: "expected table"}
	}
	t, err := s.GetTable(*e.TableAddr)
	if err != nil {
		return 0, err
	}
	if t.ElemType != imp.DescTable.ElemType || t.Size() < imp.DescTable.Min {
		return 0, &LinkError{Kind: LinkTypeMismatch, Module: imp.Module, Name: imp.Name, Detail: "table type/size mismatch"}
	}
	return *e.TableAddr, nil
}

func linkMemory(s *Store, im *Imports, imp Import) (MemAddr, error) {
	e, ok := im.lookup(imp.Module, imp.Name)
	if !ok {
		return 0, &LinkError{Kind: LinkMissingImport, Module: imp.Module, Name: imp.Name}
	}
	if e.MemAddr == nil {
		return 0, &LinkError{Kind: LinkKindMismatch, Module: imp.Module, Name: imp.Name, Detail: "expected memory"}
	}
	m, err := s.GetMemory(*e.MemAddr)
	if err != nil {
		return 0, err
	}
	if m.PageCount() < imp.DescMemory.Min {
		return 0, &LinkError{Kind: LinkTypeMismatch, Module: imp.Module, Name: imp.Name, Detail: "memory too small"}
	}
	return *e.MemAddr, nil
}

func linkGlobal(s *Store, im *Imports, imp Import) (GlobalAddr, error) {
	e, ok := im.lookup(imp.Module, imp.Name)
	if !ok {
		return 0, &LinkError{Kind: LinkMissingImport, Module: imp.Module, Name: imp.Name}
	}
	if e.GlobalAddr == nil {
		return 0, &LinkError{Kind: LinkKindMismatch, Module: imp.Module, Name: imp.Name, Detail: "expected global"}
	}
	g, err := s.GetGlobal(*e.GlobalAddr)
	if err != nil {
		return 0, err
	}
	if g.Type != imp.DescGlobal.ValType || g.Mutable != imp.DescGlobal.Mutable {
		return 0, &LinkError{Kind: LinkTypeMismatch, Module: imp.Module, Name: imp.Name, Detail: "global type/mutability mismatch"}
	}
	return *e.GlobalAddr, nil
}
