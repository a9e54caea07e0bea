package wasm

import "github.com/wasmcore/vm/api"

// ModuleInstance is the binding from module-relative indices to absolute
// store addresses, plus exports. Immutable after instantiation completes.
type ModuleInstance struct {
	Store *Store
	Addr  ModuleInstanceAddr
	Name  string // diagnostics only; never set, since the decoder skips custom sections

	Types []api.FunctionType

	FuncAddrs   []FuncAddr
	TableAddrs  []TableAddr
	MemAddrs    []MemAddr
	GlobalAddrs []GlobalAddr
	ElemAddrs   []ElemAddr
	DataAddrs   []DataAddr

	Exports map[string]Export
	Start   *uint32
}

func (mi *ModuleInstance) ResolveFuncAddr(idx uint32) (FuncAddr, error) {
	if int(idx) >= len(mi.FuncAddrs) {
		return 0, &NotFoundError{Kind: "function index", Addr: idx}
	}
	return mi.FuncAddrs[idx], nil
}

func (mi *ModuleInstance) ResolveTableAddr(idx uint32) (TableAddr, error) {
	if int(idx) >= len(mi.TableAddrs) {
		return 0, &NotFoundError{Kind: "table index", Addr: idx}
	}
	return mi.TableAddrs[idx], nil
}

func (mi *ModuleInstance) ResolveMemAddr(idx uint32) (MemAddr, error) {
	if int(idx) >= len(mi.MemAddrs) {
		return 0, &NotFoundError{Kind: "memory index", Addr: idx}
	}
	return mi.MemAddrs[idx], nil
}

func (mi *ModuleInstance) ResolveGlobalAddr(idx uint32) (GlobalAddr, error) {
	if int(idx) >= len(mi.GlobalAddrs) {
		return 0, &NotFoundError{Kind: "global index", Addr: idx}
	}
	return mi.GlobalAddrs[idx], nil
}

func (mi *ModuleInstance) ResolveElemAddr(idx uint32) (ElemAddr, error) {
	if int(idx) >= len(mi.ElemAddrs) {
		return 0, &NotFoundError{Kind: "element index", Addr: idx}
	}
	return mi.ElemAddrs[idx], nil
}

func (mi *ModuleInstance) ResolveDataAddr(idx uint32) (DataAddr, error) {
	if int(idx) >= len(mi.DataAddrs) {
		return 0, &NotFoundError{Kind: "data index", Addr: idx}
	}
	return mi.DataAddrs[idx], nil
}

// ExportedFunc looks up a function export by name, used by get_func/
// get_typed_func/get_start_func.
func (mi *ModuleInstance) ExportedFunc(name string) (FuncAddr, bool) {
	exp, ok := mi.Exports[name]
	if !ok || exp.Kind != ExportKindFunc {
		return 0, false
	}
	addr, err := mi.ResolveFuncAddr(exp.Index)
	return addr, err == nil
}
