package wasm

// Extern is one of the four import-resolution shapes. Exactly one field is
// set. FuncAddr/TableAddr/MemAddr/
// GlobalAddr reference entities already allocated in the target store
// (such as a linked module's exports); Func is a host callable that is
// registered in the store as a new function each time it satisfies a
// function import.
type Extern struct {
	FuncAddr   *FuncAddr
	TableAddr  *TableAddr
	MemAddr    *MemAddr
	GlobalAddr *GlobalAddr
	Func       *HostFunction
}

type importKey struct{ Module, Name string }

// Imports maps (module_name, import_name) to a resolved Extern and,
// separately, module names to already-instantiated module instances for
// module-to-module linking.
type Imports struct {
	defs    map[importKey]Extern
	modules map[string]*ModuleInstance
}

func NewImports() *Imports {
	return &Imports{defs: map[importKey]Extern{}, modules: map[string]*ModuleInstance{}}
}

func (im *Imports) Define(module, name string, e Extern) {
	im.defs[importKey{module, name}] = e
}

func (im *Imports) LinkModule(name string, mi *ModuleInstance) {
	im.modules[name] = mi
}

// lookup finds the Extern satisfying a (module, name) pair, first from a
// direct Define, then falling back to a linked module's matching export.
func (im *Imports) lookup(module, name string) (Extern, bool) {
	if e, ok := im.defs[importKey{module, name}]; ok {
		return e, true
	}
	if mi, ok := im.modules[module]; ok {
		if exp, ok := mi.Exports[name]; ok {
			return externFromExport(mi, exp), true
		}
	}
	return Extern{}, false
}

func externFromExport(mi *ModuleInstance, exp Export) Extern {
	switch exp.Kind {
	case ExportKindFunc:
		addr, _ := mi.ResolveFuncAddr(exp.Index)
		return Extern{FuncAddr: &addr}
	case ExportKindTable:
		addr, _ := mi.ResolveTableAddr(exp.Index)
		return Extern{TableAddr: &addr}
	case ExportKindMemory:
		addr, _ := mi.ResolveMemAddr(exp.Index)
		return Extern{MemAddr: &addr}
	case ExportKindGlobal:
		addr, _ := mi.ResolveGlobalAddr(exp.Index)
		return Extern{GlobalAddr: &addr}
	default:
		return Extern{}
	}
}
