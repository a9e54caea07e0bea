package vm

import (
	"fmt"

	"github.com/wasmcore/vm/internal/interpreter"
	"github.com/wasmcore/vm/internal/wasm"
)

// ModuleInstance is the result of instantiating a Module against a Store:
// every entity the module declares or imports, allocated and addressable,
// plus its exports.
type ModuleInstance struct {
	store *Store
	inner *wasm.ModuleInstance
}

// Instantiate allocates m's entities in s, resolving imports from im (nil
// means no imports), and then invokes the start function: the module's
// declared start index if one exists, otherwise an exported `_start`
// function if present. A trap raised while applying an
// active element/data segment, or while running the start function, is
// returned as an error; a successfully published instance is still returned
// alongside it so the caller can inspect state the trap left behind.
func (m *Module) Instantiate(s *Store, im *Imports) (*ModuleInstance, error) {
	var wim *wasm.Imports
	if im != nil {
		wim = im.inner
	}

	inst, deferred, err := wasm.Instantiate(s.inner, m.compiled, wim)
	if err != nil {
		return nil, err
	}
	mi := &ModuleInstance{store: s, inner: inst}
	if deferred != nil {
		return mi, deferred
	}

	startAddr, ok := resolveStart(inst)
	if !ok {
		return mi, nil
	}
	fn, err := s.inner.GetFunc(startAddr)
	if err != nil {
		return mi, err
	}
	if _, err := interpreter.CallFunction(s.inner, s.cfg, fn, inst, nil); err != nil {
		return mi, err
	}
	return mi, nil
}

func resolveStart(inst *wasm.ModuleInstance) (wasm.FuncAddr, bool) {
	if inst.Start != nil {
		addr, err := inst.ResolveFuncAddr(*inst.Start)
		if err == nil {
			return addr, true
		}
	}
	return inst.ExportedFunc("_start")
}

// GetFunc looks up an exported function by name.
func (mi *ModuleInstance) GetFunc(name string) (*FuncHandle, bool) {
	addr, ok := mi.inner.ExportedFunc(name)
	if !ok {
		return nil, false
	}
	fn, err := mi.store.inner.GetFunc(addr)
	if err != nil {
		return nil, false
	}
	return &FuncHandle{store: mi.store, mi: mi.inner, fn: fn, storeID: mi.store.ID()}, true
}

// GetStartFunc returns a handle to the function Instantiate would have run
// as the start function (the declared start index, or an exported `_start`),
// useful when the caller wants to invoke it again or inspect its signature.
func (mi *ModuleInstance) GetStartFunc() (*FuncHandle, bool) {
	addr, ok := resolveStart(mi.inner)
	if !ok {
		return nil, false
	}
	fn, err := mi.store.inner.GetFunc(addr)
	if err != nil {
		return nil, false
	}
	return &FuncHandle{store: mi.store, mi: mi.inner, fn: fn, storeID: mi.store.ID()}, true
}

// Name returns the instance's diagnostic name. The decoder skips every
// custom section, the name section included, so it is always empty.
func (mi *ModuleInstance) Name() string { return mi.inner.Name }

func (mi *ModuleInstance) String() string {
	return fmt.Sprintf("ModuleInstance{addr=%d name=%q}", mi.inner.Addr, mi.inner.Name)
}
