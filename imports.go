package vm

import (
	"context"

	"github.com/wasmcore/vm/api"
	"github.com/wasmcore/vm/internal/wasm"
)

// HostFunc is an embedder-supplied function bound to an import.
type HostFunc struct {
	Type api.FunctionType
	Func func(ctx context.Context, args []api.Value) []api.Value
}

// Imports collects the externs a Module's imports resolve against at
// Instantiate time: host functions defined directly, and other modules
// linked in wholesale by name.
type Imports struct {
	inner *wasm.Imports
}

// NewImports returns an empty import set.
func NewImports() *Imports {
	return &Imports{inner: wasm.NewImports()}
}

// Define registers a host function under (module, name).
func (im *Imports) Define(module, name string, fn HostFunc) {
	im.inner.Define(module, name, wasm.Extern{Func: &wasm.HostFunction{Type: fn.Type, Func: fn.Func}})
}

// LinkModule makes every export of an already-instantiated module available
// to satisfy imports under the given module name (module-to-module linking).
func (im *Imports) LinkModule(name string, mi *ModuleInstance) {
	im.inner.LinkModule(name, mi.inner)
}
