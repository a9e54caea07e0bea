// Package wasm implements the store, compiled module representation,
// linking and instantiation.
package wasm

// Addresses name entities in the store. They are stable for the store's
// lifetime; the store never compacts or reclaims them.
type (
	FuncAddr           uint32
	TableAddr          uint32
	MemAddr            uint32
	GlobalAddr         uint32
	ElemAddr           uint32
	DataAddr           uint32
	ModuleInstanceAddr uint32
)

// Reference is a table slot or a constant-evaluated ref.null/ref.func
// result: either null or a small-integer address.
type Reference struct {
	Null bool
	Addr uint32
}

func NullRef() Reference            { return Reference{Null: true} }
func RefTo(addr uint32) Reference   { return Reference{Addr: addr} }
