// Package vm is the embedder-facing facade: parse a wasm binary into a
// Module, create a Store, link Imports, Instantiate, and call exported
// functions. It is the only package that imports both internal/wasm and
// internal/interpreter — instantiation and dispatch otherwise live in
// separate layers to avoid an import cycle (internal/wasm/instantiate.go
// documents this split in its own doc comment), and invoking a module's
// start function requires both.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/wasmcore/vm/internal/binary"
	"github.com/wasmcore/vm/internal/wasm"
)

// Module is a decoded and lowered wasm binary, ready to instantiate against
// any number of stores.
type Module struct {
	compiled *wasm.Module
}

// Parse decodes and lowers a wasm binary in memory.
func Parse(b []byte) (*Module, error) {
	bm, err := binary.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("vm: parse: %w", err)
	}
	cm, err := wasm.Compile(bm)
	if err != nil {
		return nil, fmt.Errorf("vm: parse: %w", err)
	}
	return &Module{compiled: cm}, nil
}

// ParseStream reads r to completion and parses the result.
func ParseStream(r io.Reader) (*Module, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("vm: parse: %w", err)
	}
	return Parse(b)
}

// ParseFile reads and parses the wasm binary at path.
func ParseFile(path string) (*Module, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vm: parse: %w", err)
	}
	return Parse(b)
}
