package interpreter

import "github.com/wasmcore/vm/internal/wasm"

// Config parameterizes the runtime's resource bounds, rather than hiding
// them as bare constants.
type Config struct {
	MaxCallStackDepth int
	MaxTableSize      uint32
	MaxMemoryPages    uint32
}

// DefaultConfig returns the implementation's default resource bounds.
func DefaultConfig() Config {
	return Config{
		MaxCallStackDepth: 1024,
		MaxTableSize:      wasm.TableCap,
		MaxMemoryPages:    wasm.MemoryCap,
	}
}
