package vm

import (
	"github.com/google/uuid"

	"github.com/wasmcore/vm/internal/interpreter"
	"github.com/wasmcore/vm/internal/wasm"
)

// RuntimeConfig holds the resource bounds a Store enforces. Build one with
// functional options and pass it to NewStore.
type RuntimeConfig struct {
	cfg interpreter.Config
}

// NewRuntimeConfig returns a RuntimeConfig seeded with the default bounds.
func NewRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{cfg: interpreter.DefaultConfig()}
}

// RuntimeOption mutates a RuntimeConfig under construction.
type RuntimeOption func(*RuntimeConfig)

// WithMaxCallStackDepth overrides the maximum nested call depth before a
// function invocation traps CallStackOverflow.
func WithMaxCallStackDepth(n int) RuntimeOption {
	return func(c *RuntimeConfig) { c.cfg.MaxCallStackDepth = n }
}

// WithMaxTableSize overrides the implementation cap on table growth.
func WithMaxTableSize(n uint32) RuntimeOption {
	return func(c *RuntimeConfig) { c.cfg.MaxTableSize = n }
}

// WithMaxMemoryPages overrides the implementation cap on memory growth.
func WithMaxMemoryPages(n uint32) RuntimeOption {
	return func(c *RuntimeConfig) { c.cfg.MaxMemoryPages = n }
}

// Store owns every runtime entity allocated by instantiation: functions,
// tables, memories, globals, and module instances. A FuncHandle obtained
// from a Store always runs against that Store.
type Store struct {
	inner *wasm.Store
	cfg   interpreter.Config
}

// NewStore allocates a fresh store, applying any RuntimeOptions over the
// default resource bounds.
func NewStore(opts ...RuntimeOption) *Store {
	rc := NewRuntimeConfig()
	for _, opt := range opts {
		opt(&rc)
	}
	return &Store{inner: wasm.NewStore(), cfg: rc.cfg}
}

// ID returns the store's process-wide identity.
func (s *Store) ID() uint64 { return s.inner.ID() }

// DebugID returns a human-readable identifier for log lines; it carries no
// semantic weight.
func (s *Store) DebugID() uuid.UUID { return s.inner.DebugID() }
