package wasm

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/wasmcore/vm/api"
)

// storeIDSeq is the process-wide monotonic counter backing store identity.
var storeIDSeq uint64

// Store is the arena-like container owning every runtime entity. Entities
// are indexed by small integer addresses handed out on instantiation and
// never reclaimed.
type Store struct {
	id uint64

	debugIDOnce sync.Once
	debugID     uuid.UUID

	mu sync.Mutex

	funcs     []*FunctionInstance
	tables    []*TableInstance
	mems      []*MemoryInstance
	globals   []*GlobalInstance
	elems     []*ElementInstance
	datas     []*DataInstance
	instances []*ModuleInstance
}

// NewStore allocates a fresh store with its own monotonic id.
func NewStore() *Store {
	return &Store{id: atomic.AddUint64(&storeIDSeq, 1)}
}

// ID returns the store's identity, used by handles to reject cross-store use.
func (s *Store) ID() uint64 { return s.id }

// DebugID lazily generates a human-readable UUID for log lines. It carries
// no semantic weight: handle validity is decided solely by ID, never by
// DebugID.
func (s *Store) DebugID() uuid.UUID {
	s.debugIDOnce.Do(func() {
		s.debugID = uuid.New()
	})
	return s.debugID
}

func (s *Store) nextModuleInstanceAddr() ModuleInstanceAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ModuleInstanceAddr(len(s.instances))
}

func (s *Store) addInstance(mi *ModuleInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances = append(s.instances, mi)
}

func (s *Store) initFunc(fi *FunctionInstance) FuncAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs = append(s.funcs, fi)
	return FuncAddr(len(s.funcs) - 1)
}

func (s *Store) initTable(t *TableInstance) TableAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = append(s.tables, t)
	return TableAddr(len(s.tables) - 1)
}

func (s *Store) initMemory(m *MemoryInstance) MemAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mems = append(s.mems, m)
	return MemAddr(len(s.mems) - 1)
}

func (s *Store) initGlobal(g *GlobalInstance) GlobalAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globals = append(s.globals, g)
	return GlobalAddr(len(s.globals) - 1)
}

func (s *Store) initElement(e *ElementInstance) ElemAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elems = append(s.elems, e)
	return ElemAddr(len(s.elems) - 1)
}

func (s *Store) initData(d *DataInstance) DataAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datas = append(s.datas, d)
	return DataAddr(len(s.datas) - 1)
}

func (s *Store) GetFunc(addr FuncAddr) (*FunctionInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(addr) >= len(s.funcs) {
		return nil, &NotFoundError{Kind: "function", Addr: uint32(addr)}
	}
	return s.funcs[addr], nil
}

func (s *Store) GetTable(addr TableAddr) (*TableInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(addr) >= len(s.tables) {
		return nil, &NotFoundError{Kind: "table", Addr: uint32(addr)}
	}
	return s.tables[addr], nil
}

func (s *Store) GetMemory(addr MemAddr) (*MemoryInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(addr) >= len(s.mems) {
		return nil, &NotFoundError{Kind: "memory", Addr: uint32(addr)}
	}
	return s.mems[addr], nil
}

func (s *Store) GetGlobal(addr GlobalAddr) (*GlobalInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(addr) >= len(s.globals) {
		return nil, &NotFoundError{Kind: "global", Addr: uint32(addr)}
	}
	return s.globals[addr], nil
}

func (s *Store) GetElement(addr ElemAddr) (*ElementInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(addr) >= len(s.elems) {
		return nil, &NotFoundError{Kind: "element", Addr: uint32(addr)}
	}
	return s.elems[addr], nil
}

func (s *Store) GetData(addr DataAddr) (*DataInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(addr) >= len(s.datas) {
		return nil, &NotFoundError{Kind: "data", Addr: uint32(addr)}
	}
	return s.datas[addr], nil
}

func (s *Store) GetInstance(addr ModuleInstanceAddr) (*ModuleInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(addr) >= len(s.instances) {
		return nil, &NotFoundError{Kind: "module instance", Addr: uint32(addr)}
	}
	return s.instances[addr], nil
}

// GetGlobalVal and SetGlobalVal are the typed accessors global.get/
// global.set use.
func (s *Store) GetGlobalVal(addr GlobalAddr) (api.Value, error) {
	g, err := s.GetGlobal(addr)
	if err != nil {
		return api.Value{}, err
	}
	return g.Get(), nil
}

func (s *Store) SetGlobalVal(addr GlobalAddr, v api.Value) error {
	g, err := s.GetGlobal(addr)
	if err != nil {
		return err
	}
	g.Set(v)
	return nil
}
