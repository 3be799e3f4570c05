package evaluator

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/wasmerio/wasmer-go/wasmer"
)

// ModuleCache compiles contract bytecode into wasmer modules once and reuses
// the compiled module across calls, so a `view` call does not pay
// compilation cost every time (§5: "each call gets its own WASM instance
// from a round-robin pool"). Grounded on the pool-and-reap shape of
// core/connection_pool.go, applied to compiled modules instead of net.Conn.
type ModuleCache struct {
	engine *wasmer.Engine
	store  *wasmer.Store

	mu    sync.Mutex
	cache *lru.Cache[string, *wasmer.Module]
}

// NewModuleCache constructs a cache holding up to size compiled modules.
func NewModuleCache(size int) (*ModuleCache, error) {
	if size <= 0 {
		size = 32
	}
	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)
	c, err := lru.New[string, *wasmer.Module](size)
	if err != nil {
		return nil, err
	}
	return &ModuleCache{engine: engine, store: store, cache: c}, nil
}

func bytecodeKey(code []byte) string {
	h := sha256.Sum256(code)
	return hex.EncodeToString(h[:])
}

// Compile returns a cached module for code, compiling and caching it on a
// miss.
func (mc *ModuleCache) Compile(code []byte) (*wasmer.Module, error) {
	key := bytecodeKey(code)
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mod, ok := mc.cache.Get(key); ok {
		return mod, nil
	}
	mod, err := wasmer.NewModule(mc.store, code)
	if err != nil {
		return nil, err
	}
	mc.cache.Add(key, mod)
	return mod, nil
}

// Store returns the shared wasmer store used to instantiate modules.
func (mc *ModuleCache) Store() *wasmer.Store { return mc.store }
