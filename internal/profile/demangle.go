package profile

import (
	"strings"
	"sync"

	"github.com/ianlancetaylor/demangle"
)

// demangleCache memoises demangled names; profiles repeat the same
// function across thousands of locations.
type demangleCache struct {
	mu    sync.RWMutex
	names map[string]string
	hits  int
}

var cache = &demangleCache{names: make(map[string]string)}

// looksMangled reports an Itanium or Rust v0 mangled name.
func looksMangled(name string) bool {
	return strings.HasPrefix(name, "_Z") || strings.HasPrefix(name, "_R")
}

// CachedDemangle returns the demangled form of mangled, or mangled itself
// when it is not a mangled name.
func CachedDemangle(mangled string) string {
	if !looksMangled(mangled) {
		return mangled
	}
	cache.mu.RLock()
	if cached, ok := cache.names[mangled]; ok {
		cache.mu.RUnlock()
		cache.mu.Lock()
		cache.hits++
		cache.mu.Unlock()
		return cached
	}
	cache.mu.RUnlock()

	demangled := demangle.Filter(mangled, demangle.NoClones)

	cache.mu.Lock()
	cache.names[mangled] = demangled
	cache.mu.Unlock()
	return demangled
}

// DemangleCacheStats returns the number of cached names and cache hits.
func DemangleCacheStats() (names, hits int) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	return len(cache.names), cache.hits
}
