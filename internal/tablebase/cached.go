package tablebase

import (
	"context"
	"sync"

	"github.com/hailam/cactus/internal/board"
)

type cacheEntry struct {
	r     Result
	found bool
}

// CachedProber remembers answers of another prober by position hash.
// Errors are not cached.
type CachedProber struct {
	inner   Prober
	maxSize int

	mu     sync.RWMutex
	cache  map[uint64]cacheEntry
	hits   uint64
	misses uint64
}

func NewCachedProber(inner Prober, size int) *CachedProber {
	return &CachedProber{
		inner:   inner,
		cache:   make(map[uint64]cacheEntry, size),
		maxSize: size,
	}
}

// NewCachedLichessProber wraps the public lichess service.
func NewCachedLichessProber() *CachedProber {
	return NewCachedProber(NewLichessProber(), 1<<16)
}

// Probe implements Prober.
func (cp *CachedProber) Probe(ctx context.Context, pos *board.Position) (Result, bool, error) {
	cp.mu.RLock()
	e, ok := cp.cache[pos.Hash]
	cp.mu.RUnlock()
	if ok {
		cp.mu.Lock()
		cp.hits++
		cp.mu.Unlock()
		return e.r, e.found, nil
	}

	r, found, err := cp.inner.Probe(ctx, pos)
	if err != nil {
		return r, found, err
	}

	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.misses++
	if len(cp.cache) >= cp.maxSize {
		// Evict about half; map order is random enough.
		n := 0
		for k := range cp.cache {
			if n >= cp.maxSize/2 {
				break
			}
			delete(cp.cache, k)
			n++
		}
	}
	cp.cache[pos.Hash] = cacheEntry{r, found}
	return r, found, nil
}

// MaxPieces implements Prober.
func (cp *CachedProber) MaxPieces() int { return cp.inner.MaxPieces() }

// HitRate returns the percentage of probes served from the cache.
func (cp *CachedProber) HitRate() float64 {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	total := cp.hits + cp.misses
	if total == 0 {
		return 0
	}
	return float64(cp.hits) / float64(total) * 100
}

// Len returns the number of cached positions.
func (cp *CachedProber) Len() int {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return len(cp.cache)
}
