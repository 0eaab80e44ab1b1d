package generator

import (
	"math/rand/v2"
	"sync"
	"time"
)

// lockedSource serialises access to a rand.Source shared by concurrent callers.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

// NewLockedSource wraps src for concurrent use. A nil src is seeded from the clock.
func NewLockedSource(src rand.Source) rand.Source {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>17|1)
	}
	if locked, ok := src.(*lockedSource); ok {
		return locked
	}
	return &lockedSource{src: src}
}

// SeededSource returns a deterministic source for reproducible backfills.
func SeededSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}
