package synthetic

import (
	"math/rand"
	"sync"
	"time"
)

// Source yields uniform values in [0, 1). It drives jitter and random-walk
// deltas so tests can pin outputs.
type Source interface {
	Float64() float64
}

type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSource returns a goroutine-safe Source seeded with seed.
func NewSource(seed int64) Source {
	return &lockedSource{rnd: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// Fixed is a Source that always returns the same value. Fixed(0.5) yields
// zero jitter and a flat walk.
type Fixed float64

func (f Fixed) Float64() float64 { return float64(f) }

func defaultSource() Source { return NewSource(time.Now().UnixNano()) }
