package worker

import (
	"math/rand"
	"sync"
	"time"
)

// Random is the source of every simulated outcome. Tests inject a seeded or
// scripted implementation to make runs reproducible.
type Random interface {
	Intn(n int) int
	Float64() float64
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewLockedRand returns a goroutine-safe Random seeded with seed.
func NewLockedRand(seed int64) Random {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

// NewTimeSeededRand returns a goroutine-safe Random seeded from the clock.
func NewTimeSeededRand() Random {
	return NewLockedRand(time.Now().UnixNano())
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}
