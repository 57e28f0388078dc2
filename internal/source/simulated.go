package source

import (
	"context"
	"math/rand"
	"sync"
)

// Simulated is a deterministic walker for demos and tests. Each read adds a
// pseudo-random number of steps in [0, cadence].
type Simulated struct {
	mu      sync.Mutex
	rng     *rand.Rand
	cadence int
	total   int64
	open    bool
}

func NewSimulated(seed int64, cadence int) *Simulated {
	if cadence <= 0 {
		cadence = 30
	}
	return &Simulated{rng: rand.New(rand.NewSource(seed)), cadence: cadence}
}

func (s *Simulated) Kind() Kind { return Cumulative }

func (s *Simulated) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	return nil
}

func (s *Simulated) Read(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, ErrUnavailable
	}
	s.total += int64(s.rng.Intn(s.cadence + 1))
	return s.total, nil
}

func (s *Simulated) Close() error {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
	return nil
}
