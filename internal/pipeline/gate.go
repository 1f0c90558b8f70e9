package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of simultaneously active jobs. Slots are
// granted in request order; a caller whose context expires while
// waiting gets the context error instead of a slot.
type Gate struct {
	sem *semaphore.Weighted
	max int64
}

func NewGate(max int) *Gate {
	if max < 1 {
		max = 1
	}
	return &Gate{
		sem: semaphore.NewWeighted(int64(max)),
		max: int64(max),
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) (*Slot, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return &Slot{gate: g}, nil
}

// Slot is a ticket granting permission to run one job.
type Slot struct {
	gate *Gate
	once sync.Once
}

// Release returns the slot's capacity. Releasing twice is a no-op.
func (s *Slot) Release() {
	s.once.Do(func() {
		s.gate.sem.Release(1)
	})
}
