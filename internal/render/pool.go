package render

import (
	"context"
	"fmt"
	"sync"
)

// Pool bounds how many posters rasterize at once. Drawing a print-density
// canvas pins a core for seconds, so capacity should track CPUs, not clients.
type Pool struct {
	mu     sync.Mutex
	sem    chan struct{}
	closed bool
}

// PoolStats is a snapshot of pool occupancy.
type PoolStats struct {
	Enabled  bool
	Capacity int
	Idle     int
	InUse    int
}

// NewPool creates a pool with size render slots.
func NewPool(size int) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("render pool disabled (size %d)", size)
	}
	p := &Pool{sem: make(chan struct{}, size)}
	for i := 0; i < size; i++ {
		p.sem <- struct{}{}
	}
	return p, nil
}

// Acquire takes a render slot, waiting until one frees up or ctx ends.
func (p *Pool) Acquire(ctx context.Context) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return fmt.Errorf("render pool is closed")
	}

	select {
	case <-p.sem:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot to the pool.
func (p *Pool) Release() {
	select {
	case p.sem <- struct{}{}:
	default:
	}
}

// Stats reports current occupancy.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.sem == nil {
		return PoolStats{}
	}
	capacity := cap(p.sem)
	idle := len(p.sem)
	return PoolStats{Enabled: true, Capacity: capacity, Idle: idle, InUse: capacity - idle}
}

// Close marks the pool closed. Idempotent; in-flight renders finish.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}
