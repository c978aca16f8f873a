package onnx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultPoolSize = 2
	AcquireTimeout  = 30 * time.Second
)

// ErrPoolClosed is returned by Acquire after Destroy.
var ErrPoolClosed = errors.New("session pool is closed")

// Destroyer is anything holding native resources that must be released.
type Destroyer interface {
	Destroy() error
}

// Pool hands out a fixed number of reusable sessions. ONNX Runtime sessions with
// preallocated input tensors cannot serve two runs at once, so concurrent Detect
// calls each borrow one.
type Pool[S Destroyer] struct {
	sessions chan S
	size     int
	mu       sync.Mutex
	closed   bool
	metrics  PoolMetrics
	timeout  time.Duration
}

// PoolMetrics counts pool activity.
type PoolMetrics struct {
	InUse           int           `json:"in_use"`
	TotalAcquired   int64         `json:"total_acquired"`
	TotalReleased   int64         `json:"total_released"`
	AcquireFailures int64         `json:"acquire_failures"`
	WaitTime        time.Duration `json:"wait_time"`
}

// NewPool creates size sessions with newSession. If any fails, the ones already
// created are destroyed.
func NewPool[S Destroyer](size int, newSession func() (S, error)) (*Pool[S], error) {
	if size <= 0 {
		size = DefaultPoolSize
	}

	pool := &Pool[S]{
		sessions: make(chan S, size),
		size:     size,
		timeout:  AcquireTimeout,
	}

	for i := 0; i < size; i++ {
		session, err := newSession()
		if err != nil {
			pool.Destroy()
			return nil, fmt.Errorf("failed to initialize session %d: %w", i, err)
		}
		pool.sessions <- session
	}

	return pool, nil
}

// Size returns the number of sessions the pool was created with.
func (p *Pool[S]) Size() int {
	return p.size
}

// Acquire borrows a session, waiting until one is free, the context ends or the
// acquire timeout passes.
func (p *Pool[S]) Acquire(ctx context.Context) (S, error) {
	var zero S

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return zero, ErrPoolClosed
	}

	start := time.Now()
	defer func() {
		p.mu.Lock()
		p.metrics.WaitTime += time.Since(start)
		p.mu.Unlock()
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case session, ok := <-p.sessions:
		if !ok {
			return zero, ErrPoolClosed
		}
		p.mu.Lock()
		p.metrics.InUse++
		p.metrics.TotalAcquired++
		p.mu.Unlock()
		return session, nil
	case <-timer.C:
		p.mu.Lock()
		p.metrics.AcquireFailures++
		p.mu.Unlock()
		return zero, fmt.Errorf("timeout waiting for available session")
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Release returns a session to the pool. After Destroy the session is destroyed instead.
func (p *Pool[S]) Release(session S) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metrics.InUse--
	p.metrics.TotalReleased++

	if p.closed {
		session.Destroy()
		return
	}
	p.sessions <- session
}

// Destroy closes the pool and destroys idle sessions. Borrowed sessions are destroyed
// when they are released.
func (p *Pool[S]) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.sessions)

	var errs []error
	for session := range p.sessions {
		if err := session.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Metrics returns a snapshot of the pool counters.
func (p *Pool[S]) Metrics() PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}
