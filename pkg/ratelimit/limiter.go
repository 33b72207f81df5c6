package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx ends
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
}

// clock is swapped out in tests
type clock struct {
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

var realClock = clock{now: time.Now, sleep: sleepCtx}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Pacer enforces a fixed minimum delay between consecutive requests. The
// first request passes immediately.
type Pacer struct {
	interval time.Duration
	last     time.Time
	clock    clock
	mu       sync.Mutex
}

// NewPacer creates a pacer with the given minimum spacing
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval, clock: realClock}
}

// NewPacerWithClock creates a pacer that reads time from now and waits
// through sleep, for callers that drive time themselves
func NewPacerWithClock(interval time.Duration, now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *Pacer {
	return &Pacer{interval: interval, clock: clock{now: now, sleep: sleep}}
}

// Interval returns the configured spacing
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Allow reports whether a request may start now, and claims the slot if so
func (p *Pacer) Allow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.now()
	if !p.last.IsZero() && now.Sub(p.last) < p.interval {
		return false
	}
	p.last = now
	return true
}

// Wait sleeps until interval has passed since the previous request
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		if remaining := p.interval - p.clock.now().Sub(p.last); remaining > 0 {
			if err := p.clock.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	p.last = p.clock.now()
	return nil
}

// Reset forgets the previous request
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = time.Time{}
}

// SlidingWindow implements a sliding window rate limiter
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	clock       clock
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		clock:       realClock,
	}
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.clock.now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}

	return false
}

// Wait blocks until a request is allowed
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for !sw.Allow() {
		sw.mu.Lock()
		timeToWait := 100 * time.Millisecond
		if len(sw.requests) > 0 {
			timeToWait = sw.windowSize - sw.clock.now().Sub(sw.requests[0])
		}
		sw.mu.Unlock()

		if err := sw.clock.sleep(ctx, timeToWait); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}

// Chain applies several limiters in order; a request proceeds once every
// limiter admits it.
type Chain []Limiter

// Allow claims a slot from every limiter. A refusal part way through still
// consumes the slots already granted, so prefer Wait.
func (c Chain) Allow() bool {
	for _, l := range c {
		if !l.Allow() {
			return false
		}
	}
	return true
}

// Wait waits on each limiter in turn
func (c Chain) Wait(ctx context.Context) error {
	for _, l := range c {
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Reset resets every limiter
func (c Chain) Reset() {
	for _, l := range c {
		l.Reset()
	}
}

// ForDownloads builds the limiter used between document attempts: a fixed
// delay, plus an hourly budget when maxPerHour is positive.
func ForDownloads(delay time.Duration, maxPerHour int) Limiter {
	chain := Chain{NewPacer(delay)}
	if maxPerHour > 0 {
		chain = append(chain, NewSlidingWindow(maxPerHour, time.Hour))
	}
	return chain
}
