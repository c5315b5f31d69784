package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Default pacer configuration values.
const (
	DefaultBaseDelay = 100 * time.Millisecond
	DefaultMaxDelay  = 5 * time.Second
	DefaultMaxWait   = 30 * time.Second
)

// ErrMaxWaitExceeded is returned when budget did not free up within MaxWait.
var ErrMaxWaitExceeded = errors.New("maximum wait time exceeded waiting for provider budget")

// Pacer blocks callers until the tracker grants budget, backing off
// exponentially while the pool stays exhausted.
type Pacer struct {
	tracker   *BudgetTracker
	baseDelay time.Duration
	maxDelay  time.Duration
	maxWait   time.Duration

	mu               sync.Mutex
	currentDelay     time.Duration
	consecutiveFails int
	throttled        int64
	onThrottle       func(Priority)
}

// PacerConfig holds configuration for the pacer.
type PacerConfig struct {
	// Tracker is required.
	Tracker   *BudgetTracker
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// MaxWait bounds how long WaitForBudget blocks. Default: 30s.
	MaxWait time.Duration
	// OnThrottle is called every time a request is denied, for metrics.
	OnThrottle func(Priority)
}

// Validate checks if the configuration is valid.
func (c *PacerConfig) Validate() error {
	if c.Tracker == nil {
		return errors.New("tracker is required")
	}
	if c.BaseDelay < 0 || c.MaxDelay < 0 || c.MaxWait < 0 {
		return errors.New("delays cannot be negative")
	}
	if c.MaxDelay > 0 && c.BaseDelay > c.MaxDelay {
		return errors.New("base delay cannot exceed max delay")
	}
	return nil
}

// NewPacer creates a new pacer with the given configuration.
func NewPacer(cfg *PacerConfig) (*Pacer, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pacer{
		tracker:    cfg.Tracker,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		maxWait:    cfg.MaxWait,
		onThrottle: cfg.OnThrottle,
	}
	if p.baseDelay == 0 {
		p.baseDelay = DefaultBaseDelay
	}
	if p.maxDelay == 0 {
		p.maxDelay = DefaultMaxDelay
	}
	if p.maxWait == 0 {
		p.maxWait = DefaultMaxWait
	}
	p.currentDelay = p.baseDelay
	return p, nil
}

// WaitForBudget blocks until one request's worth of budget is granted from
// the pool for priority, ctx is done, or MaxWait elapses.
func (p *Pacer) WaitForBudget(ctx context.Context, priority Priority) error {
	deadline := time.Now().Add(p.maxWait)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		allowed, wait := p.tracker.TryConsume(ctx, 1, priority)
		if allowed {
			p.RecordSuccess()
			return nil
		}
		p.RecordFailure(priority)

		delay := p.CurrentDelay()
		if wait > delay {
			delay = wait
		}
		if time.Now().Add(delay).After(deadline) {
			return ErrMaxWaitExceeded
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RecordSuccess resets backoff.
func (p *Pacer) RecordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consecutiveFails = 0
	p.currentDelay = p.baseDelay
}

// RecordFailure doubles the backoff up to MaxDelay.
func (p *Pacer) RecordFailure(priority Priority) {
	p.mu.Lock()
	p.consecutiveFails++
	p.throttled++
	d := p.baseDelay
	for i := 0; i < p.consecutiveFails && d < p.maxDelay; i++ {
		d *= 2
	}
	if d > p.maxDelay {
		d = p.maxDelay
	}
	p.currentDelay = d
	hook := p.onThrottle
	p.mu.Unlock()

	if hook != nil {
		hook(priority)
	}
}

// CurrentDelay returns the current backoff delay.
func (p *Pacer) CurrentDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentDelay
}

// Throttled returns how many requests have been denied since start.
func (p *Pacer) Throttled() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.throttled
}

// Tracker returns the underlying budget tracker.
func (p *Pacer) Tracker() *BudgetTracker {
	return p.tracker
}
