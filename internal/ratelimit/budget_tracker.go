// Package ratelimit coordinates the request budget of the video provider
// across the API and worker processes.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default budget configuration values.
const (
	DefaultTotalBudget    = 10          // requests per window
	DefaultReservedBudget = 4           // held back for status polls
	DefaultWindowSize     = time.Second // fixed window aligned to the clock
	DefaultKeyPrefix      = "kling:budget"
)

// Priority selects the budget pool a request draws from.
type Priority int

const (
	// PriorityHigh is for status polls of tasks already paid for (reserved pool).
	PriorityHigh Priority = iota
	// PriorityLow is for new task submissions (shared pool).
	PriorityLow
)

// String returns a string representation of the priority level.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// consumeScript atomically checks the total and pool counters of the
// current window and increments both when the request fits.
var consumeScript = redis.NewScript(`
	local totalKey = KEYS[1]
	local poolKey = KEYS[2]
	local units = tonumber(ARGV[1])
	local totalBudget = tonumber(ARGV[2])
	local poolBudget = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local totalUsed = tonumber(redis.call('GET', totalKey) or '0')
	local poolUsed = tonumber(redis.call('GET', poolKey) or '0')

	if totalUsed + units > totalBudget or poolUsed + units > poolBudget then
		return {0, totalUsed, poolUsed}
	end

	redis.call('INCRBY', totalKey, units)
	redis.call('EXPIRE', totalKey, ttl)
	redis.call('INCRBY', poolKey, units)
	redis.call('EXPIRE', poolKey, ttl)

	return {1, totalUsed + units, poolUsed + units}
`)

// BudgetTracker is a Redis-backed fixed-window limiter with a reserved pool
// for high-priority requests and a shared pool for everything else.
type BudgetTracker struct {
	redis          redis.Cmdable
	prefix         string
	totalBudget    int
	reservedBudget int
	sharedBudget   int
	windowSize     time.Duration
	keyTTL         time.Duration
	now            func() time.Time
}

// BudgetTrackerConfig holds configuration for the budget tracker.
type BudgetTrackerConfig struct {
	// Redis is required.
	Redis redis.Cmdable
	// KeyPrefix namespaces the counters. Default: kling:budget.
	KeyPrefix string
	// TotalBudget is the number of requests allowed per window. Default: 10.
	TotalBudget int
	// ReservedBudget is the part of TotalBudget only PriorityHigh may use. Default: 4.
	ReservedBudget int
	// WindowSize default: 1s.
	WindowSize time.Duration
}

// Usage is a snapshot of the current window.
type Usage struct {
	TotalUsed      int       `json:"totalUsed"`
	ReservedUsed   int       `json:"reservedUsed"`
	SharedUsed     int       `json:"sharedUsed"`
	TotalBudget    int       `json:"totalBudget"`
	ReservedBudget int       `json:"reservedBudget"`
	SharedBudget   int       `json:"sharedBudget"`
	WindowStart    time.Time `json:"windowStart"`
}

// Validate checks if the configuration is valid.
func (c *BudgetTrackerConfig) Validate() error {
	if c.Redis == nil {
		return errors.New("redis client is required")
	}
	if c.TotalBudget < 0 || c.ReservedBudget < 0 {
		return errors.New("budgets cannot be negative")
	}
	total, reserved := c.budgets()
	if reserved > total {
		return fmt.Errorf("reserved budget (%d) cannot exceed total budget (%d)", reserved, total)
	}
	return nil
}

func (c *BudgetTrackerConfig) budgets() (total, reserved int) {
	total, reserved = c.TotalBudget, c.ReservedBudget
	if total == 0 {
		total = DefaultTotalBudget
	}
	if reserved == 0 {
		reserved = DefaultReservedBudget
		if reserved > total {
			reserved = total / 2
		}
	}
	return total, reserved
}

// NewBudgetTracker creates a new tracker with the given configuration.
func NewBudgetTracker(cfg *BudgetTrackerConfig) (*BudgetTracker, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	total, reserved := cfg.budgets()
	window := cfg.WindowSize
	if window <= 0 {
		window = DefaultWindowSize
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &BudgetTracker{
		redis:          cfg.Redis,
		prefix:         prefix,
		totalBudget:    total,
		reservedBudget: reserved,
		sharedBudget:   total - reserved,
		windowSize:     window,
		keyTTL:         2 * window,
		now:            time.Now,
	}, nil
}

func (t *BudgetTracker) windowStart() time.Time {
	return t.now().Truncate(t.windowSize)
}

func (t *BudgetTracker) keys(window time.Time) (total, reserved, shared string) {
	ts := strconv.FormatInt(window.UnixMilli(), 10)
	return t.prefix + ":total:" + ts, t.prefix + ":reserved:" + ts, t.prefix + ":shared:" + ts
}

// TryConsume attempts to take units from the pool matching priority. When
// denied it returns the time until the next window. Redis failures deny.
func (t *BudgetTracker) TryConsume(ctx context.Context, units int, priority Priority) (bool, time.Duration) {
	if units <= 0 {
		return true, 0
	}

	window := t.windowStart()
	totalKey, reservedKey, sharedKey := t.keys(window)

	poolKey, poolBudget := sharedKey, t.sharedBudget
	if priority == PriorityHigh {
		poolKey, poolBudget = reservedKey, t.reservedBudget
	}

	ttl := int(t.keyTTL / time.Second)
	if ttl < 1 {
		ttl = 1
	}

	result, err := consumeScript.Run(ctx, t.redis, []string{totalKey, poolKey},
		units, t.totalBudget, poolBudget, ttl).Int64Slice()
	if err != nil || len(result) == 0 || result[0] != 1 {
		return false, t.untilNextWindow(window)
	}
	return true, 0
}

func (t *BudgetTracker) untilNextWindow(window time.Time) time.Duration {
	wait := window.Add(t.windowSize).Sub(t.now())
	if wait < 0 {
		wait = 0
	}
	return wait + time.Millisecond
}

// GetUsage returns the counters of the current window.
func (t *BudgetTracker) GetUsage(ctx context.Context) (*Usage, error) {
	window := t.windowStart()
	totalKey, reservedKey, sharedKey := t.keys(window)

	pipe := t.redis.Pipeline()
	totalCmd := pipe.Get(ctx, totalKey)
	reservedCmd := pipe.Get(ctx, reservedKey)
	sharedCmd := pipe.Get(ctx, sharedKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read budget usage: %w", err)
	}

	return &Usage{
		TotalUsed:      intOrZero(totalCmd),
		ReservedUsed:   intOrZero(reservedCmd),
		SharedUsed:     intOrZero(sharedCmd),
		TotalBudget:    t.totalBudget,
		ReservedBudget: t.reservedBudget,
		SharedBudget:   t.sharedBudget,
		WindowStart:    window,
	}, nil
}

func intOrZero(cmd *redis.StringCmd) int {
	v, err := cmd.Int()
	if err != nil {
		return 0
	}
	return v
}

// Available returns the units left in the pool for priority.
func (t *BudgetTracker) Available(ctx context.Context, priority Priority) (int, error) {
	u, err := t.GetUsage(ctx)
	if err != nil {
		return 0, err
	}
	left := t.sharedBudget - u.SharedUsed
	if priority == PriorityHigh {
		left = t.reservedBudget - u.ReservedUsed
	}
	if total := t.totalBudget - u.TotalUsed; total < left {
		left = total
	}
	if left < 0 {
		left = 0
	}
	return left, nil
}

// TotalBudget returns the configured requests per window.
func (t *BudgetTracker) TotalBudget() int { return t.totalBudget }

// ReservedBudget returns the units only PriorityHigh may use.
func (t *BudgetTracker) ReservedBudget() int { return t.reservedBudget }

// SharedBudget returns the units PriorityLow may use.
func (t *BudgetTracker) SharedBudget() int { return t.sharedBudget }

// WindowSize returns the configured window size.
func (t *BudgetTracker) WindowSize() time.Duration { return t.windowSize }
