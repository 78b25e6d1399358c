// Package query is the shared fetch policy for remote reads: results stay
// fresh for a stale time, failed calls are retried with backoff unless the
// failure is permanent, and concurrent reads of one key share a single call.
package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mauv0809/finboard/internal/apperr"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultStaleTime   = 5 * time.Minute
	DefaultMaxAttempts = 3
	defaultBaseBackoff = 500 * time.Millisecond
	defaultMaxBackoff  = 10 * time.Second
	DefaultTimeout     = 2 * time.Minute
)

type entry struct {
	value     any
	fetchedAt time.Time
}

// Client caches and retries reads. It is safe for concurrent use.
type Client struct {
	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group

	staleTime   time.Duration
	maxAttempts uint64
	baseBackoff time.Duration
	timeout     time.Duration
	limiter     *rate.Limiter
	now         func() time.Time
	logger      *zap.Logger
}

type Option func(*Client)

func WithStaleTime(d time.Duration) Option {
	return func(c *Client) { c.staleTime = d }
}

// WithMaxAttempts sets the total number of attempts per read, including the
// first one.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = uint64(n)
		}
	}
}

func WithBackoff(base time.Duration) Option {
	return func(c *Client) { c.baseBackoff = base }
}

// WithTimeout bounds a shared fetch, retries included. The fetch outlives any
// single caller that gives up on it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit paces outbound calls to rps per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

func withClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		entries:     map[string]entry{},
		staleTime:   DefaultStaleTime,
		maxAttempts: DefaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
		timeout:     DefaultTimeout,
		now:         time.Now,
		logger:      logger.Named("query"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the fresh cached value for key or runs fn to get one.
func Fetch[T any](ctx context.Context, c *Client, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Do(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("query %q: cached value is %T", key, v)
	}
	return t, nil
}

// Do is the untyped form of Fetch. Callers of one key share a fetch that runs
// detached from their contexts; each caller stops waiting when its own ctx
// is done.
func (c *Client) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if v, ok := c.fresh(key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		v, err := c.run(runCtx, key, fn)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = entry{value: v, fetchedAt: c.now()}
		c.mu.Unlock()
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// Peek returns the last successful value for key, fresh or stale.
func (c *Client) Peek(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.value, ok
}

func (c *Client) fresh(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) >= c.staleTime {
		return nil, false
	}
	return e.value, true
}

// Invalidate drops key so the next read refetches.
func (c *Client) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Client) run(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	backoff := retry.WithCappedDuration(defaultMaxBackoff, retry.NewExponential(c.baseBackoff))
	backoff = retry.WithMaxRetries(c.maxAttempts-1, backoff)

	attempt := 0
	var out any
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		v, err := fn(ctx)
		if err == nil {
			out = v
			return nil
		}
		if !apperr.Retryable(err) {
			return err
		}
		c.logger.Warn("query attempt failed",
			zap.String("key", key), zap.Int("attempt", attempt), zap.Error(err))
		return retry.RetryableError(err)
	})
	if err != nil {
		if attempt > 1 {
			return nil, fmt.Errorf("after %d attempts: %w", attempt, err)
		}
		return nil, err
	}
	return out, nil
}
