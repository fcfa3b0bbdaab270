// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/semaphore"
)

// backoffBase is the base duration for exponential backoff between retries.
// Package-level var so tests can override it.
var backoffBase = 1 * time.Second

// Client is the entry point every component uses to reach the model. It
// answers repeated prompts from a ResponseCache and lets at most a fixed
// number of backend calls run at once; callers beyond that block until a
// slot frees or their context ends.
type Client struct {
	gen        Generator
	cache      *ResponseCache
	gate       *semaphore.Weighted
	maxRetries int
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCache replaces the default response cache.
func WithCache(c *ResponseCache) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithConcurrency sets the number of backend calls allowed in flight.
func WithConcurrency(n int) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.gate = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithRetries sets how many times a failed call is retried.
func WithRetries(n int) Option {
	return func(cl *Client) {
		if n >= 0 {
			cl.maxRetries = n
		}
	}
}

// WithTimeout bounds each backend call.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewClient wraps gen with caching and a concurrency gate.
func NewClient(gen Generator, opts ...Option) *Client {
	c := &Client{
		gen:        gen,
		cache:      NewResponseCache(DefaultCacheSize),
		gate:       semaphore.NewWeighted(DefaultConcurrency),
		maxRetries: 1,
		timeout:    120 * time.Second,
		logger:     slog.Default().With("component", "llm"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete returns the model's raw response to prompt. A cached response is
// returned without contacting the backend. Only successful, non-empty
// responses are cached.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	key := PromptKey(prompt)
	if resp, ok := c.cache.Get(key); ok {
		c.logger.Debug("cache hit", "key", key)
		return resp, nil
	}

	if err := c.gate.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.gate.Release(1)

	resp, err := c.callWithRetry(ctx, prompt)
	if err != nil {
		return "", err
	}
	if resp != "" {
		c.cache.Put(key, resp)
	}
	return resp, nil
}

// callWithRetry calls the backend with exponential backoff. Unavailability is
// not retried.
func (c *Client) callWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if c.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}
		start := time.Now()
		resp, err := c.gen.Generate(callCtx, prompt)
		cancel()
		if err == nil {
			c.logger.Debug("completion", "elapsed", time.Since(start), "chars", len(resp))
			return resp, nil
		}
		lastErr = err
		if errors.Is(err, ErrUnavailable) || ctx.Err() != nil {
			break
		}
		c.logger.Warn("completion failed", "attempt", attempt+1, "err", err)
	}
	return "", fmt.Errorf("llm call failed: %w", lastErr)
}

// Available reports whether the backend is reachable. Backends that cannot
// check are assumed available.
func (c *Client) Available(ctx context.Context) bool {
	if ch, ok := c.gen.(Checker); ok {
		return ch.Available(ctx)
	}
	return true
}

// CacheLen returns the number of cached responses.
func (c *Client) CacheLen() int {
	return c.cache.Len()
}
