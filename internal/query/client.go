// Package query implements the cached query/mutation layer: keyed reads with
// enablement gates and flat retry budgets, and writes that invalidate the
// reads they affect.
package query

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "wayfinder/internal/errors"
	"wayfinder/internal/notify"
)

const (
	// DefaultStaleTime is how long a successful result is served from cache.
	DefaultStaleTime = time.Minute
	// DefaultGCTime is how long an unobserved entry survives after last use.
	DefaultGCTime = 5 * time.Minute
)

// Metrics receives query layer events.
type Metrics interface {
	CacheHit(namespace string)
	CacheMiss(namespace string)
	FetchAttempt(namespace string)
	FetchCompleted(namespace, outcome string, duration time.Duration)
	MutationCompleted(name, outcome string)
	Invalidated(namespace string, entries int)
}

type nopMetrics struct{}

func (nopMetrics) CacheHit(string)                             {}
func (nopMetrics) CacheMiss(string)                            {}
func (nopMetrics) FetchAttempt(string)                         {}
func (nopMetrics) FetchCompleted(string, string, time.Duration) {}
func (nopMetrics) MutationCompleted(string, string)            {}
func (nopMetrics) Invalidated(string, int)                     {}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithNotifier sets where mutation notifications go.
func WithNotifier(s notify.Sink) Option {
	return func(c *Client) {
		if s != nil {
			c.notifier = s
		}
	}
}

// WithStaleTime sets the default stale time.
func WithStaleTime(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.staleTime = d
		}
	}
}

// WithGCTime sets the default gc time.
func WithGCTime(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.gcTime = d
		}
	}
}

// WithRetryDelay sets the constant pause between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client owns the shared cache and runs queries and mutations against it.
type Client struct {
	cache      *Cache
	logger     *zap.Logger
	metrics    Metrics
	notifier   notify.Sink
	now        func() time.Time
	staleTime  time.Duration
	gcTime     time.Duration
	retryDelay time.Duration

	mu           sync.Mutex
	flights      map[string]*flight
	listeners    map[string]map[uint64]func()
	nextListener uint64

	gcOnce sync.Once
	stopGC chan struct{}
	gcDone chan struct{}
}

// NewClient creates a client with an empty cache.
func NewClient(opts ...Option) *Client {
	c := &Client{
		logger:    zap.NewNop(),
		metrics:   nopMetrics{},
		notifier:  notify.Discard,
		now:       time.Now,
		staleTime: DefaultStaleTime,
		gcTime:    DefaultGCTime,
		flights:   make(map[string]*flight),
		listeners: make(map[string]map[uint64]func()),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("query")
	c.cache = NewCache(c.gcTime, c.now, c.logger)
	return c
}

// Cache exposes the underlying cache.
func (c *Client) Cache() *Cache {
	return c.cache
}

// StartGC evicts expired entries every interval until Close is called.
func (c *Client) StartGC(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	c.gcOnce.Do(func() {
		c.stopGC = make(chan struct{})
		c.gcDone = make(chan struct{})
		go func() {
			defer close(c.gcDone)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					c.cache.GC()
				case <-c.stopGC:
					return
				}
			}
		}()
	})
}

// Close stops the GC loop.
func (c *Client) Close() {
	if c.stopGC == nil {
		return
	}
	select {
	case <-c.stopGC:
	default:
		close(c.stopGC)
	}
	<-c.gcDone
}

// Invalidate marks every entry under the given key prefixes as stale and
// refetches the ones that are currently observed. It returns the number of
// entries touched.
func (c *Client) Invalidate(prefixes ...Key) int {
	if len(prefixes) == 0 {
		return 0
	}
	keys := c.cache.Invalidate(prefixes...)

	perNamespace := make(map[string]int)
	var callbacks []func()
	c.mu.Lock()
	for _, k := range keys {
		perNamespace[k.Namespace()]++
		for _, fn := range c.listeners[k.Hash()] {
			callbacks = append(callbacks, fn)
		}
	}
	c.mu.Unlock()

	for ns, n := range perNamespace {
		c.metrics.Invalidated(ns, n)
	}

	c.logger.Debug("Invalidated queries",
		zap.Int("entries", len(keys)),
		zap.Int("observers", len(callbacks)),
	)

	for _, fn := range callbacks {
		fn()
	}
	return len(keys)
}

func (c *Client) subscribe(hash string, fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextListener++
	id := c.nextListener
	if c.listeners[hash] == nil {
		c.listeners[hash] = make(map[uint64]func())
	}
	c.listeners[hash][id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners[hash], id)
		if len(c.listeners[hash]) == 0 {
			delete(c.listeners, hash)
		}
	}
}

func (c *Client) notify(ctx context.Context, level notify.Level, source, message string) {
	if message == "" {
		return
	}
	c.notifier.Notify(ctx, notify.Notification{Level: level, Message: message, Source: source})
}

// flight is one in-flight fetch shared by every caller asking for the same key.
type flight struct {
	done     chan struct{}
	cancel   context.CancelFunc
	waiters  int
	val      any
	err      error
	attempts int
}

type fetchFunc func(ctx context.Context) (any, error)

// load joins or starts the fetch for key and waits for it. When the last
// waiter gives up, the fetch is cancelled and its result never reaches the
// cache.
func (c *Client) load(ctx context.Context, key Key, gcTime time.Duration, retry int, fn fetchFunc) (any, int, error) {
	hash := key.Hash()

	c.mu.Lock()
	f, ok := c.flights[hash]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{done: make(chan struct{}), cancel: cancel}
		c.flights[hash] = f
		startSeq := c.cache.begin(key, gcTime)
		go c.run(fctx, f, key, startSeq, retry, fn)
	}
	f.waiters++
	c.mu.Unlock()

	select {
	case <-f.done:
		return f.val, f.attempts, f.err
	case <-ctx.Done():
		c.leave(hash, f)
		return nil, 0, ctx.Err()
	}
}

func (c *Client) leave(hash string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	if c.flights[hash] == f {
		delete(c.flights, hash)
	}
	f.cancel()
}

func (c *Client) run(ctx context.Context, f *flight, key Key, startSeq uint64, retry int, fn fetchFunc) {
	defer f.cancel()

	start := c.now()
	val, attempts, err := c.attempt(ctx, key.Namespace(), retry, fn)

	hash := key.Hash()
	c.mu.Lock()
	owned := c.flights[hash] == f
	if owned {
		delete(c.flights, hash)
	}
	_, replaced := c.flights[hash]
	switch {
	case owned && ctx.Err() == nil:
		c.cache.commit(key, startSeq, val, err)
	case replaced:
		// A newer fetch owns the entry now.
		c.logger.Debug("Discarded superseded fetch", zap.String("key", hash))
	default:
		c.cache.abort(key)
		c.logger.Debug("Discarded abandoned fetch", zap.String("key", hash))
	}
	c.mu.Unlock()

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	if !owned {
		outcome = "discarded"
	}
	c.metrics.FetchCompleted(key.Namespace(), outcome, c.now().Sub(start))

	f.val, f.err, f.attempts = val, err, attempts
	close(f.done)
}

// attempt calls fn up to retry+1 times with a constant pause between tries.
func (c *Client) attempt(ctx context.Context, namespace string, retry int, fn fetchFunc) (any, int, error) {
	if retry < 0 {
		retry = 0
	}

	var lastErr error
	for i := 0; i <= retry; i++ {
		if i > 0 && c.retryDelay > 0 {
			timer := time.NewTimer(c.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, i, ctx.Err()
			case <-timer.C:
			}
		}

		c.metrics.FetchAttempt(namespace)
		val, err := fn(ctx)
		if err == nil {
			return val, i + 1, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(err) {
			return nil, i + 1, err
		}
		if i < retry {
			c.logger.Debug("Retrying query",
				zap.String("namespace", namespace),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
		}
	}
	return nil, retry + 1, lastErr
}

func shouldRetry(err error) bool {
	if qe, ok := apperrors.As(err); ok {
		return qe.Retryable()
	}
	return true
}
