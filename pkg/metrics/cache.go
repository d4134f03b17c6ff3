package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/reshmi-chandran/graph-api-mvp/internal/event_bus"
	"github.com/reshmi-chandran/graph-api-mvp/internal/utils"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	result     Result
	computedAt time.Time
	expiresAt  time.Time
}

// WindowCache is a short-lived per-key cache of metrics results with
// single-flight coalescing: while a computation for a key is in flight, every
// caller for that key attaches to it instead of triggering another upstream
// fetch. Expiry is checked on read; there is no background sweeper. Failures
// are never cached.
type WindowCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry

	group          singleflight.Group
	clock          utils.Clock
	computeTimeout time.Duration
	bus            *event_bus.EventBus
}

func NewWindowCache(clock utils.Clock, computeTimeout time.Duration, bus *event_bus.EventBus) *WindowCache {
	return &WindowCache{
		entries:        make(map[string]cacheEntry),
		clock:          clock,
		computeTimeout: computeTimeout,
		bus:            bus,
	}
}

// GetOrCompute returns the cached result for key, or runs compute through the
// single-flight group on a miss. The flight runs detached from any single
// caller's deadline: a waiter whose ctx expires gets ErrTimeout while the
// flight continues for the remaining waiters and the cache.
func (c *WindowCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (Result, error)) (Result, error) {
	now := c.clock.Now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && now.Before(entry.expiresAt) {
		log.Tracef("window cache hit for key %s", key)
		c.bus.Publish(event_bus.NewEvent(event_bus.CacheLookupDone, event_bus.CacheLookup{Key: key, Hit: true}))
		return entry.result.clone(), nil
	}
	if ok {
		c.evictExpired(key, entry)
	}
	c.bus.Publish(event_bus.NewEvent(event_bus.CacheLookupDone, event_bus.CacheLookup{Key: key, Hit: false}))

	ch := c.group.DoChan(key, func() (any, error) {
		// Keep context values (user identity) but detach cancellation so an
		// impatient waiter cannot kill the flight for everyone else.
		flightCtx := context.WithoutCancel(ctx)
		if c.computeTimeout > 0 {
			var cancel context.CancelFunc
			flightCtx, cancel = context.WithTimeout(flightCtx, c.computeTimeout)
			defer cancel()
		}

		result, err := compute(flightCtx)
		if err != nil {
			// Not cached: the next request for this key retries from scratch.
			return nil, err
		}

		completedAt := c.clock.Now()
		c.mu.Lock()
		c.entries[key] = cacheEntry{
			result:     result,
			computedAt: completedAt,
			expiresAt:  completedAt.Add(ttl),
		}
		c.mu.Unlock()
		return result, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		return res.Val.(Result).clone(), nil
	case <-ctx.Done():
		log.Debugf("caller abandoned pending computation for key %s: %v", key, ctx.Err())
		return Result{}, ErrTimeout
	}
}

// evictExpired removes an entry only if it is still the one observed as
// expired, so a concurrent recomputation's fresh entry is never dropped.
func (c *WindowCache) evictExpired(key string, observed cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.entries[key]; ok && current.computedAt.Equal(observed.computedAt) {
		delete(c.entries, key)
	}
}
