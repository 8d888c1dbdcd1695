package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Connectivity tracks whether the backend is reachable and notifies subscribers
// when it comes back.
type Connectivity struct {
	prober   Prober
	interval time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	online   bool
	restored map[chan struct{}]struct{}
}

// NewConnectivity starts in the online state; the first failed call or probe flips it.
func NewConnectivity(prober Prober, interval time.Duration, logger *zap.Logger) *Connectivity {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connectivity{
		prober:   prober,
		interval: interval,
		logger:   logger,
		online:   true,
		restored: make(map[chan struct{}]struct{}),
	}
}

// Online reports the last known reachability.
func (c *Connectivity) Online() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

// MarkOffline records that a call failed to reach the backend.
func (c *Connectivity) MarkOffline(cause error) {
	c.mu.Lock()
	was := c.online
	c.online = false
	c.mu.Unlock()
	if was {
		c.logger.Info("backend unreachable, switching to offline mode", zap.Error(cause))
	}
}

// MarkOnline records a successful contact and signals restore subscribers on a transition.
func (c *Connectivity) MarkOnline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online {
		return
	}
	c.online = true
	c.logger.Info("backend reachable again")
	for ch := range c.restored {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Probe pings the backend once and updates the state.
func (c *Connectivity) Probe(ctx context.Context) bool {
	if err := c.prober.Ping(ctx); err != nil {
		c.MarkOffline(err)
		return false
	}
	c.MarkOnline()
	return true
}

// Restored returns a channel that receives a value each time connectivity is
// restored. Call cancel to unsubscribe.
func (c *Connectivity) Restored() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.restored[ch] = struct{}{}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.restored[ch]; ok {
			delete(c.restored, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// Watch probes at the configured interval until ctx is done.
func (c *Connectivity) Watch(ctx context.Context) error {
	c.Probe(ctx)
	if c.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Probe(ctx)
		}
	}
}
