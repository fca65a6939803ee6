package agent

import (
	"context"
	"sync"
	"sync/atomic"
)

// turn is one unit of work scheduled through the controller. Its cancel flag
// is checked only at the synthesis boundary; work already running against a
// collaborator is never aborted by it.
type turn struct {
	cancelled atomic.Bool
	done      chan struct{}
}

func (t *turn) cancel()           { t.cancelled.Store(true) }
func (t *turn) isCancelled() bool { return t.cancelled.Load() }

// controller keeps at most one turn in flight per connection. Starting a turn
// flags the previous one and queues the new one behind it, so turns never
// overlap and the router is never blocked waiting.
type controller struct {
	mu      sync.Mutex
	current *turn
	wg      sync.WaitGroup
}

// start schedules run as the newest turn. run starts once the previous turn
// has returned, or not at all if ctx ends first or the turn was cancelled
// while queued.
func (c *controller) start(ctx context.Context, run func(context.Context, *turn)) {
	t := &turn{done: make(chan struct{})}

	c.mu.Lock()
	prev := c.current
	c.current = t
	if prev != nil {
		prev.cancel()
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer c.finish(t)
		if prev != nil {
			select {
			case <-prev.done:
			case <-ctx.Done():
				return
			}
		}
		if ctx.Err() != nil || t.isCancelled() {
			return
		}
		run(ctx, t)
	}()
}

func (c *controller) finish(t *turn) {
	close(t.done)
	c.mu.Lock()
	if c.current == t {
		c.current = nil
	}
	c.mu.Unlock()
}

// interrupt flags the newest turn without starting another. It reports
// whether there was a turn to flag.
func (c *controller) interrupt() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return false
	}
	c.current.cancel()
	return true
}

// active reports whether a turn is queued or running.
func (c *controller) active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// wait blocks until every scheduled turn has returned.
func (c *controller) wait() { c.wg.Wait() }
