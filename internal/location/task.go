package location

import (
	"context"
	"time"
)

// taskSlot is the single async-operation lane of one field (or of the route
// estimate). Only the loop goroutine touches it.
type taskSlot struct {
	gen      uint64
	timer    *time.Timer
	cancel   context.CancelFunc
	inFlight bool
}

// supersede stops the pending timer, cancels the in-flight lookup and moves
// the slot to a fresh generation, so any late result is discarded.
func (s *taskSlot) supersede() uint64 {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.inFlight = false
	s.gen++
	return s.gen
}

func (s *taskSlot) current(gen uint64) bool {
	return s.gen == gen
}

// pending reports whether the launch that got gen is still waiting to start
// or running.
func (s *taskSlot) pending(gen uint64) bool {
	return s.gen == gen && (s.timer != nil || s.inFlight)
}

// launch replaces whatever slot is doing with work, started after delay. work
// runs off the loop and returns the closure to apply its result; that closure
// runs on the loop only if slot still belongs to this launch. The returned
// generation identifies the launch.
func (c *Controller) launch(slot *taskSlot, delay time.Duration, work func(ctx context.Context) func()) uint64 {
	gen := slot.supersede()

	start := func() {
		if !slot.current(gen) {
			return
		}
		slot.timer = nil
		ctx, cancel := context.WithTimeout(c.ctx, c.settings.LookupTimeout)
		slot.cancel = cancel
		slot.inFlight = true
		c.dirty = true

		go func() {
			apply := work(ctx)
			delivered := c.post(func() {
				if !slot.current(gen) {
					return
				}
				cancel()
				slot.cancel = nil
				slot.inFlight = false
				c.dirty = true
				if apply != nil {
					apply()
				}
			})
			if !delivered {
				cancel()
			}
		}()
	}

	if delay <= 0 {
		start()
		return gen
	}
	slot.timer = time.AfterFunc(delay, func() {
		c.post(start)
	})
	return gen
}
