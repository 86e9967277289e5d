package location

import (
	"time"

	"github.com/bwise1/ride_pinpoint/internal/lookup"
	"github.com/bwise1/ride_pinpoint/internal/model"
	"go.uber.org/zap"
)

type noticeScope int

const (
	scopePickup noticeScope = iota
	scopeDestination
	scopeEstimate
)

func (s noticeScope) String() string {
	switch s {
	case scopePickup:
		return "pickup"
	case scopeDestination:
		return "destination"
	default:
		return "estimate"
	}
}

func scopeOf(f model.LocationField) noticeScope {
	if f == model.FieldPickup {
		return scopePickup
	}
	return scopeDestination
}

type notice struct {
	id      uint64
	message string
	timer   *time.Timer
}

// report shows err next to scope until NoticeTTL passes or another notice
// replaces it. Cancellations are only logged.
func (c *Controller) report(scope noticeScope, err error) {
	if lookup.IsCancelled(err) {
		c.logger.Debug("lookup superseded", zap.Stringer("scope", scope))
		return
	}
	msg := Message(err)
	if msg == "" {
		return
	}
	c.logger.Warn("lookup failed", zap.Stringer("scope", scope), zap.Error(err))

	c.clearNotice(scope)
	c.noticeSeq++
	n := &notice{id: c.noticeSeq, message: msg}
	if c.settings.NoticeTTL > 0 {
		id := n.id
		n.timer = time.AfterFunc(c.settings.NoticeTTL, func() {
			c.post(func() {
				if cur, ok := c.notices[scope]; ok && cur.id == id {
					delete(c.notices, scope)
					c.dirty = true
				}
			})
		})
	}
	c.notices[scope] = n
	c.dirty = true
}

func (c *Controller) clearNotice(scope noticeScope) {
	n, ok := c.notices[scope]
	if !ok {
		return
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	delete(c.notices, scope)
	c.dirty = true
}

func (c *Controller) noticeText(scope noticeScope) string {
	if n, ok := c.notices[scope]; ok {
		return n.message
	}
	return ""
}
