// Package clock defines a PTS-domain tick counter: a monotonic
// sequence of tick timestamps at a fixed period. The Orchestrator does
// not use it; its tick PTS comes from the Input Queue.
package clock

import (
	"time"

	"github.com/bialy-nvr/compositor/pkg/media"
)

// Clock produces the sequence of tick PTS values at a fixed period,
// starting from an epoch latched by Start. It does not itself sleep
// to real time; pacing calls to Next is up to the caller.
type Clock struct {
	period  time.Duration
	current media.PTS
	started bool
}

// New returns a Clock advancing by period on every call to Next.
func New(period time.Duration) *Clock {
	return &Clock{period: period}
}

// Start latches PTS 0 as the first tick's timestamp. Calling Start
// again is a no-op; it corresponds to the control surface's one-shot
// "start" request that latches start-of-epoch for all sources.
func (c *Clock) Start() {
	if c.started {
		return
	}
	c.started = true
	c.current = 0
}

// Next returns the next tick's PTS and advances the clock.
func (c *Clock) Next() media.PTS {
	if !c.started {
		c.Start()
	}
	pts := c.current
	c.current = c.current.Add(c.period)
	return pts
}

// Period returns the configured tick period.
func (c *Clock) Period() time.Duration {
	return c.period
}

// Now returns the PTS that will be returned by the next call to Next,
// without advancing the clock.
func (c *Clock) Now() media.PTS {
	return c.current
}
