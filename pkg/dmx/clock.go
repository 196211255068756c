// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import (
	"context"
	"sync/atomic"
	"time"
)

// Clock is a virtual overflow timer. Each Step lets the programmed interval
// elapse and then invokes the overflow handler, which is expected to Reload
// the next interval.
//
// A Clock is not safe for concurrent use; it belongs to the goroutine that
// drives it.
type Clock struct {
	reload     uint16
	now        uint64
	overflows  uint64
	onOverflow func()
}

// NewClock returns a clock whose first interval is one tick long.
func NewClock() *Clock {
	return &Clock{reload: 1}
}

// OnOverflow sets the overflow handler, usually Generator.Tick.
func (c *Clock) OnOverflow(fn func()) {
	c.onOverflow = fn
}

// Reload implements Timer.
func (c *Clock) Reload(ticks uint16) {
	c.reload = ticks
}

// Now returns the number of ticks elapsed.
func (c *Clock) Now() uint64 {
	return c.now
}

// Overflows returns the number of handler invocations so far.
func (c *Clock) Overflows() uint64 {
	return c.overflows
}

// Step runs one overflow.
func (c *Clock) Step() {
	ticks := c.reload
	if ticks == 0 {
		ticks = 1
	}
	c.now += uint64(ticks)
	c.overflows++
	if c.onOverflow != nil {
		c.onOverflow()
	}
}

// Run steps until at least ticks more ticks have elapsed.
func (c *Clock) Run(ticks uint64) {
	c.RunUntil(c.now + ticks)
}

// RunUntil steps until Now reaches target. The last overflow may carry the
// clock past target by less than one interval.
func (c *Clock) RunUntil(target uint64) {
	for c.now < target {
		c.Step()
	}
}

// Pacer drives a Clock against wall time so that one tick lasts roughly one
// tick period on average.
type Pacer struct {
	clock    *Clock
	tick     time.Duration
	interval time.Duration

	// Absolute clock position owed to wall time. Overshoot of one batch is
	// absorbed by the next.
	target uint64

	elapsed atomic.Uint64
	lagged  atomic.Uint64
}

// NewPacer creates a pacer that catches the clock up every interval.
func NewPacer(clock *Clock, tick, interval time.Duration) *Pacer {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &Pacer{
		clock:    clock,
		tick:     tick,
		interval: interval,
		target:   clock.Now(),
	}
}

// Run paces the clock until ctx is done.
func (p *Pacer) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	last := time.Now()
	var carry time.Duration

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			carry += now.Sub(last)
			last = now

			ticks := uint64(carry / p.tick)
			carry -= time.Duration(ticks) * p.tick

			start := time.Now()
			p.advance(ticks)

			// The tick source fell behind: the waveform is late.
			if time.Since(start) > p.interval {
				p.lagged.Add(1)
			}
		}
	}
}

// advance owes the clock ticks more and runs it up to the owed position.
func (p *Pacer) advance(ticks uint64) {
	p.target += ticks
	p.clock.RunUntil(p.target)
	p.elapsed.Add(ticks)
}

// Elapsed returns the ticks run so far.
func (p *Pacer) Elapsed() uint64 {
	return p.elapsed.Load()
}

// Lagged returns how many batches overran their interval.
func (p *Pacer) Lagged() uint64 {
	return p.lagged.Load()
}
