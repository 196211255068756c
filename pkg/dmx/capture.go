// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import (
	"errors"
	"fmt"
)

// Decoding errors
var (
	ErrTruncatedFrame = errors.New("frame truncated")
	ErrFraming        = errors.New("framing error")
)

// Cell is one generator interval: the line held at Level for Ticks ticks.
type Cell struct {
	Level Level
	Ticks uint16
}

// Capture sits between a Generator and its Timer and Line and reports every
// interval to a sink. The wrapped Timer and Line may be nil.
//
// The sink runs inside the tick, so it is only suitable for simulation and
// tests.
type Capture struct {
	timer  Timer
	line   Line
	reload uint16
	sink   func(Cell)
}

// NewCapture wraps timer and line.
func NewCapture(timer Timer, line Line, sink func(Cell)) *Capture {
	return &Capture{timer: timer, line: line, sink: sink}
}

// Reload implements Timer.
func (c *Capture) Reload(ticks uint16) {
	c.reload = ticks
	if c.timer != nil {
		c.timer.Reload(ticks)
	}
}

// Set implements Line. The generator reloads before it sets the level, so
// the cell pairs the level with the interval it is held for.
func (c *Capture) Set(level Level) {
	if c.line != nil {
		c.line.Set(level)
	}
	if c.sink != nil {
		c.sink(Cell{Level: level, Ticks: c.reload})
	}
}

// Frame is a decoded DMX frame. Slots[0] is the start code.
type Frame struct {
	Len   int
	Slots [SlotCount]byte
}

// StartCode returns slot 0.
func (f *Frame) StartCode() byte {
	return f.Slots[0]
}

// Channels returns the channel slots (1..Len-1).
func (f *Frame) Channels() []byte {
	if f.Len <= 1 {
		return nil
	}
	return f.Slots[1:f.Len]
}

// LastChannel returns the index of the last slot received.
func (f *Frame) LastChannel() uint16 {
	if f.Len == 0 {
		return 0
	}
	return uint16(f.Len - 1)
}

type decodeState int

const (
	decodeHunt decodeState = iota
	decodeMarkAfterBreak
	decodeSlotStart
	decodeData
	decodeStop
)

// FrameDecoder rebuilds frames from the cells of a Capture. Phases are told
// apart by their length, so the timing must pass Validate.
type FrameDecoder struct {
	timing Timing
	state  decodeState
	bit    int
	value  byte

	building Frame
	done     Frame

	frames    uint64
	truncated uint64
}

// NewFrameDecoder creates a decoder for the given timing.
func NewFrameDecoder(timing Timing) *FrameDecoder {
	return &FrameDecoder{timing: timing}
}

// Reset drops any partial frame and waits for the next break.
func (d *FrameDecoder) Reset() {
	d.state = decodeHunt
	d.bit = 0
	d.value = 0
	d.building.Len = 0
}

// Frames returns the number of complete frames decoded.
func (d *FrameDecoder) Frames() uint64 {
	return d.frames
}

// Truncated returns the number of frames abandoned mid-way.
func (d *FrameDecoder) Truncated() uint64 {
	return d.truncated
}

// Decode consumes one cell. A frame is complete when the break of the next
// frame arrives; the returned frame is only valid until the next completion.
func (d *FrameDecoder) Decode(c Cell) (*Frame, error) {
	if c.Level == Low && c.Ticks == d.timing.Break {
		var frame *Frame
		var err error
		switch {
		case d.state == decodeSlotStart && d.building.Len > 0:
			d.done = d.building
			d.frames++
			frame = &d.done
		case d.state != decodeHunt:
			d.truncated++
			err = fmt.Errorf("%w: break after %d slots", ErrTruncatedFrame, d.building.Len)
		}
		d.Reset()
		d.state = decodeMarkAfterBreak
		return frame, err
	}

	switch d.state {
	case decodeHunt:
		return nil, nil

	case decodeMarkAfterBreak:
		if c.Level != High || c.Ticks != d.timing.MarkAfterBreak {
			d.Reset()
			return nil, fmt.Errorf("%w: expected mark-after-break, got %v for %d ticks", ErrFraming, c.Level, c.Ticks)
		}
		d.state = decodeSlotStart
		return nil, nil

	case decodeSlotStart:
		if c.Level == Low && c.Ticks == d.timing.Bit {
			if d.building.Len >= SlotCount {
				d.Reset()
				return nil, fmt.Errorf("%w: more than %d slots", ErrFraming, SlotCount)
			}
			d.bit = 0
			d.value = 0
			d.state = decodeData
			return nil, nil
		}
		return nil, d.abandon(c, "start bit")

	case decodeData:
		if c.Ticks != d.timing.Bit {
			return nil, d.abandon(c, "data bit")
		}
		if c.Level == High {
			d.value |= 1 << d.bit
		}
		d.bit++
		if d.bit == 8 {
			d.state = decodeStop
		}
		return nil, nil

	case decodeStop:
		if c.Level != High || c.Ticks != d.timing.StopBits {
			return nil, d.abandon(c, "stop bits")
		}
		d.building.Slots[d.building.Len] = d.value
		d.building.Len++
		d.state = decodeSlotStart
		return nil, nil
	}

	return nil, nil
}

func (d *FrameDecoder) abandon(c Cell, expected string) error {
	n := d.building.Len
	d.Reset()
	d.truncated++
	return fmt.Errorf("%w: expected %s after %d slots, got %v for %d ticks", ErrTruncatedFrame, expected, n, c.Level, c.Ticks)
}
