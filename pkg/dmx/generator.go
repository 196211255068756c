// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

// Level is the logic level of the output line.
type Level bool

// Line levels
const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// Timer is the periodic tick source. Reload programs the length of the
// interval that starts at the current overflow.
type Timer interface {
	Reload(ticks uint16)
}

// Line is the digital output carrying the waveform.
type Line interface {
	Set(level Level)
}

// State is the phase of the frame cycle the generator will emit next.
type State uint8

// Transmit states
const (
	StateIdle State = iota
	StateBreak
	StateMarkAfterBreak
	StateStartBit
	StateDataBits
	StateStopBits
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateBreak:
		return "BREAK"
	case StateMarkAfterBreak:
		return "MARK_AFTER_BREAK"
	case StateStartBit:
		return "START_BIT"
	case StateDataBits:
		return "DATA_BITS"
	case StateStopBits:
		return "STOP_BITS"
	default:
		return "UNKNOWN"
	}
}

// Cursor is the generator's position inside a frame.
type Cursor struct {
	Remaining uint16 // slots still to send after the current one
	Bit       uint8  // next data bit, LSB first
}

// Generator is the DMX transmit state machine. Tick must be called on every
// timer overflow; it never blocks and never allocates.
//
// State and cursor are only ever written by Tick.
type Generator struct {
	universe *Universe
	timer    Timer
	line     Line
	timing   Timing

	state     State
	cursor    Cursor
	frameLast uint16
	current   byte

	// Decided on the previous tick, applied at the top of the next one.
	nextTicks uint16
	nextLevel Level
}

// NewGenerator creates a generator that starts a fresh frame on its first
// tick. The line idles high until then.
func NewGenerator(u *Universe, timer Timer, line Line, timing Timing) *Generator {
	g := &Generator{
		universe:  u,
		timer:     timer,
		line:      line,
		timing:    timing,
		state:     StateBreak,
		nextTicks: timing.MarkAfterBreak,
		nextLevel: High,
	}
	g.reloadCursor()
	return g
}

// Tick advances the waveform by one timer overflow.
func (g *Generator) Tick() {
	// Reload first: any work before it shows up as jitter on the line.
	g.timer.Reload(g.nextTicks)
	g.line.Set(g.nextLevel)

	if !g.universe.TransmitEnabled() {
		g.state = StateIdle
		g.nextLevel = High
		g.nextTicks = g.timing.MarkAfterBreak
		return
	}

	switch g.state {
	case StateIdle:
		g.startBit()

	case StateBreak:
		g.nextLevel = Low
		g.nextTicks = g.timing.Break
		g.state = StateMarkAfterBreak

	case StateMarkAfterBreak:
		g.nextLevel = High
		g.nextTicks = g.timing.MarkAfterBreak
		g.state = StateStartBit

	case StateStartBit:
		g.startBit()

	case StateDataBits:
		g.nextLevel = g.current&g.universe.BlackoutMask() != 0
		g.nextTicks = g.timing.Bit
		g.current >>= 1
		g.cursor.Bit++
		if g.cursor.Bit == 8 {
			g.state = StateStopBits
		}

	case StateStopBits:
		g.nextLevel = High
		g.nextTicks = g.timing.StopBits
		if g.cursor.Remaining == 0 {
			g.reloadCursor()
			g.state = StateBreak
		} else {
			g.cursor.Remaining--
			g.state = StateStartBit
		}
	}
}

func (g *Generator) startBit() {
	g.nextLevel = Low
	g.nextTicks = g.timing.Bit
	g.current = g.universe.Slot(int(g.frameLast - g.cursor.Remaining))
	g.cursor.Bit = 0
	g.state = StateDataBits
}

// reloadCursor is the only place LastChannel is sampled.
func (g *Generator) reloadCursor() {
	g.frameLast = g.universe.LastChannel()
	g.cursor = Cursor{Remaining: g.frameLast}
}

// State returns the phase that the next tick will decide.
func (g *Generator) State() State {
	return g.state
}

// Cursor returns the current frame position.
func (g *Generator) Cursor() Cursor {
	return g.cursor
}

// FrameLast returns the last slot index of the frame in flight.
func (g *Generator) FrameLast() uint16 {
	return g.frameLast
}

// Timing returns the phase lengths in use.
func (g *Generator) Timing() Timing {
	return g.timing
}
