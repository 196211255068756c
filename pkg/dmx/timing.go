// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dmx implements a tick-driven DMX512 transmitter.
//
// A Generator is invoked once per timer overflow and toggles a single output
// line through the break, mark-after-break and slot (start bit, 8 data bits,
// 2 stop bits) phases of a DMX512 frame. Channel values and control flags live
// in a Universe that may be written concurrently from another goroutine.
package dmx

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Bit cells per slot at the single-bit length: 1 start bit + 8 data bits.
const bitCellsPerSlot = 9

// DMX512 line timing limits
const (
	MinBreak          = 92 * time.Microsecond
	MinMarkAfterBreak = 12 * time.Microsecond
	BitPeriod         = 4 * time.Microsecond
	MinStopBits       = 2 * BitPeriod
	bitTolerance      = 0.02
)

// Targets used when deriving a timing from a tick period
const (
	targetBreak          = 100 * time.Microsecond
	targetMarkAfterBreak = 16 * time.Microsecond
)

// ErrInvalidTiming is returned when phase lengths cannot produce a usable waveform.
var ErrInvalidTiming = errors.New("invalid DMX timing")

// Timing holds the length of each frame phase in timer ticks.
type Timing struct {
	Break          uint16
	MarkAfterBreak uint16
	Bit            uint16
	StopBits       uint16 // both stop bits combined
}

// ReferenceTiming is the phase table of the reference transmitter.
var ReferenceTiming = Timing{
	Break:          20,
	MarkAfterBreak: 220,
	Bit:            249,
	StopBits:       239,
}

// SlotTicks returns the length of one transmitted slot.
func (t Timing) SlotTicks() uint64 {
	return bitCellsPerSlot*uint64(t.Bit) + uint64(t.StopBits)
}

// FrameTicks returns the length of one complete frame whose last slot index is
// last (slots 0..last are transmitted). The start code is a slot of its own,
// so this is one SlotTicks longer than Break+MarkAfterBreak+last*SlotTicks.
func (t Timing) FrameTicks(last uint16) uint64 {
	return uint64(t.Break) + uint64(t.MarkAfterBreak) + (uint64(last)+1)*t.SlotTicks()
}

// Validate checks that every phase is non-zero and that the phases can be
// told apart by length alone.
func (t Timing) Validate() error {
	lengths := []struct {
		name  string
		ticks uint16
	}{
		{"break", t.Break},
		{"mark-after-break", t.MarkAfterBreak},
		{"bit", t.Bit},
		{"stop bits", t.StopBits},
	}
	for i, a := range lengths {
		if a.ticks == 0 {
			return fmt.Errorf("%w: %s length is zero", ErrInvalidTiming, a.name)
		}
		for _, b := range lengths[i+1:] {
			if a.ticks == b.ticks {
				return fmt.Errorf("%w: %s and %s are both %d ticks", ErrInvalidTiming, a.name, b.name, a.ticks)
			}
		}
	}
	return nil
}

// Check validates the timing against the DMX512 tolerance bands for a timer
// tick of the given period.
func (t Timing) Check(tick time.Duration) error {
	if tick <= 0 {
		return fmt.Errorf("%w: tick period must be positive", ErrInvalidTiming)
	}
	if err := t.Validate(); err != nil {
		return err
	}

	if d := time.Duration(t.Break) * tick; d < MinBreak {
		return fmt.Errorf("%w: break %v is shorter than %v", ErrInvalidTiming, d, MinBreak)
	}
	if d := time.Duration(t.MarkAfterBreak) * tick; d < MinMarkAfterBreak {
		return fmt.Errorf("%w: mark-after-break %v is shorter than %v", ErrInvalidTiming, d, MinMarkAfterBreak)
	}
	bit := time.Duration(t.Bit) * tick
	if dev := math.Abs(float64(bit-BitPeriod)) / float64(BitPeriod); dev > bitTolerance {
		return fmt.Errorf("%w: bit period %v deviates %.1f%% from %v", ErrInvalidTiming, bit, dev*100, BitPeriod)
	}
	if d := time.Duration(t.StopBits) * tick; d < MinStopBits {
		return fmt.Errorf("%w: stop bits %v are shorter than %v", ErrInvalidTiming, d, MinStopBits)
	}
	return nil
}

// TimingFor derives a conformant timing for a timer with the given tick period.
func TimingFor(tick time.Duration) (Timing, error) {
	if tick <= 0 {
		return Timing{}, fmt.Errorf("%w: tick period must be positive", ErrInvalidTiming)
	}

	ceil := func(d time.Duration) (uint16, error) {
		n := (d + tick - 1) / tick
		if n > math.MaxUint16 {
			return 0, fmt.Errorf("%w: %v needs %d ticks of %v", ErrInvalidTiming, d, n, tick)
		}
		return uint16(n), nil
	}

	var t Timing
	var err error
	if t.Break, err = ceil(targetBreak); err != nil {
		return Timing{}, err
	}
	if t.MarkAfterBreak, err = ceil(targetMarkAfterBreak); err != nil {
		return Timing{}, err
	}
	if t.StopBits, err = ceil(MinStopBits); err != nil {
		return Timing{}, err
	}
	bit := (BitPeriod + tick/2) / tick
	if bit > math.MaxUint16 {
		return Timing{}, fmt.Errorf("%w: bit period needs %d ticks of %v", ErrInvalidTiming, bit, tick)
	}
	t.Bit = uint16(bit)

	if err := t.Check(tick); err != nil {
		return Timing{}, err
	}
	return t, nil
}
