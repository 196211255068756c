// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingLine struct {
	levels []Level
}

func (r *recordingLine) Set(l Level) {
	r.levels = append(r.levels, l)
}

func TestCapture_ForwardsToWrapped(t *testing.T) {
	clock := NewClock()
	line := &recordingLine{}
	var cells []Cell
	c := NewCapture(clock, line, func(cell Cell) { cells = append(cells, cell) })

	c.Reload(42)
	c.Set(Low)
	c.Reload(7)
	c.Set(High)

	require.Equal(t, []Level{Low, High}, line.levels)
	require.Equal(t, []Cell{{Low, 42}, {High, 7}}, cells)

	clock.Step()
	require.Equal(t, uint64(7), clock.Now())
}

func frameCells(timing Timing, slots ...byte) []Cell {
	cells := []Cell{{Low, timing.Break}, {High, timing.MarkAfterBreak}}
	for _, s := range slots {
		cells = append(cells, slotCells(timing, s, BlackoutOff)...)
	}
	return cells
}

func TestFrameDecoder_DecodesOnNextBreak(t *testing.T) {
	timing := ReferenceTiming
	d := NewFrameDecoder(timing)

	cells := frameCells(timing, 0x00, 0x12, 0x34)
	for _, c := range cells {
		f, err := d.Decode(c)
		require.NoError(t, err)
		require.Nil(t, f)
	}

	f, err := d.Decode(Cell{Low, timing.Break})
	require.NoError(t, err)
	require.NotNil(t, f)
	require.Equal(t, 3, f.Len)
	require.Equal(t, []byte{0x12, 0x34}, f.Channels())
	require.Equal(t, uint16(2), f.LastChannel())
	require.Equal(t, uint64(1), d.Frames())
}

func TestFrameDecoder_IgnoresNoiseBeforeBreak(t *testing.T) {
	timing := ReferenceTiming
	d := NewFrameDecoder(timing)

	for _, c := range []Cell{{High, 5}, {Low, timing.Bit}, {High, timing.StopBits}} {
		f, err := d.Decode(c)
		require.NoError(t, err)
		require.Nil(t, f)
	}
}

func TestFrameDecoder_TruncatedFrame(t *testing.T) {
	timing := ReferenceTiming
	d := NewFrameDecoder(timing)

	cells := frameCells(timing, 0x00, 0xFF)
	// Cut the last slot after its fourth data bit and go idle.
	cells = cells[:len(cells)-6]
	for _, c := range cells {
		_, err := d.Decode(c)
		require.NoError(t, err)
	}

	_, err := d.Decode(Cell{High, timing.MarkAfterBreak})
	require.ErrorIs(t, err, ErrTruncatedFrame)
	require.Equal(t, uint64(1), d.Truncated())

	// Idle cells after the abandon are ignored until the next break.
	f, err := d.Decode(Cell{High, timing.MarkAfterBreak})
	require.NoError(t, err)
	require.Nil(t, f)
}

func TestFrameDecoder_BadMarkAfterBreak(t *testing.T) {
	timing := ReferenceTiming
	d := NewFrameDecoder(timing)

	_, err := d.Decode(Cell{Low, timing.Break})
	require.NoError(t, err)
	_, err = d.Decode(Cell{Low, timing.Bit})
	require.ErrorIs(t, err, ErrFraming)
}

func TestFrameDecoder_BreakMidFrame(t *testing.T) {
	timing := ReferenceTiming
	d := NewFrameDecoder(timing)

	cells := frameCells(timing, 0x00, 0xFF)
	for _, c := range cells[:len(cells)-3] {
		_, err := d.Decode(c)
		require.NoError(t, err)
	}
	f, err := d.Decode(Cell{Low, timing.Break})
	require.ErrorIs(t, err, ErrTruncatedFrame)
	require.Nil(t, f)

	// The break still starts a new frame.
	for _, c := range frameCells(timing, 0x00, 0x01)[1:] {
		_, err := d.Decode(c)
		require.NoError(t, err)
	}
	f, err = d.Decode(Cell{Low, timing.Break})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, f.Channels())
}
