// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReferenceTiming(t *testing.T) {
	require.Equal(t, Timing{Break: 20, MarkAfterBreak: 220, Bit: 249, StopBits: 239}, ReferenceTiming)
	require.NoError(t, ReferenceTiming.Validate())
	require.Equal(t, uint64(249*9+239), ReferenceTiming.SlotTicks())
	require.Equal(t, uint64(20+220+513*(249*9+239)), ReferenceTiming.FrameTicks(512))

	// Last channel 1 still sends the start code: two slots.
	require.Equal(t, uint64(5200), ReferenceTiming.FrameTicks(1))
}

func TestTimingFor(t *testing.T) {
	tests := []struct {
		name    string
		tick    time.Duration
		want    Timing
		wantErr bool
	}{
		{"1us", time.Microsecond, Timing{Break: 100, MarkAfterBreak: 16, Bit: 4, StopBits: 8}, false},
		{"500ns", 500 * time.Nanosecond, Timing{Break: 200, MarkAfterBreak: 32, Bit: 8, StopBits: 16}, false},
		{"250ns", 250 * time.Nanosecond, Timing{Break: 400, MarkAfterBreak: 64, Bit: 16, StopBits: 32}, false},
		{"3us cannot express a bit", 3 * time.Microsecond, Timing{}, true},
		{"1ns overflows", time.Nanosecond, Timing{}, true},
		{"zero", 0, Timing{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TimingFor(tt.tick)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTiming)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.NoError(t, got.Check(tt.tick))
		})
	}
}

func TestTiming_Check(t *testing.T) {
	base := Timing{Break: 100, MarkAfterBreak: 16, Bit: 4, StopBits: 8}

	tests := []struct {
		name   string
		modify func(t *Timing)
	}{
		{"short break", func(t *Timing) { t.Break = 91 }},
		{"short mark after break", func(t *Timing) { t.MarkAfterBreak = 11 }},
		{"slow bit", func(t *Timing) { t.Bit = 5 }},
		{"short stop bits", func(t *Timing) { t.StopBits = 7 }},
		{"zero phase", func(t *Timing) { t.MarkAfterBreak = 0 }},
		{"ambiguous phases", func(t *Timing) { t.StopBits = 16 }},
	}

	require.NoError(t, base.Check(time.Microsecond))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timing := base
			tt.modify(&timing)
			require.ErrorIs(t, timing.Check(time.Microsecond), ErrInvalidTiming)
		})
	}
}
