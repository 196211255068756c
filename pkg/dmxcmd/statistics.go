// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmxcmd

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Statistics tracks command counts and error rates. Counters are updated by
// the command loop and may be read from any goroutine.
type Statistics struct {
	start atomic.Int64 // unix nanoseconds

	commands       atomic.Uint64
	unknown        atomic.Uint64
	resetsAccepted atomic.Uint64
	resetsRejected atomic.Uint64
	responseBytes  atomic.Uint64
	flashErrors    atomic.Uint64
	perOpcode      [256]atomic.Uint64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	s := &Statistics{}
	s.start.Store(time.Now().UnixNano())
	return s
}

func (s *Statistics) command(op Opcode, response int) {
	s.commands.Add(1)
	s.perOpcode[op].Add(1)
	s.responseBytes.Add(uint64(response))
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Elapsed        time.Duration
	Commands       uint64
	Unknown        uint64
	ResetsAccepted uint64
	ResetsRejected uint64
	ResponseBytes  uint64
	FlashErrors    uint64
	PerOpcode      map[Opcode]uint64

	// Rates (calculated)
	CommandRate float64 // commands/sec
	ErrorRate   float64 // unknown opcodes/sec
}

// Snapshot copies the counters and calculates rates.
func (s *Statistics) Snapshot() Snapshot {
	snap := Snapshot{
		Elapsed:        time.Since(time.Unix(0, s.start.Load())),
		Commands:       s.commands.Load(),
		Unknown:        s.unknown.Load(),
		ResetsAccepted: s.resetsAccepted.Load(),
		ResetsRejected: s.resetsRejected.Load(),
		ResponseBytes:  s.responseBytes.Load(),
		FlashErrors:    s.flashErrors.Load(),
		PerOpcode:      make(map[Opcode]uint64),
	}
	for op := range s.perOpcode {
		if n := s.perOpcode[op].Load(); n > 0 {
			snap.PerOpcode[Opcode(op)] = n
		}
	}
	if secs := snap.Elapsed.Seconds(); secs > 0 {
		snap.CommandRate = float64(snap.Commands) / secs
		snap.ErrorRate = float64(snap.Unknown) / secs
	}
	return snap
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()
	total := snap.Commands + snap.Unknown

	var unknownPercent float64
	if total > 0 {
		unknownPercent = float64(snap.Unknown) * 100.0 / float64(total)
	}

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", snap.Elapsed.Seconds())
	result += fmt.Sprintf("Commands:        %8d\n", snap.Commands)
	if snap.Unknown > 0 {
		result += fmt.Sprintf("Unknown Opcodes: %8d (%.1f%%)\n", snap.Unknown, unknownPercent)
	}
	for _, spec := range Specs() {
		if n := snap.PerOpcode[spec.Opcode]; n > 0 {
			result += fmt.Sprintf("  %-28s %6d\n", spec.Name, n)
		}
	}
	if snap.ResetsAccepted > 0 || snap.ResetsRejected > 0 {
		result += fmt.Sprintf("Resets:          %8d ok, %d rejected\n", snap.ResetsAccepted, snap.ResetsRejected)
	}
	if snap.FlashErrors > 0 {
		result += fmt.Sprintf("Flash Errors:    %8d\n", snap.FlashErrors)
	}
	result += fmt.Sprintf("Response Bytes:  %8d\n", snap.ResponseBytes)
	result += fmt.Sprintf("Command Rate:    %8.1f cmds/sec\n", snap.CommandRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", snap.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.start.Store(time.Now().UnixNano())
	s.commands.Store(0)
	s.unknown.Store(0)
	s.resetsAccepted.Store(0)
	s.resetsRejected.Store(0)
	s.responseBytes.Store(0)
	s.flashErrors.Store(0)
	for i := range s.perOpcode {
		s.perOpcode[i].Store(0)
	}
}
