// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import (
	"fmt"
	"sync/atomic"
)

// Universe size
const (
	SlotCount          = 513 // start code + 512 channels
	MaxChannel         = 512
	DefaultLastChannel = 512
)

// Blackout masks applied to every transmitted data bit
const (
	BlackoutOn  byte = 0x00
	BlackoutOff byte = 0x01
)

// Universe is the channel buffer and control flags shared between the
// command side and the Generator.
//
// Every value is stored in its own word-sized atomic so the generator never
// observes a partially written value. The generator samples LastChannel only
// at frame boundaries.
type Universe struct {
	slots        [SlotCount]atomic.Uint32
	blackoutMask atomic.Uint32
	lastChannel  atomic.Uint32
	txEnabled    atomic.Bool
}

// NewUniverse returns a universe with all slots zero, blackout off, the full
// universe selected and transmission enabled.
func NewUniverse() *Universe {
	u := &Universe{}
	u.Reset()
	u.txEnabled.Store(true)
	return u
}

// Reset restores every slot and flag to its default. Transmission is left
// disabled until explicitly turned on.
func (u *Universe) Reset() {
	u.txEnabled.Store(false)
	for i := range u.slots {
		u.slots[i].Store(0)
	}
	u.blackoutMask.Store(uint32(BlackoutOff))
	u.lastChannel.Store(DefaultLastChannel)
}

// Slot returns the value at buffer index i (0 = start code).
func (u *Universe) Slot(i int) byte {
	return byte(u.slots[i].Load())
}

// SetSlot stores v at buffer index i (0 = start code).
func (u *Universe) SetSlot(i int, v byte) {
	u.slots[i].Store(uint32(v))
}

// StartCode returns slot 0.
func (u *Universe) StartCode() byte {
	return u.Slot(0)
}

// SetStartCode stores slot 0.
func (u *Universe) SetStartCode(v byte) {
	u.SetSlot(0, v)
}

// Channel returns the value of channel ch (1..512).
func (u *Universe) Channel(ch int) (byte, error) {
	if ch < 1 || ch > MaxChannel {
		return 0, fmt.Errorf("channel %d out of range 1..%d", ch, MaxChannel)
	}
	return u.Slot(ch), nil
}

// SetChannel stores v in channel ch (1..512).
func (u *Universe) SetChannel(ch int, v byte) error {
	if ch < 1 || ch > MaxChannel {
		return fmt.Errorf("channel %d out of range 1..%d", ch, MaxChannel)
	}
	u.SetSlot(ch, v)
	return nil
}

// Snapshot copies all slots.
func (u *Universe) Snapshot() [SlotCount]byte {
	var out [SlotCount]byte
	for i := range u.slots {
		out[i] = byte(u.slots[i].Load())
	}
	return out
}

// BlackoutMask returns the mask ANDed with every data bit.
func (u *Universe) BlackoutMask() byte {
	return byte(u.blackoutMask.Load())
}

// SetBlackout forces every transmitted data bit low when on. Stored channel
// values are not touched.
func (u *Universe) SetBlackout(on bool) {
	if on {
		u.blackoutMask.Store(uint32(BlackoutOn))
		return
	}
	u.blackoutMask.Store(uint32(BlackoutOff))
}

// Blackout reports whether blackout is active.
func (u *Universe) Blackout() bool {
	return u.BlackoutMask() == BlackoutOn
}

// LastChannel returns the index of the last transmitted slot.
func (u *Universe) LastChannel() uint16 {
	return uint16(u.lastChannel.Load())
}

// SetLastChannel selects the last transmitted slot (1..512). The change is
// picked up at the next frame boundary.
func (u *Universe) SetLastChannel(n uint16) error {
	if n < 1 || n > MaxChannel {
		return fmt.Errorf("last channel %d out of range 1..%d", n, MaxChannel)
	}
	u.lastChannel.Store(uint32(n))
	return nil
}

// TransmitEnabled reports whether frame generation is on.
func (u *Universe) TransmitEnabled() bool {
	return u.txEnabled.Load()
}

// SetTransmit turns frame generation on or off.
func (u *Universe) SetTransmit(on bool) {
	u.txEnabled.Store(on)
}
