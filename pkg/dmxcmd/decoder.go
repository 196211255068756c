// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmxcmd

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownOpcode is returned by the decoder for bytes that are not in the
// opcode table. The byte is dropped and decoding continues with the next one.
var ErrUnknownOpcode = errors.New("unknown opcode")

// Decoder implements the command decoder state machine
type Decoder struct {
	spec    *CommandSpec // nil while waiting for an opcode
	params  [2]byte
	have    int
	started time.Time
	raw     []byte
}

// NewDecoder creates a new command decoder
func NewDecoder() *Decoder {
	return &Decoder{raw: make([]byte, 0, 3)}
}

// Reset drops any partially received command
func (d *Decoder) Reset() {
	d.spec = nil
	d.have = 0
	d.raw = d.raw[:0]
}

// Pending reports whether the decoder is waiting for parameter bytes.
func (d *Decoder) Pending() bool {
	return d.spec != nil
}

// RawBytes returns the bytes of the command decoded last (or in progress).
func (d *Decoder) RawBytes() []byte {
	return d.raw
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed command, or nil if more parameter bytes are needed.
// Unknown opcodes return ErrUnknownOpcode and leave the decoder idle.
func (d *Decoder) DecodeByte(b byte) (*Command, error) {
	if d.spec == nil {
		spec, ok := Lookup(b)
		if !ok {
			d.raw = append(d.raw[:0], b)
			return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownOpcode, b)
		}
		d.spec = spec
		d.have = 0
		d.started = time.Now()
		d.raw = append(d.raw[:0], b)
	} else {
		d.params[d.have] = b
		d.have++
		d.raw = append(d.raw, b)
	}

	if d.have < d.spec.Params {
		return nil, nil
	}

	cmd := &Command{Opcode: d.spec.Opcode, Timestamp: d.started}
	copy(cmd.Params[:], d.params[:d.have])
	d.spec = nil
	d.have = 0
	return cmd, nil
}

// Decode runs every byte of data through the decoder and returns the
// completed commands. Unknown opcodes are skipped and counted.
func (d *Decoder) Decode(data []byte) (cmds []Command, unknown int) {
	for _, b := range data {
		cmd, err := d.DecodeByte(b)
		if err != nil {
			unknown++
			continue
		}
		if cmd != nil {
			cmds = append(cmds, *cmd)
		}
	}
	return cmds, unknown
}
