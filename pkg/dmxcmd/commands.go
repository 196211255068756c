// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmxcmd

import (
	"bytes"
	"fmt"
	"time"
)

// CommandSpec describes one entry of the opcode table.
type CommandSpec struct {
	Opcode Opcode
	Name   string
	Params int // parameter bytes following the opcode

	// ResponseLen is the number of bytes the device answers with. Response
	// holds the fixed first byte(s); commands answering with data or with
	// one of two status bytes carry only what is always sent.
	ResponseLen int
	Response    []byte
}

var commandSpecs = []CommandSpec{
	{OpFlashUpdate, "FLASH_UPDATE", 0, 0, nil},
	{OpReset, "RESET", 0, 1, nil},
	{OpVersionRequest, "VERSION_REQUEST", 0, len(versionResponse), VersionResponse()},
	{OpNoOperation, "NO_OPERATION", 0, 1, []byte{RespNoOperation}},
	{OpSetUserMemoryLow, "SET_USER_MEMORY_VALUE_LOW", 2, 0, nil},
	{OpSetUserMemoryHigh, "SET_USER_MEMORY_VALUE_HIGH", 2, 0, nil},
	{OpReadUserMemoryLow, "READ_USER_MEMORY_VALUE_LOW", 1, 2, []byte{RespReadUserMemoryLow}},
	{OpReadUserMemoryHigh, "READ_USER_MEMORY_VALUE_HIGH", 1, 2, []byte{RespReadUserMemoryHigh}},
	{OpSetTxStartCode, "SET_TX_START_CODE", 1, 1, []byte{RespSetTxStartCode}},
	{OpTurnTxOn, "TURN_TX_ON", 0, 0, nil},
	{OpTurnTxOff, "TURN_TX_OFF", 0, 0, nil},
	{OpSetChannelLow, "SET_DMX_CHANNEL_VALUE_LOW", 2, 0, nil},
	{OpSetChannelHigh, "SET_DMX_CHANNEL_VALUE_HIGH", 2, 0, nil},
	{OpTurnOnBlackout, "TURN_ON_BLACKOUT", 0, 1, []byte{RespBlackoutOn}},
	{OpTurnOffBlackout, "TURN_OFF_BLACKOUT", 0, 1, []byte{RespBlackoutOff}},
	{OpSetLastTxCodeLow, "SET_LAST_TX_CODE_LOW", 1, 1, []byte{RespSetLastTxCode}},
	{OpSetLastTxCodeHigh, "SET_LAST_TX_CODE_HIGH", 1, 1, []byte{RespSetLastTxCode}},
	{OpCheckTxStatus, "CHECK_TX_STATUS", 0, 1, nil},
	{OpReadTxChannelLow, "READ_TX_CHANNEL_VALUE_LOW", 1, 2, []byte{RespReadTxChannelLow}},
	{OpReadTxChannelHigh, "READ_TX_CHANNEL_VALUE_HIGH", 1, 2, []byte{RespReadTxChannelHigh}},
}

// Indexed by opcode byte; nil for unknown opcodes.
var commandTable [256]*CommandSpec

func init() {
	for i := range commandSpecs {
		commandTable[commandSpecs[i].Opcode] = &commandSpecs[i]
	}
}

// Lookup returns the table entry for an opcode byte. The entry is shared and
// must not be modified.
func Lookup(b byte) (*CommandSpec, bool) {
	spec := commandTable[b]
	return spec, spec != nil
}

// Specs returns a copy of the opcode table in opcode order.
func Specs() []CommandSpec {
	out := make([]CommandSpec, 0, len(commandSpecs))
	for _, spec := range commandTable {
		if spec != nil {
			entry := *spec
			entry.Response = bytes.Clone(spec.Response)
			out = append(out, entry)
		}
	}
	return out
}

// Command is one decoded or built command.
type Command struct {
	Opcode    Opcode
	Params    [2]byte
	Timestamp time.Time
}

// Spec returns the command's table entry. It panics for opcodes not in the
// table, which NewCommand and the Decoder never produce.
func (c Command) Spec() *CommandSpec {
	spec, ok := Lookup(byte(c.Opcode))
	if !ok {
		panic(fmt.Sprintf("dmxcmd: unknown opcode 0x%02X", byte(c.Opcode)))
	}
	return spec
}

// Name returns the protocol name of the command.
func (c Command) Name() string {
	return c.Spec().Name
}

// NewCommand builds a command, checking the parameter count against the table.
func NewCommand(op Opcode, params ...byte) (Command, error) {
	spec, ok := Lookup(byte(op))
	if !ok {
		return Command{}, fmt.Errorf("%w: 0x%02X", ErrUnknownOpcode, byte(op))
	}
	if len(params) != spec.Params {
		return Command{}, fmt.Errorf("%s takes %d parameter bytes, got %d", spec.Name, spec.Params, len(params))
	}
	c := Command{Opcode: op, Timestamp: time.Now()}
	copy(c.Params[:], params)
	return c, nil
}

func mustCommand(op Opcode, params ...byte) Command {
	c, err := NewCommand(op, params...)
	if err != nil {
		panic(err)
	}
	return c
}

// Command builders. Channel numbers are 1..512; the builder picks the LOW or
// HIGH opcode and the byte index within that range.

// splitRange maps a 1-based number onto a LOW/HIGH opcode and a byte index.
func splitRange(n, min, max int, low, high Opcode) (Opcode, byte, error) {
	if n < min || n > max {
		return 0, 0, fmt.Errorf("%d out of range %d..%d", n, min, max)
	}
	if n-min < HighRangeOffset {
		return low, byte(n - min), nil
	}
	return high, byte(n - min - HighRangeOffset), nil
}

// NewSetChannel creates SET_DMX_CHANNEL_VALUE_LOW/HIGH for channel ch (1..512).
func NewSetChannel(ch int, value byte) (Command, error) {
	op, idx, err := splitRange(ch, 1, 512, OpSetChannelLow, OpSetChannelHigh)
	if err != nil {
		return Command{}, fmt.Errorf("channel: %w", err)
	}
	return mustCommand(op, idx, value), nil
}

// NewReadChannel creates READ_TX_CHANNEL_VALUE_LOW/HIGH for channel ch (1..512).
func NewReadChannel(ch int) (Command, error) {
	op, idx, err := splitRange(ch, 1, 512, OpReadTxChannelLow, OpReadTxChannelHigh)
	if err != nil {
		return Command{}, fmt.Errorf("channel: %w", err)
	}
	return mustCommand(op, idx), nil
}

// NewSetLastChannel creates SET_LAST_TX_CODE_LOW/HIGH selecting channel n
// (1..512) as the last one transmitted.
func NewSetLastChannel(n int) (Command, error) {
	op, idx, err := splitRange(n, 1, 512, OpSetLastTxCodeLow, OpSetLastTxCodeHigh)
	if err != nil {
		return Command{}, fmt.Errorf("last channel: %w", err)
	}
	return mustCommand(op, idx), nil
}

// NewSetUserMemory creates SET_USER_MEMORY_VALUE_LOW/HIGH for addr (0..511).
func NewSetUserMemory(addr int, value byte) (Command, error) {
	op, idx, err := splitRange(addr, 0, UserMemorySize-1, OpSetUserMemoryLow, OpSetUserMemoryHigh)
	if err != nil {
		return Command{}, fmt.Errorf("user memory address: %w", err)
	}
	return mustCommand(op, idx, value), nil
}

// NewReadUserMemory creates READ_USER_MEMORY_VALUE_LOW/HIGH for addr (0..511).
func NewReadUserMemory(addr int) (Command, error) {
	op, idx, err := splitRange(addr, 0, UserMemorySize-1, OpReadUserMemoryLow, OpReadUserMemoryHigh)
	if err != nil {
		return Command{}, fmt.Errorf("user memory address: %w", err)
	}
	return mustCommand(op, idx), nil
}

// NewSetStartCode creates SET_TX_START_CODE.
func NewSetStartCode(code byte) Command {
	return mustCommand(OpSetTxStartCode, code)
}

// NewBlackout creates TURN_ON_BLACKOUT or TURN_OFF_BLACKOUT.
func NewBlackout(on bool) Command {
	if on {
		return mustCommand(OpTurnOnBlackout)
	}
	return mustCommand(OpTurnOffBlackout)
}

// NewTransmit creates TURN_TX_ON or TURN_TX_OFF.
func NewTransmit(on bool) Command {
	if on {
		return mustCommand(OpTurnTxOn)
	}
	return mustCommand(OpTurnTxOff)
}
