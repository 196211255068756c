// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmxcmd

import (
	"fmt"
	"strings"
)

// FormatOpcode returns the human-readable name for an opcode byte
func FormatOpcode(b byte) string {
	if spec, ok := Lookup(b); ok {
		return spec.Name
	}
	return fmt.Sprintf("UNKNOWN_0x%02X", b)
}

// String implements fmt.Stringer.
func (op Opcode) String() string {
	return FormatOpcode(byte(op))
}

// FormatCommand formats a command into a human-readable line
func FormatCommand(c Command) string {
	spec, ok := Lookup(byte(c.Opcode))
	if !ok {
		return FormatOpcode(byte(c.Opcode))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (0x%02X)", spec.Name, byte(c.Opcode))

	p := c.Params
	switch c.Opcode {
	case OpSetChannelLow, OpSetChannelHigh:
		fmt.Fprintf(&b, " channel=%d value=%d", channelOf(c), p[1])
	case OpReadTxChannelLow, OpReadTxChannelHigh:
		fmt.Fprintf(&b, " channel=%d", channelOf(c))
	case OpSetLastTxCodeLow, OpSetLastTxCodeHigh:
		fmt.Fprintf(&b, " last=%d", channelOf(c))
	case OpSetUserMemoryLow, OpSetUserMemoryHigh:
		fmt.Fprintf(&b, " addr=%d value=%d", addressOf(c), p[1])
	case OpReadUserMemoryLow, OpReadUserMemoryHigh:
		fmt.Fprintf(&b, " addr=%d", addressOf(c))
	case OpSetTxStartCode:
		fmt.Fprintf(&b, " code=0x%02X", p[0])
	}
	return b.String()
}

// FormatTimestamped prefixes FormatCommand with the command's timestamp.
func FormatTimestamped(c Command) string {
	return fmt.Sprintf("[%s] %s", c.Timestamp.Format("15:04:05.000"), FormatCommand(c))
}

// FormatResponse describes the response bytes of a command.
func FormatResponse(resp []byte) string {
	if len(resp) == 0 {
		return "no response"
	}
	switch resp[0] {
	case RespResetOK:
		return "reset ok"
	case RespResetFail:
		return "reset rejected"
	case RespTxOn:
		return "tx on"
	case RespTxOff:
		return "tx off"
	case RespVersion:
		if len(resp) == len(versionResponse) {
			return fmt.Sprintf("version 0x%02X %q", resp[1], resp[2:4])
		}
	case RespReadTxChannelLow, RespReadTxChannelHigh, RespReadUserMemoryLow, RespReadUserMemoryHigh:
		if len(resp) == 2 {
			return fmt.Sprintf("value=%d", resp[1])
		}
	}
	return fmt.Sprintf("% X", resp)
}

func isHigh(op Opcode) bool {
	return op&0x01 != 0
}

// channelOf returns the 1-based channel addressed by a LOW/HIGH command.
func channelOf(c Command) int {
	ch := 1 + int(c.Params[0])
	if isHigh(c.Opcode) {
		ch += HighRangeOffset
	}
	return ch
}

// addressOf returns the user memory address of a LOW/HIGH command.
func addressOf(c Command) int {
	addr := int(c.Params[0])
	if isHigh(c.Opcode) {
		addr += HighRangeOffset
	}
	return addr
}
