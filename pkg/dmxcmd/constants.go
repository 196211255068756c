// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dmxcmd implements the serial command protocol of the DMX sender.
//
// Every command is a single opcode byte followed by a fixed number of
// parameter bytes (0, 1 or 2). The device answers with a fixed response (or
// none). This package provides the opcode table, a byte-at-a-time decoder,
// command builders, the device-side Handler and a host-side Client.
package dmxcmd

// Opcode identifies a command.
type Opcode byte

// Device opcodes 0x00-0x3F
const (
	OpFlashUpdate        Opcode = 0x02
	OpReset              Opcode = 0x22
	OpVersionRequest     Opcode = 0x24
	OpNoOperation        Opcode = 0x26
	OpSetUserMemoryLow   Opcode = 0x28
	OpSetUserMemoryHigh  Opcode = 0x29
	OpReadUserMemoryLow  Opcode = 0x2A
	OpReadUserMemoryHigh Opcode = 0x2B
)

// Transmitter opcodes 0x40-0x5F
const (
	OpSetTxStartCode    Opcode = 0x42
	OpTurnTxOn          Opcode = 0x44
	OpTurnTxOff         Opcode = 0x46
	OpSetChannelLow     Opcode = 0x48
	OpSetChannelHigh    Opcode = 0x49
	OpTurnOnBlackout    Opcode = 0x4A
	OpTurnOffBlackout   Opcode = 0x4C
	OpSetLastTxCodeLow  Opcode = 0x4E
	OpSetLastTxCodeHigh Opcode = 0x4F
	OpCheckTxStatus     Opcode = 0x50
	OpReadTxChannelLow  Opcode = 0x52
	OpReadTxChannelHigh Opcode = 0x53
)

// Response bytes
const (
	RespResetOK            = 0xA2
	RespResetFail          = 0xA3
	RespVersion            = 0xA4
	RespNoOperation        = 0xA6
	RespReadUserMemoryLow  = 0xAA
	RespReadUserMemoryHigh = 0xAB
	RespSetTxStartCode     = 0xC2
	RespTxOn               = 0xC4
	RespTxOff              = 0xC6
	RespBlackoutOn         = 0xCA
	RespBlackoutOff        = 0xCC
	RespSetLastTxCode      = 0xCE
	RespReadTxChannelLow   = 0xD2
	RespReadTxChannelHigh  = 0xD3
)

var versionResponse = [...]byte{RespVersion, 0x14, 'T', 'S', 0x00}

// VersionResponse returns the complete answer to VERSION_REQUEST.
func VersionResponse() []byte {
	return append([]byte(nil), versionResponse[:]...)
}

// Address ranges
const (
	// HighRangeOffset is added to the index parameter of a *_HIGH command.
	HighRangeOffset = 0x100
	UserMemorySize  = 512
)
