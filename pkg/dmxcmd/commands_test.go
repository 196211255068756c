// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmxcmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpcodeTable(t *testing.T) {
	specs := Specs()
	require.Len(t, specs, 20)
	for i := 1; i < len(specs); i++ {
		require.Less(t, byte(specs[i-1].Opcode), byte(specs[i].Opcode))
	}
	for _, spec := range specs {
		require.LessOrEqual(t, spec.Params, 2, spec.Name)
		require.LessOrEqual(t, len(spec.Response), spec.ResponseLen, spec.Name)
	}

	_, ok := Lookup(0x00)
	require.False(t, ok)
	_, ok = Lookup(0xFF)
	require.False(t, ok)
}

// Changing returned response bytes leaves the table and the handler alone.
func TestVersionResponse_NotShared(t *testing.T) {
	v := VersionResponse()
	v[1] = 0xFF

	specs := Specs()
	for i := range specs {
		specs[i].Response = append(specs[i].Response[:0], 0xEE)
	}

	spec, ok := Lookup(byte(OpVersionRequest))
	require.True(t, ok)
	require.Equal(t, []byte{0xA4, 0x14, 'T', 'S', 0x00}, spec.Response)
	require.Equal(t, []byte{0xA4, 0x14, 'T', 'S', 0x00}, VersionResponse())

	h, _ := newTestHandler(t)
	require.Equal(t, []byte{0xA4, 0x14, 'T', 'S', 0x00}, feed(h, 0x24))
}

func TestNewSetChannel(t *testing.T) {
	tests := []struct {
		name    string
		channel int
		wantOp  Opcode
		wantIdx byte
		wantErr bool
	}{
		{name: "first channel", channel: 1, wantOp: OpSetChannelLow, wantIdx: 0},
		{name: "last low channel", channel: 256, wantOp: OpSetChannelLow, wantIdx: 255},
		{name: "first high channel", channel: 257, wantOp: OpSetChannelHigh, wantIdx: 0},
		{name: "last channel", channel: 512, wantOp: OpSetChannelHigh, wantIdx: 255},
		{name: "zero", channel: 0, wantErr: true},
		{name: "past end", channel: 513, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewSetChannel(tt.channel, 0x7F)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantOp, c.Opcode)
			require.Equal(t, [2]byte{tt.wantIdx, 0x7F}, c.Params)
			require.Equal(t, tt.channel, channelOf(c))
		})
	}
}

func TestNewSetLastChannel(t *testing.T) {
	tests := []struct {
		n      int
		wantOp Opcode
		wantP  byte
	}{
		{1, OpSetLastTxCodeLow, 0},
		{24, OpSetLastTxCodeLow, 23},
		{256, OpSetLastTxCodeLow, 255},
		{257, OpSetLastTxCodeHigh, 0},
		{512, OpSetLastTxCodeHigh, 255},
	}
	for _, tt := range tests {
		c, err := NewSetLastChannel(tt.n)
		require.NoError(t, err)
		require.Equal(t, tt.wantOp, c.Opcode)
		require.Equal(t, tt.wantP, c.Params[0])
	}

	_, err := NewSetLastChannel(0)
	require.Error(t, err)
}

func TestNewUserMemory(t *testing.T) {
	c, err := NewSetUserMemory(0, 9)
	require.NoError(t, err)
	require.Equal(t, OpSetUserMemoryLow, c.Opcode)
	require.Equal(t, 0, addressOf(c))

	c, err = NewReadUserMemory(511)
	require.NoError(t, err)
	require.Equal(t, OpReadUserMemoryHigh, c.Opcode)
	require.Equal(t, 511, addressOf(c))

	_, err = NewReadUserMemory(512)
	require.Error(t, err)
	_, err = NewSetUserMemory(-1, 0)
	require.Error(t, err)
}

func TestNewCommand_Arity(t *testing.T) {
	_, err := NewCommand(OpSetChannelLow, 1)
	require.Error(t, err)
	_, err = NewCommand(OpNoOperation, 1)
	require.Error(t, err)
	_, err = NewCommand(Opcode(0x99))
	require.ErrorIs(t, err, ErrUnknownOpcode)
}

func TestEncodeCommand(t *testing.T) {
	data, err := EncodeCommand(OpSetChannelHigh, 3, 200)
	require.NoError(t, err)
	require.Equal(t, []byte{0x49, 3, 200}, data)

	require.Equal(t, []byte{0x26}, MustEncodeCommand(OpNoOperation))
	require.Panics(t, func() { MustEncodeCommand(OpSetTxStartCode) })

	require.Equal(t, []byte{0x26, 0x22, 0x42, 0x01},
		EncodeCommands(mustCommand(OpNoOperation), mustCommand(OpReset), NewSetStartCode(1)))
}

func TestFormatCommand(t *testing.T) {
	c, err := NewSetChannel(300, 17)
	require.NoError(t, err)
	require.Equal(t, "SET_DMX_CHANNEL_VALUE_HIGH (0x49) channel=300 value=17", FormatCommand(c))

	c, err = NewSetLastChannel(24)
	require.NoError(t, err)
	require.Equal(t, "SET_LAST_TX_CODE_LOW (0x4E) last=24", FormatCommand(c))

	require.Equal(t, "UNKNOWN_0x99", FormatOpcode(0x99))
	require.Equal(t, "RESET", OpReset.String())

	require.Equal(t, "reset rejected", FormatResponse([]byte{RespResetFail}))
	require.Equal(t, "value=5", FormatResponse([]byte{RespReadTxChannelLow, 5}))
	require.Equal(t, "no response", FormatResponse(nil))
}
