// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmxcmd

import "fmt"

// Bytes returns the wire form of the command: opcode then parameters.
func (c Command) Bytes() []byte {
	n := c.Spec().Params
	out := make([]byte, 0, 1+n)
	out = append(out, byte(c.Opcode))
	return append(out, c.Params[:n]...)
}

// EncodeCommand encodes an opcode and its parameters to wire format,
// checking the parameter count against the opcode table.
func EncodeCommand(op Opcode, params ...byte) ([]byte, error) {
	c, err := NewCommand(op, params...)
	if err != nil {
		return nil, err
	}
	return c.Bytes(), nil
}

// MustEncodeCommand is EncodeCommand for statically known commands.
// Panics on encoding error (use EncodeCommand for error handling).
func MustEncodeCommand(op Opcode, params ...byte) []byte {
	data, err := EncodeCommand(op, params...)
	if err != nil {
		panic(fmt.Sprintf("dmxcmd: encode error: %v", err))
	}
	return data
}

// EncodeCommands concatenates the wire form of several commands.
func EncodeCommands(cmds ...Command) []byte {
	var out []byte
	for _, c := range cmds {
		out = append(out, c.Bytes()...)
	}
	return out
}
