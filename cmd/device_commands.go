// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/dmxsender/pkg/dmxcmd"
)

// deviceCommand is one user-level command shared by send, shell and monitor.
type deviceCommand struct {
	name  string
	args  string // usage of the arguments
	help  string
	nargs int
	run   func(c *dmxcmd.Client, args []string) (string, error)
}

// Title, Description and FilterValue implement list.Item.
func (d deviceCommand) Title() string       { return strings.TrimSpace(d.name + " " + d.args) }
func (d deviceCommand) Description() string { return d.help }
func (d deviceCommand) FilterValue() string { return d.name }

var errUsage = errors.New("usage")

var deviceCommands = []deviceCommand{
	{
		name: "version", help: "Request the firmware version",
		run: func(c *dmxcmd.Client, _ []string) (string, error) {
			v, err := c.Version()
			if err != nil {
				return "", err
			}
			return dmxcmd.FormatResponse(v), nil
		},
	},
	{
		name: "nop", help: "Send NO_OPERATION",
		run: func(c *dmxcmd.Client, _ []string) (string, error) {
			return "ok", c.NoOperation()
		},
	},
	{
		name: "reset", help: "Reset the transmitter (NO_OPERATION then RESET)",
		run: func(c *dmxcmd.Client, _ []string) (string, error) {
			return "reset ok, transmitter off", c.Reset()
		},
	},
	{
		name: "tx", args: "on|off", help: "Turn the transmitter on or off", nargs: 1,
		run: func(c *dmxcmd.Client, args []string) (string, error) {
			on, err := parseOnOff(args[0])
			if err != nil {
				return "", err
			}
			return "ok", c.SetTransmit(on)
		},
	},
	{
		name: "status", help: "Query whether the transmitter is on",
		run: func(c *dmxcmd.Client, _ []string) (string, error) {
			on, err := c.TransmitStatus()
			if err != nil {
				return "", err
			}
			if on {
				return "tx on", nil
			}
			return "tx off", nil
		},
	},
	{
		name: "blackout", args: "on|off", help: "Force all data bits low, or release", nargs: 1,
		run: func(c *dmxcmd.Client, args []string) (string, error) {
			on, err := parseOnOff(args[0])
			if err != nil {
				return "", err
			}
			return "ok", c.SetBlackout(on)
		},
	},
	{
		name: "startcode", args: "CODE", help: "Set the start code (slot 0)", nargs: 1,
		run: func(c *dmxcmd.Client, args []string) (string, error) {
			code, err := parseNumber(args[0], 0, 0xFF)
			if err != nil {
				return "", err
			}
			return "ok", c.SetStartCode(byte(code))
		},
	},
	{
		name: "set", args: "CHANNEL VALUE", help: "Set a channel (1..512) to a value", nargs: 2,
		run: func(c *dmxcmd.Client, args []string) (string, error) {
			ch, err := parseNumber(args[0], 1, 512)
			if err != nil {
				return "", err
			}
			v, err := parseNumber(args[1], 0, 0xFF)
			if err != nil {
				return "", err
			}
			return "ok", c.SetChannel(ch, byte(v))
		},
	},
	{
		name: "get", args: "CHANNEL", help: "Read back a channel (1..512)", nargs: 1,
		run: func(c *dmxcmd.Client, args []string) (string, error) {
			ch, err := parseNumber(args[0], 1, 512)
			if err != nil {
				return "", err
			}
			v, err := c.Channel(ch)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("channel %d = %d", ch, v), nil
		},
	},
	{
		name: "last", args: "CHANNEL", help: "Set the last transmitted channel (1..512)", nargs: 1,
		run: func(c *dmxcmd.Client, args []string) (string, error) {
			n, err := parseNumber(args[0], 1, 512)
			if err != nil {
				return "", err
			}
			return "ok", c.SetLastChannel(n)
		},
	},
	{
		name: "memset", args: "ADDR VALUE", help: "Write user memory (0..511)", nargs: 2,
		run: func(c *dmxcmd.Client, args []string) (string, error) {
			addr, err := parseNumber(args[0], 0, dmxcmd.UserMemorySize-1)
			if err != nil {
				return "", err
			}
			v, err := parseNumber(args[1], 0, 0xFF)
			if err != nil {
				return "", err
			}
			return "ok", c.SetUserMemory(addr, byte(v))
		},
	},
	{
		name: "memget", args: "ADDR", help: "Read user memory (0..511)", nargs: 1,
		run: func(c *dmxcmd.Client, args []string) (string, error) {
			addr, err := parseNumber(args[0], 0, dmxcmd.UserMemorySize-1)
			if err != nil {
				return "", err
			}
			v, err := c.UserMemory(addr)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("mem %d = %d", addr, v), nil
		},
	},
	{
		name: "flash", help: "Save user memory and settings to flash",
		run: func(c *dmxcmd.Client, _ []string) (string, error) {
			return "ok", c.FlashUpdate()
		},
	},
	{
		name: "raw", args: "HEX", help: "Send one raw command, e.g. 48 00 ff", nargs: -1,
		run: runRaw,
	},
}

func findDeviceCommand(name string) (deviceCommand, bool) {
	for _, d := range deviceCommands {
		if d.name == name {
			return d, true
		}
	}
	return deviceCommand{}, false
}

// runDeviceCommand runs args[0] with the remaining arguments.
func runDeviceCommand(c *dmxcmd.Client, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: COMMAND [ARGS...]", errUsage)
	}
	d, ok := findDeviceCommand(args[0])
	if !ok {
		return "", fmt.Errorf("unknown command %q", args[0])
	}
	rest := args[1:]
	if d.nargs >= 0 && len(rest) != d.nargs {
		return "", fmt.Errorf("%w: %s", errUsage, d.Title())
	}
	out, err := d.run(c, rest)
	if err != nil {
		return "", err
	}
	return out, nil
}

func runRaw(c *dmxcmd.Client, args []string) (string, error) {
	data, err := hex.DecodeString(strings.Join(args, ""))
	if err != nil {
		return "", fmt.Errorf("invalid hex: %w", err)
	}

	cmds, unknown := dmxcmd.NewDecoder().Decode(data)
	if unknown > 0 || len(cmds) != 1 {
		return "", fmt.Errorf("%w: raw takes exactly one known command", errUsage)
	}
	resp, err := c.Do(cmds[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: %s", dmxcmd.FormatCommand(cmds[0]), dmxcmd.FormatResponse(resp)), nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

// parseNumber accepts decimal, 0x hex and 0b binary.
func parseNumber(s string, min, max int) (int, error) {
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if int(v) < min || int(v) > max {
		return 0, fmt.Errorf("%d out of range %d..%d", v, min, max)
	}
	return int(v), nil
}
