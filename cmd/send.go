// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/dmxsender/pkg/dmxcmd"
)

var sendTimeout time.Duration

var sendCmd = &cobra.Command{
	Use:   "send COMMAND [ARGS...]",
	Short: "Send one command to the transmitter",
	Long: `Send a single protocol command and print the response.

Commands:
` + deviceCommandHelp() + `
Numbers may be given in decimal, 0x hex or 0b binary.

Examples:
  dmxsender send -p /dev/ttyUSB0 set 1 255
  dmxsender send -p /dev/ttyUSB0 last 24
  dmxsender send -p /dev/ttyUSB0 raw 4a`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", dmxcmd.DefaultResponseTimeout, "Time to wait for a response")
}

func deviceCommandHelp() string {
	var b strings.Builder
	for _, d := range deviceCommands {
		fmt.Fprintf(&b, "  %-22s %s\n", d.Title(), d.help)
	}
	return b.String()
}

func runSend(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()
	appLog.Module("send").Debugf("Connection: %s", connInfo)

	client := dmxcmd.NewClient(conn)
	client.SetTimeout(sendTimeout)

	out, err := runDeviceCommand(client, args)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
