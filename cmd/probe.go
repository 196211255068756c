// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/dmxsender/pkg/dmxcmd"
)

var probeTimeout int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the connection by requesting the firmware version",
	Long: `Send VERSION_REQUEST once per second until the transmitter answers or the
timeout is reached.

Exit codes:
  0 - Version response received before timeout
  1 - Timeout reached, or the device answered with unexpected bytes
  2 - Connection error

Useful for checking cabling and baud rate before running other commands.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a response")
}

func runProbe(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("dmxsender - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for version response...\n\n")

	client := dmxcmd.NewClient(conn)
	client.SetTimeout(time.Second)

	deadline := time.Now().Add(time.Duration(probeTimeout) * time.Second)
	attempts := 0
	for time.Now().Before(deadline) {
		attempts++
		resp, err := client.Version()
		switch {
		case err == nil:
			fmt.Printf("SUCCESS: %s\n", dmxcmd.FormatResponse(resp))
			fmt.Printf("  Bytes: % X\n", resp)
			fmt.Printf("  Attempts: %d\n", attempts)
			os.Exit(0)

		case errors.Is(err, dmxcmd.ErrTimeout):
			continue

		case errors.Is(err, dmxcmd.ErrUnexpectedResponse):
			fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
			os.Exit(1)

		default:
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			os.Exit(2)
		}
	}

	fmt.Fprintf(os.Stderr, "TIMEOUT: No version response within %d seconds (%d attempts)\n", probeTimeout, attempts)
	os.Exit(1)
	return nil
}
