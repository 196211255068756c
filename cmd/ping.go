// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/dmxsender/pkg/dmxcmd"
)

var (
	pingTimeout  int
	pingCount    int
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure command round trips with NO_OPERATION",
	Long: `Send NO_OPERATION commands and wait for each acknowledgement.

Useful for verifying that the command link works in both directions and for
measuring round-trip time through a WebSocket bridge.

Note that NO_OPERATION arms RESET: a RESET sent right after a ping is
honoured.

Exit codes:
  0 - All pings acknowledged
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 2, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
	pingCmd.Flags().DurationVar(&pingInterval, "interval", 100*time.Millisecond, "Delay between pings")
}

// validatePingFlags rejects settings that would send nothing or never wait.
func validatePingFlags() error {
	if pingCount < 1 {
		return fmt.Errorf("--count must be at least 1, got %d", pingCount)
	}
	if pingTimeout < 1 {
		return fmt.Errorf("--timeout must be at least 1 second, got %d", pingTimeout)
	}
	return nil
}

func runPing(cmd *cobra.Command, args []string) error {
	if err := validatePingFlags(); err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("dmxsender - Ping\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	client := dmxcmd.NewClient(conn)
	client.SetTimeout(time.Duration(pingTimeout) * time.Second)

	var (
		received    int
		total       time.Duration
		best, worst time.Duration
	)
	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		start := time.Now()
		err := client.NoOperation()
		rtt := time.Since(start)
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
		} else {
			fmt.Printf("ack, rtt=%v\n", rtt.Round(time.Microsecond))
			received++
			total += rtt
			if best == 0 || rtt < best {
				best = rtt
			}
			if rtt > worst {
				worst = rtt
			}
		}

		if i < pingCount {
			time.Sleep(pingInterval)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d acknowledged, %.0f%% loss\n",
		pingCount, received, float64(pingCount-received)/float64(pingCount)*100)
	if received > 0 {
		fmt.Printf("rtt min/avg/max = %v/%v/%v\n",
			best.Round(time.Microsecond),
			(total / time.Duration(received)).Round(time.Microsecond),
			worst.Round(time.Microsecond))
	}

	if received < pingCount {
		os.Exit(1)
	}
	return nil
}
