// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/dmxsender/pkg/dmx"
	"github.com/Thermoquad/dmxsender/pkg/dmxcmd"
)

var (
	cmdLogStats     time.Duration
	cmdLogResponses bool
)

var cmdLogCmd = &cobra.Command{
	Use:   "cmd_log",
	Short: "Decode a command stream in human-readable format",
	Long: `Continuously decode protocol commands as they arrive on the link and print
one line per command.

Attach this to a tap of the host-to-transmitter line. With --responses the
commands are also replayed against a shadow transmitter, and the response
the real one should have sent is shown next to each command.

Statistics are printed on exit, and every --stats interval if set.`,
	RunE: runCmdLog,
}

func init() {
	rootCmd.AddCommand(cmdLogCmd)
	cmdLogCmd.Flags().DurationVar(&cmdLogStats, "stats", 0, "Print statistics at this interval (0 disables)")
	cmdLogCmd.Flags().BoolVar(&cmdLogResponses, "responses", false, "Show the expected response of each command")
}

func runCmdLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("dmxsender - Command Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	// The shadow handler keeps the statistics even without --responses.
	shadow, err := dmxcmd.NewHandler(dmx.NewUniverse())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if cmdLogStats > 0 {
		go func() {
			ticker := time.NewTicker(cmdLogStats)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					fmt.Print(shadow.Statistics().String())
				}
			}
		}()
	}

	decoder := dmxcmd.NewDecoder()
	buf := make([]byte, 128)
	for {
		n, err := conn.Read(buf)
		for _, b := range buf[:n] {
			c, decodeErr := decoder.DecodeByte(b)
			if decodeErr != nil {
				fmt.Printf("[ERROR] %v\n", decodeErr)
				shadow.HandleByte(b)
				continue
			}
			if c == nil {
				continue
			}
			resp := shadow.Execute(*c)
			if cmdLogResponses {
				fmt.Printf("%s -> %s\n", dmxcmd.FormatTimestamped(*c), dmxcmd.FormatResponse(resp))
			} else {
				fmt.Println(dmxcmd.FormatTimestamped(*c))
			}
		}

		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrConnectionClosed) {
				fmt.Print("\n" + shadow.Statistics().String())
				return nil
			}
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			return err
		}
	}
}
