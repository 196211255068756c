// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/dmxsender/pkg/dmxcmd"
)

var (
	patternFirst int
	patternCount int
	patternLevel int
	patternStep  time.Duration
	patternLoops int
)

var patternCmd = &cobra.Command{
	Use:   "pattern chase|ramp|flash",
	Short: "Drive a test pattern over a range of channels",
	Long: `Write a test pattern to a range of channels until interrupted.

Patterns:
  chase  one channel at --level at a time, moving every --step
  ramp   all channels fade from 0 to --level and back
  flash  all channels toggle between 0 and --level

The transmitter is switched on and the last transmitted channel is set to
cover the range. Channels are left at 0 on exit.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"chase", "ramp", "flash"},
	RunE:      runPattern,
}

func init() {
	rootCmd.AddCommand(patternCmd)
	patternCmd.Flags().IntVar(&patternFirst, "first", 1, "First channel")
	patternCmd.Flags().IntVar(&patternCount, "count", 8, "Number of channels")
	patternCmd.Flags().IntVar(&patternLevel, "level", 255, "Peak value")
	patternCmd.Flags().DurationVar(&patternStep, "step", 100*time.Millisecond, "Time between pattern steps")
	patternCmd.Flags().IntVar(&patternLoops, "loops", 0, "Stop after this many loops (0 runs until interrupted)")
}

// patternFrame returns the channel values of step n of a pattern, and the
// number of steps in one loop.
func patternFrame(name string, n, count int, level byte) ([]byte, int) {
	values := make([]byte, count)
	switch name {
	case "chase":
		values[n%count] = level
		return values, count
	case "ramp":
		const steps = 16
		i := n % (2 * steps)
		if i > steps {
			i = 2*steps - i
		}
		v := byte(int(level) * i / steps)
		for j := range values {
			values[j] = v
		}
		return values, 2 * steps
	default:
		if n%2 == 0 {
			for j := range values {
				values[j] = level
			}
		}
		return values, 2
	}
}

func runPattern(cmd *cobra.Command, args []string) error {
	name := args[0]
	if patternCount < 1 || patternFirst < 1 || patternFirst+patternCount-1 > 512 {
		return fmt.Errorf("channels %d..%d out of range 1..512", patternFirst, patternFirst+patternCount-1)
	}
	if patternLevel < 0 || patternLevel > 0xFF {
		return fmt.Errorf("level %d out of range 0..255", patternLevel)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()
	log := appLog.Module("pattern")
	log.Infof("Connection: %s", connInfo)

	client := dmxcmd.NewClient(conn)
	if err := client.SetLastChannel(patternFirst + patternCount - 1); err != nil {
		return err
	}
	if err := client.SetTransmit(true); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ticker := time.NewTicker(patternStep)
	defer ticker.Stop()

	// nil until the first write, which sends every channel
	var prev []byte
	write := func(values []byte) error {
		for i, v := range values {
			if prev != nil && v == prev[i] {
				continue
			}
			if err := client.SetChannel(patternFirst+i, v); err != nil {
				return err
			}
		}
		prev = values
		return nil
	}

	for n := 0; ; n++ {
		values, steps := patternFrame(name, n, patternCount, byte(patternLevel))
		if patternLoops > 0 && n >= patternLoops*steps {
			break
		}
		if err := write(values); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			log.Info("interrupted")
			return write(make([]byte, patternCount))
		case <-ticker.C:
		}
	}
	return write(make([]byte, patternCount))
}
