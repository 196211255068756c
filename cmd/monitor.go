// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/dmxsender/pkg/dmxcmd"
)

var monitorRefresh time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for the transmitter",
	Long: `Monitor and control the transmitter through an interactive terminal UI.

Features:
  - Channel grid read back from the transmit buffer
  - Transmitter on/off status
  - Command list with argument input
  - Event log

Tab switches between the command list and the argument input. Enter runs the
selected command. [ and ] page through the channel grid.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVar(&monitorRefresh, "refresh", time.Second, "Channel grid refresh interval")
}

// session serializes access to the client: the refresh tick and user
// commands run on separate goroutines, and the protocol has no request IDs.
type session struct {
	mu     sync.Mutex
	client *dmxcmd.Client
}

func (s *session) run(args []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return runDeviceCommand(s.client, args)
}

// snapshot reads the transmitter status and count channels starting at first.
func (s *session) snapshot(first, count int) (gridMsg, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	on, err := s.client.TransmitStatus()
	if err != nil {
		return gridMsg{}, err
	}
	msg := gridMsg{first: first, tx: on, values: make([]byte, 0, count)}
	for ch := first; ch < first+count && ch <= 512; ch++ {
		v, err := s.client.Channel(ch)
		if err != nil {
			return gridMsg{}, fmt.Errorf("channel %d: %w", ch, err)
		}
		msg.values = append(msg.values, v)
	}
	return msg, nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	s := &session{client: dmxcmd.NewClient(conn)}
	p := tea.NewProgram(initialMonitorModel(s, connInfo), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
