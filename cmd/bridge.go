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

	"github.com/Thermoquad/dmxsender/internal/mqttbridge"
	"github.com/Thermoquad/dmxsender/pkg/dmxcmd"
)

var (
	bridgeTopic string
	bridgeTx    bool
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Forward MQTT channel updates to the transmitter",
	Long: `Subscribe to an MQTT topic and forward channel updates to the transmitter.

Messages are JSON arrays of channel/value pairs:

  [{"channel": 1, "value": 255}, {"channel": 2, "value": 128}]

Entries outside channel 1..512 or value 0..255 are skipped. The broker is
configured in the [mqtt] section of the config file.`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVar(&bridgeTopic, "topic", "", "Channel topic (overrides [mqtt] topic)")
	bridgeCmd.Flags().BoolVar(&bridgeTx, "tx", true, "Turn the transmitter on before forwarding")
}

func runBridge(cmd *cobra.Command, args []string) error {
	log := appLog.Module("bridge")
	cfg := appConfig.MQTT
	if bridgeTopic != "" {
		cfg.Topic = bridgeTopic
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Infof("Connection: %s", connInfo)

	client := dmxcmd.NewClient(conn)
	if _, err := client.Version(); err != nil {
		return fmt.Errorf("transmitter not responding: %w", err)
	}
	if bridgeTx {
		if err := client.SetTransmit(true); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bridge := mqttbridge.New(appLog, cfg, client)
	if err := bridge.Start(ctx); err != nil {
		return err
	}
	defer bridge.Stop()
	log.Infof("Forwarding %s", cfg.Topic)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			applied, rejected := bridge.Counts()
			log.Infof("Stopped: %d applied, %d rejected", applied, rejected)
			return nil
		case <-ticker.C:
			applied, rejected := bridge.Counts()
			log.Debugf("%d applied, %d rejected", applied, rejected)
		}
	}
}
