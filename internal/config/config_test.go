// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dmxsender.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig("")
	require.NoError(t, err)
	require.Equal(t, Default(), *cfg)
	require.Equal(t, 115200, cfg.Serial.Baud)
	require.Equal(t, "tcp://localhost:1883", cfg.MQTT.BrokerURL())
}

func TestNewConfig_File(t *testing.T) {
	path := writeConfig(t, `
[logger]
log-level = "debug"

[serial]
port = "/dev/ttyUSB0"
baud = 57600

[generator]
tick = "2us"
reference = true

[flash]
path = "/var/lib/dmxsender/flash.cbor"

[artnet]
enabled = true
net = 1
subuni = 3

[mqtt]
enabled = true
server = "broker"
qos = 1
`)
	cfg, err := NewConfig(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logger.Level)
	require.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	require.Equal(t, 57600, cfg.Serial.Baud)
	require.Equal(t, 100*time.Millisecond, cfg.Serial.ReadTimeout.Duration)
	require.Equal(t, 2*time.Microsecond, cfg.Generator.Tick.Duration)
	require.True(t, cfg.Generator.Reference)
	require.Equal(t, "/var/lib/dmxsender/flash.cbor", cfg.Flash.Path)
	require.True(t, cfg.ArtNet.Enabled)
	require.Equal(t, uint8(3), cfg.ArtNet.SubUni)
	require.Equal(t, "tcp://broker:1883", cfg.MQTT.BrokerURL())
	require.Equal(t, byte(1), cfg.MQTT.Qos)
}

func TestNewConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad duration", body: "[generator]\ntick = \"soon\"\n"},
		{name: "zero baud", body: "[serial]\nbaud = 0\n"},
		{name: "qos", body: "[mqtt]\nqos = 3\n"},
		{name: "artnet net", body: "[artnet]\nnet = 200\n"},
		{name: "syntax", body: "[serial\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}

	_, err := NewConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
