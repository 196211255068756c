// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the TOML configuration file.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the whole configuration file.
type Config struct {
	Logger    LogConf       `toml:"logger"`
	Serial    SerialConf    `toml:"serial"`
	Generator GeneratorConf `toml:"generator"`
	Flash     FlashConf     `toml:"flash"`
	ArtNet    ArtNetConf    `toml:"artnet"`
	MQTT      MQTTConf      `toml:"mqtt"`
}

// LogConf configures the logger.
type LogConf struct {
	Level   string `toml:"log-level"`
	NoColor bool   `toml:"no-color"`
}

// SerialConf configures the command link.
type SerialConf struct {
	Port        string   `toml:"port"`
	Baud        int      `toml:"baud"`
	ReadTimeout Duration `toml:"read-timeout"`

	// WebSocket link, used instead of Port when set.
	URL         string `toml:"url"`
	Username    string `toml:"username"`
	NoSSLVerify bool   `toml:"no-ssl-verify"`
}

// GeneratorConf configures the simulated transmitter.
type GeneratorConf struct {
	Tick      Duration `toml:"tick"`      // timer tick period
	Reference bool     `toml:"reference"` // use the reference tick counts instead of deriving them
	Interval  Duration `toml:"interval"`  // pacing interval
}

// FlashConf configures the flash store.
type FlashConf struct {
	Path string `toml:"path"`
}

// ArtNetConf configures the Art-Net mirror.
type ArtNetConf struct {
	Enabled bool   `toml:"enabled"`
	IP      string `toml:"ip"` // local interface address; empty picks one in Subnet
	Subnet  string `toml:"subnet"`
	Net     uint8  `toml:"net"`
	SubUni  uint8  `toml:"subuni"`
	MaxFPS  int    `toml:"max-fps"`
}

// MQTTConf configures the MQTT bridge.
type MQTTConf struct {
	Enabled     bool   `toml:"enabled"`
	Schema      string `toml:"schema"`
	Host        string `toml:"server"`
	Port        string `toml:"port"`
	User        string `toml:"user"`
	Password    string `toml:"password"`
	ClientID    string `toml:"clientID"` // empty derives one from the machine ID
	Qos         byte   `toml:"qos"`
	Topic       string `toml:"topic"`
	StatusTopic string `toml:"status-topic"`
}

// Duration is a time.Duration written as a string ("1us", "5ms").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Logger: LogConf{Level: "info"},
		Serial: SerialConf{
			Baud:        115200,
			ReadTimeout: Duration{100 * time.Millisecond},
		},
		Generator: GeneratorConf{
			Tick:     Duration{time.Microsecond},
			Interval: Duration{time.Millisecond},
		},
		ArtNet: ArtNetConf{
			Subnet: "2.0.0.0/8",
			MaxFPS: 44,
		},
		MQTT: MQTTConf{
			Schema:      "tcp",
			Host:        "localhost",
			Port:        "1883",
			Topic:       "dmx/channels",
			StatusTopic: "dmx/status",
		},
	}
}

// NewConfig loads path over the defaults. An empty path returns the defaults.
func NewConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the commands cannot recover from.
func (c *Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("config: serial baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Generator.Tick.Duration <= 0 {
		return fmt.Errorf("config: generator tick must be positive, got %s", c.Generator.Tick)
	}
	if c.Generator.Interval.Duration <= 0 {
		return fmt.Errorf("config: generator interval must be positive, got %s", c.Generator.Interval)
	}
	if c.ArtNet.Net > 0x7F {
		return fmt.Errorf("config: artnet net must be 0..127, got %d", c.ArtNet.Net)
	}
	if c.ArtNet.MaxFPS <= 0 {
		return fmt.Errorf("config: artnet max-fps must be positive, got %d", c.ArtNet.MaxFPS)
	}
	if c.MQTT.Qos > 2 {
		return fmt.Errorf("config: mqtt qos must be 0..2, got %d", c.MQTT.Qos)
	}
	return nil
}

// BrokerURL returns the MQTT broker address.
func (m MQTTConf) BrokerURL() string {
	return fmt.Sprintf("%s://%s:%s", m.Schema, m.Host, m.Port)
}
