// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mqttbridge connects the DMX sender to an MQTT broker: channel
// updates arrive as JSON on a topic, and status snapshots are published.
package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Thermoquad/dmxsender/internal/config"
	"github.com/Thermoquad/dmxsender/internal/logger"
	"github.com/Thermoquad/dmxsender/pkg/dmx"
)

// ChannelValue is one entry of a channel update payload.
type ChannelValue struct {
	Channel int `json:"channel"` // 1..512
	Value   int `json:"value"`   // 0..255
}

// Payload is the JSON body of a channel update message.
type Payload []ChannelValue

// Status is the JSON body published on the status topic.
type Status struct {
	Transmit    bool   `json:"transmit"`
	Blackout    bool   `json:"blackout"`
	StartCode   byte   `json:"start_code"`
	LastChannel uint16 `json:"last_channel"`
	Channels    []int  `json:"channels"`
}

// StatusOf builds a Status from a universe.
func StatusOf(u *dmx.Universe) Status {
	snap := u.Snapshot()
	last := int(u.LastChannel())
	channels := make([]int, last)
	for i := range channels {
		channels[i] = int(snap[i+1])
	}
	return Status{
		Transmit:    u.TransmitEnabled(),
		Blackout:    u.Blackout(),
		StartCode:   snap[0],
		LastChannel: uint16(last),
		Channels:    channels,
	}
}

// ChannelSetter applies a channel value. dmxcmd.Client implements it over
// the command link.
type ChannelSetter interface {
	SetChannel(ch int, v byte) error
}

// Bridge subscribes to channel updates and publishes status.
type Bridge struct {
	log    *logger.Log
	cfg    config.MQTTConf
	target ChannelSetter
	client mqtt.Client

	// target is not safe for concurrent use; paho runs handlers on its own
	// goroutines.
	mu sync.Mutex

	applied  int
	rejected int
}

// New creates a bridge applying updates to target. target may be nil for a
// publish-only bridge.
func New(log *logger.Log, cfg config.MQTTConf, target ChannelSetter) *Bridge {
	return &Bridge{
		log:    log.Module("mqtt"),
		cfg:    cfg,
		target: target,
	}
}

// ClientID returns the configured client ID, or one derived from the machine ID.
func ClientID(cfg config.MQTTConf) string {
	if cfg.ClientID != "" {
		return cfg.ClientID
	}
	id, err := machineid.ProtectedID("dmxsender")
	if err != nil {
		return fmt.Sprintf("dmxsender-%d", time.Now().UnixNano())
	}
	return "dmxsender-" + id[:12]
}

// Start connects to the broker and, if a target is set, subscribes to the
// channel topic.
func (b *Bridge) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(b.cfg.BrokerURL()).
		SetUsername(b.cfg.User).
		SetPassword(b.cfg.Password).
		SetClientID(ClientID(b.cfg)).
		SetOnConnectHandler(b.connectHandler).
		SetConnectionLostHandler(b.connectLostHandler).
		SetOrderMatters(true).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	b.client = mqtt.NewClient(opts)

	token := b.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("failed to connect to %s: %w", b.cfg.BrokerURL(), token.Error())
		}
	case <-ctx.Done():
		return errors.New("context canceled")
	}
	b.log.Infof("Connected to %s", b.cfg.BrokerURL())
	return nil
}

// Stop disconnects from the broker.
func (b *Bridge) Stop() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(500)
	}
}

// connectHandler (re)subscribes after every connect, since the session is clean.
func (b *Bridge) connectHandler(c mqtt.Client) {
	b.log.Info("client connected to server")
	if b.target == nil {
		return
	}
	token := c.Subscribe(b.cfg.Topic, b.cfg.Qos, b.messageHandler)
	go func() {
		token.Wait()
		if token.Error() != nil {
			b.log.Errorf("topic %s subscription error: %v", b.cfg.Topic, token.Error())
			return
		}
		b.log.Debugf("topic %s subscribed", b.cfg.Topic)
	}()
}

func (b *Bridge) connectLostHandler(_ mqtt.Client, err error) {
	b.log.Warnf("server connection lost: %v", err)
}

func (b *Bridge) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	b.log.Debugf("received %d bytes on %s", len(msg.Payload()), msg.Topic())
	if err := b.HandlePayload(msg.Payload()); err != nil {
		b.log.Errorf("message on %s: %v", msg.Topic(), err)
	}
}

// HandlePayload parses a channel update and applies every valid entry.
// Entries out of range are logged and skipped; an error is returned only
// for unparsable JSON or a failed write to the target.
func (b *Bridge) HandlePayload(data []byte) error {
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("message could not be parsed: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, cv := range payload {
		if cv.Channel < 1 || cv.Channel > dmx.MaxChannel || cv.Value < 0 || cv.Value > 0xFF {
			b.rejected++
			b.log.Warnf("skipping channel %d value %d: out of range", cv.Channel, cv.Value)
			continue
		}
		if err := b.target.SetChannel(cv.Channel, byte(cv.Value)); err != nil {
			return fmt.Errorf("channel %d: %w", cv.Channel, err)
		}
		b.applied++
	}
	return nil
}

// Counts returns how many entries were applied and rejected.
func (b *Bridge) Counts() (applied, rejected int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.applied, b.rejected
}

// PublishStatus publishes s on the status topic and waits for the broker.
func (b *Bridge) PublishStatus(ctx context.Context, s Status) error {
	if b.client == nil {
		return errors.New("not connected")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	token := b.client.Publish(b.cfg.StatusTopic, b.cfg.Qos, true, data)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
