// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mqttbridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/dmxsender/internal/config"
	"github.com/Thermoquad/dmxsender/internal/logger"
	"github.com/Thermoquad/dmxsender/pkg/dmx"
)

type universeSetter struct {
	u   *dmx.Universe
	err error
}

func (s *universeSetter) SetChannel(ch int, v byte) error {
	if s.err != nil {
		return s.err
	}
	return s.u.SetChannel(ch, v)
}

func newTestBridge(t *testing.T, target ChannelSetter) *Bridge {
	t.Helper()
	log, err := logger.NewLogger(config.LogConf{Level: "error", NoColor: true})
	require.NoError(t, err)
	return New(log, config.Default().MQTT, target)
}

func TestHandlePayload(t *testing.T) {
	u := dmx.NewUniverse()
	b := newTestBridge(t, &universeSetter{u: u})

	err := b.HandlePayload([]byte(`[
		{"channel": 1, "value": 255},
		{"channel": 512, "value": 7},
		{"channel": 0, "value": 1},
		{"channel": 513, "value": 1},
		{"channel": 3, "value": 256}
	]`))
	require.NoError(t, err)

	require.Equal(t, byte(255), u.Slot(1))
	require.Equal(t, byte(7), u.Slot(512))
	require.Equal(t, byte(0), u.Slot(3))

	applied, rejected := b.Counts()
	require.Equal(t, 2, applied)
	require.Equal(t, 3, rejected)
}

func TestHandlePayload_Errors(t *testing.T) {
	b := newTestBridge(t, &universeSetter{u: dmx.NewUniverse()})
	require.Error(t, b.HandlePayload([]byte(`{"channel": 1}`)))

	failing := newTestBridge(t, &universeSetter{err: errors.New("link down")})
	require.ErrorContains(t, failing.HandlePayload([]byte(`[{"channel": 2, "value": 1}]`)), "link down")
}

func TestStatusOf(t *testing.T) {
	u := dmx.NewUniverse()
	require.NoError(t, u.SetLastChannel(3))
	require.NoError(t, u.SetChannel(2, 9))
	u.SetStartCode(0xCC)
	u.SetBlackout(true)

	s := StatusOf(u)
	require.True(t, s.Transmit)
	require.True(t, s.Blackout)
	require.Equal(t, byte(0xCC), s.StartCode)
	require.Equal(t, uint16(3), s.LastChannel)
	require.Equal(t, []int{0, 9, 0}, s.Channels)
}

func TestClientID(t *testing.T) {
	require.Equal(t, "fixed", ClientID(config.MQTTConf{ClientID: "fixed"}))
	require.Contains(t, ClientID(config.MQTTConf{}), "dmxsender-")
}

func TestPublishStatus_NotConnected(t *testing.T) {
	b := newTestBridge(t, nil)
	require.Error(t, b.PublishStatus(context.Background(), Status{}))
}
