// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package artnetout

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Haba1234/go-artnet"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/dmxsender/internal/config"
	"github.com/Thermoquad/dmxsender/internal/logger"
	"github.com/Thermoquad/dmxsender/pkg/dmx"
)

type fakeSender struct {
	mu      sync.Mutex
	started bool
	stopped bool
	sent    [][512]byte
	addrs   []artnet.Address
}

func (f *fakeSender) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeSender) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeSender) SendDMXToAddress(data [512]byte, address artnet.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	f.addrs = append(f.addrs, address)
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testLogger(t *testing.T) *logger.Log {
	t.Helper()
	log, err := logger.NewLogger(config.LogConf{Level: "error", NoColor: true})
	require.NoError(t, err)
	return log
}

func TestMirror_ForwardsFrames(t *testing.T) {
	fake := &fakeSender{}
	m := newMirror(testLogger(t), fake, artnet.Address{Net: 1, SubUni: 2})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	f := &dmx.Frame{Len: 4}
	f.Slots[1], f.Slots[2], f.Slots[3] = 10, 20, 30
	m.Send(f)

	require.Eventually(t, func() bool { return fake.count() == 1 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.True(t, fake.started)
	require.True(t, fake.stopped)
	require.Equal(t, artnet.Address{Net: 1, SubUni: 2}, fake.addrs[0])
	require.Equal(t, byte(10), fake.sent[0][0])
	require.Equal(t, byte(30), fake.sent[0][2])
	require.Equal(t, byte(0), fake.sent[0][3])
	require.Equal(t, uint64(1), m.Sent())
}

func TestMirror_SendNeverBlocks(t *testing.T) {
	m := newMirror(testLogger(t), &fakeSender{}, artnet.Address{})

	for i := 0; i < 10; i++ {
		m.Send(&dmx.Frame{Len: 2, Slots: [dmx.SlotCount]byte{0, byte(i)}})
	}
	require.Equal(t, uint64(9), m.Dropped())

	latest := <-m.frames
	require.Equal(t, byte(9), latest[0])
}

func TestFindIP(t *testing.T) {
	_, subnet, err := net.ParseCIDR("2.0.0.0/8")
	require.NoError(t, err)

	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("::1"), Mask: net.CIDRMask(128, 128)},
		&net.IPNet{IP: net.ParseIP("192.168.1.5"), Mask: net.CIDRMask(24, 32)},
		&net.IPNet{IP: net.ParseIP("2.1.2.3"), Mask: net.CIDRMask(8, 32)},
	}
	require.Equal(t, "2.1.2.3", findIP(addrs, subnet).String())
	require.Nil(t, findIP(addrs[:2], subnet))
}

func TestLocalIP_Configured(t *testing.T) {
	ip, err := localIP(config.ArtNetConf{IP: "10.0.0.7"})
	require.NoError(t, err)
	require.Equal(t, "10.0.0.7", ip.String())

	_, err = localIP(config.ArtNetConf{IP: "nope"})
	require.Error(t, err)
}
