// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package artnetout mirrors decoded DMX frames to an Art-Net universe.
package artnetout

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync/atomic"

	"github.com/Haba1234/go-artnet"

	"github.com/Thermoquad/dmxsender/internal/config"
	"github.com/Thermoquad/dmxsender/internal/logger"
	"github.com/Thermoquad/dmxsender/pkg/dmx"
)

// sender is the part of artnet.Controller the mirror uses.
type sender interface {
	Start() error
	Stop()
	SendDMXToAddress(data [512]byte, address artnet.Address)
}

// Mirror forwards frames to an Art-Net address. Send never blocks: if the
// previous frame has not been handed to the controller yet it is replaced.
type Mirror struct {
	log     *logger.Log
	sender  sender
	address artnet.Address
	frames  chan [512]byte

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewMirror creates a mirror from the [artnet] configuration.
func NewMirror(log *logger.Log, cfg config.ArtNetConf) (*Mirror, error) {
	ip, err := localIP(cfg)
	if err != nil {
		return nil, err
	}

	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hostname: %w", err)
	}
	host = strings.ToLower(strings.Split(host, ".")[0])

	log = log.Module("art-net")
	log.Infof("Using Art-Net IP %s and hostname %s", ip, host)

	controller := artnet.NewController(host, ip, artnet.NewDefaultLogger("info"), artnet.MaxFPS(cfg.MaxFPS))
	return newMirror(log, controller, artnet.Address{Net: cfg.Net, SubUni: cfg.SubUni}), nil
}

func newMirror(log *logger.Log, s sender, address artnet.Address) *Mirror {
	return &Mirror{
		log:     log,
		sender:  s,
		address: address,
		frames:  make(chan [512]byte, 1),
	}
}

// Run starts the controller and forwards frames until ctx is done.
func (m *Mirror) Run(ctx context.Context) error {
	if err := m.sender.Start(); err != nil {
		return fmt.Errorf("failed to start Art-Net controller: %w", err)
	}
	defer m.sender.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-m.frames:
			m.sender.SendDMXToAddress(data, m.address)
			m.sent.Add(1)
		}
	}
}

// Send queues the channel slots of a frame. Slots past the frame's last
// channel are sent as zero.
func (m *Mirror) Send(f *dmx.Frame) {
	var data [512]byte
	copy(data[:], f.Channels())

	for {
		select {
		case m.frames <- data:
			return
		default:
		}
		select {
		case <-m.frames:
			m.dropped.Add(1)
		default:
		}
	}
}

// Sent returns the number of frames handed to the controller.
func (m *Mirror) Sent() uint64 {
	return m.sent.Load()
}

// Dropped returns the number of frames replaced before they were sent.
func (m *Mirror) Dropped() uint64 {
	return m.dropped.Load()
}

// localIP returns the configured interface address, or the first local IPv4
// address inside the configured subnet.
func localIP(cfg config.ArtNetConf) (net.IP, error) {
	if cfg.IP != "" {
		ip := net.ParseIP(cfg.IP)
		if ip == nil {
			return nil, fmt.Errorf("invalid Art-Net IP %q", cfg.IP)
		}
		return ip, nil
	}

	_, subnet, err := net.ParseCIDR(cfg.Subnet)
	if err != nil {
		return nil, fmt.Errorf("invalid Art-Net subnet %q: %w", cfg.Subnet, err)
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("error getting ips: %w", err)
	}
	if ip := findIP(addrs, subnet); ip != nil {
		return ip, nil
	}
	return nil, errors.New("no local interface in the Art-Net subnet " + cfg.Subnet)
}

func findIP(addrs []net.Addr, subnet *net.IPNet) net.IP {
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.To4() == nil {
			continue
		}
		if subnet.Contains(ipnet.IP) {
			return ipnet.IP
		}
	}
	return nil
}
