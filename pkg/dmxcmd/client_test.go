// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmxcmd

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/dmxsender/pkg/dmx"
)

// newPipeClient serves a handler on one end of an in-memory pipe and returns
// a client on the other.
func newPipeClient(t *testing.T) (*Client, *Handler, *dmx.Universe) {
	t.Helper()
	h, u := newTestHandler(t)
	host, device := net.Pipe()

	done := make(chan error, 1)
	go func() { done <- h.Serve(context.Background(), device) }()

	t.Cleanup(func() {
		host.Close()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Error("handler did not stop")
		}
		device.Close()
	})
	return NewClient(host), h, u
}

func TestClient_RoundTrip(t *testing.T) {
	c, h, u := newPipeClient(t)

	v, err := c.Version()
	require.NoError(t, err)
	require.Equal(t, VersionResponse(), v)

	require.NoError(t, c.SetStartCode(0xCC))
	require.NoError(t, c.SetChannel(1, 10))
	require.NoError(t, c.SetChannel(512, 20))
	require.NoError(t, c.SetLastChannel(300))
	require.NoError(t, c.SetBlackout(true))

	got, err := c.Channel(512)
	require.NoError(t, err)
	require.Equal(t, byte(20), got)

	require.NoError(t, c.SetTransmit(false))
	on, err := c.TransmitStatus()
	require.NoError(t, err)
	require.False(t, on)

	require.NoError(t, c.SetUserMemory(300, 0x5A))
	mem, err := c.UserMemory(300)
	require.NoError(t, err)
	require.Equal(t, byte(0x5A), mem)

	require.Equal(t, byte(0xCC), u.StartCode())
	require.Equal(t, byte(10), u.Slot(1))
	require.Equal(t, uint16(300), u.LastChannel())
	require.True(t, u.Blackout())
	require.Equal(t, byte(0x5A), h.UserMemory()[300])
}

func TestClient_Reset(t *testing.T) {
	c, _, u := newPipeClient(t)

	require.NoError(t, c.SetChannel(5, 99))
	require.NoError(t, c.Reset())
	require.Equal(t, byte(0), u.Slot(5))
	require.False(t, u.TransmitEnabled())
}

// script answers with canned bytes regardless of what is written.
type script struct {
	bytes.Buffer
	written []byte
}

func (s *script) Write(p []byte) (int, error) {
	s.written = append(s.written, p...)
	return len(p), nil
}

func TestClient_ResetRejected(t *testing.T) {
	s := &script{}
	s.Buffer.Write([]byte{RespNoOperation, RespResetFail})
	c := NewClient(s)

	require.ErrorIs(t, c.Reset(), ErrResetRejected)
	require.Equal(t, []byte{0x26, 0x22}, s.written)
}

func TestClient_UnexpectedResponse(t *testing.T) {
	s := &script{}
	s.Buffer.Write([]byte{0xEE})
	c := NewClient(s)

	require.ErrorIs(t, c.SetBlackout(true), ErrUnexpectedResponse)
}

// silent never answers; reads time out with no data.
type silent struct{}

func (silent) Read([]byte) (int, error)    { return 0, nil }
func (silent) Write(p []byte) (int, error) { return len(p), nil }

// newMuteDevice returns the host end of a pipe whose device end accepts
// writes and never answers. Reads on the host end block.
func newMuteDevice(t *testing.T) net.Conn {
	t.Helper()
	host, device := net.Pipe()
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := device.Read(buf); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() {
		host.Close()
		device.Close()
	})
	return host
}

func TestClient_Timeout(t *testing.T) {
	tests := []struct {
		name string
		link func(t *testing.T) io.ReadWriter
	}{
		{name: "empty reads", link: func(*testing.T) io.ReadWriter { return silent{} }},
		{name: "blocking reads", link: func(t *testing.T) io.ReadWriter { return newMuteDevice(t) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.link(t))
			c.SetTimeout(50 * time.Millisecond)

			done := make(chan error, 1)
			go func() { done <- c.NoOperation() }()
			select {
			case err := <-done:
				require.ErrorIs(t, err, ErrTimeout)
			case <-time.After(2 * time.Second):
				t.Fatal("NoOperation did not time out")
			}

			start := time.Now()
			_, err := c.Version()
			require.ErrorIs(t, err, ErrTimeout)
			require.Less(t, time.Since(start), time.Second)

			// Commands without a response do not wait.
			require.NoError(t, c.SetChannel(1, 1))
		})
	}
}

// A response that arrives after a timeout is still delivered in order.
func TestClient_LateResponse(t *testing.T) {
	host, device := net.Pipe()
	t.Cleanup(func() {
		host.Close()
		device.Close()
	})
	c := NewClient(host)
	c.SetTimeout(20 * time.Millisecond)

	go func() {
		buf := make([]byte, 1)
		device.Read(buf)
		time.Sleep(100 * time.Millisecond)
		device.Write([]byte{RespTxOn})
	}()

	_, err := c.TransmitStatus()
	require.ErrorIs(t, err, ErrTimeout)

	c.SetTimeout(time.Second)
	resp := make([]byte, 1)
	require.NoError(t, c.readFull(resp))
	require.Equal(t, []byte{RespTxOn}, resp)
}

func TestClient_RangeErrors(t *testing.T) {
	c := NewClient(silent{})
	require.Error(t, c.SetChannel(0, 1))
	require.Error(t, c.SetLastChannel(513))
	_, err := c.Channel(600)
	require.Error(t, err)
}
