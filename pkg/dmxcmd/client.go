// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmxcmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrUnexpectedResponse = errors.New("unexpected response")
	ErrResetRejected      = errors.New("reset rejected")
	ErrTimeout            = errors.New("timed out waiting for response")
)

// DefaultResponseTimeout bounds how long the client waits for a response.
const DefaultResponseTimeout = 2 * time.Second

// Client is the host side of the command protocol. It writes commands to the
// link and reads back exactly the number of response bytes each one defines.
// A Client is not safe for concurrent use.
//
// Reads happen on a goroutine started with the first response, so the
// response timeout holds on links whose Read blocks. Create one Client per
// link; the goroutine exits when the link's Read fails.
type Client struct {
	rw      io.ReadWriter
	timeout time.Duration

	startReader sync.Once
	chunks      chan chunk
	pending     []byte
	readErr     error
}

// chunk is one Read result from the reader goroutine.
type chunk struct {
	data []byte
	err  error
}

// NewClient creates a client over rw. Reads that return no data and no error
// (serial read timeouts) are retried until the response timeout elapses.
func NewClient(rw io.ReadWriter) *Client {
	return &Client{
		rw:      rw,
		timeout: DefaultResponseTimeout,
		chunks:  make(chan chunk, 16),
	}
}

// SetTimeout changes the response timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Do sends a command and returns its response, checking the fixed bytes
// against the opcode table.
func (c *Client) Do(cmd Command) ([]byte, error) {
	spec := cmd.Spec()
	if _, err := c.rw.Write(cmd.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", spec.Name, err)
	}
	if spec.ResponseLen == 0 {
		return nil, nil
	}

	resp := make([]byte, spec.ResponseLen)
	if err := c.readFull(resp); err != nil {
		return nil, fmt.Errorf("%s: %w", spec.Name, err)
	}
	if !bytes.HasPrefix(resp, spec.Response) {
		return resp, fmt.Errorf("%s: %w: % X", spec.Name, ErrUnexpectedResponse, resp)
	}
	return resp, nil
}

// reader forwards everything read from the link until Read fails.
func (c *Client) reader() {
	buf := make([]byte, 64)
	for {
		n, err := c.rw.Read(buf)
		if n > 0 {
			c.chunks <- chunk{data: append([]byte(nil), buf[:n]...)}
		}
		if err != nil {
			c.chunks <- chunk{err: err}
			return
		}
		if n == 0 {
			// Brief pause before retry on an empty read (serial read timeout)
			time.Sleep(time.Millisecond)
		}
	}
}

// readFull fills buf from the link, or fails with ErrTimeout once the
// response timeout elapses. Bytes past buf are kept for the next response.
func (c *Client) readFull(buf []byte) error {
	c.startReader.Do(func() { go c.reader() })

	got := copy(buf, c.pending)
	c.pending = c.pending[got:]

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for got < len(buf) {
		if c.readErr != nil {
			return c.readErr
		}
		select {
		case ch := <-c.chunks:
			if ch.err != nil {
				c.readErr = ch.err
				continue
			}
			n := copy(buf[got:], ch.data)
			got += n
			c.pending = append(c.pending, ch.data[n:]...)
		case <-timer.C:
			return ErrTimeout
		}
	}
	return nil
}

func (c *Client) send(op Opcode, params ...byte) ([]byte, error) {
	cmd, err := NewCommand(op, params...)
	if err != nil {
		return nil, err
	}
	return c.Do(cmd)
}

// Version sends VERSION_REQUEST and returns the full response.
func (c *Client) Version() ([]byte, error) {
	resp, err := c.send(OpVersionRequest)
	if err != nil {
		return resp, err
	}
	if !bytes.Equal(resp, versionResponse[:]) {
		return resp, fmt.Errorf("VERSION_REQUEST: %w: % X", ErrUnexpectedResponse, resp)
	}
	return resp, nil
}

// NoOperation sends NO_OPERATION.
func (c *Client) NoOperation() error {
	_, err := c.send(OpNoOperation)
	return err
}

// Reset sends NO_OPERATION followed by RESET.
func (c *Client) Reset() error {
	if err := c.NoOperation(); err != nil {
		return err
	}
	resp, err := c.send(OpReset)
	if err != nil {
		return err
	}
	switch resp[0] {
	case RespResetOK:
		return nil
	case RespResetFail:
		return ErrResetRejected
	}
	return fmt.Errorf("RESET: %w: % X", ErrUnexpectedResponse, resp)
}

// FlashUpdate sends FLASH_UPDATE.
func (c *Client) FlashUpdate() error {
	_, err := c.send(OpFlashUpdate)
	return err
}

// SetStartCode sends SET_TX_START_CODE.
func (c *Client) SetStartCode(code byte) error {
	_, err := c.Do(NewSetStartCode(code))
	return err
}

// SetTransmit turns the transmitter on or off.
func (c *Client) SetTransmit(on bool) error {
	_, err := c.Do(NewTransmit(on))
	return err
}

// TransmitStatus sends CHECK_TX_STATUS.
func (c *Client) TransmitStatus() (bool, error) {
	resp, err := c.send(OpCheckTxStatus)
	if err != nil {
		return false, err
	}
	switch resp[0] {
	case RespTxOn:
		return true, nil
	case RespTxOff:
		return false, nil
	}
	return false, fmt.Errorf("CHECK_TX_STATUS: %w: % X", ErrUnexpectedResponse, resp)
}

// SetBlackout turns blackout on or off.
func (c *Client) SetBlackout(on bool) error {
	_, err := c.Do(NewBlackout(on))
	return err
}

// SetChannel sets channel ch (1..512) to v.
func (c *Client) SetChannel(ch int, v byte) error {
	cmd, err := NewSetChannel(ch, v)
	if err != nil {
		return err
	}
	_, err = c.Do(cmd)
	return err
}

// Channel reads back channel ch (1..512).
func (c *Client) Channel(ch int) (byte, error) {
	cmd, err := NewReadChannel(ch)
	if err != nil {
		return 0, err
	}
	resp, err := c.Do(cmd)
	if err != nil {
		return 0, err
	}
	return resp[1], nil
}

// SetLastChannel selects the last transmitted channel (1..512).
func (c *Client) SetLastChannel(n int) error {
	cmd, err := NewSetLastChannel(n)
	if err != nil {
		return err
	}
	_, err = c.Do(cmd)
	return err
}

// SetUserMemory writes one byte of user memory (address 0..511).
func (c *Client) SetUserMemory(addr int, v byte) error {
	cmd, err := NewSetUserMemory(addr, v)
	if err != nil {
		return err
	}
	_, err = c.Do(cmd)
	return err
}

// UserMemory reads one byte of user memory (address 0..511).
func (c *Client) UserMemory(addr int) (byte, error) {
	cmd, err := NewReadUserMemory(addr)
	if err != nil {
		return 0, err
	}
	resp, err := c.Do(cmd)
	if err != nil {
		return 0, err
	}
	return resp[1], nil
}
