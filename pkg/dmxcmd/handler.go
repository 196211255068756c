// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmxcmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/Thermoquad/dmxsender/pkg/dmx"
)

// Logger is the subset of a leveled logger the handler writes to.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}

// Handler is the device side of the command protocol. It decodes commands
// from the command link and applies them to the shared universe. All
// methods except Statistics must be called from the command goroutine.
type Handler struct {
	universe *dmx.Universe
	store    FlashStore
	log      Logger
	stats    *Statistics
	decoder  *Decoder

	memory [UserMemorySize]byte

	// Opcode of the last successfully decoded command, for the RESET guard.
	last     Opcode
	haveLast bool
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithStore sets the flash store used by FLASH_UPDATE.
func WithStore(s FlashStore) HandlerOption {
	return func(h *Handler) { h.store = s }
}

// WithLogger sets the logger.
func WithLogger(l Logger) HandlerOption {
	return func(h *Handler) { h.log = l }
}

// NewHandler creates a handler for u. If a flash store is configured and
// holds an image, user memory, start code and last channel are restored
// from it.
func NewHandler(u *dmx.Universe, opts ...HandlerOption) (*Handler, error) {
	h := &Handler{
		universe: u,
		log:      nopLogger{},
		stats:    NewStatistics(),
		decoder:  NewDecoder(),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.store == nil {
		return h, nil
	}
	img, err := h.store.Load()
	if err != nil {
		return nil, err
	}
	if img == nil {
		return h, nil
	}
	if err := u.SetLastChannel(img.LastChannel); err != nil {
		return nil, fmt.Errorf("flash image: %w", err)
	}
	h.memory = img.UserMemory
	u.SetStartCode(img.StartCode)
	h.log.Infof("Restored flash image saved %s", img.SavedAt.Format(time.RFC3339))
	return h, nil
}

// Statistics returns the handler's counters.
func (h *Handler) Statistics() *Statistics {
	return h.stats
}

// UserMemory returns a copy of user memory.
func (h *Handler) UserMemory() [UserMemorySize]byte {
	return h.memory
}

type executor func(h *Handler, p [2]byte) []byte

var executors = map[Opcode]executor{
	OpFlashUpdate:        (*Handler).flashUpdate,
	OpReset:              (*Handler).reset,
	OpVersionRequest:     versionRequest,
	OpNoOperation:        respond(RespNoOperation),
	OpSetUserMemoryLow:   setUserMemory(0),
	OpSetUserMemoryHigh:  setUserMemory(HighRangeOffset),
	OpReadUserMemoryLow:  readUserMemory(RespReadUserMemoryLow, 0),
	OpReadUserMemoryHigh: readUserMemory(RespReadUserMemoryHigh, HighRangeOffset),
	OpSetTxStartCode:     setStartCode,
	OpTurnTxOn:           setTransmit(true),
	OpTurnTxOff:          setTransmit(false),
	OpSetChannelLow:      setChannel(0),
	OpSetChannelHigh:     setChannel(HighRangeOffset),
	OpTurnOnBlackout:     setBlackout(true, RespBlackoutOn),
	OpTurnOffBlackout:    setBlackout(false, RespBlackoutOff),
	OpSetLastTxCodeLow:   setLastChannel(0),
	OpSetLastTxCodeHigh:  setLastChannel(HighRangeOffset),
	OpCheckTxStatus:      checkTxStatus,
	OpReadTxChannelLow:   readChannel(RespReadTxChannelLow, 0),
	OpReadTxChannelHigh:  readChannel(RespReadTxChannelHigh, HighRangeOffset),
}

// Execute applies a decoded command and returns the response bytes (nil
// when the command has no response).
func (h *Handler) Execute(c Command) []byte {
	exec, ok := executors[c.Opcode]
	if !ok {
		h.stats.unknown.Add(1)
		return nil
	}
	resp := exec(h, c.Params)
	h.last = c.Opcode
	h.haveLast = true
	h.stats.command(c.Opcode, len(resp))
	return resp
}

// HandleByte feeds one byte from the command link through the decoder and
// executes the command it completes.
func (h *Handler) HandleByte(b byte) []byte {
	cmd, err := h.decoder.DecodeByte(b)
	if err != nil {
		h.stats.unknown.Add(1)
		h.log.Debugf("Ignoring %v", err)
		return nil
	}
	if cmd == nil {
		return nil
	}
	resp := h.Execute(*cmd)
	h.log.Debugf("%s -> % X", FormatCommand(*cmd), resp)
	return resp
}

// Serve runs the command loop over rw until ctx is cancelled or the link is
// closed. A read returning no bytes and no error (a serial read timeout) is
// retried. io.EOF and a closed link end the loop without error.
func (h *Handler) Serve(ctx context.Context, rw io.ReadWriter) error {
	buf := make([]byte, 64)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := rw.Read(buf)
		for _, b := range buf[:n] {
			resp := h.HandleByte(b)
			if len(resp) == 0 {
				continue
			}
			if _, werr := rw.Write(resp); werr != nil {
				if linkClosed(werr) || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("write error: %w", werr)
			}
		}

		if err != nil {
			if linkClosed(err) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
	}
}

func linkClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrClosed)
}

func respond(b byte) executor {
	return func(*Handler, [2]byte) []byte { return []byte{b} }
}

func versionRequest(*Handler, [2]byte) []byte {
	return VersionResponse()
}

// reset restores power-on defaults, but only directly after NO_OPERATION.
// User memory is not affected.
func (h *Handler) reset([2]byte) []byte {
	if !h.haveLast || h.last != OpNoOperation {
		h.stats.resetsRejected.Add(1)
		h.log.Warnf("RESET rejected: previous command was not NO_OPERATION")
		return []byte{RespResetFail}
	}
	h.universe.Reset()
	h.stats.resetsAccepted.Add(1)
	h.log.Infof("Reset")
	return []byte{RespResetOK}
}

func (h *Handler) flashUpdate([2]byte) []byte {
	if h.store == nil {
		h.log.Warnf("FLASH_UPDATE ignored: no flash store configured")
		return nil
	}
	img := &FlashImage{
		Version:     FlashImageVersion,
		UserMemory:  h.memory,
		StartCode:   h.universe.StartCode(),
		LastChannel: h.universe.LastChannel(),
		SavedAt:     time.Now(),
	}
	if err := h.store.Save(img); err != nil {
		h.stats.flashErrors.Add(1)
		h.log.Warnf("FLASH_UPDATE failed: %v", err)
		return nil
	}
	h.log.Infof("Flash image saved")
	return nil
}

func setUserMemory(offset int) executor {
	return func(h *Handler, p [2]byte) []byte {
		h.memory[offset+int(p[0])] = p[1]
		return nil
	}
}

func readUserMemory(resp byte, offset int) executor {
	return func(h *Handler, p [2]byte) []byte {
		return []byte{resp, h.memory[offset+int(p[0])]}
	}
}

func setStartCode(h *Handler, p [2]byte) []byte {
	h.universe.SetStartCode(p[0])
	return []byte{RespSetTxStartCode}
}

func setTransmit(on bool) executor {
	return func(h *Handler, _ [2]byte) []byte {
		h.universe.SetTransmit(on)
		return nil
	}
}

func setChannel(offset int) executor {
	return func(h *Handler, p [2]byte) []byte {
		h.universe.SetSlot(1+offset+int(p[0]), p[1])
		return nil
	}
}

func readChannel(resp byte, offset int) executor {
	return func(h *Handler, p [2]byte) []byte {
		return []byte{resp, h.universe.Slot(1 + offset + int(p[0]))}
	}
}

func setBlackout(on bool, resp byte) executor {
	return func(h *Handler, _ [2]byte) []byte {
		h.universe.SetBlackout(on)
		return []byte{resp}
	}
}

func setLastChannel(offset int) executor {
	return func(h *Handler, p [2]byte) []byte {
		// 1..512 by construction
		_ = h.universe.SetLastChannel(uint16(1 + offset + int(p[0])))
		return []byte{RespSetLastTxCode}
	}
}

func checkTxStatus(h *Handler, _ [2]byte) []byte {
	if h.universe.TransmitEnabled() {
		return []byte{RespTxOn}
	}
	return []byte{RespTxOff}
}
