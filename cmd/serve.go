// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/dmxsender/internal/artnetout"
	"github.com/Thermoquad/dmxsender/internal/config"
	"github.com/Thermoquad/dmxsender/internal/mqttbridge"
	"github.com/Thermoquad/dmxsender/pkg/dmx"
	"github.com/Thermoquad/dmxsender/pkg/dmxcmd"
)

var (
	serveFlash     string
	serveReference bool
	serveStats     time.Duration
	serveArtNet    bool
	serveMQTT      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the DMX transmitter on the command link",
	Long: `Run a simulated DMX512 transmitter.

The transmitter answers protocol commands on the command link (serial port or
WebSocket) and generates the DMX512 waveform on a virtual timer paced against
wall time. Generated frames are decoded from the waveform and can be mirrored
to an Art-Net node (--artnet) and published as status snapshots over MQTT
(--mqtt).

FLASH_UPDATE saves user memory, start code and last channel to the file given
by --flash; the file is loaded on start.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveFlash, "flash", "", "Flash image file (overrides [flash] path)")
	serveCmd.Flags().BoolVar(&serveReference, "reference-timing", false, "Use the reference tick counts instead of deriving them from the tick period")
	serveCmd.Flags().DurationVar(&serveStats, "stats", 10*time.Second, "Log statistics at this interval (0 disables)")
	serveCmd.Flags().BoolVar(&serveArtNet, "artnet", false, "Mirror frames to Art-Net (overrides [artnet] enabled)")
	serveCmd.Flags().BoolVar(&serveMQTT, "mqtt", false, "Publish status over MQTT (overrides [mqtt] enabled)")
}

// transmitter is the simulated device: universe, generator and the sinks
// fed from its waveform.
type transmitter struct {
	universe *dmx.Universe
	timing   dmx.Timing
	clock    *dmx.Clock
	pacer    *dmx.Pacer
	mirror   *artnetout.Mirror

	frames    atomic.Uint64
	truncated atomic.Uint64
}

func newTransmitter(cfg config.GeneratorConf, reference bool) (*transmitter, error) {
	tick := cfg.Tick.Duration
	timing := dmx.ReferenceTiming
	if !reference {
		var err error
		if timing, err = dmx.TimingFor(tick); err != nil {
			return nil, err
		}
	}
	if err := timing.Validate(); err != nil {
		return nil, err
	}

	t := &transmitter{
		universe: dmx.NewUniverse(),
		timing:   timing,
		clock:    dmx.NewClock(),
	}

	decoder := dmx.NewFrameDecoder(timing)
	capture := dmx.NewCapture(t.clock, nil, func(c dmx.Cell) {
		f, err := decoder.Decode(c)
		if err != nil {
			t.truncated.Add(1)
			return
		}
		if f == nil {
			return
		}
		t.frames.Add(1)
		if t.mirror != nil {
			t.mirror.Send(f)
		}
	})
	gen := dmx.NewGenerator(t.universe, capture, capture, timing)
	t.clock.OnOverflow(gen.Tick)
	t.pacer = dmx.NewPacer(t.clock, tick, cfg.Interval.Duration)
	return t, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	log := appLog.Module("serve")
	cfg := appConfig

	if cmd.Flags().Changed("flash") {
		cfg.Flash.Path = serveFlash
	}
	if cmd.Flags().Changed("reference-timing") {
		cfg.Generator.Reference = serveReference
	}
	if cmd.Flags().Changed("artnet") {
		cfg.ArtNet.Enabled = serveArtNet
	}
	if cmd.Flags().Changed("mqtt") {
		cfg.MQTT.Enabled = serveMQTT
	}

	tx, err := newTransmitter(cfg.Generator, cfg.Generator.Reference)
	if err != nil {
		return err
	}
	if err := tx.timing.Check(cfg.Generator.Tick.Duration); err != nil {
		log.Warnf("Waveform is outside DMX512 tolerances: %v", err)
	}
	log.Infof("Timing: break=%d mab=%d bit=%d stop=%d ticks of %s, full frame %d ticks",
		tx.timing.Break, tx.timing.MarkAfterBreak, tx.timing.Bit, tx.timing.StopBits,
		cfg.Generator.Tick.Duration, tx.timing.FrameTicks(dmx.DefaultLastChannel))

	opts := []dmxcmd.HandlerOption{dmxcmd.WithLogger(appLog.Module("handler"))}
	if cfg.Flash.Path != "" {
		opts = append(opts, dmxcmd.WithStore(dmxcmd.NewFileStore(cfg.Flash.Path)))
	}
	handler, err := dmxcmd.NewHandler(tx.universe, opts...)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Infof("Serving commands on %s", connInfo)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				log.Errorf("%s: %v", name, err)
				cancel()
			}
		}()
	}

	if cfg.ArtNet.Enabled {
		mirror, err := artnetout.NewMirror(appLog, cfg.ArtNet)
		if err != nil {
			return err
		}
		tx.mirror = mirror
		run("art-net", mirror.Run)
	}

	var bridge *mqttbridge.Bridge
	if cfg.MQTT.Enabled {
		bridge = mqttbridge.New(appLog, cfg.MQTT, nil)
		if err := bridge.Start(ctx); err != nil {
			return err
		}
		defer bridge.Stop()
	}

	run("pacer", tx.pacer.Run)
	run("handler", func(ctx context.Context) error {
		defer cancel()
		return handler.Serve(ctx, conn)
	})
	if serveStats > 0 {
		run("stats", func(ctx context.Context) error {
			tx.report(ctx, handler, bridge)
			return nil
		})
	}

	<-ctx.Done()
	// Unblocks the handler's read.
	conn.Close()
	wg.Wait()

	fmt.Print(handler.Statistics().String())
	log.Info("shutdown complete")
	return nil
}

// report logs counters and publishes status every serveStats.
func (t *transmitter) report(ctx context.Context, handler *dmxcmd.Handler, bridge *mqttbridge.Bridge) {
	log := appLog.Module("stats")
	ticker := time.NewTicker(serveStats)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap := handler.Statistics().Snapshot()
		log.Infof("frames=%d truncated=%d ticks=%d lagged=%d commands=%d unknown=%d",
			t.frames.Load(), t.truncated.Load(), t.pacer.Elapsed(), t.pacer.Lagged(),
			snap.Commands, snap.Unknown)
		if t.mirror != nil {
			log.Debugf("art-net sent=%d dropped=%d", t.mirror.Sent(), t.mirror.Dropped())
		}

		if bridge != nil {
			if err := bridge.PublishStatus(ctx, mqttbridge.StatusOf(t.universe)); err != nil {
				log.Warnf("status publish failed: %v", err)
			}
		}
	}
}
