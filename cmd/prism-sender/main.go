// Command prism-sender captures raw video frames, compresses them, and
// transmits them as fragmented, selectively-retransmitted UDP datagrams to
// a single receiver (spec §6 "CLI (sender)").
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/prism-video/capture"
	"github.com/opd-ai/prism-video/codec"
	"github.com/opd-ai/prism-video/protocol"
	"github.com/opd-ai/prism-video/ring"
	"github.com/opd-ai/prism-video/sender"
	"github.com/opd-ai/prism-video/transport"
)

// ringCapacity is the frame ring's default slot count (spec §4.2 "default
// 500"): generous enough that several hundred milliseconds of capture-side
// scheduling jitter never stalls the capture thread.
const ringCapacity = 500

type config struct {
	port          int
	width         int
	height        int
	fps           int
	patternFrames int
}

func parseFlags(args []string) (*config, error) {
	fs := flag.NewFlagSet("prism-sender", flag.ContinueOnError)
	width := fs.Int("w", 0, "frame width (required)")
	height := fs.Int("h", 0, "frame height (required)")
	fps := fs.Int("r", 0, "frames per second (required)")
	patternFrames := fs.Int("pattern-frames", -1, "capture from a synthetic test pattern for N frames (<0: unbounded); use when no camera source is wired")

	// The positional comes first (<port> -w ...), and flag parsing stops at
	// the first non-flag argument, so split it off before parsing the flags.
	split := 0
	for split < len(args) && !strings.HasPrefix(args[split], "-") {
		split++
	}
	if err := fs.Parse(args[split:]); err != nil {
		return nil, err
	}
	positional := append(append([]string{}, args[:split]...), fs.Args()...)
	if len(positional) != 1 {
		return nil, fmt.Errorf("usage: prism-sender <port> -w <width> -h <height> -r <fps>")
	}
	port, err := strconv.Atoi(positional[0])
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", positional[0], err)
	}
	if *width == 0 || *height == 0 || *fps == 0 {
		return nil, fmt.Errorf("-w, -h, and -r are all required")
	}

	return &config{port: port, width: *width, height: *height, fps: *fps, patternFrames: *patternFrames}, nil
}

func run(cfg *config) error {
	if err := capture.ValidateResolutionAndFPS(cfg.width, cfg.height, cfg.fps); err != nil {
		return err
	}

	conn, err := transport.Bind(fmt.Sprintf(":%d", cfg.port))
	if err != nil {
		return fmt.Errorf("bind :%d: %w", cfg.port, err)
	}
	defer conn.Close()

	logrus.WithFields(logrus.Fields{
		"function": "run",
		"addr":     conn.LocalAddr().String(),
		"width":    cfg.width,
		"height":   cfg.height,
		"fps":      cfg.fps,
	}).Info("sender listening")

	targetBitrate, err := sender.Handshake(conn, uint16(cfg.width), uint16(cfg.height), uint16(cfg.fps))
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	src := capture.NewPatternSource(cfg.width, cfg.height, cfg.patternFrames)
	defer src.Close()

	frames := ring.New(ringCapacity, capture.YUV420Size(cfg.width, cfg.height))
	defer frames.Close()

	enc := codec.NewReferenceCodec(targetBitrate)
	tr := sender.NewTransport(enc, protocol.MaxPayloadSize(protocol.DefaultMTU))
	loop := sender.NewLoop(tr, frames, conn, cfg.fps, protocol.DefaultMTU, targetBitrate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logrus.Info("received interrupt, shutting down")
		cancel()
	}()

	pumpErr := make(chan error, 1)
	go func() { pumpErr <- capture.Pump(ctx, src, frames) }()

	loopErr := loop.Run(ctx)
	cancel()
	<-pumpErr

	return loopErr
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
