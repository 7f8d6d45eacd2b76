// Command prism-receiver connects to a prism-sender, reassembles the
// fragmented frames it receives, decodes them, and optionally displays
// and/or persists them (spec §6 "CLI (receiver)").
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

	"github.com/opd-ai/prism-video/codec"
	"github.com/opd-ai/prism-video/preview"
	"github.com/opd-ai/prism-video/protocol"
	"github.com/opd-ai/prism-video/receiver"
	"github.com/opd-ai/prism-video/recorder"
	"github.com/opd-ai/prism-video/transport"
)

type config struct {
	host       string
	port       int
	cbrKbps    int
	lazy       int
	outputPath string
}

func parseFlags(args []string) (*config, error) {
	fs := flag.NewFlagSet("prism-receiver", flag.ContinueOnError)
	cbr := fs.Int("cbr", 0, "target bitrate in kbps to request from the sender (required)")
	lazy := fs.Int("lazy", 0, "0: decode+display, 1: decode only, 2: neither")
	output := fs.String("output", "", "optional YUV4MPEG2 output path")

	// The positionals come first (<host> <port> --cbr ...), and flag
	// parsing stops at the first non-flag argument, so split them off
	// before parsing the flags.
	split := 0
	for split < len(args) && !strings.HasPrefix(args[split], "-") {
		split++
	}
	if err := fs.Parse(args[split:]); err != nil {
		return nil, err
	}
	positional := append(append([]string{}, args[:split]...), fs.Args()...)
	if len(positional) != 2 {
		return nil, fmt.Errorf("usage: prism-receiver <host> <port> --cbr <kbps>")
	}
	if *cbr <= 0 {
		return nil, fmt.Errorf("--cbr is required and must be positive")
	}
	if *lazy < 0 || *lazy > 2 {
		return nil, fmt.Errorf("--lazy must be 0, 1, or 2")
	}
	port, err := strconv.Atoi(positional[1])
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", positional[1], err)
	}

	return &config{host: positional[0], port: port, cbrKbps: *cbr, lazy: *lazy, outputPath: *output}, nil
}

func run(cfg *config) error {
	conn, err := transport.Bind(":0")
	if err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	defer conn.Close()

	senderAddr := fmt.Sprintf("%s:%d", cfg.host, cfg.port)
	sessionCfg, err := receiver.Handshake(conn, senderAddr, uint32(cfg.cbrKbps))
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "run",
		"sender":   senderAddr,
		"width":    sessionCfg.Width,
		"height":   sessionCfg.Height,
		"fps":      sessionCfg.FPS,
	}).Info("receiver connected")

	lazy := receiver.LazyMode(cfg.lazy)

	// Display only ever applies under LazyDecodeAndDisplay; persistence
	// applies under both LazyDecodeAndDisplay and LazyDecodeOnly (spec
	// §6 --lazy: 1 means "decode only", not "decode and discard").
	var displaySink receiver.Sink
	if lazy == receiver.LazyDecodeAndDisplay {
		displaySink = preview.New(int(sessionCfg.Width), int(sessionCfg.Height), int(sessionCfg.Width), int(sessionCfg.Height))
	}

	var persistSink receiver.Sink
	if lazy != receiver.LazyNone && cfg.outputPath != "" {
		w, err := recorder.New(cfg.outputPath, int(sessionCfg.Width), int(sessionCfg.Height), int(sessionCfg.FPS))
		if err != nil {
			return fmt.Errorf("recorder: %w", err)
		}
		defer w.Close()
		persistSink = w
	}

	reassembler := receiver.NewReassembler()
	loop := receiver.NewLoop(reassembler, codec.NewReferenceCodec(uint32(cfg.cbrKbps)), conn, displaySink, persistSink, lazy, protocol.DefaultMTU)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logrus.Info("received interrupt, shutting down")
		cancel()
	}()

	return loop.Run(ctx)
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
