package receiver

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/prism-video/codec"
	"github.com/opd-ai/prism-video/protocol"
	"github.com/opd-ai/prism-video/recorder"
	"github.com/opd-ai/prism-video/transport"
)

// LazyMode controls how much work the receiver does with a completed
// frame, mirroring the receiver CLI's --lazy flag (spec §6).
type LazyMode int

const (
	// LazyDecodeAndDisplay decodes every completed frame, persists it if a
	// persist sink is configured, and forwards it to the display sink.
	LazyDecodeAndDisplay LazyMode = 0
	// LazyDecodeOnly decodes every completed frame and persists it if a
	// persist sink is configured, but never forwards it to the display
	// sink. Matches original_source's decoder.cc: lazy_level_ <=
	// DECODE_ONLY still writes the y4m file; only DECODE_DISPLAY also
	// constructs a display.
	LazyDecodeOnly LazyMode = 1
	// LazyNone consumes completed frames to keep the frontier advancing
	// but never decodes them.
	LazyNone LazyMode = 2
)

// Sink receives decoded raw frames for rendering or persistence. Both
// preview.Sink and recorder.Writer implement it.
type Sink interface {
	WriteFrame(raw []byte) error
}

// pollInterval mirrors sender.pollInterval: the receiver has the same lack
// of a portable readiness primitive, so it polls its non-blocking socket at
// a fine grain instead.
const pollInterval = 2 * time.Millisecond

// frameQueueCapacity bounds the handoff between the network-reading
// goroutine and the decode worker goroutine (spec §4.5 "Receiver decoder
// thread ... communicates via a mutex-and-condition-variable work queue of
// completed Frame entities", grounded on original_source's decoder.hh
// shared_queue_/mtx_/cv_/worker_). A buffered Go channel plays that role
// directly: the channel's internal lock is the mutex, and a full or empty
// channel blocking a goroutine is the condition variable, translated
// idiomatically instead of hand-rolled.
const frameQueueCapacity = 4

// Loop is the receiver's single-threaded cooperative event loop for the
// network path (socket I/O, ACKing, reassembly), paired with a decode
// worker goroutine that runs decode, persistence, and display off the
// network path.
type Loop struct {
	reassembler *Reassembler
	decoder     codec.Decoder
	conn        *transport.Endpoint
	displaySink Sink
	persistSink Sink
	lazy        LazyMode

	recvBuf []byte

	frameQueue chan []byte
	stop       chan struct{}
	workerDone chan struct{}
	outcome    chan error
}

// NewLoop builds a receiver loop. displaySink is only ever used under
// LazyDecodeAndDisplay; persistSink (typically a *recorder.Writer) is used
// under both LazyDecodeAndDisplay and LazyDecodeOnly. Either may be nil.
func NewLoop(r *Reassembler, dec codec.Decoder, conn *transport.Endpoint, displaySink, persistSink Sink, lazy LazyMode, mtu int) *Loop {
	return &Loop{
		reassembler: r,
		decoder:     dec,
		conn:        conn,
		displaySink: displaySink,
		persistSink: persistSink,
		lazy:        lazy,
		recvBuf:     make([]byte, mtu),
		frameQueue:  make(chan []byte, frameQueueCapacity),
		stop:        make(chan struct{}),
		workerDone:  make(chan struct{}),
		outcome:     make(chan error, 1),
	}
}

// Run blocks, dispatching handlers until ctx is cancelled. If lazy is not
// LazyNone, a decode worker goroutine runs alongside the network loop for
// the lifetime of Run and is joined before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	workerStarted := l.lazy != LazyNone
	if workerStarted {
		go l.decodeWorker()
	} else {
		close(l.workerDone)
	}

	finish := func(err error) error {
		close(l.stop)
		<-l.workerDone
		return err
	}

	statsTicker := time.NewTicker(time.Second)
	defer statsTicker.Stop()
	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.WithFields(logrus.Fields{"function": "Loop.Run"}).Info("receiver loop stopping")
			return finish(nil)
		case err := <-l.outcome:
			if errors.Is(err, recorder.ErrDiskFull) {
				logrus.WithFields(logrus.Fields{"function": "Loop.Run"}).Warn("disk full, shutting down as if SIGINT were received")
				return finish(nil)
			}
			return finish(err)
		case <-statsTicker.C:
			l.reassembler.OutputPeriodicStats()
		case <-pollTicker.C:
			l.drainReadable()
			l.enqueueCompleteFrames()
		}
	}
}

// drainReadable implements the receiver side of spec §4.5's socket-readable
// handler: parse every pending datagram, ACK every fragment (including
// duplicates), and insert fragments into the reassembler.
func (l *Loop) drainReadable() {
	for {
		n, addr, err := l.conn.Recv(l.recvBuf)
		if err != nil {
			return
		}

		rec, err := protocol.Parse(l.recvBuf[:n])
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Loop.drainReadable",
				"error":    err,
			}).Debug("dropping malformed datagram")
			continue
		}
		if rec.Fragment == nil {
			continue
		}

		l.reassembler.AddDatagram(rec.Fragment)

		ack := &protocol.Ack{
			FrameID: rec.Fragment.FrameID,
			FragID:  rec.Fragment.FragID,
			SendTS:  rec.Fragment.SendTS,
		}
		if err := l.conn.SendTo(ack.Serialize(), addr); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Loop.drainReadable",
				"error":    err,
			}).Debug("failed to send ack")
		}
	}
}

// enqueueCompleteFrames extracts every frame the reassembler can currently
// deliver and hands it to the decode worker via frameQueue, keeping decode,
// persistence, and display off the network-reading goroutine per spec
// §4.5's parallel "Receiver decoder thread". Under LazyNone, frames are
// still consumed to advance the frontier but are never queued for decode.
//
// A full queue means the decode worker has fallen behind; the frame is
// dropped rather than blocking the network goroutine, the same
// drop-newest-on-overflow policy spec §4.2 uses for the sender-side frame
// ring (C2).
func (l *Loop) enqueueCompleteFrames() {
	for l.reassembler.NextFrameComplete() {
		raw, err := l.reassembler.ConsumeNextFrame()
		if err != nil {
			return
		}

		if l.lazy == LazyNone {
			continue
		}

		select {
		case l.frameQueue <- raw:
		default:
			logrus.WithFields(logrus.Fields{
				"function": "Loop.enqueueCompleteFrames",
			}).Warn("decode queue full, dropping completed frame")
		}
	}
}

// decodeWorker is the receiver decoder thread (spec §4.5): it consumes
// completed frames from frameQueue and decodes/persists/displays them,
// entirely off the network-reading goroutine. It stops when told to via
// stop, or on its own after reporting a terminal error via outcome.
func (l *Loop) decodeWorker() {
	defer close(l.workerDone)

	for {
		select {
		case <-l.stop:
			return
		case raw := <-l.frameQueue:
			if err := l.decodeAndDeliver(raw); err != nil {
				select {
				case l.outcome <- err:
				default:
				}
				return
			}
		}
	}
}

// decodeAndDeliver decodes one reassembled frame and forwards it to the
// configured sinks: persistence runs under both LazyDecodeAndDisplay and
// LazyDecodeOnly ("decode only" means no display, not no output); display
// runs only under LazyDecodeAndDisplay. Returns a non-nil error when the
// worker should stop entirely: a codec failure, or a persist-sink error
// wrapping recorder.ErrDiskFull.
func (l *Loop) decodeAndDeliver(raw []byte) error {
	decoded, err := l.decoder.Decode(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Loop.decodeAndDeliver",
			"error":    err,
		}).Error("codec failure, aborting")
		return err
	}

	if l.persistSink != nil {
		if err := l.persistSink.WriteFrame(decoded); err != nil {
			if errors.Is(err, recorder.ErrDiskFull) {
				logrus.WithFields(logrus.Fields{
					"function": "Loop.decodeAndDeliver",
				}).Warn("disk full, shutting down as if SIGINT were received")
				return err
			}
			logrus.WithFields(logrus.Fields{
				"function": "Loop.decodeAndDeliver",
				"error":    err,
			}).Warn("persist sink rejected frame")
		}
	}

	if l.lazy != LazyDecodeAndDisplay || l.displaySink == nil {
		return nil
	}
	if err := l.displaySink.WriteFrame(decoded); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Loop.decodeAndDeliver",
			"error":    err,
		}).Warn("display sink rejected frame")
	}
	return nil
}
