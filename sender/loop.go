package sender

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/opd-ai/prism-video/protocol"
	"github.com/opd-ai/prism-video/ring"
	"github.com/opd-ai/prism-video/transport"
)

// pollInterval is how often the loop checks socket readiness. Go has no
// portable equivalent of the epoll-based readiness registration the
// original implementation used, and none of this codebase's dependencies
// provide one either, so readiness is approximated by polling the
// non-blocking transport.Endpoint at a fine grain between the FPS and
// stats timers. Each poll is a cheap non-blocking syscall.
const pollInterval = 2 * time.Millisecond

// Loop is the sender's single-threaded cooperative event loop (spec
// component C5): it multiplexes the FPS timer, socket writability, socket
// readability, and the stats timer, invoking exactly one handler at a time.
type Loop struct {
	transport *Transport
	frames    *ring.Ring
	conn      *transport.Endpoint
	limiter   *rate.Limiter

	fpsPeriod time.Duration
	recvBuf   []byte

	lastFPSTick time.Time
	fatal       error
}

// NewLoop builds a sender loop. targetBitrateKbps seeds the token-bucket
// limiter that paces the writable-socket drain; it is updated later via
// SetTargetBitrate as config updates arrive.
func NewLoop(t *Transport, frames *ring.Ring, conn *transport.Endpoint, fps int, mtu int, targetBitrateKbps uint32) *Loop {
	return &Loop{
		transport: t,
		frames:    frames,
		conn:      conn,
		limiter:   bitrateLimiter(targetBitrateKbps),
		fpsPeriod: time.Second / time.Duration(fps),
		recvBuf:   make([]byte, mtu),
	}
}

// bitrateLimiter converts a kbps target into a byte-per-second token
// bucket. A limiter with a generous burst avoids stalling a single large
// key frame's fragments behind the steady-state rate.
func bitrateLimiter(kbps uint32) *rate.Limiter {
	bytesPerSec := float64(kbps) * 1000 / 8
	if bytesPerSec <= 0 {
		bytesPerSec = 1 << 20 // effectively unlimited until a real config arrives
	}
	burst := int(bytesPerSec / 2)
	if burst < protocol.DefaultMTU {
		burst = protocol.DefaultMTU
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// SetTargetBitrate updates both the encoder's target bitrate and the
// pacing limiter to match, per spec §4.3.
func (l *Loop) SetTargetBitrate(kbps uint32) {
	l.transport.SetTargetBitrate(kbps)
	l.limiter = bitrateLimiter(kbps)
}

// Run blocks, dispatching handlers until ctx is cancelled (spec's SIGINT
// cancellation, translated to a context deadline/cancel by the caller).
func (l *Loop) Run(ctx context.Context) error {
	fpsTicker := time.NewTicker(l.fpsPeriod)
	defer fpsTicker.Stop()
	statsTicker := time.NewTicker(time.Second)
	defer statsTicker.Stop()
	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()

	l.lastFPSTick = time.Now()

	for {
		select {
		case <-ctx.Done():
			logrus.WithFields(logrus.Fields{"function": "Loop.Run"}).Info("sender loop stopping")
			return nil
		case now := <-fpsTicker.C:
			l.onFPSTick(now)
			if l.fatal != nil {
				return l.fatal
			}
		case <-statsTicker.C:
			l.transport.OutputPeriodicStats()
		case <-pollTicker.C:
			l.drainReadable()
			l.drainWritable()
		}
	}
}

// onFPSTick implements the FPS timer handler of spec §4.5: if the loop fell
// behind (k > 1 periods elapsed), it consumes and discards all but the
// newest ring frame before compressing.
func (l *Loop) onFPSTick(now time.Time) {
	elapsed := now.Sub(l.lastFPSTick)
	l.lastFPSTick = now

	k := int(elapsed / l.fpsPeriod)
	if k < 1 {
		k = 1
	}

	var newest []byte
	consumed := 0
	for i := 0; i < k; i++ {
		frame, ok := l.frames.TryConsume()
		if !ok {
			break
		}
		newest = frame
		consumed++
	}
	if newest == nil {
		return
	}
	if k > 1 {
		logrus.WithFields(logrus.Fields{
			"function": "Loop.onFPSTick",
			"periods":  k,
			"consumed": consumed,
		}).Warn("sender loop fell behind, discarding stale frames")
	}

	if err := l.transport.CompressFrame(newest); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Loop.onFPSTick",
			"error":    err,
		}).Error("codec failure, aborting")
		l.fatal = err // codec errors are fatal per spec §7; Run returns this to the caller
	}
}

// drainWritable implements the writable-socket handler of spec §4.5.
func (l *Loop) drainWritable() {
	for l.transport.PendingSends() {
		frag, ok := l.transport.PopSendBuf()
		if !ok {
			return
		}

		wire := frag.Serialize()
		if !l.limiter.AllowN(time.Now(), len(wire)) {
			l.transport.RequeueFront(frag)
			return
		}

		frag.SendTS = uint64(time.Now().UnixMicro())
		wire = frag.Serialize() // re-serialize with the stamped timestamp

		sentAt := time.Now()
		if err := l.conn.Send(wire); err != nil {
			l.transport.RequeueFront(frag)
			return
		}

		if frag.RTX == 0 {
			l.transport.AddUnacked(frag, sentAt)
		}
	}
}

// drainReadable implements the readable-socket handler of spec §4.5: drains
// all pending datagrams, dispatching ACKs to the transport and ignoring
// everything else.
func (l *Loop) drainReadable() {
	for {
		n, _, err := l.conn.Recv(l.recvBuf)
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
		if rec.Ack != nil {
			l.transport.HandleAck(rec.Ack)
		}
	}
}
