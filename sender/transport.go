// Package sender implements the sender-side transport (spec component C3):
// frame packetization, the unacked-fragment table, ACK-driven selective
// retransmission, and RTT/RTO estimation. It owns no socket and no event
// loop of its own — those live in the sender's cooperative loop, which
// calls into a Transport as datagrams arrive and as the writable socket
// drains.
package sender

import (
	"container/list"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/prism-video/codec"
	"github.com/opd-ai/prism-video/protocol"
	"github.com/opd-ai/prism-video/rtt"
)

// liveWindow bounds how many of the most recently compressed frames the
// sender still considers worth retransmitting. Frames older than this are
// abandoned wholesale (spec §4.3 liveness policy).
const liveWindow = 8

// Stats is a snapshot of one stats-timer period's counters (spec §4.3
// output_periodic_stats).
type Stats struct {
	Sent          uint64
	Retransmitted uint64
	SmoothedRTT   time.Duration
	BitrateKbps   float64
}

// Transport packetizes frames, tracks unacked fragments, and drives
// retransmission. It is used exclusively from the sender's single event
// loop goroutine and therefore needs no internal locking, matching spec §5.
type Transport struct {
	encoder    codec.Encoder
	maxPayload int
	timeProv   TimeProvider

	nextFrameID uint32
	liveFrames  []uint32

	sendBuf *list.List // FIFO of *protocol.Fragment
	unacked *unackedTable
	rttEst  *rtt.Estimator

	periodSent          uint64
	periodRetransmitted uint64
	periodBytes         uint64
}

// NewTransport builds a Transport around the given encoder. maxPayload is
// the largest fragment payload the wire codec will accept (see
// protocol.MaxPayloadSize).
func NewTransport(enc codec.Encoder, maxPayload int) *Transport {
	return &Transport{
		encoder:    enc,
		maxPayload: maxPayload,
		timeProv:   RealTimeProvider{},
		sendBuf:    list.New(),
		unacked:    newUnackedTable(),
		rttEst:     rtt.NewEstimator(rtt.MinRTO),
	}
}

// SetTimeProvider overrides the wall clock used for send timestamps and RTO
// expiry checks, for deterministic tests.
func (t *Transport) SetTimeProvider(tp TimeProvider) {
	t.timeProv = tp
}

// CompressFrame implements spec §4.3 compress_frame: encodes raw, splits the
// result into MTU-bounded fragments, assigns the next frame id, and appends
// the fragments to send_buf in index order.
func (t *Transport) CompressFrame(raw []byte) error {
	compressed, frameType, err := t.encoder.Compress(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCodecFailure, err)
	}

	frameID := t.nextFrameID
	t.nextFrameID++
	t.recordLiveFrame(frameID)

	chunks := protocol.SplitPayload(compressed, t.maxPayload)
	fragCnt := uint16(len(chunks))
	for i, chunk := range chunks {
		frag, err := protocol.NewFragment(frameID, frameType, uint16(i), fragCnt, 0, 0, chunk)
		if err != nil {
			return fmt.Errorf("sender: constructing fragment %d/%d for frame %d: %w", i, fragCnt, frameID, err)
		}
		t.sendBuf.PushBack(frag)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Transport.CompressFrame",
		"frame_id":   frameID,
		"frame_type": frameType.String(),
		"fragments":  fragCnt,
	}).Debug("compressed frame queued for transmission")

	return nil
}

// recordLiveFrame appends frameID to the trailing liveness window, abandoning
// the unacked entries of whatever frame falls out the back.
func (t *Transport) recordLiveFrame(frameID uint32) {
	t.liveFrames = append(t.liveFrames, frameID)
	if len(t.liveFrames) > liveWindow {
		aged := t.liveFrames[0]
		t.liveFrames = t.liveFrames[1:]
		if removed := t.unacked.abandonFrame(aged); removed > 0 {
			logrus.WithFields(logrus.Fields{
				"function": "Transport.recordLiveFrame",
				"frame_id": aged,
				"entries":  removed,
			}).Debug("abandoned unacked entries for aged-out frame")
		}
	}
}

func (t *Transport) isLive(frameID uint32) bool {
	for _, id := range t.liveFrames {
		if id == frameID {
			return true
		}
	}
	return false
}

// PopSendBuf removes and returns the fragment at the front of send_buf.
func (t *Transport) PopSendBuf() (*protocol.Fragment, bool) {
	front := t.sendBuf.Front()
	if front == nil {
		return nil, false
	}
	t.sendBuf.Remove(front)
	return front.Value.(*protocol.Fragment), true
}

// RequeueFront puts frag back at the head of send_buf with send_ts cleared,
// per the would-block failure semantics of spec §4.3.
func (t *Transport) RequeueFront(frag *protocol.Fragment) {
	frag.SendTS = 0
	t.sendBuf.PushFront(frag)
}

// PendingSends reports whether send_buf currently holds fragments.
func (t *Transport) PendingSends() bool {
	return t.sendBuf.Len() > 0
}

// AddUnacked records frag as newly transmitted, called by the writable
// handler after a successful send of a first-transmission fragment.
func (t *Transport) AddUnacked(frag *protocol.Fragment, sentAt time.Time) {
	t.unacked.insert(frag, sentAt)
	t.periodSent++
	t.periodBytes += uint64(len(frag.Payload))
}

// HandleAck implements spec §4.3 handle_ack: removes the matching unacked
// entry, samples RTT for first-transmission ACKs, and re-queues any
// still-live fragment whose RTO has elapsed.
func (t *Transport) HandleAck(ack *protocol.Ack) {
	key := protocol.Key{FrameID: ack.FrameID, FragID: ack.FragID}
	entry, ok := t.unacked.remove(key)
	if !ok {
		return
	}

	now := t.timeProv.Now()
	if entry.fragment.RTX == 0 && ack.SendTS != 0 {
		sample := now.Sub(entry.sentAt)
		t.rttEst.Sample(sample)
	}

	t.retransmitExpired(now)
}

// retransmitExpired walks the unacked table for entries whose RTO has
// elapsed and whose frame is still within the liveness window, cloning and
// re-queueing each at the back of send_buf.
func (t *Transport) retransmitExpired(now time.Time) {
	rto := t.rttEst.RTO()

	var expired []protocol.Key
	for key, entry := range t.unacked.entries {
		if now.Sub(entry.sentAt) <= rto {
			continue
		}
		if !t.isLive(key.FrameID) {
			continue
		}
		expired = append(expired, key)
	}

	for _, key := range expired {
		entry, ok := t.unacked.remove(key)
		if !ok {
			continue
		}
		retransmit := cloneFragment(entry.fragment)
		retransmit.RTX++
		retransmit.SendTS = 0
		t.sendBuf.PushBack(retransmit)
		t.periodRetransmitted++

		logrus.WithFields(logrus.Fields{
			"function": "Transport.retransmitExpired",
			"frame_id": key.FrameID,
			"frag_id":  key.FragID,
			"rtx":      retransmit.RTX,
			"rto_ms":   rto.Milliseconds(),
		}).Debug("re-queued expired fragment")
	}
}

func cloneFragment(f *protocol.Fragment) *protocol.Fragment {
	payload := make([]byte, len(f.Payload))
	copy(payload, f.Payload)
	return &protocol.Fragment{
		FrameID: f.FrameID,
		Type:    f.Type,
		FragID:  f.FragID,
		FragCnt: f.FragCnt,
		RTX:     f.RTX,
		SendTS:  f.SendTS,
		Payload: payload,
	}
}

// SetTargetBitrate forwards a new bitrate to the encoder verbatim (spec
// §4.3 target bitrate).
func (t *Transport) SetTargetBitrate(kbps uint32) {
	t.encoder.SetTargetBitrate(kbps)
}

// FlushStats returns the counters accumulated since the last call and
// resets them, for the stats timer's once-per-second emission.
func (t *Transport) FlushStats() Stats {
	s := Stats{
		Sent:          t.periodSent,
		Retransmitted: t.periodRetransmitted,
		SmoothedRTT:   t.rttEst.SRTT(),
		BitrateKbps:   float64(t.periodBytes*8) / 1000.0,
	}
	t.periodSent = 0
	t.periodRetransmitted = 0
	t.periodBytes = 0
	return s
}

// UnackedCount reports the number of fragments currently awaiting ACK, for
// tests and diagnostics.
func (t *Transport) UnackedCount() int {
	return t.unacked.len()
}

// OutputPeriodicStats implements spec §4.3 output_periodic_stats: flushes
// and logs the current period's counters. Called once per second by the
// event loop's stats timer.
func (t *Transport) OutputPeriodicStats() Stats {
	s := t.FlushStats()
	logrus.WithFields(logrus.Fields{
		"function":      "Transport.OutputPeriodicStats",
		"sent":          s.Sent,
		"retransmitted": s.Retransmitted,
		"srtt_ms":       s.SmoothedRTT.Milliseconds(),
		"bitrate_kbps":  s.BitrateKbps,
	}).Info("sender stats")
	return s
}
