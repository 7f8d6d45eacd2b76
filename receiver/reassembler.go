// Package receiver implements the receiver-side reassembler (spec
// component C4): collecting fragments into frames, deciding when the
// frontier frame is consumable, and performing key-frame resync when the
// frontier is stuck behind permanent loss.
package receiver

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/prism-video/protocol"
)

// Reassembler holds all receiver-side reassembly state. It is touched only
// by the receiver's network handler goroutine and therefore needs no
// internal locking (spec §5).
type Reassembler struct {
	frameBuf  map[uint32]*pendingFrame
	nextFrame uint32

	periodDecodable uint64
	periodBytes     uint64
}

// NewReassembler creates a reassembler waiting for frame id 0.
func NewReassembler() *Reassembler {
	return &Reassembler{frameBuf: make(map[uint32]*pendingFrame)}
}

// AddDatagram implements spec §4.4 add_datagram.
func (r *Reassembler) AddDatagram(frag *protocol.Fragment) {
	if frag.FrameID < r.nextFrame {
		logrus.WithFields(logrus.Fields{
			"function": "Reassembler.AddDatagram",
			"frame_id": frag.FrameID,
			"next":     r.nextFrame,
		}).Debug("dropping fragment for surrendered frame")
		return
	}

	pf, ok := r.frameBuf[frag.FrameID]
	if !ok {
		pf = newPendingFrame(frag.FrameID, frag.Type, frag.FragCnt)
		r.frameBuf[frag.FrameID] = pf
	}

	if !pf.matches(frag.Type, frag.FragCnt) {
		logrus.WithFields(logrus.Fields{
			"function":     "Reassembler.AddDatagram",
			"frame_id":     frag.FrameID,
			"got_type":     frag.Type.String(),
			"got_frag_cnt": frag.FragCnt,
			"want_type":    pf.frameType.String(),
			"want_frag_cnt": pf.fragCnt,
		}).Warn("dropping fragment with mismatched frame metadata")
		return
	}

	pf.insert(frag)
}

// NextFrameComplete implements spec §4.4 next_frame_complete, including
// key-frame resync: if the frontier frame isn't complete, scan frame_buf
// from the highest id downward for a complete KEY frame beyond the
// frontier and, if found, jump the frontier forward to it.
func (r *Reassembler) NextFrameComplete() bool {
	if pf, ok := r.frameBuf[r.nextFrame]; ok && pf.complete() {
		return true
	}

	ids := make([]uint32, 0, len(r.frameBuf))
	for id := range r.frameBuf {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	for _, id := range ids {
		if id <= r.nextFrame {
			break
		}
		pf := r.frameBuf[id]
		if pf.frameType != protocol.FrameKey || !pf.complete() {
			continue
		}

		skipped := 0
		for existing := range r.frameBuf {
			if existing < id {
				delete(r.frameBuf, existing)
				skipped++
			}
		}
		logrus.WithFields(logrus.Fields{
			"function":      "Reassembler.NextFrameComplete",
			"from":          r.nextFrame,
			"to":            id,
			"frames_skipped": skipped,
		}).Info("key-frame resync")

		r.nextFrame = id
		return true
	}

	return false
}

// ConsumeNextFrame implements spec §4.4 consume_next_frame. It requires
// NextFrameComplete to have returned true for the current frontier.
func (r *Reassembler) ConsumeNextFrame() ([]byte, error) {
	pf, ok := r.frameBuf[r.nextFrame]
	if !ok || !pf.complete() {
		return nil, fmt.Errorf("%w: frame %d", ErrNotComplete, r.nextFrame)
	}

	payload := pf.payload()
	delete(r.frameBuf, r.nextFrame)

	r.periodDecodable++
	r.periodBytes += uint64(len(payload))
	r.nextFrame++

	return payload, nil
}

// NextFrameID returns the frontier frame identifier, for tests and
// diagnostics.
func (r *Reassembler) NextFrameID() uint32 {
	return r.nextFrame
}

// PendingFrameCount reports how many frame entities are currently buffered.
func (r *Reassembler) PendingFrameCount() int {
	return len(r.frameBuf)
}

// Stats is a snapshot of one stats period's decode counters.
type Stats struct {
	DecodableFrames uint64
	Bytes           uint64
}

// FlushStats returns and resets the accumulated period counters.
func (r *Reassembler) FlushStats() Stats {
	s := Stats{DecodableFrames: r.periodDecodable, Bytes: r.periodBytes}
	r.periodDecodable = 0
	r.periodBytes = 0
	return s
}

// OutputPeriodicStats flushes and logs the current period's counters,
// mirroring sender.Transport.OutputPeriodicStats on the receive side.
func (r *Reassembler) OutputPeriodicStats() Stats {
	s := r.FlushStats()
	logrus.WithFields(logrus.Fields{
		"function":         "Reassembler.OutputPeriodicStats",
		"decodable_frames": s.DecodableFrames,
		"bytes":            s.Bytes,
	}).Info("receiver stats")
	return s
}
