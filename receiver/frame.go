package receiver

import "github.com/opd-ai/prism-video/protocol"

// pendingFrame is the receiver-side reassembly entity for one frame id: a
// fixed-length vector of optional fragment slots sized by the frame's
// declared fragment count.
type pendingFrame struct {
	frameID   uint32
	frameType protocol.FrameType
	fragCnt   uint16
	slots     []*protocol.Fragment // nil where not yet occupied
	size      int                  // sum of occupied slot payload sizes
	nullFrags int
}

func newPendingFrame(frameID uint32, frameType protocol.FrameType, fragCnt uint16) *pendingFrame {
	return &pendingFrame{
		frameID:   frameID,
		frameType: frameType,
		fragCnt:   fragCnt,
		slots:     make([]*protocol.Fragment, fragCnt),
		nullFrags: int(fragCnt),
	}
}

// complete reports whether every slot is occupied.
func (p *pendingFrame) complete() bool {
	return p.nullFrags == 0
}

// insert fills frag's slot if unoccupied. Duplicate fragments (slot already
// filled) are silently dropped and never overwrite the existing payload,
// per spec §3's Frame lifecycle invariant.
func (p *pendingFrame) insert(frag *protocol.Fragment) {
	if p.slots[frag.FragID] != nil {
		return
	}
	p.slots[frag.FragID] = frag
	p.size += len(frag.Payload)
	p.nullFrags--
}

// matches reports whether frag's declared type and count agree with this
// entity's.
func (p *pendingFrame) matches(frameType protocol.FrameType, fragCnt uint16) bool {
	return p.frameType == frameType && p.fragCnt == fragCnt
}

// payload concatenates occupied slots' payloads in index order. Only valid
// once complete() is true.
func (p *pendingFrame) payload() []byte {
	out := make([]byte, 0, p.size)
	for _, frag := range p.slots {
		out = append(out, frag.Payload...)
	}
	return out
}
