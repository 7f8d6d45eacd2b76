// Package protocol implements the wire format shared by the sender and
// receiver: a length-implicit, big-endian, type-tagged envelope for three
// record kinds (data fragment, ACK, config). It has no knowledge of frame
// reassembly, retransmission, or sockets — those live in ring, rtt, sender,
// and receiver.
package protocol

import "fmt"

// Tag identifies which of the three wire record kinds a datagram carries.
type Tag byte

const (
	// TagData marks a data fragment record.
	TagData Tag = iota + 1
	// TagAck marks an ACK record.
	TagAck
	// TagConfig marks a config record.
	TagConfig
)

// String returns a human-readable tag name for logging.
func (t Tag) String() string {
	switch t {
	case TagData:
		return "DATA"
	case TagAck:
		return "ACK"
	case TagConfig:
		return "CONFIG"
	default:
		return fmt.Sprintf("Tag(%d)", byte(t))
	}
}

// FrameType distinguishes self-contained key frames from delta-coded frames.
type FrameType uint8

const (
	// FrameKey identifies a self-contained frame that can be decoded on its own.
	FrameKey FrameType = 0
	// FrameDelta identifies a frame that depends on its predecessor.
	FrameDelta FrameType = 1
)

// String returns a human-readable frame type name for logging.
func (t FrameType) String() string {
	switch t {
	case FrameKey:
		return "KEY"
	case FrameDelta:
		return "DELTA"
	default:
		return fmt.Sprintf("FrameType(%d)", uint8(t))
	}
}

// Record is the sum type produced by Parse and consumed by Serialize.
// Exactly one of Fragment, Ack, or Config is non-nil.
type Record struct {
	Fragment *Fragment
	Ack      *Ack
	Config   *Config
}

// Fragment is one wire-sized slice of a compressed frame.
//
// Invariants (enforced by NewFragment): FragID < FragCnt, FragCnt >= 1,
// len(Payload) > 0. All fragments belonging to the same frame share
// FrameID, Type, and FragCnt — that sharing is not enforced here, it is
// the caller's responsibility when constructing a frame's fragment set.
type Fragment struct {
	FrameID uint32
	Type    FrameType
	FragID  uint16
	FragCnt uint16
	RTX     uint16
	SendTS  uint64 // microseconds since an epoch, stamped just before transmit
	Payload []byte
}

// NewFragment validates and constructs a Fragment.
func NewFragment(frameID uint32, ftype FrameType, fragID, fragCnt, rtx uint16, sendTS uint64, payload []byte) (*Fragment, error) {
	if fragCnt == 0 {
		return nil, ErrInvalidFragCount
	}
	if fragID >= fragCnt {
		return nil, ErrFragIndexOutOfRange
	}
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	return &Fragment{
		FrameID: frameID,
		Type:    ftype,
		FragID:  fragID,
		FragCnt: fragCnt,
		RTX:     rtx,
		SendTS:  sendTS,
		Payload: payload,
	}, nil
}

// Key identifies a fragment uniquely within a session: (frame id, fragment index).
type Key struct {
	FrameID uint32
	FragID  uint16
}

// Key returns this fragment's (frame id, fragment index) identity.
func (f *Fragment) Key() Key {
	return Key{FrameID: f.FrameID, FragID: f.FragID}
}

// Ack acknowledges receipt of one fragment, echoing its send timestamp so the
// sender can sample RTT.
type Ack struct {
	FrameID uint32
	FragID  uint16
	SendTS  uint64
}

// Config carries session parameters exchanged once at handshake time.
type Config struct {
	Width         uint16
	Height        uint16
	FPS           uint16
	TargetBitrate uint32 // kbps
}
