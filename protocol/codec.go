package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"
)

// DefaultMTU is the assumed path MTU when a session does not override it.
const DefaultMTU = 1500

// ipUDPOverhead accounts for a worst-case IPv4 + UDP header so MaxPayloadSize
// stays under the wire MTU even without knowing the peer's address family.
const ipUDPOverhead = 28

// fragmentHeaderSize is the fixed-width portion of a serialized data
// fragment: tag(1) + frame_id(4) + frame_type(1) + frag_id(2) + frag_cnt(2)
// + rtx(2) + send_ts(8) + payload_len(2).
const fragmentHeaderSize = 1 + 4 + 1 + 2 + 2 + 2 + 8 + 2

const ackSize = 1 + 4 + 2 + 8
const configSize = 1 + 2 + 2 + 2 + 4

// MaxPayloadSize returns the largest fragment payload that fits within mtu
// after accounting for IP/UDP overhead and the fragment header.
func MaxPayloadSize(mtu int) int {
	return mtu - ipUDPOverhead - fragmentHeaderSize
}

// Serialize encodes a Fragment into its wire form.
func (f *Fragment) Serialize() []byte {
	buf := make([]byte, fragmentHeaderSize+len(f.Payload))
	buf[0] = byte(TagData)
	binary.BigEndian.PutUint32(buf[1:5], f.FrameID)
	buf[5] = byte(f.Type)
	binary.BigEndian.PutUint16(buf[6:8], f.FragID)
	binary.BigEndian.PutUint16(buf[8:10], f.FragCnt)
	binary.BigEndian.PutUint16(buf[10:12], f.RTX)
	binary.BigEndian.PutUint64(buf[12:20], f.SendTS)
	binary.BigEndian.PutUint16(buf[20:22], uint16(len(f.Payload)))
	copy(buf[22:], f.Payload)
	return buf
}

// Serialize encodes an Ack into its wire form.
func (a *Ack) Serialize() []byte {
	buf := make([]byte, ackSize)
	buf[0] = byte(TagAck)
	binary.BigEndian.PutUint32(buf[1:5], a.FrameID)
	binary.BigEndian.PutUint16(buf[5:7], a.FragID)
	binary.BigEndian.PutUint64(buf[7:15], a.SendTS)
	return buf
}

// Serialize encodes a Config into its wire form.
func (c *Config) Serialize() []byte {
	buf := make([]byte, configSize)
	buf[0] = byte(TagConfig)
	binary.BigEndian.PutUint16(buf[1:3], c.Width)
	binary.BigEndian.PutUint16(buf[3:5], c.Height)
	binary.BigEndian.PutUint16(buf[5:7], c.FPS)
	binary.BigEndian.PutUint32(buf[7:11], c.TargetBitrate)
	return buf
}

// Parse decodes a single wire record. It never returns a record kind other
// than the one identified by the leading tag byte; unrecognized tags and
// truncated buffers return an error the caller is expected to log and
// discard rather than treat as fatal (spec: invalid records MUST NOT
// terminate the loop).
func Parse(data []byte) (Record, error) {
	if len(data) < 1 {
		return Record{}, ErrTruncated
	}

	switch Tag(data[0]) {
	case TagData:
		return parseFragment(data)
	case TagAck:
		return parseAck(data)
	case TagConfig:
		return parseConfig(data)
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Parse",
			"tag":      data[0],
		}).Debug("dropping datagram with unknown tag")
		return Record{}, ErrUnknownTag
	}
}

func parseFragment(data []byte) (Record, error) {
	if len(data) < fragmentHeaderSize {
		return Record{}, ErrTruncated
	}

	frameID := binary.BigEndian.Uint32(data[1:5])
	ftype := FrameType(data[5])
	fragID := binary.BigEndian.Uint16(data[6:8])
	fragCnt := binary.BigEndian.Uint16(data[8:10])
	rtx := binary.BigEndian.Uint16(data[10:12])
	sendTS := binary.BigEndian.Uint64(data[12:20])
	payloadLen := int(binary.BigEndian.Uint16(data[20:22]))

	if len(data) < fragmentHeaderSize+payloadLen {
		return Record{}, ErrTruncated
	}
	if len(data) > fragmentHeaderSize+payloadLen {
		return Record{}, ErrTrailingBytes
	}

	payload := make([]byte, payloadLen)
	copy(payload, data[fragmentHeaderSize:])

	frag, err := NewFragment(frameID, ftype, fragID, fragCnt, rtx, sendTS, payload)
	if err != nil {
		return Record{}, fmt.Errorf("parse fragment: %w", err)
	}
	return Record{Fragment: frag}, nil
}

func parseAck(data []byte) (Record, error) {
	if len(data) < ackSize {
		return Record{}, ErrTruncated
	}
	if len(data) > ackSize {
		return Record{}, ErrTrailingBytes
	}
	return Record{Ack: &Ack{
		FrameID: binary.BigEndian.Uint32(data[1:5]),
		FragID:  binary.BigEndian.Uint16(data[5:7]),
		SendTS:  binary.BigEndian.Uint64(data[7:15]),
	}}, nil
}

func parseConfig(data []byte) (Record, error) {
	if len(data) < configSize {
		return Record{}, ErrTruncated
	}
	if len(data) > configSize {
		return Record{}, ErrTrailingBytes
	}
	return Record{Config: &Config{
		Width:         binary.BigEndian.Uint16(data[1:3]),
		Height:        binary.BigEndian.Uint16(data[3:5]),
		FPS:           binary.BigEndian.Uint16(data[5:7]),
		TargetBitrate: binary.BigEndian.Uint32(data[7:11]),
	}}, nil
}
